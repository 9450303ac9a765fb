// package services defines interface Service for interacting with the Stremio API
package services

import (
	"context"

	"github.com/desertthunder/readdon/internal/models"
)

// Service is the remote account surface that reconciliation runs against.
//
// Implementations must be safe for concurrent use by many account workflows. Every method
// that takes a token must return an error matching [shared.ErrNotAuthenticated] when the
// remote side rejects that token.
type Service interface {
	// Authenticate exchanges an identifier and secret for a session token.
	Authenticate(ctx context.Context, identifier, secret string) (string, error)

	// ValidateToken probes whether token is still accepted. A transport failure is an error,
	// a rejected token is (false, nil).
	ValidateToken(ctx context.Context, token string) (bool, error)

	// Addons returns the installed addon collection in remote order.
	Addons(ctx context.Context, token string) ([]models.AddonDescriptor, error)

	// RemoveAddon uninstalls the addon identified by ref.
	RemoveAddon(ctx context.Context, token string, ref models.AddonRef) error

	// InstallAddon installs addon, appending it to the collection.
	InstallAddon(ctx context.Context, token string, addon models.AddonDescriptor) error
}

// Fetcher resolves an addon URL into a descriptor.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*models.AddonDescriptor, error)
}
