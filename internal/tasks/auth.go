package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/readdon/internal/models"
	"github.com/desertthunder/readdon/internal/services"
	"github.com/desertthunder/readdon/internal/shared"
)

// Authenticator turns a credential record into a session, reusing the cached token when it
// still validates.
type Authenticator struct {
	svc    services.Service
	logger *log.Logger
	now    func() time.Time
}

// NewAuthenticator creates an authenticator over svc.
func NewAuthenticator(svc services.Service, logger *log.Logger) *Authenticator {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Authenticator{svc: svc, logger: logger, now: time.Now}
}

// Obtain returns a session for rec.
//
// A cached token costs one validation probe and no authentication when valid. Otherwise one
// fresh authentication is performed and rec.Token is overwritten. Failures are [shared.AuthError].
func (a *Authenticator) Obtain(ctx context.Context, rec *models.CredentialRecord) (*models.Session, error) {
	logger := shared.WithLogger(a.logger, "account", rec.Identifier)

	if rec.Token != "" {
		valid, err := a.svc.ValidateToken(ctx, rec.Token)
		switch {
		case err != nil:
			logger.Warn("token validation failed, authenticating", "token", shared.MaskToken(rec.Token), "error", err)
		case valid:
			logger.Info("authenticated with stored token")
			return &models.Session{
				Identifier:      rec.Identifier,
				Token:           rec.Token,
				AuthenticatedAt: a.now(),
				Reused:          true,
			}, nil
		default:
			logger.Info("stored token rejected, authenticating")
		}
	} else {
		logger.Info("no stored token, authenticating")
	}

	return a.authenticate(ctx, rec)
}

// Refresh discards the current token and authenticates once.
func (a *Authenticator) Refresh(ctx context.Context, rec *models.CredentialRecord) (*models.Session, error) {
	a.logger.Info("session rejected, re-authenticating", "account", rec.Identifier)
	return a.authenticate(ctx, rec)
}

func (a *Authenticator) authenticate(ctx context.Context, rec *models.CredentialRecord) (*models.Session, error) {
	if rec.Identifier == "" || rec.Secret == "" {
		return nil, &shared.AuthError{Identifier: rec.Identifier, Cause: shared.ErrMissingCredentials}
	}

	token, err := a.svc.Authenticate(ctx, rec.Identifier, rec.Secret)
	if err != nil {
		return nil, &shared.AuthError{Identifier: rec.Identifier, Cause: err}
	}
	if token == "" {
		return nil, &shared.AuthError{Identifier: rec.Identifier, Cause: fmt.Errorf("%w: empty token", shared.ErrAPIRequest)}
	}

	rec.Token = token
	a.logger.Info("authenticated, token updated", "account", rec.Identifier, "token", shared.MaskToken(token))
	return &models.Session{
		Identifier:      rec.Identifier,
		Token:           token,
		AuthenticatedAt: a.now(),
	}, nil
}
