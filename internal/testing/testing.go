// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/readdon/internal/models"
	"github.com/desertthunder/readdon/internal/shared"
)

// Operation names counted by [FakeStremio].
const (
	OpAuthenticate = "authenticate"
	OpValidate     = "validate"
	OpAddons       = "addons"
	OpRemove       = "remove"
	OpInstall      = "install"
)

// FakeAccount is one account held by [FakeStremio].
type FakeAccount struct {
	Identifier string
	Secret     string
	Addons     []models.AddonDescriptor
}

// FakeStremio is an in-memory test double for [services.Service].
//
// It counts calls, injects failures, and records the peak number of concurrent calls.
type FakeStremio struct {
	// Delay is slept inside every call, after the in-flight counter is raised.
	Delay time.Duration
	// ValidateErr is returned from every ValidateToken call when set.
	ValidateErr error

	mu          sync.Mutex
	accounts    map[string]*FakeAccount
	tokens      map[string]string
	usesLeft    map[string]int
	authErr     map[string]error
	removeErr   map[string]error
	installErr  map[string]error
	panics      map[string]bool
	calls       map[string]int
	authCalls   map[string]int
	inFlight    int
	maxInFlight int
	seq         int
}

func NewFakeStremio() *FakeStremio {
	return &FakeStremio{
		accounts:   make(map[string]*FakeAccount),
		tokens:     make(map[string]string),
		usesLeft:   make(map[string]int),
		authErr:    make(map[string]error),
		removeErr:  make(map[string]error),
		installErr: make(map[string]error),
		panics:     make(map[string]bool),
		calls:      make(map[string]int),
		authCalls:  make(map[string]int),
	}
}

// AddAccount registers an account with its installed addons.
func (f *FakeStremio) AddAccount(identifier, secret string, addons ...models.AddonDescriptor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[identifier] = &FakeAccount{Identifier: identifier, Secret: secret, Addons: slices.Clone(addons)}
}

// IssueToken creates a valid token for identifier without counting an authentication.
func (f *FakeStremio) IssueToken(identifier string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.issue(identifier)
}

func (f *FakeStremio) issue(identifier string) string {
	f.seq++
	token := fmt.Sprintf("tok-%s-%d", identifier, f.seq)
	f.tokens[token] = identifier
	return token
}

// RevokeToken invalidates token immediately.
func (f *FakeStremio) RevokeToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, token)
}

// RevokeAfter lets token be used n more times, then invalidates it.
func (f *FakeStremio) RevokeAfter(token string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usesLeft[token] = n
}

// FailAuth makes every Authenticate call for identifier return err.
func (f *FakeStremio) FailAuth(identifier string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authErr[identifier] = err
}

// FailRemove makes removing the addon with manifest id addonID fail.
func (f *FakeStremio) FailRemove(addonID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeErr[addonID] = err
}

// FailInstall makes installing the addon with manifest id addonID fail.
func (f *FakeStremio) FailInstall(addonID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installErr[addonID] = err
}

// PanicOn makes listing addons for identifier panic.
func (f *FakeStremio) PanicOn(identifier string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panics[identifier] = true
}

// Installed returns a copy of an account's addon collection.
func (f *FakeStremio) Installed(identifier string) []models.AddonDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	if acct, ok := f.accounts[identifier]; ok {
		return slices.Clone(acct.Addons)
	}
	return nil
}

// InstalledIDs returns the manifest ids of an account's collection in order.
func (f *FakeStremio) InstalledIDs(identifier string) []string {
	var ids []string
	for _, a := range f.Installed(identifier) {
		ids = append(ids, a.Key())
	}
	return ids
}

// Calls returns how many times op was called across all accounts.
func (f *FakeStremio) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// AuthCalls returns how many times Authenticate was called for identifier.
func (f *FakeStremio) AuthCalls(identifier string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authCalls[identifier]
}

// MaxInFlight returns the peak number of concurrent calls observed.
func (f *FakeStremio) MaxInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}

func (f *FakeStremio) enter(ctx context.Context, op string) error {
	f.mu.Lock()
	f.calls[op]++
	f.inFlight++
	f.maxInFlight = max(f.maxInFlight, f.inFlight)
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (f *FakeStremio) leave() {
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
}

// account resolves token to its account. Caller holds f.mu.
func (f *FakeStremio) account(token string) (*FakeAccount, error) {
	id, ok := f.tokens[token]
	if !ok {
		return nil, fmt.Errorf("%w: unknown token", shared.ErrNotAuthenticated)
	}
	if n, limited := f.usesLeft[token]; limited {
		if n <= 0 {
			delete(f.tokens, token)
			delete(f.usesLeft, token)
			return nil, fmt.Errorf("%w: token revoked", shared.ErrNotAuthenticated)
		}
		f.usesLeft[token] = n - 1
	}
	acct, ok := f.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: account %s gone", shared.ErrNotAuthenticated, id)
	}
	return acct, nil
}

func (f *FakeStremio) Authenticate(ctx context.Context, identifier, secret string) (string, error) {
	if err := f.enter(ctx, OpAuthenticate); err != nil {
		return "", err
	}
	defer f.leave()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.authCalls[identifier]++

	if err := f.authErr[identifier]; err != nil {
		return "", err
	}
	acct, ok := f.accounts[identifier]
	if !ok || acct.Secret != secret {
		return "", shared.ErrInvalidCredentials
	}
	return f.issue(identifier), nil
}

func (f *FakeStremio) ValidateToken(ctx context.Context, token string) (bool, error) {
	if err := f.enter(ctx, OpValidate); err != nil {
		return false, err
	}
	defer f.leave()

	if f.ValidateErr != nil {
		return false, f.ValidateErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.account(token)
	return err == nil, nil
}

func (f *FakeStremio) Addons(ctx context.Context, token string) ([]models.AddonDescriptor, error) {
	if err := f.enter(ctx, OpAddons); err != nil {
		return nil, err
	}
	defer f.leave()

	f.mu.Lock()
	acct, err := f.account(token)
	if err != nil {
		f.mu.Unlock()
		return nil, err
	}
	panics := f.panics[acct.Identifier]
	out := slices.Clone(acct.Addons)
	f.mu.Unlock()

	if panics {
		panic("fake stremio: injected panic for " + acct.Identifier)
	}
	return out, nil
}

func (f *FakeStremio) RemoveAddon(ctx context.Context, token string, ref models.AddonRef) error {
	if err := f.enter(ctx, OpRemove); err != nil {
		return err
	}
	defer f.leave()

	f.mu.Lock()
	defer f.mu.Unlock()
	acct, err := f.account(token)
	if err != nil {
		return err
	}
	if err := f.removeErr[ref.ID]; err != nil {
		return err
	}

	kept := acct.Addons[:0:0]
	for _, a := range acct.Addons {
		if (ref.TransportURL != "" && a.TransportURL == ref.TransportURL) ||
			(ref.TransportURL == "" && a.Key() == ref.ID) {
			continue
		}
		kept = append(kept, a)
	}
	if len(kept) == len(acct.Addons) {
		return fmt.Errorf("%w: %s", shared.ErrAddonNotFound, ref)
	}
	acct.Addons = kept
	return nil
}

func (f *FakeStremio) InstallAddon(ctx context.Context, token string, addon models.AddonDescriptor) error {
	if err := f.enter(ctx, OpInstall); err != nil {
		return err
	}
	defer f.leave()

	f.mu.Lock()
	defer f.mu.Unlock()
	acct, err := f.account(token)
	if err != nil {
		return err
	}
	if err := f.installErr[addon.Key()]; err != nil {
		return err
	}

	for _, a := range acct.Addons {
		if a.TransportURL == addon.TransportURL {
			return nil
		}
	}
	addon.Class = models.Unclassified
	acct.Addons = append(acct.Addons, addon)
	return nil
}

// FakeFetcher resolves URLs from a fixed table.
type FakeFetcher struct {
	mu      sync.Mutex
	byURL   map[string]models.AddonDescriptor
	fetched []string
}

func NewFakeFetcher(addons ...models.AddonDescriptor) *FakeFetcher {
	f := &FakeFetcher{byURL: make(map[string]models.AddonDescriptor)}
	for _, a := range addons {
		f.byURL[a.TransportURL] = a
	}
	return f
}

func (f *FakeFetcher) Fetch(_ context.Context, url string) (*models.AddonDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, url)
	a, ok := f.byURL[url]
	if !ok {
		return nil, &shared.FetchError{URL: url, Cause: errors.New("status 404")}
	}
	return &a, nil
}

// Fetched returns every URL requested, in order.
func (f *FakeFetcher) Fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.fetched)
}

// Addon builds a descriptor with the given manifest id, name and transport URL.
func Addon(id, name, url string) models.AddonDescriptor {
	return models.AddonDescriptor{
		TransportURL: url,
		Manifest:     models.Manifest{ID: id, Name: name, Version: "1.0.0"},
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper returns a canned response or error for every request
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

var _ io.ReadCloser = (*FCloser)(nil)

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}
