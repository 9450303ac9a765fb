// Stremio API implementation of [Service]
//
// Every endpoint is a JSON POST to {api}/{method} whose response is either
// {"result": ...} or {"error": {"code": n, "message": "..."}}.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/readdon/internal/models"
	"github.com/desertthunder/readdon/internal/shared"
	"golang.org/x/time/rate"
)

const (
	methodLogin         = "login"
	methodGetUser       = "getUser"
	methodCollectionGet = "addonCollectionGet"
	methodCollectionSet = "addonCollectionSet"

	// errCodeSession is returned when an authKey does not map to a live session.
	errCodeSession = 1
)

// StremioError is the error member of a Stremio API envelope.
type StremioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *StremioError) Error() string {
	return fmt.Sprintf("stremio error %d: %s", e.Code, e.Message)
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Error  *StremioError   `json:"error"`
}

type loginRequest struct {
	Type     string `json:"type"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Facebook bool   `json:"facebook"`
}

type loginResult struct {
	AuthKey string `json:"authKey"`
}

type authRequest struct {
	Type    string `json:"type"`
	AuthKey string `json:"authKey"`
	Update  bool   `json:"update,omitempty"`
}

type collectionSetRequest struct {
	Type    string            `json:"type"`
	AuthKey string            `json:"authKey"`
	Addons  []json.RawMessage `json:"addons"`
}

type collectionResult struct {
	Addons []json.RawMessage `json:"addons"`
}

// wireAddon is the lenient decoding of one collection entry.
type wireAddon struct {
	TransportURL string          `json:"transportUrl"`
	Manifest     json.RawMessage `json:"manifest"`
	Flags        *models.Flags   `json:"flags"`
}

// StremioService implements [Service] against the Stremio API.
//
// All calls pass through one limiter shared by every account workflow.
type StremioService struct {
	api     *APIService
	limiter *rate.Limiter
}

// NewStremioService creates a Stremio client. A non-positive limit disables rate limiting.
func NewStremioService(api *APIService, limit float64) *StremioService {
	if api == nil {
		api = NewAPIService("", nil)
	}

	l := rate.Inf
	burst := 1
	if limit > 0 {
		l = rate.Limit(limit)
		burst = max(1, int(limit))
	}

	return &StremioService{api: api, limiter: rate.NewLimiter(l, burst)}
}

// call posts payload to method and decodes the envelope's result into out.
func (s *StremioService) call(ctx context.Context, method string, payload, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s: %v", shared.ErrAPIRequest, method, err)
	}

	resp, err := s.api.PostJSON(ctx, method, payload)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s: %v", shared.ErrTimeout, method, err)
		}
		return fmt.Errorf("%w: %s: %v", shared.ErrAPIRequest, method, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s: status %d", shared.ErrNotAuthenticated, method, resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s: status %d", shared.ErrServiceUnavailable, method, resp.StatusCode)
	case !resp.OK():
		return fmt.Errorf("%w: %s: status %d: %s", shared.ErrAPIRequest, method, resp.StatusCode, resp.Snippet(200))
	}

	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return fmt.Errorf("%w: %s: failed to decode response: %v", shared.ErrAPIRequest, method, err)
	}
	if env.Error != nil {
		return env.Error
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return fmt.Errorf("%w: %s: empty result", shared.ErrAPIRequest, method)
	}

	if out != nil {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("%w: %s: failed to decode result: %v", shared.ErrAPIRequest, method, err)
		}
	}
	return nil
}

// sessionErr maps a Stremio session error onto [shared.ErrNotAuthenticated].
func sessionErr(err error) error {
	var se *StremioError
	if errors.As(err, &se) && (se.Code == errCodeSession || strings.Contains(strings.ToLower(se.Message), "session")) {
		return fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, se)
	}
	if errors.As(err, &se) {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, se)
	}
	return err
}

// Authenticate logs in with an email and password and returns the authKey.
func (s *StremioService) Authenticate(ctx context.Context, identifier, secret string) (string, error) {
	if identifier == "" || secret == "" {
		return "", shared.ErrMissingCredentials
	}

	var res loginResult
	err := s.call(ctx, methodLogin, loginRequest{
		Type:     "Login",
		Email:    identifier,
		Password: secret,
	}, &res)

	var se *StremioError
	switch {
	case errors.As(err, &se):
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidCredentials, se)
	case err != nil:
		return "", err
	case res.AuthKey == "":
		return "", fmt.Errorf("%w: login returned no authKey", shared.ErrAPIRequest)
	}
	return res.AuthKey, nil
}

// ValidateToken probes getUser with token.
func (s *StremioService) ValidateToken(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	err := s.call(ctx, methodGetUser, authRequest{Type: "GetUser", AuthKey: token}, nil)
	var se *StremioError
	switch {
	case err == nil:
		return true, nil
	case errors.As(err, &se), errors.Is(err, shared.ErrNotAuthenticated):
		return false, nil
	default:
		return false, err
	}
}

func (s *StremioService) collection(ctx context.Context, token string) ([]json.RawMessage, error) {
	if token == "" {
		return nil, shared.ErrNotAuthenticated
	}

	var res collectionResult
	err := s.call(ctx, methodCollectionGet, authRequest{
		Type:    "AddonCollectionGet",
		AuthKey: token,
		Update:  true,
	}, &res)
	if err != nil {
		return nil, sessionErr(err)
	}
	return res.Addons, nil
}

func (s *StremioService) setCollection(ctx context.Context, token string, addons []json.RawMessage) error {
	if addons == nil {
		addons = []json.RawMessage{}
	}
	err := s.call(ctx, methodCollectionSet, collectionSetRequest{
		Type:    "AddonCollectionSet",
		AuthKey: token,
		Addons:  addons,
	}, nil)
	return sessionErr(err)
}

// Addons returns the installed collection.
//
// Entries whose manifest cannot be decoded are returned with an empty manifest so callers
// can re-resolve them from the transport URL.
func (s *StremioService) Addons(ctx context.Context, token string) ([]models.AddonDescriptor, error) {
	raw, err := s.collection(ctx, token)
	if err != nil {
		return nil, err
	}

	out := make([]models.AddonDescriptor, 0, len(raw))
	for _, entry := range raw {
		out = append(out, DecodeAddon(entry))
	}
	return out, nil
}

// DecodeAddon decodes one collection entry, tolerating a missing or malformed manifest.
func DecodeAddon(entry json.RawMessage) models.AddonDescriptor {
	var w wireAddon
	if err := json.Unmarshal(entry, &w); err != nil {
		return models.AddonDescriptor{}
	}

	d := models.AddonDescriptor{TransportURL: w.TransportURL}
	if w.Flags != nil {
		d.Flags = *w.Flags
	}
	if len(w.Manifest) > 0 {
		var m models.Manifest
		if err := json.Unmarshal(w.Manifest, &m); err == nil {
			d.Manifest = m
		}
	}
	return d
}

func matchesRef(d models.AddonDescriptor, ref models.AddonRef) bool {
	if ref.TransportURL != "" {
		return d.TransportURL == ref.TransportURL
	}
	return ref.ID != "" && d.Key() == ref.ID
}

// RemoveAddon drops every collection entry matching ref and writes the rest back verbatim.
func (s *StremioService) RemoveAddon(ctx context.Context, token string, ref models.AddonRef) error {
	raw, err := s.collection(ctx, token)
	if err != nil {
		return err
	}

	kept := make([]json.RawMessage, 0, len(raw))
	for _, entry := range raw {
		if matchesRef(DecodeAddon(entry), ref) {
			continue
		}
		kept = append(kept, entry)
	}
	if len(kept) == len(raw) {
		return fmt.Errorf("%w: %s", shared.ErrAddonNotFound, ref)
	}

	return s.setCollection(ctx, token, kept)
}

// InstallAddon appends addon to the collection. Installing a URL that is already present is a no-op.
func (s *StremioService) InstallAddon(ctx context.Context, token string, addon models.AddonDescriptor) error {
	if addon.TransportURL == "" {
		return fmt.Errorf("%w: addon %s has no transport URL", shared.ErrInvalidInput, addon.Key())
	}

	raw, err := s.collection(ctx, token)
	if err != nil {
		return err
	}
	for _, entry := range raw {
		if DecodeAddon(entry).TransportURL == addon.TransportURL {
			return nil
		}
	}

	entry, err := json.Marshal(addon)
	if err != nil {
		return fmt.Errorf("failed to encode addon %s: %w", addon.Key(), err)
	}

	return s.setCollection(ctx, token, append(raw, entry))
}
