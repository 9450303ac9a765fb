package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("session key expired")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrFetchFailed        = fmt.Errorf("manifest fetch failed")
	ErrInvalidManifest    = fmt.Errorf("invalid manifest")
	ErrAddonOperation     = fmt.Errorf("addon operation failed")
	ErrAddonNotFound      = fmt.Errorf("addon not found")
	ErrRunNotFound        = fmt.Errorf("run not found")

	// Storage errors
	ErrPersistence       = fmt.Errorf("credential store unavailable")
	ErrMissingDesired    = fmt.Errorf("desired addon list not found")
	ErrDuplicateIdentity = fmt.Errorf("duplicate account identifier")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
	ErrCancelled       = fmt.Errorf("cancelled by user")
)

// AuthError reports that an account could not obtain a session.
//
// It is terminal for that account only.
type AuthError struct {
	Identifier string
	Cause      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%v for %s: %v", ErrAuthFailed, e.Identifier, e.Cause)
}

func (e *AuthError) Unwrap() []error { return []error{ErrAuthFailed, e.Cause} }

// FetchError reports that an addon manifest could not be retrieved or parsed.
type FetchError struct {
	URL   string
	Cause error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%v from %s: %v", ErrFetchFailed, e.URL, e.Cause)
}

func (e *FetchError) Unwrap() []error { return []error{ErrFetchFailed, e.Cause} }

// AddonOperationError reports a failed install or remove of a single addon.
type AddonOperationError struct {
	Op    string
	Addon string
	Cause error
}

func (e *AddonOperationError) Error() string {
	return fmt.Sprintf("%v: %s %s: %v", ErrAddonOperation, e.Op, e.Addon, e.Cause)
}

func (e *AddonOperationError) Unwrap() []error { return []error{ErrAddonOperation, e.Cause} }

// PersistenceError reports that the credential store could not be read or written.
//
// It aborts the whole run.
type PersistenceError struct {
	Path  string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%v (%s): %v", ErrPersistence, e.Path, e.Cause)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Cause} }
