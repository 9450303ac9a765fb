// Package services defines the [Service] interface for remote addon accounts and implements it for Stremio.
//
// # Service Interface
//
// Reconciliation only needs five operations from the remote side: authenticate, validate a
// token, list the installed collection, remove one addon, and install one addon. Tests use an
// in-memory implementation of the same interface.
//
// # Stremio Implementation
//
// [StremioService] posts JSON to the Stremio API (login, getUser, addonCollectionGet,
// addonCollectionSet). The API has no per-addon install or uninstall endpoint, so
// [StremioService.RemoveAddon] and [StremioService.InstallAddon] read the collection, edit it,
// and write it back. Entries they do not touch are written back byte-for-byte.
//
// One [rate.Limiter] per service instance throttles every account workflow sharing it.
//
// # Manifest Fetcher
//
// [ManifestFetcher] resolves an addon URL into an [models.AddonDescriptor]. It accepts the
// links users usually paste (…/configure, stremio://) and caches responses with httpcache.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : token rejected by the remote side
//   - [shared.ErrInvalidCredentials] : login refused
//   - [shared.ErrAPIRequest] : HTTP request failed or returned an error envelope
//   - [shared.ErrServiceUnavailable] : 5xx from the API
//   - [shared.FetchError] : manifest could not be fetched or parsed
package services
