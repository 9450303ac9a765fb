// Package models defines domain entities for the readdon addon reconciliation tool.
//
// The package contains three groups of types:
//
// 1. Accounts and sessions
//   - [CredentialRecord] : identifier, secret and cached session key for one account
//   - [Session] : an authenticated session owned by one account workflow
//
// 2. Addons
//   - [Manifest] : addon manifest document, retaining the raw JSON for lossless round-trips
//   - [AddonDescriptor] : transport URL + manifest + [Flags], keyed by manifest id
//   - [Classification] : Default, PreservedVariant, CustomDesired or CustomUndesired
//   - [DesiredState] : immutable, ordered name → descriptor mapping shared by every workflow
//   - [Plan] : classified installed addons plus the removals and installs they imply
//
// 3. Results
//   - [Report] : terminal [Outcome] and per-item results for one account
//   - [RunSummary] : every report of a run
package models
