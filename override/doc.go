// Package override reconciles tool catalogs, live tool descriptions, and
// persisted name/description overrides into a display-ready tool list, and
// folds user edits back into the smallest persisted diff.
//
// The package is split by concern:
//   - catalog: merges the static catalog with live descriptions
//   - resolve: applies persisted overrides and the enablement allowlist
//   - patch/merge: computes and folds per-field edit patches
//   - apply: reduces session state into persistence-ready values
//   - session: owns the mutable local override store and enabled flags
//
// Every function here is pure and synchronous. Callers supply already-fetched
// inputs and perform persistence themselves.
package override
