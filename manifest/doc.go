// Package manifest describes a set of bundles in YAML and replays their loading
// against a bundlegate registry.
//
// Apply starts every entry in its own goroutine, so entries reach the registry
// in no particular order, the same way async script tags finish loading.
package manifest
