// Package bundlegate orders the initialization of asynchronously loaded bundles.
//
// It offers:
// - a constructible readiness registry keyed by bundle name
// - Manage: run a callback after at most one direct dependency is ready, then announce the bundle
// - one-shot readiness signals backed by per-name pending callback lists
// - introspection of ready names, pending listeners and the declared wait graph
package bundlegate
