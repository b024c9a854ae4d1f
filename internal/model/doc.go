// Package model contains the shared interfaces and data structures
// used across the backend client packages. We keep this package
// free of dependencies on the rest of the codebase so that every
// other package can depend on it.
package model
