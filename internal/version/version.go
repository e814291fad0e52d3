// Package version holds build-time metadata for taskfabricd binaries.
package version

// VERSION of the fabric, set during the build process with -ldflags.
var VERSION = "undefined"
