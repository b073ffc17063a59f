//nolint:revive // types is a common Go package naming convention
package types

// Version is the canonical project version.
// The CLI and the diagnostic export model share this version.
const Version = "0.1.0"
