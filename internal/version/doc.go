// Package version holds build metadata of s2l-bootstrap.
//
// Version, Commit and BuildTime are set with -ldflags -X at release time.
package version
