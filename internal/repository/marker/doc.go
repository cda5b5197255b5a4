// Package marker guards against two bootstrap runs in one directory.
//
// A small YAML record (pid, executable, actor, start time) is written next
// to the companion folder. A record whose process is gone is stale and is
// replaced silently.
package marker
