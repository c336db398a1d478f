// Package internal holds build information of the efish binaries.
package internal

import (
	"runtime/debug"
	"time"
)

var (
	BuildRevision      = "unknown"
	BuildRevisionTime  = time.Time{}
	BuildLocalModified = "unknown"
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			BuildRevision = setting.Value
		case "vcs.time":
			t, err := time.Parse(time.RFC3339, setting.Value)
			if err == nil {
				BuildRevisionTime = t
			}
		case "vcs.modified":
			BuildLocalModified = setting.Value
		}
	}
}

// Version describes the build for logs and migration metadata.
func Version() string {
	if BuildLocalModified == "true" {
		return BuildRevision + "-modified"
	}
	return BuildRevision
}
