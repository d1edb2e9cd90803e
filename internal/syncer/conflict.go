// Package syncer implements the pull/diff/push synchronization core:
// the in-memory state manager, the conflict policy, and the background
// persistence queue.
package syncer

import "fmt"

// HasConflict reports whether a push from baseVersion would collide with
// the server's currentVersion. A nil baseVersion means the client has
// never pulled and cannot safely push at all.
func HasConflict(baseVersion *int64, currentVersion int64) bool {
	return baseVersion == nil || *baseVersion < currentVersion
}

// Decision is the conflict policy's verdict for a prospective push.
type Decision struct {
	Guidance       string
	BaseVersion    *int64
	CurrentVersion int64
	Conflict       bool
}

// Evaluate applies the conflict policy: a conflict exists iff the local
// base version is behind the server's current version. The diff path is
// deliberately not gated by this policy; only pushes are.
func Evaluate(baseVersion *int64, currentVersion int64) Decision {
	d := Decision{
		BaseVersion:    baseVersion,
		CurrentVersion: currentVersion,
	}

	if baseVersion == nil {
		d.Conflict = true
		d.Guidance = "no local base version; pull from the server before pushing"
		return d
	}

	if *baseVersion < currentVersion {
		d.Conflict = true
		d.Guidance = fmt.Sprintf(
			"remote data advanced from version %d to %d since your last pull; run a diff to review, then pull or force push",
			*baseVersion, currentVersion)
		return d
	}

	return d
}
