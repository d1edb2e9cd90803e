package model

import "time"

// Snapshot is an immutable point-in-time capture of the rule and tag state
// together with the remote data generation it was based on. BaseVersion is
// nil only before the first successful pull.
type Snapshot struct {
	SavedAt     time.Time `json:"savedAt"`
	BaseVersion *int64    `json:"baseVersion"`
	Rules       []Rule    `json:"rules"`
	Tags        TagData   `json:"tags"`
}

// Slot names a persisted snapshot position in the local store.
type Slot string

// Snapshot slot constants.
const (
	// SlotOrigin holds the copy exactly as last pulled from remote.
	SlotOrigin Slot = "origin"
	// SlotCurrent holds the working copy, updated after every local mutation.
	SlotCurrent Slot = "current"
	// SlotLastPush holds the copy most recently pushed successfully.
	SlotLastPush Slot = "lastPush"
)

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		SavedAt: s.SavedAt,
		Tags:    s.Tags.Clone(),
	}
	if s.BaseVersion != nil {
		v := *s.BaseVersion
		out.BaseVersion = &v
	}
	if s.Rules != nil {
		out.Rules = make([]Rule, len(s.Rules))
		for i, r := range s.Rules {
			out.Rules[i] = r.Clone()
		}
	}
	return out
}
