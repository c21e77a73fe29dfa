// ABOUTME: Action records written for external observers: last_action.json and the frame-metadata journal.
// ABOUTME: Both writes happen before any post-action wait so the capture-monitor can correlate timestamps.
package capture

import "time"

// ActionRecord describes one completed action for external correlation.
type ActionRecord struct {
	Command         string  `json:"command"`
	ActionType      string  `json:"action_type,omitempty"`
	ActionTimestamp float64 `json:"action_timestamp"` // Unix seconds, fractional
	Success         bool    `json:"success"`
	Iterations      int     `json:"iterations,omitempty"`
	EdgeID          string  `json:"edge_id,omitempty"`
	ScriptName      string  `json:"script_name,omitempty"`
}

// frameMetadata is the journal of recent action records kept alongside the
// capture frames. Bounded so the file never grows unbounded.
type frameMetadata struct {
	Actions []ActionRecord `json:"actions"`
}

const frameMetadataLimit = 100

// WriteActionRecord writes the record to last_action.json and appends it to
// the frame-metadata journal, both atomically. Callers must invoke this
// before honoring the action's wait_time.
func WriteActionRecord(p Paths, rec ActionRecord) error {
	if rec.ActionTimestamp == 0 {
		rec.ActionTimestamp = UnixSeconds(time.Now())
	}
	if err := WriteJSONAtomic(p.LastActionPath(), rec); err != nil {
		return err
	}

	var journal frameMetadata
	_ = ReadJSON(p.FrameMetadataPath(), &journal) // absent or corrupt journal starts fresh
	journal.Actions = append(journal.Actions, rec)
	if len(journal.Actions) > frameMetadataLimit {
		journal.Actions = journal.Actions[len(journal.Actions)-frameMetadataLimit:]
	}
	return WriteJSONAtomic(p.FrameMetadataPath(), journal)
}

// ReadLastAction reads the most recent action record, if any.
func ReadLastAction(p Paths) (*ActionRecord, error) {
	var rec ActionRecord
	if err := ReadJSON(p.LastActionPath(), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// UnixSeconds converts a time to fractional Unix seconds.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
