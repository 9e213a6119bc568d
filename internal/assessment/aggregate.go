package assessment

import "time"

// Aggregate derives a parent's state from its children using the
// worst-of-known-children policy:
//
//   - Unknown children are ignored; if every child is Unknown the result is Unknown.
//   - The level is the lowest known child level (Below < At < Above).
//   - Confidence is the minimum confidence among known children.
//   - UpdatedAt is the latest child timestamp.
//
// Priority is carried over from prev.
func Aggregate(prev State, children []State) State {
	out := State{
		Level:      LevelUnknown,
		Confidence: NoConfidence,
		Priority:   prev.Priority,
		UpdatedAt:  prev.UpdatedAt,
	}

	var latest time.Time
	for _, c := range children {
		if c.UpdatedAt.After(latest) {
			latest = c.UpdatedAt
		}
		if !c.Level.Known() {
			continue
		}
		if out.Level == LevelUnknown || c.Level < out.Level {
			out.Level = c.Level
		}
		if c.Confidence != NoConfidence && (out.Confidence == NoConfidence || c.Confidence < out.Confidence) {
			out.Confidence = c.Confidence
		}
	}
	if latest.After(out.UpdatedAt) {
		out.UpdatedAt = latest
	}
	return out
}
