package transcribe

import "strings"

// slot holds the single transcript of one pass. It closes on the first
// final and ignores everything after.
type slot struct {
	partial string
	closed  bool
}

func newSlot() *slot { return &slot{} }

// apply folds one result into the slot. Finals within one result are
// concatenated into a single final State.
func (s *slot) apply(r Result) (State, bool) {
	if s.closed {
		return State{}, false
	}

	if final := joinSegments(r.Finals); final != "" {
		s.closed = true
		return State{Text: final, IsFinal: true}, true
	}

	partial := cleanSegment(r.Partial)
	if partial == "" || partial == s.partial {
		return State{}, false
	}
	s.partial = partial
	return State{Text: partial}, true
}

// promote turns a trailing partial into the final, once.
func (s *slot) promote() (State, bool) {
	if s.closed || s.partial == "" {
		return State{}, false
	}
	s.closed = true
	return State{Text: s.partial, IsFinal: true}, true
}

func joinSegments(segments []string) string {
	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		if cleaned := cleanSegment(segment); cleaned != "" {
			parts = append(parts, cleaned)
		}
	}
	return strings.Join(parts, " ")
}

// cleanSegment collapses whitespace.
func cleanSegment(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
