package session

// ShouldProcess reports whether the inbound event is new for this session
// and records its identifier on the in-memory copy. The caller decides when
// the updated session is persisted.
//
// This is a single-slot guard: it only catches immediate redelivery of the
// most recent event (the platform resends an update after a slow or
// timed-out acknowledgment), not arbitrary reordering.
func ShouldProcess(s *Session, eventID int64) bool {
	if eventID != 0 && s.LastEventID == eventID {
		return false
	}
	s.LastEventID = eventID
	return true
}
