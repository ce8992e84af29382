package types

// LeadershipState represents whether an elector currently holds leadership.
//
// Exactly one value holds at any instant:
//
//	NotLeader → Leader    (lock acquired, "elected")
//	Leader → NotLeader    (renewal or re-acquisition failed, "revoked")
//	Leader → NotLeader    (Stop, no event)
type LeadershipState int

const (
	// NotLeader indicates no lock is held. This is the initial state.
	NotLeader LeadershipState = iota

	// Leader indicates the elector holds the lock for the election key.
	Leader
)

// String returns the string representation of the leadership state.
func (s LeadershipState) String() string {
	switch s {
	case NotLeader:
		return "NotLeader"
	case Leader:
		return "Leader"
	default:
		return "Unknown"
	}
}
