package kv

// LoadStatus tells callers why a repository Load returned what it did.
type LoadStatus int

const (
	Found LoadStatus = iota
	Absent
	Unreadable
	Malformed
)

func (s LoadStatus) String() string {
	switch s {
	case Found:
		return "found"
	case Absent:
		return "absent"
	case Unreadable:
		return "unreadable"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}
