package llm

import "fmt"

// Kind classifies a failed completion.
type Kind string

const (
	Unauthenticated Kind = "unauthenticated"
	BadRequest      Kind = "bad_request"
	NetworkError    Kind = "network_error"
	ServerError     Kind = "server_error"
)

// Error is returned by Complete for every failure. Detail carries the
// upstream response body when there is one.
type Error struct {
	Kind   Kind
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Detail != "":
		return fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.Status, e.Detail)
	case e.Status != 0:
		return fmt.Sprintf("%s (HTTP %d)", e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }
