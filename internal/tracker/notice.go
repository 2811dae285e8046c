package tracker

import (
	"errors"
	"fmt"

	"github.com/pkordes/travel-log/internal/domain"
)

// Notice is a transient, user-visible message about a failed operation.
type Notice struct {
	Op  string
	Err error
}

// Kind classifies the failure for display.
func (n Notice) Kind() string {
	switch {
	case errors.Is(n.Err, domain.ErrValidation):
		return "invalid_input"
	case errors.Is(n.Err, domain.ErrParse):
		return "parse_error"
	case errors.Is(n.Err, domain.ErrAuth):
		return "auth_failure"
	case errors.Is(n.Err, domain.ErrRemote):
		return "remote_failure"
	default:
		return "error"
	}
}

func (n Notice) String() string {
	return fmt.Sprintf("%s failed: %v", n.Op, n.Err)
}

// Notifier receives notices. It is called without any tracker lock held,
// so it may call back into the tracker.
type Notifier func(Notice)
