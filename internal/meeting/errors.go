package meeting

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnauthorized is returned when the caller lacks the required role
	// (not the creator or current host).
	ErrUnauthorized = errors.New("meeting: unauthorized")
	// ErrNotFound is returned when the meeting does not exist.
	ErrNotFound = errors.New("meeting: not found")
	// ErrNotAParticipant is returned when the caller responds to an invite
	// they are not listed on.
	ErrNotAParticipant = errors.New("meeting: not a participant")
	// ErrInvalidStatus is returned for an invite answer outside the
	// Pending/Accepted/Declined set.
	ErrInvalidStatus = errors.New("meeting: invalid invite status")
)

// UnknownParticipantsError reports every invite email that did not resolve
// to a registered user. Partial matches are never silently dropped: the
// whole schedule operation fails and the offending list is surfaced.
type UnknownParticipantsError struct {
	Emails []string
}

func (e *UnknownParticipantsError) Error() string {
	return fmt.Sprintf("meeting: unregistered participant emails: %s", strings.Join(e.Emails, ", "))
}
