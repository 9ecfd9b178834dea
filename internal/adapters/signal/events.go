package signal

import (
	"github.com/ostrenko/confab/internal/app"
	"github.com/ostrenko/confab/internal/domain"
	"github.com/ostrenko/confab/internal/wire"
)

// Events turns service-level outcomes into wire frames and fans them out
// through the orchestrator. It is the server-originated counterpart of the
// frame handlers: deliveries here go to every room member, sender included,
// because the sender needs the canonical record too.
type Events struct {
	Orch *app.Orchestrator
}

func (e *Events) MessageReceived(m domain.ChatMessage) {
	e.toMeeting(m.MeetingID, wire.EventReceiveMessage, m)
}

func (e *Events) MessageUpdated(m domain.ChatMessage) {
	e.toMeeting(m.MeetingID, wire.EventMessageUpdated, m)
}

func (e *Events) MessageDeleted(meetingID domain.MeetingID, id domain.MessageID) {
	e.toMeeting(meetingID, wire.EventMessageDeleted, wire.MessageDeleted{
		MeetingID: string(meetingID),
		MessageID: string(id),
	})
}

func (e *Events) MessageReaction(m domain.ChatMessage) {
	e.toMeeting(m.MeetingID, wire.EventMessageReaction, m)
}

// MeetingStarted pushes the go-live notice to the personal channel of every
// listed participant except the host. Instant meetings start with an empty
// participant list, so for those this emits nothing; only meetings that carry
// invitees at start time fan out.
func (e *Events) MeetingStarted(m domain.Meeting) {
	frame := wire.MustEncode(wire.EventMeetingStarted, wire.MeetingStarted{
		MeetingID: string(m.ID),
		Link:      m.Link,
		Message:   m.Title + " has started",
	})
	for _, p := range m.Participants {
		if p.User == m.HostID {
			continue
		}
		e.Orch.BroadcastAll(domain.UserRoom(p.User), frame)
	}
}

func (e *Events) RoomNotification(meetingID domain.MeetingID, link, message string) {
	e.toMeeting(meetingID, wire.EventMeetingNotification, wire.MeetingNotification{
		MeetingID: string(meetingID),
		Link:      link,
		Message:   message,
	})
}

func (e *Events) UserNotification(n domain.Notification) {
	e.Orch.BroadcastAll(domain.UserRoom(n.User), wire.MustEncode(wire.EventMeetingNotification, n))
}

func (e *Events) toMeeting(meetingID domain.MeetingID, event string, v any) {
	e.Orch.BroadcastAll(domain.MeetingRoom(meetingID), wire.MustEncode(event, v))
}
