// Package wire defines the signaling surface: event names and payload
// shapes carried over one WebSocket per connection. Event and field names
// are the compatibility contract with existing clients; the transport only
// has to preserve per-sender ordering.
package wire

import (
	"encoding/json"
	"fmt"
)

// Client → server events.
const (
	EventJoinRoom        = "join-room"
	EventLeaveRoom       = "leave-room"
	EventJoinMyRoom      = "join-my-room"
	EventEndMeeting      = "end-meeting"
	EventSendMessage     = "send-message"
	EventEditMessage     = "edit-message"
	EventDeleteMessage   = "delete-message"
	EventReactToMessage  = "react-to-message"
)

// Relayed peer-to-peer negotiation events (both directions; the server
// stamps From on the way through).
const (
	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventICECandidate = "ice-candidate"
)

// Server → client events.
const (
	EventUserJoined          = "user-joined"
	EventUserLeft            = "user-left"
	EventRoomUsers           = "room-users"
	EventMeetingStarted      = "meeting-started"
	EventMeetingEnded        = "meeting-ended"
	EventReceiveMessage      = "receive-message"
	EventMessageUpdated      = "message-updated"
	EventMessageDeleted      = "message-deleted"
	EventMessageReaction     = "message-reaction"
	EventMeetingNotification = "meeting-notification"
	EventError               = "error"
)

// Envelope is the outer frame: an event name plus its payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals an event with its payload into one frame.
func Encode(event string, v any) ([]byte, error) {
	env := Envelope{Event: event}
	if v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", event, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// MustEncode is Encode for payloads that cannot fail to marshal.
func MustEncode(event string, v any) []byte {
	b, err := Encode(event, v)
	if err != nil {
		panic(err)
	}
	return b
}

type JoinRoom struct {
	MeetingID string `json:"meetingId"`
}

type SDP struct {
	To   string `json:"to,omitempty"`
	From string `json:"from,omitempty"`
	SDP  string `json:"sdp"`
}

type ICECandidate struct {
	To        string          `json:"to,omitempty"`
	From      string          `json:"from,omitempty"`
	Candidate json.RawMessage `json:"candidate"`
}

type UserJoined struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
}

type UserLeft struct {
	ID string `json:"id"`
}

// RoomUser is one roster entry in a room-users payload.
type RoomUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type MeetingStarted struct {
	MeetingID string `json:"meetingId"`
	Link      string `json:"link"`
	Message   string `json:"message,omitempty"`
}

type SendMessage struct {
	MeetingID string `json:"meetingId"`
	Text      string `json:"text"`
	TempID    string `json:"tempId"`
}

type EditMessage struct {
	MessageID string `json:"messageId"`
	Text      string `json:"text"`
}

type DeleteMessage struct {
	MessageID string `json:"messageId"`
}

type MessageDeleted struct {
	MeetingID string `json:"meetingId"`
	MessageID string `json:"messageId"`
}

type ReactToMessage struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

type MeetingNotification struct {
	MeetingID string `json:"meetingId"`
	Link      string `json:"link"`
	Message   string `json:"message"`
}

type Error struct {
	Error string `json:"error"`
}
