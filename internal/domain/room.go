package domain

// RoomID names one ephemeral broadcast group. Meeting rooms and personal
// notification channels share the same relay but live in distinct
// namespaces, so a connection may sit in one of each at a time.
type RoomID string

const (
	meetingRoomPrefix = "meeting:"
	userRoomPrefix    = "user:"
)

// MeetingRoom returns the room id for a meeting's broadcast group.
func MeetingRoom(id MeetingID) RoomID {
	return RoomID(meetingRoomPrefix + string(id))
}

// UserRoom returns the personal "my-meetings" channel for a user.
func UserRoom(id UserID) RoomID {
	return RoomID(userRoomPrefix + string(id))
}

// IsMeetingRoom reports whether the id names a meeting broadcast group.
func (r RoomID) IsMeetingRoom() bool {
	return len(r) > len(meetingRoomPrefix) && r[:len(meetingRoomPrefix)] == meetingRoomPrefix
}

// MeetingID strips the namespace prefix; zero value when not a meeting room.
func (r RoomID) MeetingID() MeetingID {
	if !r.IsMeetingRoom() {
		return ""
	}
	return MeetingID(r[len(meetingRoomPrefix):])
}

type Room struct {
	ID RoomID
}
