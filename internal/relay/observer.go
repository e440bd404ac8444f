package relay

// EventKind classifies membership changes
type EventKind int

const (
	EventJoined EventKind = iota
	EventLeft
	EventRoomClosed
)

func (k EventKind) String() string {
	switch k {
	case EventJoined:
		return "joined"
	case EventLeft:
		return "left"
	case EventRoomClosed:
		return "room_closed"
	default:
		return "unknown"
	}
}

// Event is a membership change. PeerID is empty for EventRoomClosed.
type Event struct {
	Kind   EventKind
	RoomID string
	PeerID string
}

// Observer receives membership events in the order the relay applied them.
// Notify is called with the relay lock held and must not block.
type Observer interface {
	Notify(ev Event)
}
