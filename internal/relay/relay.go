package relay

import (
	"encoding/json"
	"sync"

	"github.com/mossy-p/call-signaling/internal/models"
	"go.uber.org/zap"
)

// Peer is one client transport session as seen by the relay
type Peer interface {
	ID() string
	Open() bool
	// Send queues data for delivery without blocking.
	// It returns false if the peer is closed or its queue is full.
	Send(data []byte) bool
}

type conn struct {
	peer      Peer
	roomID    string
	initiator bool
}

type room struct {
	id      string
	members []*conn // join order
}

func (r *room) indexOf(c *conn) int {
	for i, m := range r.members {
		if m == c {
			return i
		}
	}
	return -1
}

func (r *room) remove(c *conn) bool {
	i := r.indexOf(c)
	if i < 0 {
		return false
	}
	r.members = append(r.members[:i], r.members[i+1:]...)
	return true
}

// hasOpenInitiator reports whether an open member other than except holds the flag.
func (r *room) hasOpenInitiator(except *conn) bool {
	for _, m := range r.members {
		if m != except && m.initiator && m.peer.Open() {
			return true
		}
	}
	return false
}

// Relay tracks room membership and initiator roles and forwards
// signaling frames between the members of a room.
type Relay struct {
	mu    sync.Mutex
	conns map[string]*conn
	rooms map[string]*room

	observer Observer
	logger   *zap.Logger
}

// New creates an empty relay. Both arguments may be nil.
func New(logger *zap.Logger, observer Observer) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		conns:    make(map[string]*conn),
		rooms:    make(map[string]*room),
		observer: observer,
		logger:   logger,
	}
}

// Register records a freshly accepted connection
func (r *Relay) Register(p Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[p.ID()]; exists {
		r.logger.Warn("duplicate connection id", zap.String("peer_id", p.ID()))
		return
	}
	r.conns[p.ID()] = &conn{peer: p}
}

// HandleMessage processes one inbound frame from connection id.
// Frames that are not JSON objects or carry no roomId are dropped.
func (r *Relay) HandleMessage(id string, raw []byte) {
	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		r.logger.Debug("dropping malformed message", zap.String("peer_id", id), zap.Error(err))
		return
	}
	if env.RoomID == "" {
		r.logger.Debug("dropping message without roomId", zap.String("peer_id", id))
		return
	}

	switch env.Kind() {
	case models.MessageTypeJoin:
		r.join(id, env.RoomID)
	case models.MessageTypeOffer:
		r.forward(id, env.RoomID, raw, true)
	default:
		r.forward(id, env.RoomID, raw, false)
	}
}

// Disconnect releases everything held by connection id. A departing
// initiator hands the role to the earliest-joined open member.
func (r *Relay) Disconnect(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return
	}
	delete(r.conns, id)

	if c.roomID != "" {
		r.leaveLocked(c)
	}
}

// Room returns a snapshot of the room, if it exists
func (r *Relay) Room(id string) (models.RoomSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[id]
	if !ok {
		return models.RoomSnapshot{}, false
	}

	snap := models.RoomSnapshot{ID: rm.id, Members: len(rm.members)}
	for _, m := range rm.members {
		if m.peer.Open() {
			snap.OpenMembers++
		}
	}
	snap.HasInitiator = rm.hasOpenInitiator(nil)
	return snap, true
}

// Stats returns the number of live rooms and registered connections
func (r *Relay) Stats() models.RelayStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return models.RelayStats{Rooms: len(r.rooms), Connections: len(r.conns)}
}

func (r *Relay) join(id, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok || !c.peer.Open() {
		return
	}

	// A connection lives in at most one room.
	if c.roomID != "" && c.roomID != roomID {
		r.leaveLocked(c)
	}

	rm, ok := r.rooms[roomID]
	if !ok {
		rm = &room{id: roomID}
		r.rooms[roomID] = rm
		r.logger.Info("created room", zap.String("room_id", roomID))
	}

	r.sweepLocked(rm)

	if rm.indexOf(c) < 0 {
		rm.members = append(rm.members, c)
		c.roomID = roomID
		r.notify(Event{Kind: EventJoined, RoomID: roomID, PeerID: id})
	}

	if len(rm.members) == 1 || !rm.hasOpenInitiator(c) {
		c.initiator = true
	}

	r.logger.Info("peer joined room",
		zap.String("peer_id", id),
		zap.String("room_id", roomID),
		zap.Int("members", len(rm.members)),
		zap.Bool("initiator", c.initiator),
	)

	r.sendJSON(c.peer, models.JoinedMessage{
		Type:        models.MessageTypeJoined,
		RoomID:      roomID,
		IsInitiator: c.initiator,
	})
}

// sweepLocked drops members whose transport closed without a disconnect.
func (r *Relay) sweepLocked(rm *room) {
	kept := rm.members[:0]
	for _, m := range rm.members {
		if m.peer.Open() {
			kept = append(kept, m)
			continue
		}
		m.roomID = ""
		m.initiator = false
		r.logger.Info("swept stale peer", zap.String("peer_id", m.peer.ID()), zap.String("room_id", rm.id))
		r.notify(Event{Kind: EventLeft, RoomID: rm.id, PeerID: m.peer.ID()})
	}
	for i := len(kept); i < len(rm.members); i++ {
		rm.members[i] = nil
	}
	rm.members = kept
}

// leaveLocked unbinds c from its room, closing the room when it empties
// and re-electing an initiator when c held the role.
func (r *Relay) leaveLocked(c *conn) {
	roomID := c.roomID
	wasInitiator := c.initiator
	c.roomID = ""
	c.initiator = false

	rm, ok := r.rooms[roomID]
	if !ok || !rm.remove(c) {
		return
	}
	r.notify(Event{Kind: EventLeft, RoomID: roomID, PeerID: c.peer.ID()})
	r.logger.Info("peer left room", zap.String("peer_id", c.peer.ID()), zap.String("room_id", roomID))

	if len(rm.members) == 0 {
		delete(r.rooms, roomID)
		r.notify(Event{Kind: EventRoomClosed, RoomID: roomID})
		r.logger.Info("removed empty room", zap.String("room_id", roomID))
		return
	}

	if !wasInitiator || rm.hasOpenInitiator(nil) {
		return
	}

	for _, m := range rm.members {
		if !m.peer.Open() {
			continue
		}
		m.initiator = true
		r.logger.Info("promoted peer to initiator", zap.String("peer_id", m.peer.ID()), zap.String("room_id", roomID))
		r.sendJSON(m.peer, models.PromoteMessage{
			Type:   models.MessageTypePromoteInitiator,
			RoomID: roomID,
		})
		return
	}
}

// forward relays raw to every other open member of roomID. The recipient
// list is captured under the lock and the sends happen after releasing it.
func (r *Relay) forward(id, roomID string, raw []byte, claimInitiator bool) {
	r.mu.Lock()
	c, ok := r.conns[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	if claimInitiator && !c.initiator {
		// Sending an offer means the client decided to initiate.
		c.initiator = true
		r.logger.Debug("offer granted initiator", zap.String("peer_id", id), zap.String("room_id", roomID))
	}

	var targets []Peer
	if rm, ok := r.rooms[roomID]; ok {
		targets = make([]Peer, 0, len(rm.members))
		for _, m := range rm.members {
			if m != c && m.peer.Open() {
				targets = append(targets, m.peer)
			}
		}
	}
	r.mu.Unlock()

	for _, p := range targets {
		if !p.Send(raw) {
			r.logger.Debug("skipped peer on relay", zap.String("peer_id", p.ID()), zap.String("room_id", roomID))
		}
	}
}

func (r *Relay) sendJSON(p Peer, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("failed to marshal message", zap.Error(err))
		return
	}
	if !p.Send(data) {
		r.logger.Warn("failed to send message", zap.String("peer_id", p.ID()))
	}
}

func (r *Relay) notify(ev Event) {
	if r.observer != nil {
		r.observer.Notify(ev)
	}
}
