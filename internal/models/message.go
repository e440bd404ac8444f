package models

import "encoding/json"

// MessageType is the "type" field of a signaling frame
type MessageType string

const (
	MessageTypeJoin              MessageType = "join"
	MessageTypeJoined            MessageType = "joined"
	MessageTypeOffer             MessageType = "offer"
	MessageTypeAnswer            MessageType = "answer"
	MessageTypeICE               MessageType = "ice"
	MessageTypeEnd               MessageType = "end"
	MessageTypeTranslation       MessageType = "translation"
	MessageTypePreferredLanguage MessageType = "preferredLanguage"
	MessageTypeVoicePreference   MessageType = "voicePreference"
	MessageTypePromoteInitiator  MessageType = "promote_to_initiator"
)

// Envelope holds the only two fields the relay looks at.
// Every other field of an inbound frame is opaque and forwarded as-is.
// Type stays raw so frames with a non-string type are still relayed.
type Envelope struct {
	Type   json.RawMessage `json:"type"`
	RoomID string          `json:"roomId"`
}

// Kind returns the type when it is a JSON string, otherwise "".
func (e Envelope) Kind() MessageType {
	var kind string
	if err := json.Unmarshal(e.Type, &kind); err != nil {
		return ""
	}
	return MessageType(kind)
}

// JoinedMessage is sent to a connection right after it joins a room
type JoinedMessage struct {
	Type        MessageType `json:"type"`
	RoomID      string      `json:"roomId"`
	IsInitiator bool        `json:"isInitiator"`
}

// PromoteMessage tells a connection it took over the initiator role
type PromoteMessage struct {
	Type   MessageType `json:"type"`
	RoomID string      `json:"roomId"`
}
