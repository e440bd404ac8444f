package models

// RoomSnapshot is a read-only view of a live room
type RoomSnapshot struct {
	ID           string `json:"id"`
	Members      int    `json:"members"`
	OpenMembers  int    `json:"openMembers"`
	HasInitiator bool   `json:"hasInitiator"` // an open member holds the initiator flag
}

// RelayStats summarizes the relay for the health endpoint
type RelayStats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}

// ICEServer mirrors the browser RTCIceServer dictionary
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// ICEServersResponse is the body of GET /api/ice-servers
type ICEServersResponse struct {
	ICEServers []ICEServer `json:"iceServers"`
}
