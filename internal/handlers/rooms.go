package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mossy-p/call-signaling/internal/models"
	"github.com/mossy-p/call-signaling/internal/relay"
)

// Health reports liveness along with relay counters
func Health(r *relay.Relay) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := r.Stats()
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"rooms":       stats.Rooms,
			"connections": stats.Connections,
		})
	}
}

// GetRoom gets live room information by room ID (public)
func GetRoom(r *relay.Relay) gin.HandlerFunc {
	return func(c *gin.Context) {
		room, ok := r.Room(c.Param("roomId"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
			return
		}
		c.JSON(http.StatusOK, room)
	}
}

// GetICEServers returns the STUN/TURN servers browsers should use
func GetICEServers(servers []models.ICEServer) gin.HandlerFunc {
	body := models.ICEServersResponse{ICEServers: servers}
	if body.ICEServers == nil {
		body.ICEServers = []models.ICEServer{}
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, body)
	}
}
