package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/yourusername/nikah-service/internal/middleware"
)

// NewRouter wires every route onto a gin engine
func NewRouter(roomHandler *RoomHandler, streamHandler *StreamHandler, allowedOrigins []string) *gin.Engine {
	router := gin.Default()

	// Apply middleware
	router.Use(middleware.CORS(allowedOrigins))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "Nikah API is running",
		})
	})

	// API routes group
	api := router.Group("/api")
	{
		rooms := api.Group("/rooms")
		{
			rooms.POST("", roomHandler.CreateRoom)
			rooms.GET("/:roomId", roomHandler.GetRoom)
			rooms.POST("/:roomId/join", roomHandler.JoinRoom)
			rooms.POST("/:roomId/acceptance", middleware.ActingUser(), roomHandler.RecordAcceptance)
			rooms.POST("/:roomId/messages", roomHandler.SendMessage)
			rooms.POST("/:roomId/leave", roomHandler.LeaveRoom)
			rooms.GET("/:roomId/certificate", roomHandler.GetCertificate)
			rooms.GET("/:roomId/events", streamHandler.Events)
		}
	}

	router.GET("/ws/rooms/:roomId", streamHandler.WebSocket)

	return router
}
