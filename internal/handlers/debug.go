package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/notifications"
	"messaging-service/internal/repositories"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, dispatcher *notifications.Dispatcher, messages repositories.MessageRepository, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/notify-test", func(c *gin.Context) {
		if dispatcher == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "dispatcher not configured"})
			return
		}
		dispatcher.Notify(c.Request.Context(), c.GetInt("userID"), notifications.KindMessageReceived,
			gin.H{"test": true}, requestIDFromContext(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// raw record incl. deletion markers, for operational inspection
	router.GET("/debug/messages/:message_id", func(c *gin.Context) {
		messageID, err := strconv.Atoi(c.Param("message_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
			return
		}
		msg, err := messages.GetMessage(c.Request.Context(), messageID)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, repositories.ErrMessageNotFound) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": "message not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": msg, "deleted_by": msg.DeletedBy})
	})
}
