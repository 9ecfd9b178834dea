package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ostrenko/confab/internal/auth"
	"github.com/ostrenko/confab/internal/domain"
	"github.com/ostrenko/confab/internal/store"
)

func (h *Handlers) ListNotifications(c *gin.Context) {
	unreadOnly := c.Query("unread") == "true"
	ns, err := h.Store.ListNotifications(c.Request.Context(), auth.CallerID(c), unreadOnly)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("list notifications")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusOK, ns)
}

// MarkNotificationRead flips one inbox record to read. Owner-only: a
// foreign id reads as not found.
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	n, err := h.Store.MarkRead(c.Request.Context(), auth.CallerID(c), domain.NotificationID(c.Param("id")))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		log.Error().Err(err).Str("module", "adapters.http").Msg("mark notification read")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusOK, n)
}
