package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ostrenko/confab/internal/auth"
	"github.com/ostrenko/confab/internal/domain"
)

// ChatHistory returns the meeting's messages ordered oldest first. The
// caller must be able to see the meeting at all.
func (h *Handlers) ChatHistory(c *gin.Context) {
	meetingID := domain.MeetingID(c.Param("id"))
	if _, err := h.Meetings.Get(c.Request.Context(), auth.CallerID(c), meetingID); err != nil {
		h.meetingError(c, err, "chat history")
		return
	}
	msgs, err := h.Chat.History(c.Request.Context(), meetingID)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("chat history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusOK, msgs)
}
