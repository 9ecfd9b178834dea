package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ostrenko/confab/internal/auth"
	"github.com/ostrenko/confab/internal/domain"
	"github.com/ostrenko/confab/internal/meeting"
)

type startMeetingRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type scheduleMeetingRequest struct {
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	StartsAt     time.Time `json:"startsAt"`
	Participants []string  `json:"participants"`
}

type respondInviteRequest struct {
	Status string `json:"status"`
}

func (h *Handlers) StartMeeting(c *gin.Context) {
	var req startMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid body"})
		return
	}
	res, err := h.Meetings.Start(c.Request.Context(), auth.CallerID(c), req.Title, req.Description)
	if err != nil {
		h.meetingError(c, err, "start meeting")
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handlers) ScheduleMeeting(c *gin.Context) {
	var req scheduleMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.StartsAt.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid body"})
		return
	}
	m, err := h.Meetings.Schedule(c.Request.Context(), auth.CallerID(c), req.Title, req.Description, req.StartsAt, req.Participants)
	if err != nil {
		h.meetingError(c, err, "schedule meeting")
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *Handlers) GetMeeting(c *gin.Context) {
	m, err := h.Meetings.Get(c.Request.Context(), auth.CallerID(c), domain.MeetingID(c.Param("id")))
	if err != nil {
		h.meetingError(c, err, "get meeting")
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handlers) JoinMeeting(c *gin.Context) {
	m, err := h.Meetings.Join(c.Request.Context(), auth.CallerID(c), domain.MeetingID(c.Param("id")))
	if err != nil {
		h.meetingError(c, err, "join meeting")
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handlers) RespondInvite(c *gin.Context) {
	var req respondInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid body"})
		return
	}
	m, err := h.Meetings.RespondInvite(c.Request.Context(), auth.CallerID(c), domain.MeetingID(c.Param("id")), domain.InviteStatus(req.Status))
	if err != nil {
		h.meetingError(c, err, "respond invite")
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handlers) EndMeeting(c *gin.Context) {
	if err := h.Meetings.End(c.Request.Context(), auth.CallerID(c), domain.MeetingID(c.Param("id"))); err != nil {
		h.meetingError(c, err, "end meeting")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ended": true})
}

func (h *Handlers) DeleteMeeting(c *gin.Context) {
	if err := h.Meetings.Delete(c.Request.Context(), auth.CallerID(c), domain.MeetingID(c.Param("id"))); err != nil {
		h.meetingError(c, err, "delete meeting")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) MyMeetings(c *gin.Context) {
	h.listMeetings(c, h.Meetings.MyMeetings)
}

func (h *Handlers) UpcomingMeetings(c *gin.Context) {
	h.listMeetings(c, h.Meetings.Upcoming)
}

func (h *Handlers) PreviousMeetings(c *gin.Context) {
	h.listMeetings(c, h.Meetings.Previous)
}

func (h *Handlers) Invites(c *gin.Context) {
	h.listMeetings(c, h.Meetings.Invites)
}

func (h *Handlers) listMeetings(c *gin.Context, list func(ctx context.Context, caller domain.UserID) ([]domain.Meeting, error)) {
	ms, err := list(c.Request.Context(), auth.CallerID(c))
	if err != nil {
		h.meetingError(c, err, "list meetings")
		return
	}
	c.JSON(http.StatusOK, ms)
}

func (h *Handlers) meetingError(c *gin.Context, err error, op string) {
	var unknown *meeting.UnknownParticipantsError
	switch {
	case errors.As(err, &unknown):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "unregistered participant emails",
			"emails": unknown.Emails,
		})
	case errors.Is(err, meeting.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, meeting.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "meeting not found"})
	case errors.Is(err, meeting.ErrNotAParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
	case errors.Is(err, meeting.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invite status"})
	default:
		log.Error().Err(err).Str("module", "adapters.http").Msg(op)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	}
}
