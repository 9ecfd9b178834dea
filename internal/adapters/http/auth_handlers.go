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

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type loginRequest struct {
	Email string `json:"email"`
}

type authResponse struct {
	User  domain.User `json:"user"`
	Token string      `json:"token"`
}

// Register creates the account and returns a signed token. Identity is
// email-anchored: the address must be free.
func (h *Handlers) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid body"})
		return
	}
	user, err := domain.NewUser(req.Username, req.Email)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Store.CreateUser(c.Request.Context(), *user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		log.Error().Err(err).Str("module", "adapters.http").Msg("create user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	h.issueToken(c, http.StatusCreated, *user)
}

func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid body"})
		return
	}
	user, err := h.Store.GetUserByEmail(c.Request.Context(), domain.NormalizeEmail(req.Email))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown email"})
		return
	}
	h.issueToken(c, http.StatusOK, user)
}

func (h *Handlers) Me(c *gin.Context) {
	user, err := h.Store.GetUser(c.Request.Context(), auth.CallerID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown user"})
		return
	}
	c.JSON(http.StatusOK, user)
}

type updateMeRequest struct {
	Username           *string `json:"username"`
	EmailNotifications *bool   `json:"emailNotifications"`
}

func (h *Handlers) UpdateMe(c *gin.Context) {
	var req updateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid body"})
		return
	}
	user, err := h.Store.GetUser(c.Request.Context(), auth.CallerID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown user"})
		return
	}
	if req.Username != nil {
		if *req.Username == "" || len(*req.Username) > domain.MaxUsernameLen {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid username"})
			return
		}
		user.Username = *req.Username
	}
	if req.EmailNotifications != nil {
		user.EmailNotifications = *req.EmailNotifications
	}
	if err := h.Store.UpdateUser(c.Request.Context(), user); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("update user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handlers) issueToken(c *gin.Context, status int, user domain.User) {
	token, err := auth.IssueToken(h.Cfg.JWTSecret, user.ID, h.now())
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("issue token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(status, authResponse{User: user, Token: token})
}
