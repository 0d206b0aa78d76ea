package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"bookletku/internal/gateway/middleware"
	"bookletku/internal/platform"
	"bookletku/internal/session"
)

// ProfileReader reads profile rows with the caller's credentials.
type ProfileReader interface {
	Profile(ctx context.Context, userID string) (platform.ProfileRow, error)
}

// SessionEvents receives the lifecycle changes of every user session the
// API handles. The gateway's session manager implements it.
type SessionEvents interface {
	Announce(ev session.Event)
}

// AuthHTTPHandler signs users in with a session of their own per request;
// the store gateway only hears about it through events.
type AuthHTTPHandler struct {
	auth     platform.Auth
	tables   platform.Tables
	profiles ProfileReader
	events   SessionEvents
	timeout  time.Duration
}

func NewAuthHTTPHandler(auth platform.Auth, tables platform.Tables, profiles ProfileReader, events SessionEvents, timeout time.Duration) *AuthHTTPHandler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AuthHTTPHandler{auth: auth, tables: tables, profiles: profiles, events: events, timeout: timeout}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type sessionView struct {
	Session platform.Session    `json:"session"`
	Profile platform.ProfileRow `json:"profile"`
}

// Register creates an account with the "user" role and signs it in.
func (h *AuthHTTPHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	m := session.NewManager(h.auth, h.tables)
	sess, err := m.SignUp(ctx, req.Email, req.Password, strings.TrimSpace(req.Name), "")
	if err != nil {
		respondError(c, err)
		return
	}
	profile, _ := m.Profile()
	h.events.Announce(session.Event{Type: session.EventSignedIn, User: &sess.User})

	c.JSON(http.StatusCreated, successResponse("Account registered successfully", sessionView{
		Session: sess,
		Profile: profile,
	}))
}

func (h *AuthHTTPHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	m := session.NewManager(h.auth, h.tables)
	sess, err := m.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	profile, _ := m.Profile()
	h.events.Announce(session.Event{Type: session.EventSignedIn, User: &sess.User})

	c.JSON(http.StatusOK, successResponse("Login successful", sessionView{
		Session: sess,
		Profile: profile,
	}))
}

// Logout revokes the refresh token. It succeeds even when the token is
// unknown, since the client drops its tokens either way.
func (h *AuthHTTPHandler) Logout(c *gin.Context) {
	token := h.refreshToken(c)
	if token == "" {
		c.JSON(http.StatusOK, successResponse("Logged out", nil))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if err := h.auth.SignOut(ctx, token); err != nil {
		log.Printf("handlers: sign out: %v", err)
	}
	h.events.Announce(session.Event{Type: session.EventSignedOut})
	c.JSON(http.StatusOK, successResponse("Logged out", nil))
}

func (h *AuthHTTPHandler) Refresh(c *gin.Context) {
	token := h.refreshToken(c)
	if token == "" {
		c.JSON(http.StatusBadRequest, errorResponse("Refresh token is required"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	sess, err := h.auth.Refresh(ctx, token)
	if err != nil {
		respondError(c, err)
		return
	}
	h.events.Announce(session.Event{Type: session.EventTokenRefreshed, User: &sess.User})
	c.JSON(http.StatusOK, successResponse("Session refreshed", sess))
}

// Me returns the caller's profile, renewing the access token if needed.
func (h *AuthHTTPHandler) Me(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	profile, err := h.profiles.Profile(ctx, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, successResponse("Profile retrieved successfully", profile))
}

// refreshToken takes the token from the JSON body, falling back to the
// X-Refresh-Token header.
func (h *AuthHTTPHandler) refreshToken(c *gin.Context) string {
	var req RefreshRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err == nil && strings.TrimSpace(req.RefreshToken) != "" {
			return strings.TrimSpace(req.RefreshToken)
		}
	}
	return strings.TrimSpace(c.GetHeader(middleware.HeaderRefreshToken))
}
