package handler

import (
	"net/http"

	"aeon-session-server/internal/model"
	"aeon-session-server/internal/session"
	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	Sessions *session.Manager
}

func (h *SessionHandler) actor(c *gin.Context) (*session.Actor, bool) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session id"})
		return nil, false
	}
	a, err := h.Sessions.Get(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open session"})
		return nil, false
	}
	return a, true
}

func (h *SessionHandler) Document(c *gin.Context) {
	a, ok := h.actor(c)
	if !ok {
		return
	}

	doc, exists, err := a.Document()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read session"})
		return
	}
	if !exists {
		doc = model.DefaultDocument()
	}
	c.JSON(http.StatusOK, doc)
}

func (h *SessionHandler) Replace(c *gin.Context) {
	a, ok := h.actor(c)
	if !ok {
		return
	}

	var doc model.SessionDocument
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	version, err := a.Replace(doc)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "version": version})
}

type initSessionBody struct {
	Route  string         `json:"route"`
	Data   map[string]any `json:"data"`
	Schema *model.Schema  `json:"schema"`
}

func (h *SessionHandler) Init(c *gin.Context) {
	a, ok := h.actor(c)
	if !ok {
		return
	}

	var body initSessionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	schemaVersion := ""
	if body.Schema != nil {
		schemaVersion = body.Schema.Version
	}

	doc, created, err := a.Initialize(body.Route, body.Data, schemaVersion)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to initialize session"})
		return
	}

	status := "exists"
	if created {
		status = "created"
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "session": doc})
}

func (h *SessionHandler) Presence(c *gin.Context) {
	a, ok := h.actor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, a.Presence())
}
