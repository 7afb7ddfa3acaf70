package handler

import (
	"net/http"

	"aeon-session-server/internal/model"
	"aeon-session-server/internal/registry"
	"github.com/gin-gonic/gin"
)

type RoutesHandler struct {
	Registry *registry.Actor
}

type routeKeyBody struct {
	Path string `json:"path"`
}

// Lookup resolves one route by exact path. The key travels in the body,
// matching the original wire contract.
func (h *RoutesHandler) Lookup(c *gin.Context) {
	var body routeKeyBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	entry, ok, err := h.Registry.Lookup(body.Path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read route"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *RoutesHandler) Upsert(c *gin.Context) {
	var entry model.RouteEntry
	if err := c.ShouldBindJSON(&entry); err != nil || entry.Pattern == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.Registry.Upsert(entry); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save route"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *RoutesHandler) Delete(c *gin.Context) {
	var body routeKeyBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.Registry.Delete(body.Path); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete route"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *RoutesHandler) List(c *gin.Context) {
	entries, err := h.Registry.List(c.Query("prefix"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list routes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"routes": entries})
}
