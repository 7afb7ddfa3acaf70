package server

import (
	"time"

	"aeon-session-server/internal/handler"
	"aeon-session-server/internal/middleware"
	"aeon-session-server/internal/registry"
	"aeon-session-server/internal/session"
	"github.com/gin-gonic/gin"
)

type Deps struct {
	Sessions *session.Manager
	Registry *registry.Actor
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.HandleMethodNotAllowed = true

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	writeLimiter := middleware.NewRateLimiter(120, time.Minute)
	limited := middleware.RateLimitMiddleware(writeLimiter)

	sessionHandler := &handler.SessionHandler{Sessions: deps.Sessions}
	wsHandler := &handler.WebSocketHandler{Sessions: deps.Sessions}
	routesHandler := &handler.RoutesHandler{Registry: deps.Registry}

	v1 := r.Group("/v1")
	v1.GET("/sessions/:id/document", sessionHandler.Document)
	v1.PUT("/sessions/:id/document", limited, sessionHandler.Replace)
	v1.POST("/sessions/:id/init", limited, sessionHandler.Init)
	v1.GET("/sessions/:id/presence", sessionHandler.Presence)
	v1.GET("/sessions/:id/ws", wsHandler.Serve)

	v1.GET("/routes", routesHandler.List)
	v1.POST("/route", routesHandler.Lookup)
	v1.PUT("/route", limited, routesHandler.Upsert)
	v1.DELETE("/route", limited, routesHandler.Delete)

	return r
}
