package main

import (
	"context"
	"fmt"
	"log"

	"aeon-session-server/internal/config"
	"aeon-session-server/internal/mirror"
	"aeon-session-server/internal/registry"
	"aeon-session-server/internal/server"
	"aeon-session-server/internal/session"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	gin.SetMode(cfg.GinMode)

	var mirrorWriter *mirror.Writer
	if cfg.MirrorDB != "" {
		st, err := mirror.Open(context.Background(), cfg.MirrorDB)
		if err != nil {
			log.Fatal(err)
		}
		defer st.Close()
		mirrorWriter = mirror.NewWriter(st)
		defer mirrorWriter.Close()
	}

	sessions := session.NewManager(cfg.DataDir, mirrorWriter)
	defer sessions.Stop()

	routes, err := registry.Open(cfg.DataDir)
	if err != nil {
		log.Fatal(err)
	}
	defer routes.Stop()

	router := server.NewRouter(server.Deps{Sessions: sessions, Registry: routes})
	log.Printf("listening on %s", fmt.Sprintf(":%d", cfg.Port))
	log.Fatal(server.Run(cfg, router))
}
