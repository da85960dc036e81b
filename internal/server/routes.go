package server

import (
	"net/url"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/gosuda/chatflow/internal/api/v1"
	"github.com/gosuda/chatflow/internal/api/ws"
	"github.com/gosuda/chatflow/internal/config"
)

func registerAPIRoutes(api huma.API, cfg *config.Config, deps Deps) {
	v1.RegisterSessionRoutes(api, deps.Sessions, deps.Uploads, deps.Markdown)
	v1.RegisterUploadRoutes(api, deps.Uploads)
	v1.RegisterAgentRoutes(api, deps.Backends, deps.Tools, cfg.Agent.Backend, cfg.Agent.Model)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/sessions/{sessionID}", hub.ServeSession)
}

// originPatterns turns CORS origins into the host patterns the websocket
// handshake checks against.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}
