package server

import (
	"github.com/charmbracelet/log"

	"github.com/SayWess/Musicarr/internal/notify"
	"github.com/SayWess/Musicarr/internal/services"
	"github.com/SayWess/Musicarr/internal/shared"
	"github.com/SayWess/Musicarr/internal/tasks"
)

// NewAPIRouter assembles the full API: the REST handlers, the websocket
// endpoints for the two notification groups, and the default middleware
// stack.
func NewAPIRouter(cfg *shared.Config, engine *tasks.Engine, repos tasks.Repos, source services.MetadataSource, hub *notify.Hub, logger *log.Logger) *BasicRouter {
	router := NewBasicRouter()
	router.Use(Recover(logger), Logging(logger), CORS())

	router.Handler(NewPlaylistHandler(engine, repos, logger))
	router.Handler(NewVideoHandler(engine, repos, source, logger))
	router.Handler(NewUploaderHandler(engine, repos.Uploaders, cfg.AvatarDir(), logger))
	router.Handler(NewRootFolderHandler(repos.Roots, cfg.Storage.MediaRoot))
	router.Handler(NewLibraryHandler(engine))

	router.Handle("GET", "/ws/playlists", notify.ServeGroup(hub, notify.GroupPlaylists, logger))
	router.Handle("GET", "/ws/uploaders", notify.ServeGroup(hub, notify.GroupUploaders, logger))

	return router
}
