package api

import (
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/timmy/memevote/internal/api/handler"
	"github.com/timmy/memevote/internal/api/middleware"
	"github.com/timmy/memevote/internal/events"
	"github.com/timmy/memevote/internal/logger"
	"github.com/timmy/memevote/internal/metrics"
	"github.com/timmy/memevote/internal/service"
	"github.com/timmy/memevote/internal/storage"
)

// RouterConfig holds everything SetupRouter wires into the engine.
type RouterConfig struct {
	Mode   string
	CORS   middleware.CORSConfig
	Logger *logger.Logger

	Voting    *service.VotingService
	Allowlist *service.AllowlistService
	Images    *service.ImageService

	// Uploads is served under /uploads when set.
	Uploads *storage.LocalStorage
	// Hub enables the websocket feed when set.
	Hub *events.Hub

	// MetricsHandler is mounted at MetricsPath when set.
	MetricsHandler http.Handler
	MetricsPath    string
	HTTPMetrics    *metrics.HTTPMetrics

	MaxMultipartMemory int64
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(cfg *RouterConfig) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	if cfg.MaxMultipartMemory > 0 {
		r.MaxMultipartMemory = cfg.MaxMultipartMemory
	}

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(cfg.Logger, cfg.HTTPMetrics))
	r.Use(middleware.CORS(cfg.CORS))

	// Create handlers
	healthHandler := handler.NewHealthHandler()
	memeHandler := handler.NewMemeHandler(cfg.Voting, cfg.Images, cfg.Mode == "release")
	eligibilityHandler := handler.NewEligibilityHandler(cfg.Voting, cfg.Allowlist)

	// Health check
	r.GET("/health", healthHandler.Health)

	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.MetricsHandler))
	}

	if cfg.Uploads != nil {
		uploads := r.Group(storage.LocalURLPrefix)
		uploads.Use(middleware.StaticAssetHeaders())
		uploads.StaticFS("/", filesOnly{afero.NewHttpFs(cfg.Uploads.FileSystem())})
	}

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", healthHandler.Health)

		// Memes
		apiGroup.GET("/memes", memeHandler.ListMemes)
		apiGroup.POST("/memes", memeHandler.CreateMeme)
		apiGroup.POST("/memes/:id/vote", memeHandler.Vote)
		apiGroup.POST("/upload-image", memeHandler.UploadImage)

		// Eligibility
		apiGroup.GET("/eligible-addresses", eligibilityHandler.ListEligible)
		apiGroup.POST("/check-eligibility", eligibilityHandler.CheckEligibility)

		// Live feed
		if cfg.Hub != nil {
			liveHandler := handler.NewLiveHandler(
				cfg.Hub,
				middleware.OriginHostPatterns(cfg.CORS.AllowedOrigins),
				cfg.CORS.AllowAllOrigins,
			)
			apiGroup.GET("/memes/live", liveHandler.Subscribe)
		}
	}

	return r
}

// filesOnly hides directories and dotfiles so /uploads never lists its
// contents or exposes an upload that is still being written.
type filesOnly struct {
	http.FileSystem
}

func (fs filesOnly) Open(name string) (http.File, error) {
	if strings.HasPrefix(path.Base(name), ".") {
		return nil, os.ErrNotExist
	}
	f, err := fs.FileSystem.Open(name)
	if err != nil {
		return nil, err
	}
	if st, err := f.Stat(); err != nil || st.IsDir() {
		f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}
