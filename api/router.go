package api

import (
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/luma/cmdmessenger/internal/observability"
	"github.com/luma/cmdmessenger/protocol"
	"github.com/luma/cmdmessenger/storage"
)

// Sender sends commands to the device.
type Sender interface {
	Codec() *protocol.Codec
	SendWithFormats(name string, formats protocol.Formats, args ...interface{}) error
}

type Options struct {
	Sender Sender

	// Store holds the latest message received for each command
	Store storage.Store

	// DebugHTTP runs gin in debug mode
	DebugHTTP bool

	Log *zap.Logger
}

type server struct {
	sender Sender
	store  storage.Store
	log    *zap.Logger
}

// NewRouter returns the HTTP API:
//
//   GET  /ping
//   GET  /metrics
//   GET  /commands
//   POST /commands/:name    {"args": [...], "formats": "ii"}
//   GET  /state
//   GET  /state/:command
func NewRouter(options Options) *gin.Engine {
	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	router := setupRouter(options.DebugHTTP, log)

	s := &server{
		sender: options.Sender,
		store:  options.Store,
		log:    log,
	}

	// Ping test
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/commands", s.listCommands)
	router.POST("/commands/:name", s.sendCommand)

	router.GET("/state", s.getState)
	router.GET("/state/:command", s.getCommandState)

	return router
}

func setupRouter(debugHTTP bool, log *zap.Logger) *gin.Engine {
	gin.DisableConsoleColor()
	if !debugHTTP {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Add a ginzap middleware, which:
	//   - Logs all requests, like a combined access and error log.
	//   - RFC3339 with UTC time format.
	r.Use(ginzap.GinzapWithConfig(log, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/ping", "/metrics"},
	}))

	// Logs all panic to error log
	//   - stack means whether output the stack info.
	r.Use(ginzap.RecoveryWithZap(log, true))

	r.Use(recordMetrics)

	return r
}

func recordMetrics(c *gin.Context) {
	start := time.Now()
	c.Next()

	path := c.FullPath()
	if path == "" {
		path = "unmatched"
	}

	observability.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
}
