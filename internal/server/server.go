// Package server exposes finished result documents over a read-only HTTP
// API. It never runs experiments; it only reads what the runners wrote.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/experiment"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/logging"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/report"
)

// Config configures the results server.
type Config struct {
	Host       string `yaml:"host" json:"host"`
	Port       int    `yaml:"port" json:"port"`
	EnableCORS bool   `yaml:"enable_cors" json:"enable_cors"`
	OutputDir  string `yaml:"output_dir" json:"output_dir"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`
	Debug      bool   `yaml:"debug" json:"debug"`
	Version    string `yaml:"-" json:"-"`
}

// DefaultConfig returns the server defaults.
func DefaultConfig() Config {
	return Config{
		Host:       "localhost",
		Port:       8080,
		EnableCORS: true,
		OutputDir:  "results",
		CacheSize:  16,
	}
}

// Server serves result documents and aggregated summaries.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	cache      *docCache
	outputDir  string
	version    string
	startTime  time.Time
	logger     logging.Logger
}

// artifactInfo describes one file in the output directory.
type artifactInfo struct {
	Name    string    `json:"name"`
	Kind    string    `json:"kind"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mtime"`
}

// New builds the server and registers all routes.
func New(config Config, logger logging.Logger) (*Server, error) {
	cache, err := newDocCache(config.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create document cache: %w", err)
	}

	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	if config.EnableCORS {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
		engine.Use(cors.New(corsConfig))
	}

	s := &Server{
		engine:    engine,
		cache:     cache,
		outputDir: config.OutputDir,
		version:   config.Version,
		startTime: time.Now(),
		logger:    logging.OrNop(logger),
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/runs", s.handleListRuns)
	api.GET("/runs/single", s.handleSingleDocument)
	api.GET("/runs/longitudinal", s.handleLongitudinalDocument)
	api.GET("/summary/single", s.handleSingleSummary)
	api.GET("/summary/longitudinal", s.handleLongitudinalSummary)

	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("results server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"version":        s.version,
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
	})
}

func artifactKind(name string) string {
	switch name {
	case experiment.SingleTurnArtifact:
		return "single_turn"
	case experiment.LongitudinalArtifact:
		return "longitudinal"
	case experiment.RunMetaArtifact:
		return "run_meta"
	default:
		return "other"
	}
}

func (s *Server) handleListRuns(c *gin.Context) {
	entries, err := os.ReadDir(s.outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			c.JSON(http.StatusOK, gin.H{"artifacts": []artifactInfo{}})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	artifacts := make([]artifactInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, artifactInfo{
			Name:    entry.Name(),
			Kind:    artifactKind(entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"artifacts": artifacts})
}

func (s *Server) loadSingle() ([]*experiment.Record, error) {
	path := filepath.Join(s.outputDir, experiment.SingleTurnArtifact)
	value, err := s.cache.load(path, func(p string) (any, error) {
		return experiment.ReadSingleTurn(p)
	})
	if err != nil {
		return nil, err
	}
	return value.([]*experiment.Record), nil
}

func (s *Server) loadLongitudinal() (experiment.Results, error) {
	path := filepath.Join(s.outputDir, experiment.LongitudinalArtifact)
	value, err := s.cache.load(path, func(p string) (any, error) {
		return experiment.ReadLongitudinal(p)
	})
	if err != nil {
		return nil, err
	}
	return value.(experiment.Results), nil
}

func respondDocument(c *gin.Context, value any, err error) {
	if err != nil {
		if os.IsNotExist(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, value)
}

func (s *Server) handleSingleDocument(c *gin.Context) {
	records, err := s.loadSingle()
	respondDocument(c, records, err)
}

func (s *Server) handleLongitudinalDocument(c *gin.Context) {
	results, err := s.loadLongitudinal()
	respondDocument(c, results, err)
}

func (s *Server) handleSingleSummary(c *gin.Context) {
	records, err := s.loadSingle()
	if err != nil {
		respondDocument(c, nil, err)
		return
	}
	c.JSON(http.StatusOK, report.Aggregate(records))
}

func (s *Server) handleLongitudinalSummary(c *gin.Context) {
	results, err := s.loadLongitudinal()
	if err != nil {
		respondDocument(c, nil, err)
		return
	}
	c.JSON(http.StatusOK, report.AggregateLongitudinal(results))
}
