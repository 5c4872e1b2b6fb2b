package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/isaiahnixon/newspaper/internal/db"
	"github.com/isaiahnixon/newspaper/internal/render"
)

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// editionStore is the slice of db.Pool the API reads from.
type editionStore interface {
	Ping(ctx context.Context) error
	ListEditions(ctx context.Context, limit, offset int) ([]db.EditionSummary, error)
	CountEditions(ctx context.Context) (int, error)
	GetEdition(ctx context.Context, editionUUID string) (*db.EditionDetail, error)
}

// Server publishes the rendered edition files and, when a database is
// configured, the stored edition history.
type Server struct {
	store  editionStore
	layout render.Layout
	logger zerolog.Logger
	opts   Options
}

// NewServer builds a server. pool may be nil, in which case the edition API
// answers 503 and only the files on disk are served.
func NewServer(pool *db.Pool, layout render.Layout, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8090
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	s := &Server{
		layout: layout,
		logger: logger,
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
		},
	}
	if pool != nil {
		s.store = pool
	}
	return s
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.routes()

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().
		Str("addr", addr).
		Str("output_dir", s.layout.OutputDir).
		Bool("database", s.store != nil).
		Msg("newspaper web server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("newspaper web server stopped")
	return nil
}

func (s *Server) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := s.logger.Info()
			msg := "http request"
			if v.Error != nil {
				event = s.logger.Error().Err(v.Error)
				msg = "http request failed"
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg(msg)
			return nil
		},
	}))

	e.GET("/", s.handleLatest)
	e.GET("/"+s.layout.OutputFile, s.handleLatest)
	e.GET("/"+render.FeedFile, s.handleFeed)
	e.GET("/archive", func(c echo.Context) error {
		return c.Redirect(http.StatusMovedPermanently, "/archive/")
	})
	e.GET("/archive/*", s.handleArchiveFile)

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/archive", s.handleArchiveList)
	api.GET("/editions", s.handleEditions)
	api.GET("/editions/:edition_uuid", s.handleEditionDetail)

	return e
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if v, ok := he.Message.(string); ok && strings.TrimSpace(v) != "" {
			message = v
		} else if text := http.StatusText(status); text != "" {
			message = text
		}
	} else if err != nil {
		message = err.Error()
	}

	if strings.HasPrefix(c.Request().URL.Path, "/api/") {
		if status >= 500 {
			_ = internalError(c, "Internal server error")
			return
		}
		_ = fail(c, status, message, nil)
		return
	}

	_ = c.String(status, message)
}

func (s *Server) handleLatest(c echo.Context) error {
	return s.serveFile(c, s.layout.OutputPath(), "", "No edition has been published yet")
}

func (s *Server) handleFeed(c echo.Context) error {
	return s.serveFile(c, s.layout.FeedPath(), "application/atom+xml; charset=utf-8", "No feed has been published yet")
}

func (s *Server) handleArchiveFile(c echo.Context) error {
	name := strings.TrimPrefix(c.Param("*"), "/")
	if name == "" {
		name = render.ArchiveIndex
	}
	if strings.Contains(name, "/") || strings.Contains(name, `\`) || strings.HasPrefix(name, ".") {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	return s.serveFile(c, filepath.Join(s.layout.ArchiveDir, name), "", "Archived edition not found")
}

// serveFile answers 404 for missing files instead of leaking filesystem
// errors.
func (s *Server) serveFile(c echo.Context, path, contentType, missing string) error {
	body, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return echo.NewHTTPError(http.StatusNotFound, missing)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("read published file failed")
		return echo.NewHTTPError(http.StatusNotFound, missing)
	}
	if contentType == "" {
		contentType = contentTypeFor(path)
	}
	return c.Blob(http.StatusOK, contentType, body)
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return echo.MIMETextHTMLCharsetUTF8
	case ".atom", ".xml":
		return "application/atom+xml; charset=utf-8"
	default:
		return echo.MIMEOctetStream
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	payload := map[string]any{
		"service":  "newspaper",
		"database": "disabled",
	}
	if _, err := os.Stat(s.layout.OutputPath()); err == nil {
		payload["latest_edition"] = true
	} else {
		payload["latest_edition"] = false
	}

	if s.store != nil {
		if err := s.store.Ping(c.Request().Context()); err != nil {
			s.logger.Error().Err(err).Msg("database ping failed")
			return unavailable(c, "Database is unavailable")
		}
		payload["database"] = "ok"
	}
	return success(c, payload)
}

func (s *Server) handleArchiveList(c echo.Context) error {
	entries, err := render.ListArchive(s.layout.ArchiveDir)
	if err != nil {
		s.logger.Error().Err(err).Str("archive_dir", s.layout.ArchiveDir).Msg("list archive failed")
		return internalError(c, "Failed to list archive")
	}

	items := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		item := map[string]any{
			"name":  entry.Name,
			"label": entry.Label,
			"href":  "/archive/" + entry.Name,
		}
		if entry.Dated {
			item["archived_at"] = entry.Timestamp.UTC()
		}
		items = append(items, item)
	}
	return success(c, map[string]any{"items": items})
}

func (s *Server) handleEditions(c echo.Context) error {
	if s.store == nil {
		return unavailable(c, "Edition history requires DATABASE_URL")
	}

	limit, err := parsePositiveInt(c.QueryParam("limit"), db.DefaultEditionPageSize, 1, db.MaxEditionPageSize)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}
	offset, err := parsePositiveInt(c.QueryParam("offset"), 0, 0, 1_000_000)
	if err != nil {
		return failValidation(c, map[string]string{"offset": err.Error()})
	}

	rows, err := s.store.ListEditions(c.Request().Context(), limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Msg("query editions failed")
		return internalError(c, "Failed to load editions")
	}
	total, err := s.store.CountEditions(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("count editions failed")
		return internalError(c, "Failed to load editions")
	}
	return success(c, map[string]any{
		"items":  rows,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) handleEditionDetail(c echo.Context) error {
	if s.store == nil {
		return unavailable(c, "Edition history requires DATABASE_URL")
	}

	editionUUID := strings.TrimSpace(c.Param("edition_uuid"))
	detail, err := s.store.GetEdition(c.Request().Context(), editionUUID)
	if errors.Is(err, db.ErrEditionNotFound) {
		return failNotFound(c, "Edition not found")
	}
	if err != nil {
		s.logger.Error().Err(err).Str("edition_uuid", editionUUID).Msg("query edition failed")
		return internalError(c, "Failed to load edition")
	}
	return success(c, detail)
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}
