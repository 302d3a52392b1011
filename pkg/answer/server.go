package answer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-go-golems/supportchat/pkg/exchange"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

const (
	MissingFieldsText = "Missing 'user_message' or 'history' in request body"

	maxRequestBytes = 1 << 20
)

// Server answers chat exchanges over HTTP.
type Server struct {
	builder  *PromptBuilder
	answerer Answerer
	schema   *gojsonschema.Schema
	metrics  *Metrics
	engine   *gin.Engine
}

type ServerOption func(*Server)

// WithMetrics shares a metrics registry with the caller. By default every
// Server gets a fresh one.
func WithMetrics(m *Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

func NewServer(builder *PromptBuilder, answerer Answerer, options ...ServerOption) (*Server, error) {
	if builder == nil {
		return nil, errors.New("answer: prompt builder is required")
	}
	if answerer == nil {
		return nil, errors.New("answer: answerer is required")
	}

	b, err := exchange.MarshalSchema(exchange.RequestSchema())
	if err != nil {
		return nil, errors.Wrap(err, "could not marshal request schema")
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(b))
	if err != nil {
		return nil, errors.Wrap(err, "could not compile request schema")
	}

	s := &Server{
		builder:  builder,
		answerer: answerer,
		schema:   schema,
	}
	for _, o := range options {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(s.metrics), cors())
	engine.GET("/health", s.health)
	engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	engine.POST("/chat", s.chat)
	engine.OPTIONS("/chat", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	s.engine = engine

	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Metrics() *Metrics {
	return s.metrics
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) badRequest(c *gin.Context, details []string) {
	s.metrics.RecordChat(OutcomeRejected)
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   MissingFieldsText,
		"details": details,
	})
}

func (s *Server) chat(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBytes))
	if err != nil {
		s.badRequest(c, []string{err.Error()})
		return
	}

	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		// not JSON at all
		s.badRequest(c, []string{err.Error()})
		return
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		s.badRequest(c, details)
		return
	}

	var req exchange.Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.badRequest(c, []string{err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"response": s.Answer(c.Request.Context(), &req)})
}

// Answer produces the reply text for req. It never fails: errors are logged
// and replaced with AnswererFailureText.
func (s *Server) Answer(ctx context.Context, req *exchange.Request) string {
	s.metrics.HistoryLength.Observe(float64(len(req.History)))

	p, err := s.builder.Build(req)
	if err != nil {
		log.Error().Err(err).Msg("could not build prompt")
		s.metrics.RecordChat(OutcomeFailed)
		return AnswererFailureText
	}

	start := time.Now()
	text, err := s.answerer.Answer(ctx, p)
	s.metrics.AnswerDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		log.Error().Err(err).Int("history_len", len(req.History)).Msg("answerer failed")
		s.metrics.RecordChat(OutcomeFailed)
		return AnswererFailureText
	}

	s.metrics.RecordChat(OutcomeAnswered)
	return strings.TrimSpace(text)
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Accept")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requestLogger(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		// route patterns keep label cardinality bounded
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RecordRequest(c.Request.Method, path, c.Writer.Status(), duration)

		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("request")
	}
}

// StartOpts holds configuration for the answering service.
type StartOpts struct {
	Settings *Settings
	// Answerer overrides the one selected in Settings.
	Answerer Answerer
	// Addr overrides the listen address derived from Settings.Port.
	Addr string
	Out  io.Writer
}

// Start launches the answering service. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	var s *Settings
	if opts.Settings != nil {
		s = opts.Settings.Clone()
	} else {
		s = NewSettings()
	}
	if s.Port <= 0 {
		s.Port = 8000
	}

	answerer := opts.Answerer
	if answerer == nil {
		var err error
		answerer, err = NewAnswerer(s)
		if err != nil {
			return err
		}
	}

	builder, err := NewPromptBuilder(s, LoadKnowledge(s.KnowledgePath))
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	server, err := NewServer(builder, answerer)
	if err != nil {
		return err
	}

	addr := opts.Addr
	if addr == "" {
		addr = fmt.Sprintf(":%d", s.Port)
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("answering service did not shut down cleanly")
		}
	}()

	log.Info().Str("addr", addr).Str("answerer", s.Answerer).Msg("answering service starting")
	if opts.Out != nil {
		_, _ = fmt.Fprintf(opts.Out, "Answering service listening on %s\n", addr)
	}

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "answering service")
	}
	return nil
}
