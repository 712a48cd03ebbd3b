package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/prometheus-agent-platform/config"
	"github.com/prometheus-agent-platform/internal/agent"
	"github.com/prometheus-agent-platform/internal/events"
	"github.com/prometheus-agent-platform/internal/promql"
	"github.com/prometheus-agent-platform/internal/store"
	"github.com/prometheus-agent-platform/internal/stream"
	"github.com/prometheus-agent-platform/internal/tracing"
)

func main() {
	cfg := config.Load()

	shutdownTracing, err := tracing.InitTracer(&tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	backend, err := promql.NewClient(cfg.Prometheus.URL, cfg.Prometheus.FetchTimeout)
	if err != nil {
		log.Fatalf("Failed to create Prometheus client: %v", err)
	}

	var llm agent.Generator
	if cfg.LLM.Provider == "mock" {
		llm = agent.NewMockGenerator()
		log.Println("Using mock reasoning backend")
	} else {
		llm = agent.NewOpenAIGenerator(agent.OpenAIConfig{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		})
		log.Printf("Using OpenAI reasoning backend with model: %s", cfg.LLM.Model)
	}

	opts := agent.Options{
		FetchTimeout:     cfg.Prometheus.FetchTimeout,
		ReasoningTimeout: cfg.LLM.ReasoningTimeout,
		TurnCap:          cfg.Conversations.TurnCap,
	}

	var archive *store.Archive
	if cfg.Database.Enabled {
		archive, err = store.NewArchive(&store.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Database,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			log.Fatalf("Failed to open conversation archive: %v", err)
		}
		defer archive.Close()
		opts.Archiver = archive
		log.Println("Conversation archive enabled")
	}

	engine := agent.NewEngine(backend, llm, opts)

	var publisher *events.Publisher
	if cfg.NATS.Enabled {
		natsConfig := events.DefaultConfig()
		natsConfig.URL = cfg.NATS.URL
		natsConfig.StreamName = cfg.NATS.Stream
		publisher, err = events.NewPublisher(natsConfig)
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer publisher.Close()
		log.Println("Event publishing enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := stream.NewHub()
	go hub.Run(ctx)

	go evictIdleConversations(ctx, engine, cfg.Conversations.EvictInterval, cfg.Conversations.IdleMaxAge)

	if cfg.Monitor.Interval > 0 {
		monitor := stream.NewMonitor(hub, engine.AssessHealth, cfg.Monitor.Interval, cfg.Monitor.Window)
		go monitor.Run(ctx)
		log.Printf("Health monitor enabled (every %v over %v)", cfg.Monitor.Interval, cfg.Monitor.Window)
	}

	server := newServer(engine, hub, publisher, cfg)
	log.Printf("Starting agent API server on :%d", cfg.HTTP.Port)
	if err := server.start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}
}

func evictIdleConversations(ctx context.Context, engine *agent.Engine, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if evicted := engine.Conversations().EvictIdle(maxAge); evicted > 0 {
				log.Printf("Evicted %d idle conversations", evicted)
			}
		case <-ctx.Done():
			return
		}
	}
}

type server struct {
	engine     *agent.Engine
	hub        *stream.Hub
	publisher  *events.Publisher
	cfg        *config.Config
	httpServer *http.Server
}

func newServer(engine *agent.Engine, hub *stream.Hub, publisher *events.Publisher, cfg *config.Config) *server {
	return &server{engine: engine, hub: hub, publisher: publisher, cfg: cfg}
}

func (s *server) start() error {
	router := mux.NewRouter()

	api := router.PathPrefix("/api/v1/agent").Subrouter()
	api.HandleFunc("/translate", s.handleTranslate).Methods("POST")
	api.HandleFunc("/health", s.handleAssessHealth).Methods("POST")
	api.HandleFunc("/investigate", s.handleInvestigate).Methods("POST")
	api.HandleFunc("/chat", s.handleChat).Methods("POST")
	api.HandleFunc("/recommendations", s.handleRecommendations).Methods("POST")

	router.HandleFunc("/api/v1/ws/events", stream.NewHandler(s.hub).ServeHTTP)
	router.HandleFunc("/health", s.handleHealth).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	handler := otelhttp.NewHandler(corsHandler.Handler(router), "agent-api")

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.HTTP.Port),
		Handler:      handler,
		ReadTimeout:  s.cfg.HTTP.ReadTimeout,
		WriteTimeout: s.cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	return s.httpServer.ListenAndServe()
}

type translateRequest struct {
	Question string `json:"question"`
}

func (s *server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid-input", "Invalid request body")
		return
	}

	result, err := s.engine.TranslateQuery(r.Context(), req.Question)
	if err != nil {
		s.respondFailure(w, err)
		return
	}

	s.notify(r.Context(), stream.ChannelTranslations, result, func(ctx context.Context) error {
		return s.publisher.PublishTranslation(ctx, result)
	})
	s.respondJSON(w, http.StatusOK, result)
}

type assessRequest struct {
	Window string `json:"window"`
}

func (s *server) handleAssessHealth(w http.ResponseWriter, r *http.Request) {
	var req assessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid-input", "Invalid request body")
		return
	}

	var window time.Duration
	if req.Window != "" {
		parsed, err := time.ParseDuration(req.Window)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid-input", "Invalid window duration")
			return
		}
		window = parsed
	}

	assessment, err := s.engine.AssessHealth(r.Context(), window)
	if err != nil {
		s.respondFailure(w, err)
		return
	}

	s.notify(r.Context(), stream.ChannelAssessments, assessment, func(ctx context.Context) error {
		return s.publisher.PublishAssessment(ctx, assessment)
	})
	s.respondJSON(w, http.StatusOK, assessment)
}

type investigateRequest struct {
	AlertName string `json:"alert_name"`
}

func (s *server) handleInvestigate(w http.ResponseWriter, r *http.Request) {
	var req investigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid-input", "Invalid request body")
		return
	}

	result, err := s.engine.InvestigateAlert(r.Context(), req.AlertName)
	if err != nil {
		s.respondFailure(w, err)
		return
	}

	s.notify(r.Context(), stream.ChannelInvestigations, result, func(ctx context.Context) error {
		return s.publisher.PublishInvestigation(ctx, result)
	})
	s.respondJSON(w, http.StatusOK, result)
}

type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid-input", "Invalid request body")
		return
	}

	result, err := s.engine.ChatTurn(r.Context(), req.ConversationID, req.Message)
	if err != nil {
		s.respondFailure(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}

type recommendationsRequest struct {
	SystemDescription string `json:"system_description"`
}

func (s *server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	var req recommendationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid-input", "Invalid request body")
		return
	}

	recommendations, err := s.engine.Recommendations(r.Context(), req.SystemDescription)
	if err != nil {
		s.respondFailure(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"recommendations": recommendations})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// notify fans a completed result out to WebSocket subscribers and, when
// configured, NATS. Both are best effort.
func (s *server) notify(ctx context.Context, channel string, data interface{}, publish func(context.Context) error) {
	s.hub.Publish(channel, data)
	if s.publisher != nil {
		if err := publish(ctx); err != nil {
			log.Printf("Failed to publish %s event: %v", channel, err)
		}
	}
}

// respondFailure maps engine failure tags to HTTP statuses. The tag is
// always in the body so clients can branch without parsing messages.
func (s *server) respondFailure(w http.ResponseWriter, err error) {
	tag, ok := agent.TagOf(err)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	status := http.StatusBadGateway
	switch tag {
	case agent.TagInvalidInput:
		status = http.StatusBadRequest
	case agent.TagAlertNotFound:
		status = http.StatusNotFound
	case agent.TagTimeout:
		status = http.StatusGatewayTimeout
	case agent.TagBackendUnavailable, agent.TagMalformedResponse:
		status = http.StatusBadGateway
	}

	s.respondError(w, status, string(tag), err.Error())
}

func (s *server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *server) respondError(w http.ResponseWriter, status int, tag, message string) {
	s.respondJSON(w, status, map[string]string{
		"error": message,
		"tag":   tag,
	})
}
