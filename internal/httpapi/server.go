package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/heetsz/Parakh.ai/internal/archive"
	"github.com/heetsz/Parakh.ai/internal/config"
	"github.com/heetsz/Parakh.ai/internal/groq"
	"github.com/heetsz/Parakh.ai/internal/interview"
	"github.com/heetsz/Parakh.ai/internal/observability"
	"github.com/heetsz/Parakh.ai/internal/plan"
	"github.com/heetsz/Parakh.ai/internal/protocol"
)

// Orchestrator drives one interview session per websocket connection.
type Orchestrator interface {
	NewSession() *interview.Session
	RunConnection(ctx context.Context, sess *interview.Session, inbound <-chan any, outbound chan<- any) error
}

type Server struct {
	cfg          config.Config
	orchestrator Orchestrator
	evaluator    interview.Evaluator
	planner      *plan.Generator
	store        archive.Store
	metrics      *observability.Metrics
	upgrader     websocket.Upgrader
	allowed      map[string]bool
}

func New(cfg config.Config, orchestrator Orchestrator, evaluator interview.Evaluator, planner *plan.Generator, store archive.Store, metrics *observability.Metrics) *Server {
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[strings.ToLower(o)] = true
	}

	s := &Server{
		cfg:          cfg,
		orchestrator: orchestrator,
		evaluator:    evaluator,
		planner:      planner,
		store:        store,
		metrics:      metrics,
		allowed:      allowed,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.originAllowed,
	}
	return s
}

// originAllowed admits non-browser clients (no Origin header), same-host
// browser clients, and the configured frontend origins.
func (s *Server) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if s.allowed[strings.ToLower(strings.TrimRight(origin, "/"))] {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.cors)

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/ws/interview", s.handleInterviewWS)

	r.Post("/interviews/generate", s.handleGenerate)
	r.Post("/interviews/title", s.handleTitle)
	r.Post("/interviews/score", s.handleScore)
	r.Get("/interviews/recent", s.handleRecent)

	return r
}

// cors admits the configured client origins on the request/response
// endpoints. The websocket route relies on the upgrader's origin check.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin != "" && s.allowed[strings.ToLower(strings.TrimRight(origin, "/"))] {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleInterviewWS(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "orchestrator not configured")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sess := s.orchestrator.NewSession()
	log.Printf("client connected: session %s", sess.ID)
	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan any, 256)
	outbound := make(chan any, 256)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = s.orchestrator.RunConnection(ctx, sess, inbound, outbound)
	}()

	// Single writer goroutine: websocket writes must not interleave.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range outbound {
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			var werr error
			if frame, ok := msg.(protocol.AudioFrame); ok {
				werr = conn.WriteMessage(websocket.BinaryMessage, frame.Data)
			} else {
				werr = conn.WriteJSON(msg)
			}
			if werr != nil {
				s.metrics.SessionEvents.WithLabelValues("ws_write_error").Inc()
				cancel()
				return
			}
		}
	}()

	// The orchestrator closes outbound when the session ends (end_call or
	// cancellation). Once the writer drains the remaining frames, close
	// the transport so the read loop unblocks.
	go func() {
		<-writerDone
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(2*time.Second))
		cancel()
		_ = conn.Close()
	}()

	// Recorded segments arrive as one or more sizable binary frames.
	conn.SetReadLimit(16 << 20)

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var unit any
		switch msgType {
		case websocket.BinaryMessage:
			unit = protocol.AudioChunk{Data: data}
			s.metrics.WSMessages.WithLabelValues("inbound", "audio_binary").Inc()
		case websocket.TextMessage:
			msg := protocol.ParseControlMessage(data)
			unit = msg
			s.metrics.WSMessages.WithLabelValues("inbound", string(msg.Type)).Inc()
		default:
			continue
		}

		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- unit:
		}
	}

	cancel()
	close(inbound)
	<-runDone
	<-writerDone
	s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
	log.Printf("client disconnected: session %s", sess.ID)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var spec plan.Spec
	if err := decodeJSON(r, &spec); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	set, err := s.planner.GenerateQuestions(r.Context(), spec)
	if err != nil {
		if errors.Is(err, groq.ErrNotConfigured) {
			respondError(w, http.StatusServiceUnavailable, "not_configured", "GROQ_API_KEY not configured")
			return
		}
		respondError(w, http.StatusBadGateway, "generation_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "generated": set})
}

func (s *Server) handleTitle(w http.ResponseWriter, r *http.Request) {
	var spec plan.Spec
	if err := decodeJSON(r, &spec); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"title": s.planner.GenerateTitle(r.Context(), spec)})
}

type scoreRequest struct {
	History []struct {
		Speaker string `json:"speaker"`
		Text    string `json:"text"`
	} `json:"history"`
	Context interview.Context `json:"context"`
}

// handleScore runs the post-call evaluator over an already-captured
// transcript, outside any socket session.
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	history := make(interview.History, 0, len(req.History))
	for _, t := range req.History {
		speaker := interview.SpeakerInterviewer
		switch strings.ToLower(strings.TrimSpace(t.Speaker)) {
		case "candidate", "user":
			speaker = interview.SpeakerCandidate
		}
		history = append(history, interview.Turn{Speaker: speaker, Text: t.Text})
	}

	result := s.evaluator.Evaluate(r.Context(), history, req.Context)
	respondJSON(w, http.StatusOK, map[string]any{"result": result})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "archive_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"interviews": records})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, detail string) {
	respondJSON(w, status, errorResponse{Error: detail, Code: code})
}
