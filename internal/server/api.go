package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/lewisedginton/triage_assistant/internal/history"
	"github.com/lewisedginton/triage_assistant/internal/knowledge"
	"github.com/lewisedginton/triage_assistant/internal/middleware"
	"github.com/lewisedginton/triage_assistant/internal/triage"
	"github.com/lewisedginton/triage_assistant/pkg/logger"
	"github.com/lewisedginton/triage_assistant/pkg/prefixed_uuid"
)

// DefaultUserID is recorded in history when a chat request names no user.
const DefaultUserID = "anonymous"

// DefaultRequestTimeout bounds every /api request.
const DefaultRequestTimeout = 30 * time.Second

// APIConfig holds what the REST handlers need.
type APIConfig struct {
	Engine         *triage.Engine
	History        history.Store
	HistoryBackend string
	// HistoryLimit is used when no ?limit is given; HistoryMaxLimit caps it.
	HistoryLimit    int
	HistoryMaxLimit int

	// RequestTimeout applies to /api routes only; websocket connections are long-lived.
	RequestTimeout time.Duration

	Version        string
	AllowedOrigins []string // websocket Origin patterns, e.g. "https://*"
	MaxFrameBytes  int64
	Logger         logger.Logger
}

// API serves the triage REST and websocket endpoints.
type API struct {
	engine         *triage.Engine
	history        history.Store
	historyBackend string
	historyLimit   int
	maxLimit       int
	requestTimeout time.Duration
	version        string
	origins        []string
	maxFrameBytes  int64
	log            logger.Logger

	mu       sync.Mutex
	isClosed bool
	closing  chan struct{} // closed by Close
	conns    sync.WaitGroup
}

func NewAPI(cfg APIConfig) (*API, error) {
	if cfg.Engine == nil {
		return nil, errors.New("engine is required")
	}
	a := &API{
		engine:         cfg.Engine,
		history:        cfg.History,
		historyBackend: cfg.HistoryBackend,
		historyLimit:   cfg.HistoryLimit,
		maxLimit:       cfg.HistoryMaxLimit,
		requestTimeout: cfg.RequestTimeout,
		version:        cfg.Version,
		origins:        cfg.AllowedOrigins,
		maxFrameBytes:  cfg.MaxFrameBytes,
		log:            cfg.Logger,
	}
	if a.history == nil {
		a.history = history.Nop{}
		a.historyBackend = string(history.BackendNone)
	}
	if a.historyLimit <= 0 {
		a.historyLimit = history.DefaultLimit
	}
	if a.maxLimit < a.historyLimit {
		a.maxLimit = a.historyLimit
	}
	if a.requestTimeout <= 0 {
		a.requestTimeout = DefaultRequestTimeout
	}
	if a.maxFrameBytes <= 0 {
		a.maxFrameBytes = 64 << 10
	}
	if a.log == nil {
		a.log = logger.NewNopLogger()
	}
	a.closing = make(chan struct{})
	return a, nil
}

// Close ends open websocket connections with a going-away frame and waits
// for their handlers to return. New upgrades are refused afterwards.
func (a *API) Close() {
	a.mu.Lock()
	if !a.isClosed {
		a.isClosed = true
		close(a.closing)
	}
	a.mu.Unlock()
	a.conns.Wait()
}

// trackConn registers a websocket handler, or reports false once Close has run.
func (a *API) trackConn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.isClosed {
		return false
	}
	a.conns.Add(1)
	return true
}

// Routes mounts the API on r.
func (a *API) Routes(r chi.Router) {
	r.Get("/", a.indexHandler)
	r.Route("/api", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(a.requestTimeout))
		r.Post("/chat", a.chatHandler)
		r.Post("/symptoms", a.symptomsHandler)
		r.Get("/conditions", a.conditionsHandler)
		r.Get("/history/{user_id}", a.historyHandler)
		r.Post("/clear-session", a.clearSessionHandler)
		r.Get("/health", a.healthHandler)
	})
	r.Get("/ws/chat", a.wsChatHandler)
}

type chatRequest struct {
	Message   string `json:"message"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	triage.ChatResult
	UserID string `json:"user_id"`
	// Response duplicates Message under the name older clients read.
	Response string `json:"response"`
}

type symptomsRequest struct {
	Symptoms []string `json:"symptoms"`
}

type symptomsResponse struct {
	triage.Analysis
	Count int `json:"count"`
}

type conditionsResponse struct {
	Conditions []knowledge.ConditionRecord `json:"conditions"`
	Count      int                         `json:"count"`
}

type historyResponse struct {
	UserID  string           `json:"user_id"`
	History []history.Record `json:"history"`
	Count   int              `json:"count"`
}

type clearSessionRequest struct {
	SessionID string `json:"session_id"`
}

type clearSessionResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Cleared   bool   `json:"cleared"`
}

type healthResponse struct {
	Status           string `json:"status"`
	KnowledgeBase    string `json:"knowledge_base"`
	ConditionsLoaded int    `json:"conditions_loaded"`
	IntentProvider   string `json:"intent_provider"`
	HistoryBackend   string `json:"history_backend"`
	ActiveSessions   int    `json:"active_sessions"`
}

func (a *API) indexHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Triage assistant API is running",
		"version": a.version,
		"endpoints": map[string]string{
			"chat":       "/api/chat",
			"symptoms":   "/api/symptoms",
			"conditions": "/api/conditions",
			"history":    "/api/history/{user_id}",
			"health":     "/api/health",
			"websocket":  "/ws/chat",
		},
	})
}

func (a *API) chatHandler(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, userID, err := a.chat(r.Context(), req)
	if err != nil {
		a.writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{ChatResult: res, UserID: userID, Response: res.Message})
}

// chat runs one message through the engine and records it. History failures
// are logged only.
func (a *API) chat(ctx context.Context, req chatRequest) (triage.ChatResult, string, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = DefaultUserID
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = prefixed_uuid.NewSessionID()
	}

	res, err := a.engine.Process(ctx, sessionID, req.Message)
	if err != nil {
		return triage.ChatResult{}, userID, err
	}

	if err := a.history.Save(ctx, history.FromResult(userID, req.Message, res)); err != nil {
		logger.FromContext(ctx, a.log).Warn("Failed to record conversation history",
			logger.SessionIDField(sessionID),
			logger.ErrorField(err))
	}
	return res, userID, nil
}

func (a *API) writeChatError(w http.ResponseWriter, err error) {
	if errors.Is(err, triage.ErrEmptyMessage) || errors.Is(err, triage.ErrEmptySessionID) {
		middleware.WriteError(w, http.StatusBadRequest, middleware.CodeBadRequest, err.Error())
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		a.log.Warn("Chat message timed out", logger.ErrorField(err))
		middleware.WriteError(w, http.StatusGatewayTimeout, middleware.CodeInternalError, "request timed out")
		return
	}
	a.log.Error("Failed to process chat message", logger.ErrorField(err))
	middleware.WriteError(w, http.StatusInternalServerError, middleware.CodeInternalError, "failed to process message")
}

func (a *API) symptomsHandler(w http.ResponseWriter, r *http.Request) {
	var req symptomsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	analysis, err := a.engine.AnalyzeSymptoms(r.Context(), req.Symptoms)
	if errors.Is(err, triage.ErrNoSymptoms) {
		middleware.WriteError(w, http.StatusBadRequest, middleware.CodeBadRequest, err.Error())
		return
	}
	if err != nil {
		a.log.Error("Failed to analyze symptoms", logger.ErrorField(err))
		middleware.WriteError(w, http.StatusInternalServerError, middleware.CodeInternalError, "failed to analyze symptoms")
		return
	}
	writeJSON(w, http.StatusOK, symptomsResponse{Analysis: analysis, Count: len(analysis.MatchedConditions)})
}

func (a *API) conditionsHandler(w http.ResponseWriter, r *http.Request) {
	conditions := a.engine.ListConditions()
	writeJSON(w, http.StatusOK, conditionsResponse{Conditions: conditions, Count: len(conditions)})
}

func (a *API) historyHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	limit := a.historyLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			middleware.WriteError(w, http.StatusBadRequest, middleware.CodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, a.maxLimit)
	}

	records, err := a.history.ListByUser(r.Context(), userID, limit)
	if err != nil {
		a.log.Error("Failed to list history", logger.StringField("user_id", userID), logger.ErrorField(err))
		middleware.WriteError(w, http.StatusInternalServerError, middleware.CodeInternalError, "failed to retrieve history")
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, historyResponse{UserID: userID, History: records, Count: len(records)})
}

func (a *API) clearSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req clearSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		middleware.WriteError(w, http.StatusBadRequest, middleware.CodeBadRequest, triage.ErrEmptySessionID.Error())
		return
	}

	cleared := a.engine.ClearSession(req.SessionID)
	writeJSON(w, http.StatusOK, clearSessionResponse{
		Message:   "Session cleared successfully",
		SessionID: req.SessionID,
		Cleared:   cleared,
	})
}

func (a *API) healthHandler(w http.ResponseWriter, r *http.Request) {
	kb := a.engine.KnowledgeBase()
	state := "loaded"
	if kb.Len() == 0 {
		state = "empty"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:           "healthy",
		KnowledgeBase:    state,
		ConditionsLoaded: kb.Len(),
		IntentProvider:   a.engine.IntentProvider(),
		HistoryBackend:   a.historyBackend,
		ActiveSessions:   a.engine.Sessions().Len(),
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.CodeBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
