package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lewisedginton/triage_assistant/internal/middleware"
	"github.com/lewisedginton/triage_assistant/internal/triage"
	"github.com/lewisedginton/triage_assistant/pkg/logger"
	"github.com/lewisedginton/triage_assistant/pkg/prefixed_uuid"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

type wsFrame struct {
	Message string `json:"message"`
}

// wsChatHandler upgrades to a websocket and answers every {message} frame
// with a ChatResult. All frames on one connection share a session.
func (a *API) wsChatHandler(w http.ResponseWriter, r *http.Request) {
	if !a.trackConn() {
		middleware.WriteError(w, http.StatusServiceUnavailable, middleware.CodeInternalError, "server is shutting down")
		return
	}
	defer a.conns.Done()

	upgrader := websocket.Upgrader{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		CheckOrigin:      a.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		a.log.Warn("Websocket upgrade failed", logger.ErrorField(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(a.maxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = prefixed_uuid.NewSessionID()
	}
	userID := r.URL.Query().Get("user_id")

	// The hijacked connection is not cancelled with the request; Close and
	// the keepalive loop end it instead.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	log := logger.FromContext(ctx, a.log).WithFields(logger.SessionIDField(sessionID))
	log.Info("Websocket chat opened")

	go a.keepalive(ctx, cancel, conn)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("Websocket read ended", logger.ErrorField(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		if msgType != websocket.TextMessage {
			continue
		}

		reply := a.handleFrame(ctx, sessionID, userID, data)
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(reply); err != nil {
			log.Warn("Websocket write failed", logger.ErrorField(err))
			return
		}
	}
}

// keepalive pings the peer until ctx ends. When the API closes it sends a
// going-away frame and closes the connection, which unblocks the reader.
func (a *API) keepalive(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.closing:
			cancel()
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
			_ = conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				cancel()
				_ = conn.Close()
				return
			}
		}
	}
}

func (a *API) handleFrame(ctx context.Context, sessionID, userID string, data []byte) interface{} {
	var frame wsFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return middleware.ErrorResponse{Error: "invalid JSON frame", Code: middleware.CodeBadRequest}
	}

	ctx, cancel := context.WithTimeout(ctx, a.requestTimeout)
	defer cancel()

	res, _, err := a.chat(ctx, chatRequest{Message: frame.Message, UserID: userID, SessionID: sessionID})
	switch {
	case err == nil:
		return res
	case errors.Is(err, triage.ErrEmptyMessage):
		return middleware.ErrorResponse{Error: err.Error(), Code: middleware.CodeBadRequest}
	case errors.Is(err, context.DeadlineExceeded):
		a.log.Warn("Websocket message timed out", logger.SessionIDField(sessionID), logger.ErrorField(err))
		return middleware.ErrorResponse{Error: "request timed out", Code: middleware.CodeInternalError}
	default:
		a.log.Error("Failed to process websocket message", logger.SessionIDField(sessionID), logger.ErrorField(err))
		return middleware.ErrorResponse{Error: "failed to process message", Code: middleware.CodeInternalError}
	}
}

// checkOrigin accepts same-host requests, requests without an Origin header
// and origins matching one of the configured patterns.
func (a *API) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == r.Host {
		return true
	}
	for _, pattern := range a.origins {
		if pattern == "*" || pattern == origin {
			return true
		}
		if ok, _ := path.Match(pattern, origin); ok {
			return true
		}
	}
	return false
}
