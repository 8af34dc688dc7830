package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"setlist-service/internal/auth"
	"setlist-service/internal/setlist"
)

const defaultSendBuffer = 256

// Authorizer decides whether a connection may watch a setlist. *setlist.Service
// implements it.
type Authorizer interface {
	Viewer(ctx context.Context, cred setlist.Credentials, setlistID string) (setlist.Viewer, error)
}

type Config struct {
	// AllowedOrigin restricts browser origins; empty allows any.
	AllowedOrigin string
	SendBuffer    int
}

type Server struct {
	engine   *Engine
	authz    Authorizer
	upgrader websocket.Upgrader
	buffer   int
	log      *slog.Logger
}

// NewServer builds the websocket endpoint. With a nil Authorizer every connection is
// admitted and the identity in the query string is taken as given.
func NewServer(engine *Engine, authz Authorizer, cfg Config, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	s := &Server{
		engine: engine,
		authz:  authz,
		buffer: cfg.SendBuffer,
		log:    log,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return cfg.AllowedOrigin == "" || origin == "" || strings.EqualFold(origin, cfg.AllowedOrigin)
		},
	}
	return s
}

// member resolves who is connecting. Query parameters: userId, userName (default
// "Guest"), shareToken, token. With an authorizer, userName only names callers whose
// token carries no name of its own.
func (s *Server) member(r *http.Request, setlistID string) (Member, error) {
	q := r.URL.Query()
	name := strings.TrimSpace(q.Get("userName"))

	if s.authz == nil {
		m := Member{UserName: name}
		if uid := strings.TrimSpace(q.Get("userId")); uid != "" {
			m.UserID = &uid
			m.Authenticated = true
		}
		if m.UserName == "" {
			m.UserName = "Guest"
		}
		return m, nil
	}

	token := q.Get("token")
	if token == "" {
		token = auth.BearerToken(r)
	}
	cred := setlist.CredentialsFromRequest(r)
	cred.AccessToken = token
	cred.DisplayName = name

	v, err := s.authz.Viewer(r.Context(), cred, setlistID)
	if err != nil {
		return Member{}, err
	}
	m := Member{UserName: v.DisplayName, Authenticated: v.UserID != ""}
	if v.UserID != "" {
		uid := v.UserID
		m.UserID = &uid
	}
	return m, nil
}

func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	setlistID := chi.URLParam(r, "id")
	if setlistID == "" {
		writeError(w, http.StatusBadRequest, "missing setlist id")
		return
	}

	m, err := s.member(r, setlistID)
	switch {
	case errors.Is(err, setlist.ErrNotFound):
		writeError(w, http.StatusNotFound, "setlist not found")
		return
	case err != nil:
		s.log.Error("setlist-service: ws authorize", "setlist", setlistID, "err", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("setlist-service: ws upgrade", "err", err)
		return
	}

	client := newClient(uuid.NewString(), conn, s.buffer, s.log)
	sess := s.engine.Join(setlistID, client, m)

	go client.writePump()
	go client.readPump(sess)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": msg,
	})
}
