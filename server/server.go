// Package server exposes the chat loop over HTTP as a newline-delimited JSON stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/skosovsky/glmtools/agent"
	"github.com/skosovsky/glmtools/conversation"
	"github.com/skosovsky/glmtools/generate"
)

// Response codes.
const (
	CodeOK             = 0
	CodeEmptyPrompt    = -1
	CodeContextOverrun = -2
	CodeModelError     = -3
	CodeToolLimit      = -4
)

// DefaultMaxSessions bounds the number of conversations kept in memory.
const DefaultMaxSessions = 1024

// Segment positions in the stream.
const (
	SegmentStart    = "start"
	SegmentContinue = "continue"
	SegmentEnd      = "end"
)

// ChatRequest is the body of POST /meet/chat.
type ChatRequest struct {
	Prompt string `json:"prompt"`
	TalkID string `json:"talkId"`
	// Mode selects "chat" (default) or "tool".
	Mode string `json:"mode,omitempty"`
}

// Response is one line of the response stream.
type Response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data Data   `json:"data"`
}

// Data identifies the conversation and carries one answer segment.
type Data struct {
	TalkID   string  `json:"talkId"`
	Question string  `json:"question"`
	Answer   *Answer `json:"answer,omitempty"`
}

// Answer is one streamed piece of the reply.
type Answer struct {
	SegID    int    `json:"segId"`
	Text     string `json:"text"`
	StartEnd string `json:"startEnd"`
}

// Server serves /meet/chat. Each talkId owns a conversation history; turns within a session are
// serialized while different sessions stream in parallel. Once more than maxSessions
// conversations exist, the least recently used idle one is forgotten.
type Server struct {
	agent       *agent.Agent
	params      generate.Params
	logger      *slog.Logger
	maxSessions int
	mu          sync.Mutex
	sessions    map[string]*session
	tick        uint64
	srv         *http.Server
}

type session struct {
	history *conversation.History
	// lock holds one token while a turn is running.
	lock chan struct{}
	// refs counts requests holding the session; guarded by Server.mu.
	refs int
	used uint64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxSessions bounds the number of conversations kept. Default: DefaultMaxSessions.
func WithMaxSessions(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxSessions = n
		}
	}
}

// New creates a Server answering with a using params for every turn.
func New(a *agent.Agent, params generate.Params, opts ...Option) *Server {
	s := &Server{
		agent:       a,
		params:      params,
		logger:      slog.Default(),
		maxSessions: DefaultMaxSessions,
		sessions:    make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /meet/chat", s.handleChat)
	mux.HandleFunc("DELETE /meet/chat/{talkId}", s.handleReset)
	return mux
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down gracefully, waiting up to
// shutdownTimeout for running streams.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln, shutdownTimeout)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration) error {
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", ln.Addr().String())
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	s.logger.Info("server shutting down")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// History returns a copy of the entries recorded for talkID.
func (s *Server) History(talkID string) []conversation.Entry {
	s.mu.Lock()
	sess, ok := s.sessions[talkID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return sess.history.Entries()
}

// Reset forgets the conversation for talkID. It reports whether the session existed.
func (s *Server) Reset(talkID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[talkID]
	delete(s.sessions, talkID)
	return ok
}

// acquire returns the session for talkID, creating it if needed. The caller must release it.
func (s *Server) acquire(talkID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[talkID]
	if !ok {
		s.evict()
		sess = &session{history: conversation.NewHistory(), lock: make(chan struct{}, 1)}
		s.sessions[talkID] = sess
	}
	s.tick++
	sess.used = s.tick
	sess.refs++
	return sess
}

func (s *Server) release(sess *session) {
	s.mu.Lock()
	sess.refs--
	s.mu.Unlock()
}

// evict drops least recently used idle sessions until there is room for one more.
// Sessions with requests in flight are never dropped. Callers hold s.mu.
func (s *Server) evict() {
	for len(s.sessions) >= s.maxSessions {
		var (
			oldest string
			found  bool
			used   uint64
		)
		for id, sess := range s.sessions {
			if sess.refs > 0 {
				continue
			}
			if !found || sess.used < used {
				oldest, used, found = id, sess.used, true
			}
		}
		if !found {
			s.logger.Warn("session limit exceeded, all sessions busy", "sessions", len(s.sessions))
			return
		}
		delete(s.sessions, oldest)
		s.logger.Info("session evicted", "talk_id", oldest)
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	talkID := r.PathValue("talkId")
	if !s.Reset(talkID) {
		http.Error(w, "unknown talkId", http.StatusNotFound)
		return
	}
	s.logger.Info("session reset", "talk_id", talkID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	mode, err := agent.ParseMode(req.Mode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson; charset=utf-8")
	out := newEncoder(w, req)
	if strings.TrimSpace(req.Prompt) == "" {
		_ = out.write(Response{Code: CodeEmptyPrompt, Msg: "prompt is null", Data: out.data(nil)})
		return
	}

	sess := s.acquire(req.TalkID)
	defer s.release(sess)
	select {
	case sess.lock <- struct{}{}:
	case <-r.Context().Done():
		return
	}
	defer func() { <-sess.lock }()

	log := s.logger.With("talk_id", req.TalkID, "mode", mode.String())
	log.Info("chat started", "prompt", req.Prompt)
	err = s.agent.Ask(r.Context(), mode, sess.history, req.Prompt, s.params, out.event)
	switch {
	case out.failed:
		log.Warn("chat ended", "error", err)
	case errors.Is(err, agent.ErrMaxRounds):
		log.Warn("chat stopped", "error", err)
		_ = out.segment(CodeToolLimit, "tool round limit", err.Error(), SegmentEnd)
	case err != nil:
		log.Error("chat failed", "error", err)
		if r.Context().Err() == nil {
			_ = out.segment(CodeModelError, "model error", err.Error(), SegmentEnd)
		}
	default:
		_ = out.segment(CodeOK, "done", "", SegmentEnd)
		log.Info("chat finished", "segments", out.seg)
	}
}

// encoder writes response lines and flushes after each one.
type encoder struct {
	w       http.ResponseWriter
	enc     *json.Encoder
	flusher http.Flusher
	req     ChatRequest
	seg     int
	// failed is set once a terminal error segment was written.
	failed bool
}

func newEncoder(w http.ResponseWriter, req ChatRequest) *encoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	f, _ := w.(http.Flusher)
	return &encoder{w: w, enc: enc, flusher: f, req: req}
}

func (e *encoder) data(answer *Answer) Data {
	return Data{TalkID: e.req.TalkID, Question: e.req.Prompt, Answer: answer}
}

func (e *encoder) write(resp Response) error {
	if err := e.enc.Encode(resp); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

func (e *encoder) segment(code int, msg, text, position string) error {
	if position != SegmentEnd {
		if e.seg == 0 {
			position = SegmentStart
		} else {
			position = SegmentContinue
		}
	}
	resp := Response{Code: code, Msg: msg, Data: e.data(&Answer{SegID: e.seg, Text: text, StartEnd: position})}
	e.seg++
	return e.write(resp)
}

// event turns agent events into stream segments. Turn failures end the stream with an error code.
func (e *encoder) event(ev agent.Event) error {
	if ev.Kind != agent.EventToken {
		return nil
	}
	u := ev.Update
	if !u.Final {
		return e.segment(CodeOK, "generating", u.Delta, "")
	}
	switch u.State {
	case generate.StateTruncatedInput:
		e.failed = true
		return e.segment(CodeContextOverrun, "context overflow", u.Message, SegmentEnd)
	case generate.StateError:
		e.failed = true
		return e.segment(CodeModelError, "model error", u.Message, SegmentEnd)
	}
	return nil
}
