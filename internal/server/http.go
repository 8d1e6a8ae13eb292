package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/coffersTech/logwindow/internal/capture"
	"github.com/coffersTech/logwindow/internal/engine"
	"github.com/coffersTech/logwindow/internal/model"
	"github.com/coffersTech/logwindow/internal/pkg/filterql"
)

// maxBodySize caps ingest and query request bodies.
const maxBodySize = 8 << 20

// Server exposes a LogQuery over HTTP.
type Server struct {
	query     *engine.LogQuery
	norm      *capture.Normalizer
	tokenHash []byte
	logger    *zap.Logger
	parser    fastjson.ParserPool

	mu     sync.Mutex
	srv    *http.Server
	closed bool
}

// New creates a Server. An empty tokenHash disables authentication;
// otherwise it must be a bcrypt hash of the accepted token.
func New(q *engine.LogQuery, norm *capture.Normalizer, tokenHash string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		query:  q,
		norm:   norm,
		logger: logger,
	}
	if tokenHash != "" {
		s.tokenHash = []byte(tokenHash)
	}
	return s
}

// Handler returns the routed, compressed API handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealth)

	mux.Handle("/api/logs", s.AuthMiddleware(http.HandlerFunc(s.handleLogs)))
	mux.Handle("/api/logs/query", s.AuthMiddleware(http.HandlerFunc(s.handleQuery)))
	mux.Handle("/api/ingest", s.AuthMiddleware(http.HandlerFunc(s.handleIngest)))
	mux.Handle("/api/histogram", s.AuthMiddleware(http.HandlerFunc(s.handleHistogram)))
	mux.Handle("/api/stats", s.AuthMiddleware(http.HandlerFunc(s.handleStats)))
	mux.Handle("/api/reset", s.AuthMiddleware(http.HandlerFunc(s.handleReset)))

	return gzhttp.GzipHandler(mux)
}

// Start runs the HTTP server until Shutdown is called. It returns nil
// immediately when Shutdown already ran.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(s.logger),
	}
	s.srv = srv
	s.mu.Unlock()

	s.logger.Info("management api listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.srv
	s.mu.Unlock()

	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

// AuthMiddleware checks the Authorization bearer token, or the token query
// parameter, against the configured bcrypt hash.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.tokenHash == nil {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		var token string
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		} else {
			token = r.URL.Query().Get("token")
		}

		if token == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="logwindow"`)
			http.Error(w, "Unauthorized: Missing token", http.StatusUnauthorized)
			return
		}
		if err := bcrypt.CompareHashAndPassword(s.tokenHash, []byte(token)); err != nil {
			s.logger.Debug("rejected token", zap.String("remote", r.RemoteAddr), zap.Error(err))
			w.Header().Set("WWW-Authenticate", `Bearer realm="logwindow"`)
			http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]any{
		"status":  "ok",
		"running": s.query.Running(),
	})
}

// handleLogs returns the most recent events, unfiltered.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	count := 0
	if v := r.URL.Query().Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid count %q", v), http.StatusBadRequest)
			return
		}
		count = n
	}

	s.writeJSON(w, s.query.GetLogResults(count))
}

// handleQuery accepts a filter as query parameters (GET) or as a JSON
// LogFilter body (POST).
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var (
		filter *model.LogFilter
		err    error
	)
	switch r.Method {
	case http.MethodGet:
		filter, err = filterFromQuery(r)
	case http.MethodPost:
		filter, err = s.filterFromBody(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.writeJSON(w, s.query.QueryLogResults(filter))
}

// handleIngest processes POST requests with one JSON record or an array
// of them.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		s.logger.Warn("failed to read ingest body", zap.Error(err))
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	p := s.parser.Get()
	defer s.parser.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	remote := remoteHost(r)
	accepted := 0
	processLog := func(val *fastjson.Value) {
		if val.Type() != fastjson.TypeObject {
			return
		}
		e := s.norm.FromJSON(val)
		if len(val.GetStringBytes("host")) == 0 && remote != "" {
			e.Host = remote
		}
		s.query.Append(e)
		accepted++
	}

	if v.Type() == fastjson.TypeArray {
		arr, _ := v.Array()
		for _, val := range arr {
			processLog(val)
		}
	} else {
		processLog(v)
	}
	s.logger.Debug("ingested records", zap.Int("accepted", accepted), zap.String("remote", remote))

	s.writeJSON(w, map[string]int{"accepted": accepted})
}

func (s *Server) handleHistogram(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	filter, err := filterFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	interval := engine.DefaultHistogramInterval
	if v := r.URL.Query().Get("interval"); v != "" {
		d, err := parseInterval(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		interval = d
	}

	s.writeJSON(w, s.query.Histogram(filter, interval))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.query.Stats())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.query.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("JSON encode error", zap.Error(err))
	}
}

// filterFromQuery builds a filter from the q parameter (filterql) and then
// applies the individual level, before, after, text and count parameters
// on top of it.
func filterFromQuery(r *http.Request) (*model.LogFilter, error) {
	q := r.URL.Query()

	filter := &model.LogFilter{}
	if raw := q.Get("q"); raw != "" {
		parsed, err := filterql.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid q: %w", err)
		}
		filter = parsed
	}

	for _, v := range q["level"] {
		for _, lvl := range strings.Split(v, ",") {
			if lvl = strings.TrimSpace(lvl); lvl != "" {
				filter.Levels = append(filter.Levels, strings.ToUpper(lvl))
			}
		}
	}
	if v := q.Get("before"); v != "" {
		ts, err := filterql.ParseTimestamp(v)
		if err != nil {
			return nil, fmt.Errorf("before: %w", err)
		}
		filter.BeforeTimestamp = &ts
	}
	if v := q.Get("after"); v != "" {
		ts, err := filterql.ParseTimestamp(v)
		if err != nil {
			return nil, fmt.Errorf("after: %w", err)
		}
		filter.AfterTimestamp = &ts
	}
	if v := q.Get("text"); v != "" {
		if filter.MatchesText != "" {
			filter.MatchesText += " " + v
		} else {
			filter.MatchesText = v
		}
	}
	if v := q.Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid count %q", v)
		}
		filter.Count = n
	}
	return filter, nil
}

// filterFromBody decodes a LogFilter JSON object. An empty body matches
// everything.
func (s *Server) filterFromBody(w http.ResponseWriter, r *http.Request) (*model.LogFilter, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return &model.LogFilter{}, nil
	}

	p := s.parser.Get()
	defer s.parser.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return decodeFilter(v)
}

func decodeFilter(v *fastjson.Value) (*model.LogFilter, error) {
	obj, err := v.Object()
	if err != nil {
		return nil, fmt.Errorf("filter must be a JSON object")
	}

	filter := &model.LogFilter{}
	var decodeErr error
	obj.Visit(func(key []byte, val *fastjson.Value) {
		if decodeErr != nil || val.Type() == fastjson.TypeNull {
			return
		}
		switch string(key) {
		case "levels":
			filter.Levels, decodeErr = decodeLevels(val)
		case "beforeTimestamp":
			ts, err := val.Int64()
			if err != nil {
				decodeErr = fmt.Errorf("beforeTimestamp: %w", err)
				return
			}
			filter.BeforeTimestamp = &ts
		case "afterTimestamp":
			ts, err := val.Int64()
			if err != nil {
				decodeErr = fmt.Errorf("afterTimestamp: %w", err)
				return
			}
			filter.AfterTimestamp = &ts
		case "matchesText":
			b, err := val.StringBytes()
			if err != nil {
				decodeErr = fmt.Errorf("matchesText: %w", err)
				return
			}
			filter.MatchesText = string(b)
		case "count":
			n, err := val.Int()
			if err != nil {
				decodeErr = fmt.Errorf("count: %w", err)
				return
			}
			filter.Count = n
		}
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	return filter, nil
}

// decodeLevels accepts an array of names or a comma separated string.
func decodeLevels(v *fastjson.Value) ([]string, error) {
	if v.Type() == fastjson.TypeString {
		var levels []string
		for _, l := range strings.Split(string(v.GetStringBytes()), ",") {
			if l = strings.TrimSpace(l); l != "" {
				levels = append(levels, strings.ToUpper(l))
			}
		}
		return levels, nil
	}

	arr, err := v.Array()
	if err != nil {
		return nil, fmt.Errorf("levels: %w", err)
	}
	levels := make([]string, 0, len(arr))
	for _, item := range arr {
		b, err := item.StringBytes()
		if err != nil {
			return nil, fmt.Errorf("levels: %w", err)
		}
		levels = append(levels, strings.ToUpper(string(b)))
	}
	return levels, nil
}

// parseInterval accepts milliseconds or a Go duration such as "5m".
func parseInterval(v string) (int64, error) {
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil && ms > 0 {
		return ms, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < time.Millisecond {
		return 0, fmt.Errorf("invalid interval %q", v)
	}
	return d.Milliseconds(), nil
}

// remoteHost strips the port from the request's remote address.
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
