// Package monitor serves the operator endpoints: liveness, readiness,
// Prometheus metrics and (opt-in) pprof.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	rtsup "gamenewsbot/internal/runtime/supervisor"
	logx "gamenewsbot/pkg/logx"
)

const readyTimeout = 2 * time.Second

type Config struct {
	Addr  string
	Pprof bool

	ReadTimeout time.Duration
	IdleTimeout time.Duration
}

// Probes are the checks behind the endpoints. Any of them may be nil.
type Probes struct {
	// Live fails when a long-running component is gone for good.
	Live func() error
	// Ready fails while a dependency (the store) is unreachable.
	Ready func(ctx context.Context) error
	// Status is rendered as the JSON body of /healthz.
	Status func() any
	// Metrics serves /metrics.
	Metrics http.Handler
}

type Service struct {
	mu     sync.Mutex
	cfg    Config
	probes Probes
	log    logx.Logger

	srv  *http.Server
	addr string
	sup  *rtsup.Supervisor
}

func New(cfg Config, probes Probes, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:9090"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = time.Minute
	}
	return &Service{cfg: cfg, probes: probes, log: log}
}

// Handler builds the router. pprof is mounted only when enabled and bound
// to a loopback address.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	if s.probes.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.probes.Metrics)
	}
	if s.cfg.Pprof {
		if isLoopbackAddr(s.cfg.Addr) {
			r.Mount("/debug", middleware.Profiler())
		} else {
			s.log.Warn("pprof not mounted: monitor addr is not loopback", logx.String("addr", s.cfg.Addr))
		}
	}
	return r
}

func (s *Service) healthz(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	code := http.StatusOK
	if s.probes.Live != nil {
		if err := s.probes.Live(); err != nil {
			body["status"] = "unhealthy"
			body["error"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	if s.probes.Status != nil {
		body["detail"] = s.probes.Status()
	}
	writeJSON(w, code, body)
}

func (s *Service) readyz(w http.ResponseWriter, r *http.Request) {
	if s.probes.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.probes.Ready(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Start listens on the configured address and serves under a restarting
// supervisor. A bind failure is returned so the caller can log it; the app
// keeps running without the endpoint.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}
	s.srv = srv
	s.addr = ln.Addr().String()
	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log.With(logx.String("comp", "monitor"))),
		rtsup.WithCancelOnError(false),
	)

	first := ln
	s.sup.GoRestart("http.serve", func(c context.Context) error {
		l := first
		first = nil
		if l == nil {
			var lerr error
			if l, lerr = net.Listen("tcp", s.cfg.Addr); lerr != nil {
				return lerr
			}
		}
		go func() {
			<-c.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			_ = srv.Shutdown(sctx)
			cancel()
		}()
		err := srv.Serve(l)
		if c.Err() != nil || errors.Is(err, http.ErrServerClosed) {
			return context.Canceled
		}
		return err
	}, rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second))

	s.log.Info("monitor listening", logx.String("addr", s.addr), logx.Bool("pprof", s.cfg.Pprof))
	return nil
}

// Addr is the bound address once started.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	srv, sup := s.srv, s.sup
	s.srv, s.sup = nil, nil
	s.mu.Unlock()
	if srv == nil {
		return
	}
	_ = srv.Shutdown(ctx)
	sup.Cancel()
	_ = sup.Wait(ctx)
	s.log.Info("monitor stopped")
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
