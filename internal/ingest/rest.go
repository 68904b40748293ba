package ingest

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"airguard/internal/config"
	"airguard/internal/dot11"
	"airguard/internal/normalize"
)

type RESTServer struct {
	cfg    *config.Manager
	out    chan<- dot11.Capture
	logger *slog.Logger
}

func NewRESTServer(cfg *config.Manager, out chan<- dot11.Capture, logger *slog.Logger) *RESTServer {
	return &RESTServer{cfg: cfg, out: out, logger: logger}
}

func (s *RESTServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/captures", s.handleCaptures)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

func StartREST(ctx context.Context, cfg *config.Manager, out chan<- dot11.Capture, logger *slog.Logger) *http.Server {
	current := cfg.Get().Ingest.REST
	if !current.Enabled {
		if logger != nil {
			logger.Info("rest ingest disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("rest ingest enabled", "addr", current.Addr)
	}
	httpServer := &http.Server{
		Addr:              current.Addr,
		Handler:           NewRESTServer(cfg, out, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("rest ingest server error", "err", err)
			}
		}
	}()
	return httpServer
}

// handleCaptures accepts one capture message or an array of them. The tap
// defaults to the X-Tap header, then to "rest".
func (s *RESTServer) handleCaptures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 2<<20))
	if err != nil || len(body) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	msgs, err := normalize.DecodeMessages(body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	tap := r.Header.Get("X-Tap")
	if tap == "" {
		tap = "rest"
	}
	accepted, failed := 0, 0
	for _, msg := range msgs {
		c, err := normalize.Capture(msg, tap)
		if err != nil {
			failed++
			if s.logger != nil {
				s.logger.Warn("rest capture rejected", "err", err)
			}
			continue
		}
		if !SendNonBlocking(r.Context(), s.out, c, "rest", s.logger) {
			failed++
			continue
		}
		accepted++
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{
		"accepted": accepted,
		"failed":   failed,
	})
}
