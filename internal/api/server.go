package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"airguard/internal/alerts"
	"airguard/internal/bandits"
	"airguard/internal/config"
	"airguard/internal/engine"
	"airguard/internal/metrics"
	"airguard/internal/model"
	"airguard/internal/tracks"
)

type EngineControl interface {
	Reset()
	UpdateConfig(cfg *config.Config)
	ReloadCatalog(ctx context.Context) error
	AddBandit(ctx context.Context, def bandits.Definition) (uuid.UUID, error)
	Catalog() *bandits.Catalog
	Contacts() []engine.Contact
	Contact(id uuid.UUID) (engine.Contact, bool)
	Started() time.Time
}

// HistogramSource loads stored waterfall rows for track detection.
type HistogramSource interface {
	LoadHistogram(ctx context.Context, bssid string, channel int, since time.Time) ([]model.HistogramRow, error)
}

type Server struct {
	cfg        *config.Manager
	metrics    *metrics.Store
	alerts     *alerts.Store
	engine     EngineControl
	histograms HistogramSource
	logger     *slog.Logger
	version    string
}

type statusResponse struct {
	Status     string               `json:"status"`
	Time       string               `json:"time"`
	Started    string               `json:"started"`
	Version    string               `json:"version"`
	ConfigPath string               `json:"config_path"`
	Trusted    config.TrustedConfig `json:"trusted"`
	Ingest     ingestStatus         `json:"ingest"`
	API        apiStatus            `json:"api"`
	Detection  detectionStatus      `json:"detection"`
}

type ingestStatus struct {
	REST      bool `json:"rest"`
	Kafka     bool `json:"kafka"`
	Pcap      bool `json:"pcap"`
	TCPStream bool `json:"tcp_stream"`
}

type apiStatus struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

type detectionStatus struct {
	Signatures     int    `json:"signatures"`
	Contacts       int    `json:"contacts"`
	ContactTimeout string `json:"contact_timeout"`
	AlertCooldown  string `json:"alert_cooldown"`
}

func NewServer(cfg *config.Manager, metricsStore *metrics.Store, alertsStore *alerts.Store, eng EngineControl, histograms HistogramSource, logger *slog.Logger, version string) *Server {
	return &Server{
		cfg:        cfg,
		metrics:    metricsStore,
		alerts:     alertsStore,
		engine:     eng,
		histograms: histograms,
		logger:     logger,
		version:    version,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/alerts", s.handleAlerts)
	mux.HandleFunc("/contacts", s.handleContacts)
	mux.HandleFunc("/contacts/", s.handleContacts)
	mux.HandleFunc("/tracks", s.handleTracks)
	mux.HandleFunc("/bandits", s.handleBandits)
	mux.HandleFunc("/config/trusted", s.handleTrusted)
	mux.HandleFunc("/admin/clear", s.handleClear)
	mux.HandleFunc("/admin/restart", s.handleRestart)
	mux.HandleFunc("/admin/reload", s.handleReload)
	if s.cfg.Get().Metrics.Prometheus {
		mux.Handle("/metrics/prometheus", metrics.Handler())
	}
	return mux
}

func Start(ctx context.Context, srv *Server) *http.Server {
	if srv == nil || srv.cfg == nil {
		return nil
	}
	logger := srv.logger
	current := srv.cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	httpServer := &http.Server{Addr: current.Addr, Handler: srv.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.cfg.Get()
	resp := statusResponse{
		Status:     "ok",
		Time:       time.Now().UTC().Format(time.RFC3339Nano),
		Version:    s.version,
		ConfigPath: s.cfg.Path(),
		Trusted:    cfg.Trusted,
		Ingest: ingestStatus{
			REST:      cfg.Ingest.REST.Enabled,
			Kafka:     cfg.Ingest.Kafka.Enabled,
			Pcap:      cfg.Ingest.Pcap.Enabled,
			TCPStream: cfg.Ingest.TCPStream.Enabled,
		},
		API: apiStatus{Enabled: cfg.API.Enabled, Addr: cfg.API.Addr},
		Detection: detectionStatus{
			ContactTimeout: cfg.Detection.ContactTimeout.String(),
			AlertCooldown:  cfg.Detection.AlertCooldown.String(),
		},
	}
	if s.engine != nil {
		resp.Started = s.engine.Started().Format(time.RFC3339Nano)
		resp.Detection.Signatures = s.engine.Catalog().Len()
		resp.Detection.Contacts = len(s.engine.Contacts())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	var f alerts.Filter
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Limit = n
		}
	}
	if v := q.Get("since"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.Since = ts
	}
	if v := q.Get("contact"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.ContactID = id
	}
	if v := q.Get("bandit"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.SignatureID = id
	}
	f.Transmitter = strings.ToLower(q.Get("transmitter"))
	list := s.alerts.List(f)
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": list,
		"count":  len(list),
	})
}

type contactResponse struct {
	engine.Contact
	Records []model.ContactRecord `json:"records"`
}

func (s *Server) withRecords(c engine.Contact) contactResponse {
	resp := contactResponse{Contact: c, Records: []model.ContactRecord{}}
	if s.metrics != nil {
		if recs, _, ok := s.metrics.Get(c.ID); ok {
			resp.Records = recs
		}
	}
	return resp
}

func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.engine == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	path := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/contacts"), "/")
	if path != "" {
		id, err := uuid.Parse(path)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		c, ok := s.engine.Contact(id)
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, s.withRecords(c))
		return
	}
	list := s.engine.Contacts()
	out := make([]contactResponse, 0, len(list))
	for _, c := range list {
		out = append(out, s.withRecords(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"contacts": out,
		"count":    len(out),
	})
}

// handleTracks runs track detection over the stored waterfall of one
// transmitter and channel. since is RFC 3339 or a duration back from now.
func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.histograms == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "storage disabled"})
		return
	}
	q := r.URL.Query()
	bssid := strings.ToLower(strings.TrimSpace(q.Get("bssid")))
	channel, err := strconv.Atoi(q.Get("channel"))
	if bssid == "" || err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	since := time.Now().UTC().Add(-24 * time.Hour)
	if v := q.Get("since"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			since = time.Now().UTC().Add(-d)
		} else if ts, err := time.Parse(time.RFC3339, v); err == nil {
			since = ts
		} else {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
	}
	rows, err := s.histograms.LoadHistogram(r.Context(), bssid, channel, since)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("histogram load failed", "bssid", bssid, "channel", channel, "err", err)
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	found := tracks.Detect(tracks.FromRows(rows), s.cfg.Get().Tracks)
	writeJSON(w, http.StatusOK, map[string]any{
		"bssid":   bssid,
		"channel": channel,
		"rows":    len(rows),
		"tracks":  found,
	})
}

type identifierView struct {
	Type          string         `json:"type"`
	Description   string         `json:"description"`
	Configuration map[string]any `json:"configuration"`
}

type banditView struct {
	UUID         uuid.UUID        `json:"uuid"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	IsCustom     bool             `json:"is_custom"`
	Fingerprints []string         `json:"fingerprints,omitempty"`
	Identifiers  []identifierView `json:"identifiers"`
}

func (s *Server) handleBandits(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	switch r.Method {
	case http.MethodGet:
		sigs := s.engine.Catalog().Signatures()
		out := make([]banditView, 0, len(sigs))
		for _, sig := range sigs {
			v := banditView{
				UUID:         sig.ID,
				Name:         sig.Name,
				Description:  sig.Description,
				IsCustom:     sig.IsCustom,
				Fingerprints: sig.Fingerprints,
				Identifiers:  []identifierView{},
			}
			for _, id := range sig.Identifiers {
				v.Identifiers = append(v.Identifiers, identifierView{
					Type:          string(id.Type()),
					Description:   id.Describe(),
					Configuration: id.Configuration(),
				})
			}
			out = append(out, v)
		}
		writeJSON(w, http.StatusOK, map[string]any{"bandits": out, "count": len(out)})
	case http.MethodPost:
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var def bandits.Definition
		if err := json.Unmarshal(body, &def); err != nil || strings.TrimSpace(def.Name) == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		id, err := s.engine.AddBandit(r.Context(), def)
		if err != nil {
			var me *bandits.MappingError
			if errors.As(err, &me) {
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
				return
			}
			if s.logger != nil {
				s.logger.Error("bandit not saved", "name", def.Name, "err", err)
			}
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"uuid": id})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleTrusted(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"trusted": s.cfg.Get().Trusted})
	case http.MethodPost:
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var tc config.TrustedConfig
		if err := json.Unmarshal(body, &tc); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		tc.Transmitters = sanitizeList(tc.Transmitters)
		tc.TapTransmitters = sanitizeTapLists(tc.TapTransmitters)
		next := *s.cfg.Get()
		next.Trusted = tc
		if err := s.cfg.Update(&next); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if s.engine != nil {
			s.engine.UpdateConfig(&next)
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, _ := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	var req struct {
		Target string `json:"target"`
	}
	_ = json.Unmarshal(body, &req)
	target := strings.ToLower(strings.TrimSpace(req.Target))
	if target == "" {
		target = "all"
	}
	clearAlerts := target == "all" || target == "alerts"
	clearRecords := target == "all" || target == "contacts"
	if !clearAlerts && !clearRecords {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if clearAlerts && s.alerts != nil {
		s.alerts.Clear()
	}
	if clearRecords && s.metrics != nil {
		s.metrics.Clear()
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.engine != nil {
		s.engine.Reset()
	}
	if s.metrics != nil {
		s.metrics.Clear()
	}
	if s.alerts != nil {
		s.alerts.Clear()
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg, err := s.cfg.Reload()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	if s.engine != nil {
		s.engine.UpdateConfig(cfg)
		if err := s.engine.ReloadCatalog(r.Context()); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func sanitizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

func sanitizeTapLists(values map[string][]string) map[string][]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string][]string, len(values))
	for tap, list := range values {
		tap = strings.TrimSpace(tap)
		if tap == "" {
			continue
		}
		clean := sanitizeList(list)
		if len(clean) == 0 {
			continue
		}
		out[tap] = clean
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
