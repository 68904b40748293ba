package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"airguard/internal/alerts"
	"airguard/internal/bandits"
	"airguard/internal/config"
	"airguard/internal/contacts"
	"airguard/internal/dot11"
	"airguard/internal/metrics"
	"airguard/internal/model"
	"airguard/internal/storage"
	"airguard/internal/tracks"
)

const AlertTypeBanditContact = "bandit_contact"

// Components are the collaborators the engine feeds. Only Decoder and Alerts
// are required; NewEngine fills them in when nil.
type Components struct {
	Decoder    *dot11.Decoder
	Anonymizer dot11.Anonymizer
	Alerts     *alerts.Store
	Store      storage.Store
	Recorder   *contacts.Recorder
	Waterfall  *tracks.Collector
}

type Engine struct {
	logger    *slog.Logger
	decoder   *dot11.Decoder
	anon      dot11.Anonymizer
	alerts    *alerts.Store
	store     storage.Store
	recorder  *contacts.Recorder
	waterfall *tracks.Collector

	cfg     atomic.Value
	trusted atomic.Value
	catalog atomic.Value

	mu     sync.Mutex
	custom []bandits.Definition

	contacts *ContactTracker
	cooldown *Cooldown
	deDupe   *DedupeCache
	workers  sync.WaitGroup
	started  time.Time
	now      func() time.Time
}

func NewEngine(cfg *config.Config, logger *slog.Logger, c Components) *Engine {
	if c.Decoder == nil {
		c.Decoder = dot11.NewDecoder(c.Anonymizer)
	}
	if c.Alerts == nil {
		c.Alerts = alerts.NewStore(cfg.Alerts.StoreLimit)
	}
	e := &Engine{
		logger:    logger,
		decoder:   c.Decoder,
		anon:      c.Anonymizer,
		alerts:    c.Alerts,
		store:     c.Store,
		recorder:  c.Recorder,
		waterfall: c.Waterfall,
		contacts:  NewContactTracker(),
		cooldown:  NewCooldown(),
		deDupe:    NewDedupeCache(),
		started:   time.Now().UTC(),
		now:       time.Now,
	}
	e.cfg.Store(cfg)
	e.trusted.Store(buildTrustedSet(cfg, c.Anonymizer))
	e.catalog.Store(bandits.NewCatalog())
	return e
}

func (e *Engine) UpdateConfig(cfg *config.Config) {
	e.cfg.Store(cfg)
	e.trusted.Store(buildTrustedSet(cfg, e.anon))
}

func (e *Engine) config() *config.Config {
	if v := e.cfg.Load(); v != nil {
		return v.(*config.Config)
	}
	return config.DefaultConfig()
}

func (e *Engine) Catalog() *bandits.Catalog {
	return e.catalog.Load().(*bandits.Catalog)
}

func (e *Engine) trustedSet() *TrustedSet {
	if v := e.trusted.Load(); v != nil {
		return v.(*TrustedSet)
	}
	return nil
}

func (e *Engine) Started() time.Time { return e.started }

// Start runs ingest.workers goroutines consuming in until ctx is done or in is
// closed, plus a janitor expiring silent contacts.
func (e *Engine) Start(ctx context.Context, in <-chan dot11.Capture) {
	n := e.config().Ingest.Workers
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		e.workers.Add(1)
		go func() {
			defer e.workers.Done()
			for {
				select {
				case c, ok := <-in:
					if !ok {
						return
					}
					e.ProcessCapture(c)
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go e.expireLoop(ctx)
}

// Wait blocks until the workers started by Start have returned.
func (e *Engine) Wait() { e.workers.Wait() }

func (e *Engine) expireLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := e.contacts.Expire(e.now().UTC(), e.config().Detection.ContactTimeout); n > 0 && e.logger != nil {
				e.logger.Debug("contacts expired", "count", n)
			}
		}
	}
}

// ProcessCapture runs one capture through the pipeline and returns the alerts
// it raised. Frames that fail to decode are logged, counted and dropped.
func (e *Engine) ProcessCapture(c dot11.Capture) []model.Alert {
	cfg := e.config()
	now := e.now().UTC()

	if e.isDuplicate(c, cfg.Detection.DedupeWindow, now) {
		metrics.FramesDropped.WithLabelValues("duplicate").Inc()
		return nil
	}

	f, err := e.decoder.DecodeCapture(c)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, dot11.ErrUnknownFrameType) {
			reason = "unknown_type"
		}
		metrics.FramesDropped.WithLabelValues(reason).Inc()
		if e.logger != nil {
			e.logger.Debug("frame dropped", "tap", c.Tap, "frame_type", c.Type.String(), "reason", reason, "error", err)
		}
		return nil
	}
	metrics.FramesDecoded.WithLabelValues(f.Type().String()).Inc()

	meta := f.Meta()
	if b, ok := f.(*dot11.Beacon); ok && cfg.Waterfall.Enabled && e.waterfall != nil {
		e.waterfall.RecordSignal(b.BSSID, meta.Channel, meta.AntennaSignal)
	}

	transmitter := dot11.TransmitterOf(f)
	if e.trustedSet().IsTrusted(c.Tap, transmitter) {
		metrics.FramesDropped.WithLabelValues("trusted").Inc()
		return nil
	}

	hits := e.Catalog().Evaluate(f)
	if len(hits) == 0 {
		return nil
	}
	ssid, _ := dot11.SSIDOf(f)

	var out []model.Alert
	for _, hit := range hits {
		sig := hit.Signature
		metrics.BanditHits.WithLabelValues(sig.Name).Inc()

		contactID, opened := e.contacts.Observe(sig.ID, sig.Name, transmitter, meta.AntennaSignal, now, cfg.Detection.ContactTimeout)
		if e.recorder != nil {
			e.recorder.RecordFrame(contactID, meta.AntennaSignal, transmitter, ssid)
		}
		if !opened {
			continue
		}
		metrics.ContactsOpened.Inc()
		if !e.cooldown.Allow(sig.ID.String()+"|"+transmitter, now, cfg.Detection.AlertCooldown) {
			continue
		}
		alert := newContactAlert(now, c.Tap, f, hit, contactID, transmitter, ssid)
		e.raise(alert)
		out = append(out, alert)
	}
	return out
}

func newContactAlert(now time.Time, tap string, f dot11.Frame, hit bandits.Hit, contactID uuid.UUID, transmitter string, ssid *string) model.Alert {
	severity := "high"
	if hit.Signature.IsCustom {
		severity = "critical"
	}
	ctx := map[string]string{
		"identifier": hit.Identifier.Describe(),
		"engine":     "airguard",
	}
	if ssid != nil {
		ctx["ssid"] = *ssid
	}
	return model.Alert{
		ID:          uuid.New(),
		Timestamp:   now,
		Severity:    severity,
		AlertType:   AlertTypeBanditContact,
		SignatureID: hit.Signature.ID,
		Signature:   hit.Signature.Name,
		ContactID:   contactID,
		Transmitter: transmitter,
		FrameType:   f.Type().String(),
		Tap:         tap,
		Signal:      f.Meta().AntennaSignal,
		Rules:       []string{string(hit.Identifier.Type())},
		Context:     ctx,
	}
}

func (e *Engine) raise(alert model.Alert) {
	e.alerts.Add(alert)
	metrics.AlertsRaised.WithLabelValues(alert.Severity).Inc()
	if e.logger != nil {
		e.logger.Warn("bandit contact",
			"bandit", alert.Signature,
			"contact_uuid", alert.ContactID,
			"transmitter", alert.Transmitter,
			"frame_type", alert.FrameType,
			"tap", alert.Tap,
			"signal", alert.Signal,
			"rules", alert.Rules,
		)
	}
	if e.store != nil {
		if err := e.store.SaveAlert(context.Background(), alert); err != nil && e.logger != nil {
			e.logger.Error("alert persistence failed", "alert_id", alert.ID, "error", err)
		}
	}
}

func (e *Engine) isDuplicate(c dot11.Capture, window time.Duration, now time.Time) bool {
	if window <= 0 {
		return false
	}
	return e.deDupe.Seen(hashCapture(c), now, window)
}

// ReloadCatalog rebuilds the bandit catalog from the built-in definitions,
// the custom bandit file, bandits added at runtime and the store. Later
// sources replace earlier definitions with the same uuid. Broken definitions
// are dropped individually.
func (e *Engine) ReloadCatalog(ctx context.Context) error {
	defs, err := bandits.Builtins()
	if err != nil {
		return err
	}
	cfg := e.config()
	if path := cfg.Detection.CustomBandits; path != "" {
		custom, err := bandits.LoadFile(path)
		if err != nil {
			if e.logger != nil {
				e.logger.Error("custom bandits not loaded", "path", path, "error", err)
			}
		} else {
			defs = append(defs, custom...)
		}
	}
	e.mu.Lock()
	defs = append(defs, e.custom...)
	e.mu.Unlock()
	if e.store != nil {
		rows, err := e.store.LoadBandits(ctx)
		if err != nil {
			if e.logger != nil {
				e.logger.Error("stored bandits not loaded", "error", err)
			}
		} else {
			defs = append(defs, bandits.FromRows(rows)...)
		}
	}

	catalog, errs := bandits.BuildCatalog(dedupeDefinitions(defs), e.logger)
	e.catalog.Store(catalog)
	metrics.CatalogSignatures.Set(float64(catalog.Len()))
	if e.logger != nil {
		e.logger.Info("bandit catalog loaded", "signatures", catalog.Len(), "dropped", len(errs))
	}
	return nil
}

func dedupeDefinitions(defs []bandits.Definition) []bandits.Definition {
	index := make(map[uuid.UUID]int, len(defs))
	out := make([]bandits.Definition, 0, len(defs))
	for _, d := range defs {
		if i, ok := index[d.UUID]; ok {
			out[i] = d
			continue
		}
		index[d.UUID] = len(out)
		out = append(out, d)
	}
	return out
}

// AddBandit validates and stores a custom bandit, then reloads the catalog.
// Without a store the definition lives until the process exits.
func (e *Engine) AddBandit(ctx context.Context, def bandits.Definition) (uuid.UUID, error) {
	def.IsCustom = true
	if _, err := def.Signature(); err != nil {
		return uuid.Nil, err
	}
	row := bandits.ToRow(def)
	if e.store != nil {
		if err := e.store.SaveBandit(ctx, row); err != nil {
			return uuid.Nil, err
		}
	} else {
		e.mu.Lock()
		e.custom = append(e.custom, bandits.FromRows([]model.BanditRow{row})...)
		e.mu.Unlock()
	}
	return row.UUID, e.ReloadCatalog(ctx)
}

func (e *Engine) Contacts() []Contact {
	return e.contacts.List()
}

func (e *Engine) Contact(id uuid.UUID) (Contact, bool) {
	return e.contacts.Get(id)
}

func (e *Engine) Alerts() *alerts.Store {
	return e.alerts
}

func (e *Engine) Reset() {
	e.contacts.Reset()
	e.cooldown.Reset()
	e.deDupe.Reset()
}
