package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"airguard/internal/alerts"
	"airguard/internal/bandits"
	"airguard/internal/config"
	"airguard/internal/contacts"
	"airguard/internal/dot11"
	"airguard/internal/dot11/dot11test"
	"airguard/internal/model"
	"airguard/internal/tracks"
)

const (
	deautherMAC = "02:00:00:00:00:01"
	homeMAC     = "02:00:00:00:00:99"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Detection.AlertCooldown = 0
	cfg.Detection.DedupeWindow = 0
	cfg.Detection.ContactTimeout = time.Minute
	cfg.Ingest.Workers = 2
	return cfg
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newEngineForTest(t *testing.T, cfg *config.Config, c Components) (*Engine, *clock) {
	t.Helper()
	if c.Alerts == nil {
		c.Alerts = alerts.NewStore(100)
	}
	eng := NewEngine(cfg, nil, c)
	clk := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	eng.now = clk.now
	if err := eng.ReloadCatalog(context.Background()); err != nil {
		t.Fatalf("reload catalog: %v", err)
	}
	return eng, clk
}

func beacon(src, ssid string, signal int) dot11.Capture {
	return dot11.Capture{
		Type:    dot11.FrameTypeBeacon,
		Payload: dot11test.Beacon(src, dot11test.CapabilityESS, dot11test.SSID(ssid), dot11test.Rates(), dot11test.DSSet(6)),
		Meta:    dot11.Meta{AntennaSignal: signal, Frequency: 2437},
		Tap:     "north",
	}
}

func TestNormalBeaconNoAlert(t *testing.T) {
	eng, _ := newEngineForTest(t, testConfig(), Components{})
	for i := 0; i < 5; i++ {
		if got := eng.ProcessCapture(beacon(homeMAC, "home", -50)); len(got) > 0 {
			t.Fatalf("unexpected alert: %+v", got)
		}
	}
	if n := len(eng.Contacts()); n != 0 {
		t.Fatalf("expected no contacts, got %d", n)
	}
}

func TestBuiltinBanditOneAlertPerContact(t *testing.T) {
	eng, clk := newEngineForTest(t, testConfig(), Components{})
	var raised []model.Alert
	for i := 0; i < 3; i++ {
		raised = append(raised, eng.ProcessCapture(beacon(deautherMAC, "pwned", -40-i))...)
		clk.t = clk.t.Add(5 * time.Second)
	}
	if len(raised) != 1 {
		t.Fatalf("expected one alert, got %d", len(raised))
	}
	a := raised[0]
	if a.Signature != "ESP8266 Deauther" || a.AlertType != AlertTypeBanditContact {
		t.Fatalf("unexpected alert %+v", a)
	}
	if !hasRule(a.Rules, "SSID") {
		t.Fatalf("expected SSID rule, got %v", a.Rules)
	}
	if a.Transmitter != deautherMAC || a.FrameType != "beacon" || a.Tap != "north" {
		t.Fatalf("alert context mismatch %+v", a)
	}
	cs := eng.Contacts()
	if len(cs) != 1 {
		t.Fatalf("expected one contact, got %d", len(cs))
	}
	if cs[0].ID != a.ContactID || cs[0].Frames != 3 || cs[0].LastSignal != -42 {
		t.Fatalf("contact mismatch %+v", cs[0])
	}
	if got, ok := eng.Contact(a.ContactID); !ok || got.Transmitter != deautherMAC {
		t.Fatalf("contact lookup failed")
	}
	if eng.Alerts().Len() != 1 {
		t.Fatalf("expected alert in store")
	}
}

func TestContactTimeoutOpensNewContact(t *testing.T) {
	eng, clk := newEngineForTest(t, testConfig(), Components{})
	first := eng.ProcessCapture(beacon(deautherMAC, "pwned", -40))
	clk.t = clk.t.Add(2 * time.Minute)
	second := eng.ProcessCapture(beacon(deautherMAC, "pwned", -40))
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected an alert per contact, got %d and %d", len(first), len(second))
	}
	if first[0].ContactID == second[0].ContactID {
		t.Fatalf("expected a fresh contact id after the timeout")
	}
}

func TestCooldownSuppressesReopenedContact(t *testing.T) {
	cfg := testConfig()
	cfg.Detection.AlertCooldown = time.Hour
	eng, clk := newEngineForTest(t, cfg, Components{})
	if got := eng.ProcessCapture(beacon(deautherMAC, "pwned", -40)); len(got) != 1 {
		t.Fatalf("expected first alert")
	}
	clk.t = clk.t.Add(2 * time.Minute)
	if got := eng.ProcessCapture(beacon(deautherMAC, "pwned", -40)); len(got) != 0 {
		t.Fatalf("expected cooldown to hold the second alert")
	}
	// other transmitters are keyed separately
	if got := eng.ProcessCapture(beacon("02:00:00:00:00:02", "pwned", -40)); len(got) != 1 {
		t.Fatalf("expected alert for another transmitter")
	}
}

func TestDuplicateFromOverlappingTapDropped(t *testing.T) {
	cfg := testConfig()
	cfg.Detection.DedupeWindow = time.Second
	eng, clk := newEngineForTest(t, cfg, Components{})
	c := beacon(deautherMAC, "pwned", -40)
	eng.ProcessCapture(c)
	c.Tap = "south"
	eng.ProcessCapture(c)
	if cs := eng.Contacts(); len(cs) != 1 || cs[0].Frames != 1 {
		t.Fatalf("expected duplicate to be dropped, contacts %+v", cs)
	}
	clk.t = clk.t.Add(2 * time.Second)
	eng.ProcessCapture(c)
	if cs := eng.Contacts(); cs[0].Frames != 2 {
		t.Fatalf("expected frame after the dedupe window, got %d", cs[0].Frames)
	}
}

func TestDuplicateIgnoresPerTapRadiotap(t *testing.T) {
	cfg := testConfig()
	cfg.Detection.DedupeWindow = time.Second
	eng, _ := newEngineForTest(t, cfg, Components{})

	north := beacon(deautherMAC, "pwned", -40)
	north.Header = []byte{0x00, 0x00, 0x0d, 0x00, 0x28, 0x00, 0x00, 0x00, 0x85, 0x09, 0xa0, 0x00, 0xd8}
	south := beacon(deautherMAC, "pwned", -71)
	south.Tap = "south"
	south.Header = []byte{0x00, 0x00, 0x0d, 0x00, 0x28, 0x00, 0x00, 0x00, 0x85, 0x09, 0xa0, 0x00, 0xb9}

	eng.ProcessCapture(north)
	eng.ProcessCapture(south)
	cs := eng.Contacts()
	if len(cs) != 1 || cs[0].Frames != 1 {
		t.Fatalf("same frame from a second tap was not deduplicated, contacts %+v", cs)
	}
}

func TestTrustedTransmitters(t *testing.T) {
	cfg := testConfig()
	cfg.Trusted.Enabled = true
	cfg.Trusted.Transmitters = []string{"02-00-00-00-00-01"}
	cfg.Trusted.TapTransmitters = map[string][]string{"north": {"0200.0000.0002"}}
	eng, _ := newEngineForTest(t, cfg, Components{})

	if got := eng.ProcessCapture(beacon(deautherMAC, "pwned", -40)); len(got) != 0 {
		t.Fatalf("globally trusted transmitter raised an alert")
	}
	if got := eng.ProcessCapture(beacon("02:00:00:00:00:02", "pwned", -40)); len(got) != 0 {
		t.Fatalf("tap trusted transmitter raised an alert")
	}
	c := beacon("02:00:00:00:00:02", "pwned", -41)
	c.Tap = "south"
	if got := eng.ProcessCapture(c); len(got) != 1 {
		t.Fatalf("transmitter is only trusted on the north tap")
	}

	cfg2 := testConfig()
	eng.UpdateConfig(cfg2)
	if got := eng.ProcessCapture(beacon(deautherMAC, "pwned", -39)); len(got) != 1 {
		t.Fatalf("expected alert after trust list was disabled")
	}
}

func TestTrustedTransmittersWithAnonymizer(t *testing.T) {
	anon, err := dot11.NewKeyedAnonymizer([]byte("test-key"))
	if err != nil {
		t.Fatalf("anonymizer: %v", err)
	}
	cfg := testConfig()
	cfg.Trusted.Enabled = true
	cfg.Trusted.Transmitters = []string{deautherMAC}
	eng, _ := newEngineForTest(t, cfg, Components{Anonymizer: anon})
	if got := eng.ProcessCapture(beacon(deautherMAC, "pwned", -40)); len(got) != 0 {
		t.Fatalf("trusted transmitter should match after anonymization")
	}
}

func TestMalformedFramesDropped(t *testing.T) {
	eng, _ := newEngineForTest(t, testConfig(), Components{})
	bad := []dot11.Capture{
		{Type: dot11.FrameTypeBeacon, Payload: []byte{0x80, 0x00}},
		{Type: dot11.FrameTypeDeauthentication, Payload: make([]byte, 10)},
		{Type: dot11.FrameType(0x3f), Payload: make([]byte, 64)},
		{Type: dot11.FrameTypeBeacon},
	}
	for _, c := range bad {
		if got := eng.ProcessCapture(c); got != nil {
			t.Fatalf("expected drop for %v", c.Type)
		}
	}
}

func TestRecorderAndWaterfallReceiveSamples(t *testing.T) {
	rec := contacts.NewRecorder(time.Minute, nil)
	sink := &rowSink{}
	wf := tracks.NewCollector(time.Minute, sink, nil)
	eng, _ := newEngineForTest(t, testConfig(), Components{Recorder: rec, Waterfall: wf})

	eng.ProcessCapture(beacon(homeMAC, "home", -60))
	if rec.Pending() != 0 {
		t.Fatalf("frames without a bandit hit must not reach the recorder")
	}
	eng.ProcessCapture(beacon(deautherMAC, "pwned", -40))
	eng.ProcessCapture(beacon(deautherMAC, "pwned", -44))
	// one BSSID bucket and one SSID bucket for the contact
	if rec.Pending() != 2 {
		t.Fatalf("expected 2 recorder buckets, got %d", rec.Pending())
	}

	written, failed := wf.Flush(context.Background())
	if written != 2 || failed != 0 {
		t.Fatalf("expected 2 waterfall rows, got %d written %d failed", written, failed)
	}
	for _, row := range sink.rows {
		if row.Channel != 6 {
			t.Fatalf("expected channel derived from frequency, got %d", row.Channel)
		}
	}
}

type rowSink struct {
	rows []model.HistogramRow
}

func (s *rowSink) SaveHistogramRow(_ context.Context, row model.HistogramRow) error {
	s.rows = append(s.rows, row)
	return nil
}

func TestAddBanditWithoutStore(t *testing.T) {
	eng, _ := newEngineForTest(t, testConfig(), Components{})
	before := eng.Catalog().Len()
	id, err := eng.AddBandit(context.Background(), bandits.Definition{
		Name: "Lab rogue",
		Identifiers: []bandits.IdentifierDefinition{
			{Type: "SSID", Configuration: map[string]any{"ssids": []any{"evil"}}},
			{Type: "SIGNAL_STRENGTH", Configuration: map[string]any{"from": -50, "to": -10}},
		},
	})
	if err != nil {
		t.Fatalf("add bandit: %v", err)
	}
	if eng.Catalog().Len() != before+1 {
		t.Fatalf("expected catalog to grow")
	}
	got := eng.ProcessCapture(beacon(deautherMAC, "evil", -80))
	if len(got) != 1 || got[0].SignatureID != id || got[0].Severity != "critical" {
		t.Fatalf("expected custom bandit alert, got %+v", got)
	}

	if _, err := eng.AddBandit(context.Background(), bandits.Definition{
		Name:        "Broken",
		Identifiers: []bandits.IdentifierDefinition{{Type: "NOPE"}},
	}); err == nil {
		t.Fatalf("expected broken definition to be rejected")
	}
}

func TestReloadCatalogReadsCustomFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bandits.yaml")
	body := "- name: Office rogue\n  identifiers:\n    - type: SSID\n      configuration:\n        ssids: [\"corp-guest\"]\n" +
		"- name: Broken\n  identifiers:\n    - type: SIGNAL_STRENGTH\n      configuration:\n        from: 10\n        to: 0\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := testConfig()
	cfg.Detection.CustomBandits = path
	eng, _ := newEngineForTest(t, cfg, Components{})

	builtins, _ := bandits.Builtins()
	if eng.Catalog().Len() != len(builtins)+1 {
		t.Fatalf("expected builtins plus one custom bandit, got %d", eng.Catalog().Len())
	}
	if got := eng.ProcessCapture(beacon(deautherMAC, "corp-guest", -40)); len(got) != 1 {
		t.Fatalf("expected custom bandit alert")
	}
}

func TestStartDrainsChannel(t *testing.T) {
	eng, _ := newEngineForTest(t, testConfig(), Components{})
	in := make(chan dot11.Capture, 8)
	for i := 0; i < 4; i++ {
		in <- beacon(deautherMAC, "pwned", -40)
	}
	in <- beacon(homeMAC, "home", -40)
	close(in)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng.Start(ctx, in)
	eng.Wait()

	if n := eng.Alerts().Len(); n != 1 {
		t.Fatalf("expected one alert, got %d", n)
	}
	if cs := eng.Contacts(); len(cs) != 1 || cs[0].Frames != 4 {
		t.Fatalf("unexpected contacts %+v", cs)
	}
}

func TestResetClearsContacts(t *testing.T) {
	eng, _ := newEngineForTest(t, testConfig(), Components{})
	eng.ProcessCapture(beacon(deautherMAC, "pwned", -40))
	eng.Reset()
	if len(eng.Contacts()) != 0 {
		t.Fatalf("expected contacts to be cleared")
	}
	if got := eng.ProcessCapture(beacon(deautherMAC, "pwned", -40)); len(got) != 1 {
		t.Fatalf("expected a new contact after reset")
	}
}

func TestContactExpiry(t *testing.T) {
	tr := NewContactTracker()
	t0 := time.Now()
	tr.Observe(uuid.New(), "x", deautherMAC, -40, t0, time.Minute)
	if n := tr.Expire(t0.Add(30*time.Second), time.Minute); n != 0 {
		t.Fatalf("expired too early")
	}
	if n := tr.Expire(t0.Add(2*time.Minute), time.Minute); n != 1 {
		t.Fatalf("expected one expired contact, got %d", n)
	}
}

func TestNormalizeMAC(t *testing.T) {
	cases := map[string]string{
		"02:00:00:00:00:01": "02:00:00:00:00:01",
		"02-00-00-00-00-0A": "02:00:00:00:00:0a",
		"0200.0000.000b":    "02:00:00:00:00:0b",
		"020000000001":      "02:00:00:00:00:01",
		"02:00:00":          "",
		"zz:00:00:00:00:01": "",
		"":                  "",
	}
	for in, want := range cases {
		if got := normalizeMAC(in); got != want {
			t.Fatalf("normalizeMAC(%q) = %q, want %q", in, got, want)
		}
	}
}

func hasRule(rules []string, rule string) bool {
	for _, r := range rules {
		if r == rule {
			return true
		}
	}
	return false
}
