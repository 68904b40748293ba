package tracks

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"time"
)

type Config struct {
	// FrameThreshold is the count a signal bucket must exceed to be active.
	FrameThreshold int `yaml:"frame_threshold" json:"frame_threshold"`
	// GapThreshold is the number of consecutive inactive buckets closing a track.
	GapThreshold int `yaml:"gap_threshold" json:"gap_threshold"`
	// CenterlineJitter is the largest centerline distance merged into one track.
	CenterlineJitter int `yaml:"centerline_jitter" json:"centerline_jitter"`
}

func DefaultConfig() Config {
	return Config{FrameThreshold: 20, GapThreshold: 9, CenterlineJitter: 8}
}

func (c Config) Validate() error {
	if c.FrameThreshold < 0 {
		return errors.New("frame_threshold must be >= 0")
	}
	if c.GapThreshold < 1 {
		return errors.New("gap_threshold must be >= 1")
	}
	if c.CenterlineJitter < 0 {
		return errors.New("centerline_jitter must be >= 0")
	}
	return nil
}

// PartialTrack is the active signal span of a single time bucket.
type PartialTrack struct {
	Timestamp time.Time
	MinSignal int
	MaxSignal int
}

// AverageSignal is the integer centerline of the span.
func (p PartialTrack) AverageSignal() int {
	return (p.MinSignal + p.MaxSignal) / 2
}

type Track struct {
	ID         string    `json:"id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Centerline int       `json:"centerline"`
	MinSignal  int       `json:"min_signal"`
	MaxSignal  int       `json:"max_signal"`
}

// TrackID derives a short stable id from the track start and centerline.
func TrackID(start time.Time, centerline int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%d", start.Unix(), centerline)))
	return hex.EncodeToString(sum[:])[:8]
}

// Detect finds presence tracks in the histogram.
func Detect(h *Histogram, cfg Config) []Track {
	if h == nil {
		return nil
	}
	if cfg.GapThreshold < 1 {
		cfg.GapThreshold = 1
	}
	var partials []PartialTrack
	for _, row := range h.Rows() {
		partials = append(partials, segmentRow(row, cfg)...)
	}
	return mergePartials(partials, cfg.CenterlineJitter)
}

func segmentRow(row Row, cfg Config) []PartialTrack {
	var (
		out        []PartialTrack
		active     bool
		start      int
		lastActive int
		gap        int
	)
	emit := func(upper int) {
		if upper > HighestSignal {
			upper = HighestSignal
		}
		out = append(out, PartialTrack{Timestamp: row.Timestamp, MinSignal: SignalOf(start), MaxSignal: upper})
		active = false
		gap = 0
	}
	for p := 0; p < Columns; p++ {
		if row.Counts[p] > cfg.FrameThreshold {
			if !active {
				active = true
				start = p
			}
			gap = 0
			lastActive = p
			continue
		}
		if !active {
			continue
		}
		gap++
		if gap == cfg.GapThreshold {
			// pull the boundary back out of the trailing gap
			emit(SignalOf(p) - cfg.GapThreshold + 2)
		}
	}
	if active {
		emit(SignalOf(lastActive) + 2)
	}
	return out
}

type group struct {
	centerline int
	track      Track
}

func mergePartials(partials []PartialTrack, jitter int) []Track {
	var groups []*group
	for _, p := range partials {
		c := p.AverageSignal()
		var g *group
		for _, existing := range groups {
			if abs(existing.centerline-c) <= jitter {
				g = existing
				break
			}
		}
		if g == nil {
			groups = append(groups, &group{centerline: c, track: Track{
				Start:      p.Timestamp,
				End:        p.Timestamp,
				Centerline: c,
				MinSignal:  p.MinSignal,
				MaxSignal:  p.MaxSignal,
			}})
			continue
		}
		t := &g.track
		if p.Timestamp.Before(t.Start) {
			t.Start = p.Timestamp
		}
		if p.Timestamp.After(t.End) {
			t.End = p.Timestamp
		}
		if p.MinSignal < t.MinSignal {
			t.MinSignal = p.MinSignal
		}
		if p.MaxSignal > t.MaxSignal {
			t.MaxSignal = p.MaxSignal
		}
	}

	out := make([]Track, 0, len(groups))
	for _, g := range groups {
		g.track.ID = TrackID(g.track.Start, g.track.Centerline)
		out = append(out, g.track)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].Centerline < out[j].Centerline
	})
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
