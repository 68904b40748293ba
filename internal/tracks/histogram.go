package tracks

import (
	"sort"
	"time"

	"airguard/internal/model"
)

const (
	// Columns is the number of signal buckets, -100 dBm through -1 dBm.
	Columns = 100

	LowestSignal  = -100
	HighestSignal = -1
)

// Row is one time bucket of the histogram.
type Row struct {
	Timestamp time.Time
	Counts    [Columns]int
}

// Histogram is a time-ordered grid of frame counts per signal bucket.
type Histogram struct {
	rows  []Row
	index map[int64]int
}

func NewHistogram() *Histogram {
	return &Histogram{index: make(map[int64]int)}
}

// Column maps a signal in dBm to its column. Signals outside the range are
// clamped to the edge buckets.
func Column(signal int) int {
	if signal < LowestSignal {
		signal = LowestSignal
	}
	if signal > HighestSignal {
		signal = HighestSignal
	}
	return signal - LowestSignal
}

func SignalOf(column int) int {
	return column + LowestSignal
}

func (h *Histogram) row(ts time.Time) *Row {
	key := ts.UnixNano()
	if i, ok := h.index[key]; ok {
		return &h.rows[i]
	}
	h.rows = append(h.rows, Row{Timestamp: ts})
	h.index[key] = len(h.rows) - 1
	return &h.rows[len(h.rows)-1]
}

// Add counts frames received at signal during the bucket starting at ts.
func (h *Histogram) Add(ts time.Time, signal, count int) {
	r := h.row(ts)
	r.Counts[Column(signal)] += count
}

// SetRow replaces the counts of one time bucket. Extra columns are ignored.
func (h *Histogram) SetRow(ts time.Time, counts []int) {
	r := h.row(ts)
	r.Counts = [Columns]int{}
	copy(r.Counts[:], counts)
}

// Rows returns the time buckets in ascending order.
func (h *Histogram) Rows() []Row {
	out := make([]Row, len(h.rows))
	copy(out, h.rows)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func (h *Histogram) Len() int { return len(h.rows) }

// FromRows materializes stored rows. Rows sharing a timestamp are summed.
func FromRows(rows []model.HistogramRow) *Histogram {
	h := NewHistogram()
	for _, r := range rows {
		dst := h.row(r.CreatedAt)
		for i, c := range r.Counts {
			if i >= Columns {
				break
			}
			dst.Counts[i] += c
		}
	}
	return h
}
