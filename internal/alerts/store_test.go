package alerts

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airguard/internal/model"
)

func TestStoreRingAndFilters(t *testing.T) {
	s := NewStore(3)
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	contact := uuid.New()
	for i := 0; i < 4; i++ {
		a := model.Alert{ID: uuid.New(), Timestamp: t0.Add(time.Duration(i) * time.Second), Transmitter: "aa"}
		if i%2 == 1 {
			a.ContactID = contact
			a.Transmitter = "bb"
		}
		s.Add(a)
	}
	require.Equal(t, 3, s.Len())

	all := s.List(Filter{})
	require.Len(t, all, 3)
	assert.Equal(t, t0.Add(time.Second), all[0].Timestamp, "oldest entry was evicted")

	latest := s.List(Filter{Limit: 1})
	require.Len(t, latest, 1)
	assert.Equal(t, t0.Add(3*time.Second), latest[0].Timestamp)

	assert.Len(t, s.List(Filter{ContactID: contact}), 2)
	assert.Len(t, s.List(Filter{Transmitter: "aa"}), 1)
	assert.Len(t, s.List(Filter{Since: t0.Add(2 * time.Second)}), 2)

	s.Clear()
	assert.Empty(t, s.List(Filter{}))
}
