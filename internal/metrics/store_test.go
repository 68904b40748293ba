package metrics

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airguard/internal/model"
)

func TestStoreKeepsLatestRecordPerValue(t *testing.T) {
	s := NewStore(10)
	id := uuid.New()
	require.NoError(t, s.SaveContactRecord(context.Background(), model.ContactRecord{ContactID: id, RecordType: model.RecordTypeSSID, RecordValue: "pwned", FrameCount: 1}))
	require.NoError(t, s.SaveContactRecord(context.Background(), model.ContactRecord{ContactID: id, RecordType: model.RecordTypeSSID, RecordValue: "pwned", FrameCount: 7}))
	s.Update(model.ContactRecord{ContactID: id, RecordType: model.RecordTypeBSSID, RecordValue: "02:00:00:00:00:01", FrameCount: 7})
	s.Update(model.ContactRecord{RecordType: model.RecordTypeSSID, RecordValue: "ignored"})

	recs, updated, ok := s.Get(id)
	require.True(t, ok)
	assert.False(t, updated.IsZero())
	require.Len(t, recs, 2)
	assert.Equal(t, model.RecordTypeBSSID, recs[0].RecordType)
	assert.Equal(t, 7, recs[1].FrameCount)
	assert.Equal(t, 1, s.Len())
}

func TestStoreEvictsBeyondLimit(t *testing.T) {
	s := NewStore(2)
	for i := 0; i < 3; i++ {
		s.Update(model.ContactRecord{ContactID: uuid.New(), RecordType: model.RecordTypeSSID, RecordValue: "x"})
	}
	assert.Equal(t, 2, s.Len())
	assert.Len(t, s.GetAll(), 2)

	s.Clear()
	assert.Zero(t, s.Len())
}
