package sync

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/annel0/related-world/internal/eventbus"
	"github.com/annel0/related-world/internal/replication"
	"github.com/annel0/related-world/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressors_RoundTrip(t *testing.T) {
	changes := []Change{{Data: []byte(`{"a":1}`)}, {Data: []byte{}}, {Data: []byte("hello world hello world")}}

	for name, c := range map[string]DeltaCompressor{
		"passthrough": NewPassthroughCompressor(),
		"gzip":        NewGzipCompressor(),
	} {
		t.Run(name, func(t *testing.T) {
			payload, err := c.Compress(changes)
			require.NoError(t, err)

			decoded, err := c.Decompress(payload)
			require.NoError(t, err)
			require.Len(t, decoded, len(changes))
			for i := range changes {
				assert.Equal(t, string(changes[i].Data), string(decoded[i].Data))
			}
		})
	}
}

func TestPassthrough_TruncatedFrame(t *testing.T) {
	payload, err := NewPassthroughCompressor().Compress([]Change{{Data: []byte("abcdef")}})
	require.NoError(t, err)

	_, err = NewPassthroughCompressor().Decompress(payload[:len(payload)-2])
	assert.Error(t, err)
	_, err = NewPassthroughCompressor().Decompress(payload[:2])
	assert.Error(t, err)
}

// captureBus синхронно записывает опубликованные конверты
type captureBus struct {
	eventbus.EventBus
	ch chan *eventbus.Envelope
}

func (b *captureBus) Publish(ctx context.Context, ev *eventbus.Envelope) error {
	b.ch <- ev
	return nil
}

func TestBatchManager_PriorityEviction(t *testing.T) {
	bus := &captureBus{ch: make(chan *eventbus.Envelope, 4)}
	bm := NewBatchManager(bus, "server", 2, time.Hour, nil)
	defer bm.Stop()

	bm.AddChange(Change{Data: []byte("low"), Priority: 1})
	bm.AddChange(Change{Data: []byte("mid"), Priority: 5})
	bm.AddChange(Change{Data: []byte("high"), Priority: 7})
	bm.AddChange(Change{Data: []byte("lowest"), Priority: 0})
	assert.Equal(t, 2, bm.Pending())
	assert.Equal(t, uint64(2), bm.Dropped())

	bm.Flush()
	ev := <-bus.ch
	assert.Equal(t, EventSyncBatch, ev.EventType)
	assert.Equal(t, "server", ev.Source)

	changes, err := NewPassthroughCompressor().Decompress(ev.Payload)
	require.NoError(t, err)
	var got []string
	for _, c := range changes {
		got = append(got, string(c.Data))
	}
	assert.ElementsMatch(t, []string{"mid", "high"}, got, "Вытесняется изменение с наименьшим приоритетом")
}

func TestSyncManager_JournalsTrackerChanges(t *testing.T) {
	bus := eventbus.NewMemoryBus(16)
	defer bus.Close()

	server, err := NewSyncManager(SyncConfig{Source: "server", Bus: bus, BatchSize: 16, FlushEvery: time.Hour, UseGzipCompr: true})
	require.NoError(t, err)
	defer server.Stop()

	remote := make(chan FieldChange, 4)
	observer, err := NewSyncManager(SyncConfig{
		Source: "observer", Bus: bus, BatchSize: 16, FlushEvery: time.Hour, UseGzipCompr: true,
		OnRemote: func(fc FieldChange) { remote <- fc },
	})
	require.NoError(t, err)
	defer observer.Stop()

	tracker := replication.NewTracker("LocationCorrection")
	origin := replication.NewField(tracker, "WorldLocation", replication.CondNone, vec.Zero3)
	server.Watch(tracker, "actor:1/")

	origin.Set(vec.Vec3{X: 1000})
	origin.Set(vec.Vec3{X: 1000})
	server.Flush()

	select {
	case fc := <-remote:
		assert.Equal(t, "server", fc.Source)
		assert.Equal(t, "actor:1/LocationCorrection", fc.Owner)
		assert.Equal(t, "WorldLocation", fc.Field)
		var v vec.Vec3
		require.NoError(t, json.Unmarshal(fc.Value, &v))
		assert.Equal(t, vec.Vec3{X: 1000}, v)
	case <-time.After(2 * time.Second):
		t.Fatal("пакет не доставлен")
	}

	_, ok := observer.Consumer().Latest("actor:1/LocationCorrection", "WorldLocation")
	assert.True(t, ok)
	assert.Equal(t, uint64(1), observer.Consumer().Applied(), "Одинаковое значение не журналируется повторно")
	assert.Equal(t, uint64(0), server.Consumer().Applied(), "Свои пакеты пропускаются")
}
