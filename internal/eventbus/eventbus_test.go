package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()

	var mu sync.Mutex
	var got []string
	done := make(chan struct{}, 4)

	_, err := bus.Subscribe(context.Background(), Filter{Types: []string{"WorldTranslated"}}, func(ctx context.Context, ev *Envelope) {
		mu.Lock()
		got = append(got, string(ev.Payload))
		mu.Unlock()
		done <- struct{}{}
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), NewEnvelope("server", "WorldCreated", 5, []byte("skip"))))
	require.NoError(t, bus.Publish(context.Background(), NewEnvelope("server", "WorldTranslated", 5, []byte("a"))))
	require.NoError(t, bus.Publish(context.Background(), NewEnvelope("server", "WorldTranslated", 5, []byte("b"))))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("событие не доставлено")
		}
	}

	mu.Lock()
	assert.Equal(t, []string{"a", "b"}, got, "Порядок доставки сохраняется")
	mu.Unlock()

	stats := bus.Metrics()
	assert.Equal(t, uint64(3), stats.Published)
}

func TestMemoryBus_SourceFilterAndUnsubscribe(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()

	received := make(chan string, 4)
	sub, err := bus.Subscribe(context.Background(), Filter{Sources: []string{"observer"}}, func(ctx context.Context, ev *Envelope) {
		received <- ev.Source
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), NewEnvelope("server", "X", 5, nil)))
	require.NoError(t, bus.Publish(context.Background(), NewEnvelope("observer", "X", 5, nil)))

	select {
	case src := <-received:
		assert.Equal(t, "observer", src)
	case <-time.After(2 * time.Second):
		t.Fatal("событие не доставлено")
	}

	sub.Unsubscribe()
	require.NoError(t, bus.Publish(context.Background(), NewEnvelope("observer", "X", 5, nil)))
	select {
	case <-received:
		t.Fatal("после отписки события не доставляются")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMemoryBus_ClosedRejectsPublish(t *testing.T) {
	bus := NewMemoryBus(1)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close(), "Повторное закрытие безопасно")
	assert.Error(t, bus.Publish(context.Background(), NewEnvelope("s", "X", 9, nil)))
}

func TestNewEnvelope(t *testing.T) {
	a := NewEnvelope("server", "WorldCreated", 3, []byte("{}"))
	b := NewEnvelope("server", "WorldCreated", 3, []byte("{}"))
	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, a.ID, 36)
	assert.Equal(t, 1, a.Version)
}

type fakeStatsBus struct {
	EventBus
	stats Stats
}

func (f *fakeStatsBus) Metrics() Stats { return f.stats }

func TestMetricsExporter_Collect(t *testing.T) {
	reg := prometheus.NewRegistry()
	bus := &fakeStatsBus{stats: Stats{Published: 5, Consumed: 3, Dropped: 1, InFlight: 2}}
	me := NewMetricsExporter(bus, reg)

	prev := me.collect(Stats{})
	assert.Equal(t, 5.0, testutil.ToFloat64(me.published))
	assert.Equal(t, 2.0, testutil.ToFloat64(me.inflight))

	bus.stats.Published = 8
	me.collect(prev)
	assert.Equal(t, 8.0, testutil.ToFloat64(me.published), "Счётчик растёт на приращение")
	assert.Equal(t, 1.0, testutil.ToFloat64(me.dropped))
}
