// Package sync журналирует изменения реплицируемых полей и рассылает их
// пакетами через шину событий другим хостам.
package sync

import (
	"context"
	"sync"
	"time"

	"github.com/annel0/related-world/internal/eventbus"
	"github.com/annel0/related-world/internal/logging"
)

// EventSyncBatch тип конверта с пакетом изменений
const EventSyncBatch = "SyncBatch"

// Change содержит сериализованное изменение поля (FieldChange в JSON).
type Change struct {
	Data       []byte    // Сериализованные данные изменения
	Priority   int       // приоритизация для сброса при перегрузке
	Timestamp  time.Time // Время создания изменения
	Source     string    // Хост-источник изменения
	ChangeType string    // Имя реплицируемого поля
}

// BatchManager накапливает изменения и отправляет их пакетами через EventBus.
// Каждый хост имеет собственный экземпляр.
type BatchManager struct {
	mu       sync.Mutex
	buf      []Change
	capacity int
	dropped  uint64

	flushEvery time.Duration
	bus        eventbus.EventBus
	source     string
	compressor DeltaCompressor

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewBatchManager создаёт менеджер с указанным лимитом буфера и интервалом отправки.
func NewBatchManager(bus eventbus.EventBus, source string, capacity int, flushEvery time.Duration, compressor DeltaCompressor) *BatchManager {
	if compressor == nil {
		compressor = NewPassthroughCompressor()
	}
	if capacity <= 0 {
		capacity = 256
	}
	if flushEvery <= 0 {
		flushEvery = time.Second
	}
	bm := &BatchManager{
		capacity:   capacity,
		flushEvery: flushEvery,
		bus:        bus,
		source:     source,
		compressor: compressor,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go bm.loop()
	return bm
}

// AddChange добавляет изменение в буфер; при переполнении низкоприоритетные изменения отбрасываются.
func (bm *BatchManager) AddChange(ch Change) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if len(bm.buf) < bm.capacity {
		bm.buf = append(bm.buf, ch)
		return
	}

	// ищем самое низкое Priority и заменяем, если новый выше.
	lowIdx := -1
	lowPri := ch.Priority
	for i, c := range bm.buf {
		if c.Priority < lowPri {
			lowPri = c.Priority
			lowIdx = i
		}
	}
	bm.dropped++
	if lowIdx >= 0 {
		bm.buf[lowIdx] = ch
	}
}

// Pending число изменений в буфере
func (bm *BatchManager) Pending() int {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return len(bm.buf)
}

// Dropped число вытесненных или отброшенных изменений
func (bm *BatchManager) Dropped() uint64 {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return bm.dropped
}

func (bm *BatchManager) loop() {
	ticker := time.NewTicker(bm.flushEvery)
	defer ticker.Stop()
	defer close(bm.done)

	for {
		select {
		case <-ticker.C:
			bm.Flush()
		case <-bm.quit:
			return
		}
	}
}

// Flush отсылает накопленные изменения единым сообщением.
func (bm *BatchManager) Flush() {
	bm.mu.Lock()
	if len(bm.buf) == 0 {
		bm.mu.Unlock()
		return
	}
	changes := make([]Change, len(bm.buf))
	copy(changes, bm.buf)
	bm.buf = bm.buf[:0]
	bm.mu.Unlock()

	batchPayload, err := bm.compressor.Compress(changes)
	if err != nil {
		logging.Warn("BatchManager compress error: %v", err)
		return
	}

	env := eventbus.NewEnvelope(bm.source, EventSyncBatch, 5, batchPayload)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := bm.bus.Publish(ctx, env); err != nil {
		logging.Warn("BatchManager publish error: %v", err)
	}
}

// Stop завершает работу менеджера и отправляет оставшиеся изменения.
func (bm *BatchManager) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.quit)
		<-bm.done
		bm.Flush()
	})
}
