package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/annel0/related-world/internal/eventbus"
	"github.com/annel0/related-world/internal/logging"
)

// SyncConsumer слушает SyncBatch сообщения других хостов и ведёт журнал
// последних значений полей.
type SyncConsumer struct {
	sub        eventbus.Subscription
	compressor DeltaCompressor
	source     string
	apply      func(FieldChange)

	mu      sync.RWMutex
	latest  map[string]FieldChange
	applied uint64
}

// NewSyncConsumer подписывается на пакеты; свои пакеты (source) пропускаются.
// apply может быть nil.
func NewSyncConsumer(bus eventbus.EventBus, source string, compressor DeltaCompressor, apply func(FieldChange)) (*SyncConsumer, error) {
	if compressor == nil {
		compressor = NewPassthroughCompressor()
	}
	sc := &SyncConsumer{
		compressor: compressor,
		source:     source,
		apply:      apply,
		latest:     make(map[string]FieldChange),
	}
	sub, err := bus.Subscribe(context.Background(), eventbus.Filter{Types: []string{EventSyncBatch}}, sc.handle)
	if err != nil {
		return nil, err
	}
	sc.sub = sub
	return sc, nil
}

func (sc *SyncConsumer) handle(ctx context.Context, ev *eventbus.Envelope) {
	if ev.Source == sc.source {
		return
	}
	logging.Debug("SyncConsumer: batch size=%d bytes from %s", len(ev.Payload), ev.Source)

	changes, err := sc.compressor.Decompress(ev.Payload)
	if err != nil {
		logging.Warn("SyncConsumer decompress error: %v", err)
		return
	}

	for i := range changes {
		if err := sc.applyChange(&changes[i]); err != nil {
			logging.Warn("SyncConsumer: ошибка применения изменения %d: %v", i, err)
		}
	}
}

func (sc *SyncConsumer) applyChange(change *Change) error {
	if len(change.Data) == 0 {
		return fmt.Errorf("change data is empty")
	}

	var fc FieldChange
	if err := json.Unmarshal(change.Data, &fc); err != nil {
		return fmt.Errorf("decode field change: %w", err)
	}

	sc.mu.Lock()
	sc.latest[fc.Owner+"."+fc.Field] = fc
	sc.applied++
	sc.mu.Unlock()

	if sc.apply != nil {
		sc.apply(fc)
	}
	return nil
}

// Latest последнее известное значение поля владельца
func (sc *SyncConsumer) Latest(owner, field string) (FieldChange, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	fc, ok := sc.latest[owner+"."+field]
	return fc, ok
}

// Applied число применённых изменений
func (sc *SyncConsumer) Applied() uint64 {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.applied
}

// Stop отписывает потребителя
func (sc *SyncConsumer) Stop() { sc.sub.Unsubscribe() }
