package sync

import (
	"time"

	"github.com/annel0/related-world/internal/eventbus"
	"github.com/annel0/related-world/internal/logging"
	"github.com/annel0/related-world/internal/replication"
)

// SyncManager координирует работу всех компонентов синхронизации:
// BatchManager, SyncProducer, SyncConsumer.
type SyncManager struct {
	bm       *BatchManager
	producer *SyncProducer
	consumer *SyncConsumer
}

// SyncConfig параметры журнала репликации
type SyncConfig struct {
	Source       string
	Bus          eventbus.EventBus
	BatchSize    int
	FlushEvery   time.Duration
	UseGzipCompr bool
	OnRemote     func(FieldChange)
}

// NewSyncManager собирает журнал поверх шины
func NewSyncManager(cfg SyncConfig) (*SyncManager, error) {
	var compressor DeltaCompressor
	if cfg.UseGzipCompr {
		compressor = NewGzipCompressor()
		logging.Info("🔄 SyncManager: используется gzip-компрессия")
	} else {
		compressor = NewPassthroughCompressor()
		logging.Info("🔄 SyncManager: компрессия отключена")
	}

	bm := NewBatchManager(cfg.Bus, cfg.Source, cfg.BatchSize, cfg.FlushEvery, compressor)
	consumer, err := NewSyncConsumer(cfg.Bus, cfg.Source, compressor, cfg.OnRemote)
	if err != nil {
		bm.Stop()
		return nil, err
	}

	logging.Info("✅ SyncManager инициализирован: source=%s, batch=%d, flush=%v",
		cfg.Source, cfg.BatchSize, cfg.FlushEvery)

	return &SyncManager{
		bm:       bm,
		producer: NewSyncProducer(bm, cfg.Source),
		consumer: consumer,
	}, nil
}

// Watch журналирует изменения трекера
func (sm *SyncManager) Watch(t *replication.Tracker, prefix string) {
	sm.producer.Watch(t, prefix)
}

// Flush немедленно отправляет накопленный пакет
func (sm *SyncManager) Flush() { sm.bm.Flush() }

// Consumer потребитель пакетов других хостов
func (sm *SyncManager) Consumer() *SyncConsumer { return sm.consumer }

// Stop останавливает журнал, отправив остаток
func (sm *SyncManager) Stop() {
	sm.consumer.Stop()
	sm.bm.Stop()
	logging.Info("🔄 SyncManager остановлен")
}
