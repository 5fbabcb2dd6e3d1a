package sync

import (
	"encoding/json"
	"time"

	"github.com/annel0/related-world/internal/logging"
	"github.com/annel0/related-world/internal/replication"
)

// FieldChange запись журнала: новое значение реплицируемого поля
type FieldChange struct {
	Source string          `json:"source"`
	Owner  string          `json:"owner"`
	Field  string          `json:"field"`
	Value  json.RawMessage `json:"value"`
	At     time.Time       `json:"at"`
}

// fieldPriority сдвиги начала координат важнее потока движения
var fieldPriority = map[string]int{
	"WorldLocation":      7,
	"NeedCorrection":     7,
	"InitialReplication": 6,
	"ReplicatedMovement": 3,
}

// SyncProducer переводит изменения полей трекеров в записи BatchManager'а.
type SyncProducer struct {
	bm     *BatchManager
	source string
}

// NewSyncProducer создаёт продюсер для хоста source
func NewSyncProducer(bm *BatchManager, source string) *SyncProducer {
	return &SyncProducer{bm: bm, source: source}
}

// Watch подписывает продюсер на изменения трекера. prefix уточняет владельца,
// например "actor:3/".
func (sp *SyncProducer) Watch(t *replication.Tracker, prefix string) {
	t.OnChange(func(owner, field string, value any) {
		sp.record(prefix+owner, field, value)
	})
}

func (sp *SyncProducer) record(owner, field string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		logging.Warn("SyncProducer: поле %s/%s не сериализуется: %v", owner, field, err)
		return
	}
	now := time.Now().UTC()
	data, err := json.Marshal(FieldChange{Source: sp.source, Owner: owner, Field: field, Value: raw, At: now})
	if err != nil {
		logging.Warn("SyncProducer: %v", err)
		return
	}

	priority, ok := fieldPriority[field]
	if !ok {
		priority = 5
	}
	sp.bm.AddChange(Change{
		Data:       data,
		Priority:   priority,
		Timestamp:  now,
		Source:     sp.source,
		ChangeType: field,
	})
}
