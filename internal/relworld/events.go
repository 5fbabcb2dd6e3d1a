package relworld

import (
	"context"
	"encoding/json"

	"github.com/annel0/related-world/internal/eventbus"
	"github.com/annel0/related-world/internal/logging"
)

// Типы событий реестра на шине
const (
	EventWorldCreated    = "WorldCreated"
	EventWorldTranslated = "WorldTranslated"
	EventWorldRemoved    = "WorldRemoved"
)

// Publisher публикует изменения реестра на шину событий.
// Нулевой *Publisher ничего не публикует.
type Publisher struct {
	bus    eventbus.EventBus
	source string
}

// NewPublisher создаёт издателя; source — имя хоста в конвертах
func NewPublisher(bus eventbus.EventBus, source string) *Publisher {
	return &Publisher{bus: bus, source: source}
}

// Source имя хоста-источника
func (p *Publisher) Source() string {
	if p == nil {
		return ""
	}
	return p.source
}

func (p *Publisher) publish(ctx context.Context, eventType string, desc Descriptor) {
	if p == nil || p.bus == nil {
		return
	}
	payload, err := json.Marshal(desc)
	if err != nil {
		logging.Error("relworld: сериализация события %s: %v", eventType, err)
		return
	}
	if err := p.bus.Publish(ctx, eventbus.NewEnvelope(p.source, eventType, 7, payload)); err != nil {
		logging.Warn("relworld: событие %s для %s не опубликовано: %v", eventType, desc.Name, err)
	}
}

// Dispatcher выполняет функцию в потоке симуляции
type Dispatcher func(fn func())

// Mirror применяет события чужого реестра к локальному, не публикуя их повторно
type Mirror struct {
	director *Director
	source   string
	dispatch Dispatcher
	sub      eventbus.Subscription
}

// NewMirror создаёт зеркало. События с источником ownSource пропускаются.
// dispatch == nil — применять сразу в горутине шины.
func NewMirror(d *Director, ownSource string, dispatch Dispatcher) *Mirror {
	if dispatch == nil {
		dispatch = func(fn func()) { fn() }
	}
	return &Mirror{director: d, source: ownSource, dispatch: dispatch}
}

// Start подписывает зеркало на события реестра
func (m *Mirror) Start(ctx context.Context, bus eventbus.EventBus) error {
	sub, err := bus.Subscribe(ctx, eventbus.Filter{}, func(ctx context.Context, ev *eventbus.Envelope) {
		m.Apply(ctx, ev)
	})
	if err != nil {
		return err
	}
	m.sub = sub
	return nil
}

// Stop отписывает зеркало
func (m *Mirror) Stop() {
	if m.sub != nil {
		m.sub.Unsubscribe()
		m.sub = nil
	}
}

// Apply применяет одно событие. Неизвестные типы и свои события игнорируются.
func (m *Mirror) Apply(ctx context.Context, ev *eventbus.Envelope) {
	if ev == nil || ev.Source == m.source {
		return
	}
	switch ev.EventType {
	case EventWorldCreated, EventWorldTranslated, EventWorldRemoved:
	default:
		return
	}

	var desc Descriptor
	if err := json.Unmarshal(ev.Payload, &desc); err != nil {
		logging.Warn("relworld: битое событие %s от %s: %v", ev.EventType, ev.Source, err)
		return
	}

	m.dispatch(func() {
		m.apply(ctx, ev.EventType, desc)
	})
}

func (m *Mirror) apply(ctx context.Context, eventType string, desc Descriptor) {
	d := m.director
	switch eventType {
	case EventWorldCreated, EventWorldTranslated:
		if _, ok := d.World(desc.Name); !ok {
			if _, err := d.createWorld(ctx, desc); err != nil {
				logging.Warn("relworld: зеркало не создало мир %s: %v", desc.Name, err)
			}
			return
		}
		if _, err := d.translateWorld(ctx, desc.Name, desc.Origin); err != nil {
			logging.Warn("relworld: зеркало не сдвинуло мир %s: %v", desc.Name, err)
		}
	case EventWorldRemoved:
		if err := d.removeWorld(ctx, desc.Name); err != nil {
			logging.Debug("relworld: зеркало: %v", err)
		}
	}
}
