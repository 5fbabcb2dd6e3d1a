package relworld

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/annel0/related-world/internal/host"
	"github.com/annel0/related-world/internal/logging"
	"github.com/annel0/related-world/internal/vec"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrWorldExists мир с таким именем уже загружен
	ErrWorldExists = errors.New("relworld: world already exists")
	// ErrWorldNotFound мир не найден
	ErrWorldNotFound = errors.New("relworld: world not found")
	// ErrNotMember сущность не привязана ни к одному миру
	ErrNotMember = errors.New("relworld: actor is not a member of any world")
)

// Options зависимости реестра
type Options struct {
	Store     Store
	Publisher *Publisher
	Metrics   *Metrics
}

// Director реестр вторичных миров одного хоста.
// Владеет описаниями миров и принадлежностью сущностей хоста к ним.
type Director struct {
	mu      sync.RWMutex
	host    *host.World
	worlds  map[string]*RelatedWorld
	members map[host.ActorID]string

	store     Store
	publisher *Publisher
	metrics   *Metrics
	tracer    trace.Tracer
}

// NewDirector создаёт реестр для мира хоста
func NewDirector(hostWorld *host.World, opts Options) *Director {
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	return &Director{
		host:      hostWorld,
		worlds:    make(map[string]*RelatedWorld),
		members:   make(map[host.ActorID]string),
		store:     opts.Store,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		tracer:    otel.Tracer("relworld"),
	}
}

// Host мир хоста
func (d *Director) Host() *host.World { return d.host }

// LoadFromStore восстанавливает миры из хранилища
func (d *Director) LoadFromStore(ctx context.Context) (int, error) {
	if d.store == nil {
		return 0, nil
	}
	descs, err := d.store.LoadWorlds(ctx)
	if err != nil {
		return 0, fmt.Errorf("load worlds: %w", err)
	}

	loaded := 0
	d.mu.Lock()
	for _, desc := range descs {
		if _, exists := d.worlds[desc.Name]; exists {
			continue
		}
		d.worlds[desc.Name] = newRelatedWorld(desc)
		loaded++
	}
	d.metrics.Worlds.Set(float64(len(d.worlds)))
	d.mu.Unlock()

	logging.Info("🌍 Загружено вторичных миров из хранилища: %d", loaded)
	return loaded, nil
}

// CreateWorld создаёт вторичный мир с заданным началом координат
func (d *Director) CreateWorld(ctx context.Context, name string, origin vec.Vec3, netWorld bool) (*RelatedWorld, error) {
	ctx, span := d.tracer.Start(ctx, "relworld.CreateWorld", trace.WithAttributes(
		attribute.String("world", name),
		attribute.Bool("net_world", netWorld),
	))
	defer span.End()

	w, err := d.createWorld(ctx, Descriptor{Name: name, Origin: origin, NetWorld: netWorld})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	d.publisher.publish(ctx, EventWorldCreated, w.Descriptor())
	return w, nil
}

func (d *Director) createWorld(ctx context.Context, desc Descriptor) (*RelatedWorld, error) {
	if desc.Name == "" {
		return nil, fmt.Errorf("relworld: empty world name")
	}

	d.mu.Lock()
	if _, exists := d.worlds[desc.Name]; exists {
		d.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrWorldExists, desc.Name)
	}
	w := newRelatedWorld(desc)
	d.worlds[desc.Name] = w
	d.metrics.Worlds.Set(float64(len(d.worlds)))
	d.mu.Unlock()

	if d.store != nil {
		if err := d.store.SaveWorld(ctx, desc); err != nil {
			logging.Warn("relworld: не удалось сохранить мир %s: %v", desc.Name, err)
		}
	}

	logging.Info("🌍 Вторичный мир %s создан, origin=%v net=%t", desc.Name, desc.Origin, desc.NetWorld)
	return w, nil
}

// RemoveWorld выгружает мир. Привязанные сущности теряют мир, но коррекция у них остаётся включённой.
func (d *Director) RemoveWorld(ctx context.Context, name string) error {
	if err := d.removeWorld(ctx, name); err != nil {
		return err
	}
	d.publisher.publish(ctx, EventWorldRemoved, Descriptor{Name: name})
	return nil
}

func (d *Director) removeWorld(ctx context.Context, name string) error {
	d.mu.Lock()
	if _, ok := d.worlds[name]; !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrWorldNotFound, name)
	}
	delete(d.worlds, name)

	var unbound []host.ActorID
	for id, member := range d.members {
		if member == name {
			unbound = append(unbound, id)
			delete(d.members, id)
		}
	}
	d.metrics.Worlds.Set(float64(len(d.worlds)))
	d.metrics.Members.Set(float64(len(d.members)))
	d.mu.Unlock()

	for _, id := range unbound {
		for _, l := range d.listeners(id) {
			l.NotifyWorldChanged(nil)
		}
	}

	if d.store != nil {
		if err := d.store.DeleteWorld(ctx, name); err != nil {
			logging.Warn("relworld: не удалось удалить мир %s из хранилища: %v", name, err)
		}
	}

	logging.Info("🌍 Вторичный мир %s выгружен, отвязано сущностей: %d", name, len(unbound))
	return nil
}

// World возвращает мир по имени
func (d *Director) World(name string) (*RelatedWorld, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	w, ok := d.worlds[name]
	return w, ok
}

// Lookup разрешает слабую ссылку на мир по имени
func (d *Director) Lookup(name string) (SubWorld, bool) {
	w, ok := d.World(name)
	if !ok {
		return nil, false
	}
	return w, true
}

// Worlds все миры в порядке имён
func (d *Director) Worlds() []*RelatedWorld {
	d.mu.RLock()
	out := make([]*RelatedWorld, 0, len(d.worlds))
	for _, w := range d.worlds {
		out = append(out, w)
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// AddActor привязывает сущность к миру
func (d *Director) AddActor(a *host.Actor, worldName string) error {
	return d.assign(a, worldName, false)
}

// MoveActor переводит уже привязанную сущность в другой мир
func (d *Director) MoveActor(a *host.Actor, worldName string) error {
	return d.assign(a, worldName, true)
}

func (d *Director) assign(a *host.Actor, worldName string, mustBeMember bool) error {
	d.mu.Lock()
	w, ok := d.worlds[worldName]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrWorldNotFound, worldName)
	}
	prev, member := d.members[a.ID()]
	if mustBeMember && !member {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotMember, a.Name())
	}
	d.members[a.ID()] = worldName
	d.metrics.Members.Set(float64(len(d.members)))
	d.mu.Unlock()

	if member && prev == worldName {
		return nil
	}
	if member {
		d.metrics.Reassigned.Inc()
		logging.Debug("relworld: %s переходит из %s в %s", a.Name(), prev, worldName)
	}

	for _, l := range d.listeners(a.ID()) {
		l.NotifyWorldChanged(w)
	}
	return nil
}

// RemoveActor отвязывает сущность без уведомлений (сущность уничтожается)
func (d *Director) RemoveActor(id host.ActorID) {
	d.mu.Lock()
	delete(d.members, id)
	d.metrics.Members.Set(float64(len(d.members)))
	d.mu.Unlock()
}

// ResolveForActor возвращает мир, которому принадлежит сущность
func (d *Director) ResolveForActor(a *host.Actor) (SubWorld, bool) {
	if a == nil {
		return nil, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	name, ok := d.members[a.ID()]
	if !ok {
		return nil, false
	}
	w, ok := d.worlds[name]
	if !ok {
		return nil, false
	}
	return w, true
}

// Members сущности, привязанные к миру
func (d *Director) Members(worldName string) []host.ActorID {
	d.mu.RLock()
	var out []host.ActorID
	for id, name := range d.members {
		if name == worldName {
			out = append(out, id)
		}
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TranslateWorld сдвигает начало координат мира и уведомляет привязанные сущности
func (d *Director) TranslateWorld(ctx context.Context, name string, origin vec.Vec3) error {
	ctx, span := d.tracer.Start(ctx, "relworld.TranslateWorld", trace.WithAttributes(
		attribute.String("world", name),
		attribute.IntSlice("origin", []int{origin.X, origin.Y, origin.Z}),
	))
	defer span.End()

	changed, err := d.translateWorld(ctx, name, origin)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if changed {
		w, _ := d.World(name)
		if w != nil {
			d.publisher.publish(ctx, EventWorldTranslated, w.Descriptor())
		}
	}
	return nil
}

func (d *Director) translateWorld(ctx context.Context, name string, origin vec.Vec3) (bool, error) {
	d.mu.Lock()
	w, ok := d.worlds[name]
	if !ok {
		d.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrWorldNotFound, name)
	}
	prev := w.Origin()
	if prev == origin {
		d.mu.Unlock()
		return false, nil
	}
	w.setOrigin(origin)
	desc := w.Descriptor()
	d.mu.Unlock()

	d.metrics.Translations.Inc()
	logging.Info("🌍 Мир %s сдвинут: %v → %v", name, prev, origin)

	if d.store != nil {
		if err := d.store.SaveWorld(ctx, desc); err != nil {
			logging.Warn("relworld: не удалось сохранить мир %s: %v", name, err)
		}
	}

	for _, id := range d.Members(name) {
		for _, l := range d.listeners(id) {
			l.NotifyWorldLocationChanged(origin)
		}
	}
	return true, nil
}

func (d *Director) listeners(id host.ActorID) []Listener {
	if d.host == nil {
		return nil
	}
	a := d.host.Actor(id)
	if a == nil {
		return nil
	}
	var out []Listener
	for _, c := range a.Components() {
		if l, ok := c.(Listener); ok {
			out = append(out, l)
		}
	}
	return out
}
