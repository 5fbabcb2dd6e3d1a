package host

import (
	"errors"
	"fmt"
	"sort"

	"github.com/annel0/related-world/internal/hook"
	"github.com/annel0/related-world/internal/vec"
)

// ErrActorNotFound сущность не найдена в мире
var ErrActorNotFound = errors.New("host: actor not found")

// RootKind вид корневого компонента при создании сущности
type RootKind uint8

const (
	RootPrimitive RootKind = iota
	RootScene
	RootNone
)

// SpawnParams параметры создания сущности
type SpawnParams struct {
	ID                ActorID // 0 — назначить автоматически
	Name              string
	Class             string // по умолчанию Actor
	Location          vec.Vec3Float
	Rotation          vec.Rotator
	Role              NetRole
	Template          bool
	ReplicateMovement bool
	RootKind          RootKind
	Root              *SceneComponent // заданный корень имеет приоритет над RootKind
}

// Destroyable компонент, которому нужно уведомление об уничтожении сущности
type Destroyable interface {
	OnOwnerDestroyed()
}

// World мир хоста: сущности, физика и собственное смещение начала координат
type World struct {
	name    string
	classes *hook.ClassTable
	actors  map[ActorID]*Actor
	nextID  ActorID
	origin  vec.Vec3
	physics *PhysicsReplication
}

// NewWorld создаёт мир; классы хоста регистрируются в таблице при необходимости
func NewWorld(name string, classes *hook.ClassTable) *World {
	RegisterClasses(classes)
	return &World{
		name:    name,
		classes: classes,
		actors:  make(map[ActorID]*Actor),
		nextID:  1,
		physics: NewPhysicsReplication(),
	}
}

// Name имя мира
func (w *World) Name() string { return w.name }

// Classes таблица классов
func (w *World) Classes() *hook.ClassTable { return w.classes }

// Physics репликация физики мира
func (w *World) Physics() *PhysicsReplication { return w.physics }

// OriginLocation смещение начала координат мира хоста
func (w *World) OriginLocation() vec.Vec3 { return w.origin }

// SetOriginLocation сдвигает начало координат мира хоста
func (w *World) SetOriginLocation(origin vec.Vec3) { w.origin = origin }

// SpawnActor создаёт сущность
func (w *World) SpawnActor(p SpawnParams) (*Actor, error) {
	className := p.Class
	if className == "" {
		className = ClassActor
	}
	class := w.classes.Find(className)
	if class == nil {
		return nil, fmt.Errorf("%w: %s", hook.ErrClassNotFound, className)
	}

	id := p.ID
	if id == 0 {
		id = w.nextID
	}
	if _, exists := w.actors[id]; exists {
		return nil, fmt.Errorf("host: actor %d already exists in %s", id, w.name)
	}
	if id >= w.nextID {
		w.nextID = id + 1
	}

	if p.Root == nil {
		switch p.RootKind {
		case RootPrimitive:
			p.Root = NewPrimitiveComponent()
		case RootScene:
			p.Root = NewSceneComponent()
		}
	}
	if p.Root != nil {
		p.Root.register(w)
		p.Root.SetWorldLocationAndRotation(p.Location, p.Rotation)
	}

	a := newActor(w, id, p, class)
	w.actors[id] = a
	return a, nil
}

// DestroyActor уничтожает сущность. Слабые ссылки на неё после этого разрешаются в nil.
func (w *World) DestroyActor(id ActorID) error {
	a, ok := w.actors[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrActorNotFound, id)
	}
	a.pendingKill = true
	for _, c := range a.components {
		if d, ok := c.(Destroyable); ok {
			d.OnOwnerDestroyed()
		}
	}
	if a.root != nil {
		w.physics.RemoveReplicatedTarget(a.root)
	}
	delete(w.actors, id)
	return nil
}

// Actor разрешает слабую ссылку на сущность
func (w *World) Actor(id ActorID) *Actor {
	return w.actors[id]
}

// FindActorByName ищет сущность по имени
func (w *World) FindActorByName(name string) *Actor {
	for _, a := range w.actors {
		if a.name == name {
			return a
		}
	}
	return nil
}

// Actors сущности мира в порядке идентификаторов
func (w *World) Actors() []*Actor {
	out := make([]*Actor, 0, len(w.actors))
	for _, a := range w.actors {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}
