package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/annel0/related-world/internal/correction"
	"github.com/annel0/related-world/internal/hook"
	"github.com/annel0/related-world/internal/host"
	"github.com/annel0/related-world/internal/logging"
	"github.com/annel0/related-world/internal/relworld"
	"github.com/annel0/related-world/internal/vec"
)

// ErrNoObserver наблюдатель в процессе не включён
var ErrNoObserver = errors.New("app: loopback observer disabled")

// WorldInfo снимок вторичного мира
type WorldInfo struct {
	Name     string         `json:"name"`
	Origin   vec.Vec3       `json:"origin"`
	NetWorld bool           `json:"net_world"`
	Members  []host.ActorID `json:"members"`
}

// ActorInfo снимок сущности сервера и её копии у наблюдателя
type ActorInfo struct {
	ID              host.ActorID   `json:"id"`
	Name            string         `json:"name"`
	Class           string         `json:"class"`
	World           string         `json:"world,omitempty"`
	Location        vec.Vec3Float  `json:"location"`
	Rotation        vec.Rotator    `json:"rotation"`
	Velocity        vec.Vec3Float  `json:"velocity"`
	NeedsCorrection bool           `json:"needs_correction"`
	WorldLocation   vec.Vec3       `json:"world_location"`
	Observed        *vec.Vec3Float `json:"observed,omitempty"`
}

// SpawnRequest параметры создания сущности на сервере
type SpawnRequest struct {
	Name     string        `json:"name"`
	Class    string        `json:"class"`
	World    string        `json:"world"`
	Location vec.Vec3Float `json:"location"`
	Rotation vec.Rotator   `json:"rotation"`
	Velocity vec.Vec3Float `json:"velocity"`
	Physics  bool          `json:"physics"`
}

func (s *Simulation) worldInfo(w *relworld.RelatedWorld) WorldInfo {
	d := w.Descriptor()
	members := s.director.Members(d.Name)
	if members == nil {
		members = []host.ActorID{}
	}
	return WorldInfo{Name: d.Name, Origin: d.Origin, NetWorld: d.NetWorld, Members: members}
}

// Worlds список вторичных миров
func (s *Simulation) Worlds(ctx context.Context) ([]WorldInfo, error) {
	var out []WorldInfo
	err := s.Call(ctx, func() error {
		for _, w := range s.director.Worlds() {
			out = append(out, s.worldInfo(w))
		}
		return nil
	})
	return out, err
}

// World снимок мира по имени
func (s *Simulation) World(ctx context.Context, name string) (WorldInfo, error) {
	var info WorldInfo
	err := s.Call(ctx, func() error {
		w, ok := s.director.World(name)
		if !ok {
			return fmt.Errorf("%w: %s", relworld.ErrWorldNotFound, name)
		}
		info = s.worldInfo(w)
		return nil
	})
	return info, err
}

// CreateWorld создаёт вторичный мир
func (s *Simulation) CreateWorld(ctx context.Context, name string, origin vec.Vec3, netWorld bool) (WorldInfo, error) {
	var info WorldInfo
	err := s.Call(ctx, func() error {
		w, err := s.director.CreateWorld(ctx, name, origin, netWorld)
		if err != nil {
			return err
		}
		info = s.worldInfo(w)
		return nil
	})
	return info, err
}

// RemoveWorld удаляет вторичный мир, отвязывая его сущности
func (s *Simulation) RemoveWorld(ctx context.Context, name string) error {
	return s.Call(ctx, func() error {
		return s.director.RemoveWorld(ctx, name)
	})
}

// TranslateWorld сдвигает начало координат мира
func (s *Simulation) TranslateWorld(ctx context.Context, name string, origin vec.Vec3) error {
	return s.Call(ctx, func() error {
		return s.director.TranslateWorld(ctx, name, origin)
	})
}

// SpawnActor создаёт реплицируемую сущность с компонентом коррекции
func (s *Simulation) SpawnActor(ctx context.Context, req SpawnRequest) (ActorInfo, error) {
	var info ActorInfo
	err := s.Call(ctx, func() error {
		a, err := s.server.SpawnActor(host.SpawnParams{
			Name:              req.Name,
			Class:             req.Class,
			Location:          req.Location,
			Rotation:          req.Rotation,
			Role:              host.RoleAuthority,
			ReplicateMovement: true,
			RootKind:          host.RootPrimitive,
		})
		if err != nil {
			return err
		}
		a.SetVelocity(req.Velocity)
		if req.Physics {
			a.Root().SetSimulatePhysics(true)
		}
		if req.World != "" {
			if err := s.director.AddActor(a, req.World); err != nil {
				s.rollbackSpawn(a.ID())
				return err
			}
		}

		comp := correction.New(correction.Options{Resolver: s.director, Metrics: s.metrics})
		if s.journal != nil {
			prefix := fmt.Sprintf("actor:%d/", a.ID())
			s.journal.Watch(comp.Tracker(), prefix)
			s.journal.Watch(a.Tracker(), "")
		}
		a.AddComponent(comp)

		info = s.actorInfo(a)
		return nil
	})
	return info, err
}

// rollbackSpawn уничтожает сущность, создание которой не завершилось
func (s *Simulation) rollbackSpawn(id host.ActorID) {
	if err := s.server.DestroyActor(id); err != nil {
		logging.Warn("app: откат создания сущности %d: %v", id, err)
	}
}

// AssignActor привязывает сущность к миру или переводит её в другой
func (s *Simulation) AssignActor(ctx context.Context, id host.ActorID, world string) error {
	return s.Call(ctx, func() error {
		a := s.server.Actor(id)
		if a == nil {
			return fmt.Errorf("%w: %d", host.ErrActorNotFound, id)
		}
		if _, member := s.director.ResolveForActor(a); member {
			return s.director.MoveActor(a, world)
		}
		return s.director.AddActor(a, world)
	})
}

// MoveActor переставляет сущность в координатах её мира
func (s *Simulation) MoveActor(ctx context.Context, id host.ActorID, loc vec.Vec3Float, rot vec.Rotator) error {
	return s.Call(ctx, func() error {
		a := s.server.Actor(id)
		if a == nil {
			return fmt.Errorf("%w: %d", host.ErrActorNotFound, id)
		}
		a.SetActorLocationAndRotation(loc, rot)
		return nil
	})
}

// DestroyActor уничтожает сущность сервера; копии исчезнут на следующем тике
func (s *Simulation) DestroyActor(ctx context.Context, id host.ActorID) error {
	return s.Call(ctx, func() error {
		s.director.RemoveActor(id)
		return s.server.DestroyActor(id)
	})
}

// Actor снимок сущности
func (s *Simulation) Actor(ctx context.Context, id host.ActorID) (ActorInfo, error) {
	var info ActorInfo
	err := s.Call(ctx, func() error {
		a := s.server.Actor(id)
		if a == nil {
			return fmt.Errorf("%w: %d", host.ErrActorNotFound, id)
		}
		info = s.actorInfo(a)
		return nil
	})
	return info, err
}

// Actors снимки всех сущностей сервера
func (s *Simulation) Actors(ctx context.Context) ([]ActorInfo, error) {
	var out []ActorInfo
	err := s.Call(ctx, func() error {
		for _, a := range s.server.Actors() {
			out = append(out, s.actorInfo(a))
		}
		return nil
	})
	return out, err
}

// AdjustClient отправляет копии сущности у наблюдателя серверную поправку позиции
func (s *Simulation) AdjustClient(ctx context.Context, id host.ActorID, adj host.ClientAdjustment) error {
	if s.loopback == nil {
		return ErrNoObserver
	}
	return s.Call(ctx, func() error {
		return s.loopback.ClientAdjustPosition(id, adj)
	})
}

// HookStatuses состояние перехватов
func (s *Simulation) HookStatuses(ctx context.Context) ([]hook.Status, error) {
	var out []hook.Status
	err := s.Call(ctx, func() error {
		out = s.hooks.Statuses()
		return nil
	})
	return out, err
}

// SetHooksEnabled включает или отключает все перехваты между тиками
func (s *Simulation) SetHooksEnabled(ctx context.Context, enabled bool) error {
	return s.Call(ctx, func() error {
		if enabled {
			s.hooks.EnableAll()
		} else {
			s.hooks.DisableAll()
		}
		return nil
	})
}

func (s *Simulation) actorInfo(a *host.Actor) ActorInfo {
	info := ActorInfo{
		ID:       a.ID(),
		Name:     a.Name(),
		Class:    a.ClassName(),
		Location: a.Location(),
		Rotation: a.Rotation(),
		Velocity: a.Velocity(),
	}
	if w, ok := s.director.ResolveForActor(a); ok {
		info.World = w.Name()
	}
	if comp, ok := host.FindComponent[*correction.Component](a); ok {
		info.NeedsCorrection = comp.NeedsCorrection()
		info.WorldLocation = comp.WorldLocation()
	}
	if s.loopback != nil {
		if r := s.loopback.Replica(a.ID()); r != nil {
			loc := r.Location()
			info.Observed = &loc
		}
	}
	return info
}
