// Package correction держит позицию сетевой сущности согласованной с
// началом координат вторичного мира, которому она принадлежит.
//
// Компонент прикрепляется к сущности и перехватывает приём реплицированного
// движения: у наблюдателя позиция из координат мира переводится в
// координаты основного пространства перед применением.
package correction

import (
	"fmt"

	"github.com/annel0/related-world/internal/host"
	"github.com/annel0/related-world/internal/logging"
	"github.com/annel0/related-world/internal/rebase"
	"github.com/annel0/related-world/internal/relworld"
	"github.com/annel0/related-world/internal/replication"
	"github.com/annel0/related-world/internal/vec"
	"github.com/prometheus/client_golang/prometheus"
)

// Имена реплицируемых полей компонента
const (
	FieldInitialReplication = "InitialReplication"
	FieldNeedCorrection     = "NeedCorrection"
	FieldWorldLocation      = "WorldLocation"
	FieldOwner              = "Owner"
)

// Resolver отвечает, какому вторичному миру принадлежит сущность
type Resolver interface {
	ResolveForActor(a *host.Actor) (relworld.SubWorld, bool)
	Lookup(name string) (relworld.SubWorld, bool)
}

// Options зависимости компонента
type Options struct {
	Resolver Resolver
	Metrics  *Metrics
}

// Component коррекция реплицированной позиции сущности во вторичном мире.
//
// Ссылки на сущность и мир слабые: сущность разрешается по идентификатору
// через мир хоста, мир — по имени через Resolver.
type Component struct {
	resolver Resolver
	metrics  *Metrics

	world     *host.World
	ownerID   host.ActorID
	worldName string

	savedRepPhysics bool

	// последнее применённое движение и начало координат
	applied         bool
	appliedOrigin   vec.Vec3
	appliedMovement host.RepMovement

	tracker            *replication.Tracker
	initialReplication *replication.Field[bool]
	needCorrection     *replication.Field[bool]
	worldLocation      *replication.Field[vec.Vec3]
	owner              *replication.Field[host.ActorID]
}

// New создаёт компонент; сущность задаётся при прикреплении
func New(opts Options) *Component {
	c := &Component{
		resolver: opts.Resolver,
		metrics:  opts.Metrics,
		tracker:  replication.NewTracker("LocationCorrection"),
	}
	c.initialReplication = replication.NewField(c.tracker, FieldInitialReplication, replication.CondInitialOnly, false).
		OnRep(c.OnRepInitial)
	// однажды включённая коррекция не выключается и у наблюдателя
	c.needCorrection = replication.NewField(c.tracker, FieldNeedCorrection, replication.CondNone, false).
		Guard(func(current, incoming bool) bool { return !current || incoming })
	c.worldLocation = replication.NewField(c.tracker, FieldWorldLocation, replication.CondNone, vec.Zero3).
		OnRep(c.OnRepWorldLocation)
	c.owner = replication.NewField(c.tracker, FieldOwner, replication.CondNone, host.ActorID(0))
	return c
}

// InitializeComponent привязывает компонент к сущности и определяет её мир
func (c *Component) InitializeComponent(owner *host.Actor) {
	if owner == nil || owner.IsTemplate() {
		return
	}
	c.world = owner.World()
	c.ownerID = owner.ID()
	c.owner.Set(owner.ID())

	if c.resolver == nil {
		return
	}
	w, ok := c.resolver.ResolveForActor(owner)
	if !ok {
		return
	}
	c.bind(w)
}

func (c *Component) bind(w relworld.SubWorld) {
	c.worldName = w.Name()
	c.needCorrection.Set(true)
	c.initialReplication.Set(true)
	c.worldLocation.Set(w.Origin())
}

// Owner разрешает слабую ссылку на сущность; nil после её уничтожения
func (c *Component) Owner() *host.Actor {
	if c.world == nil {
		return nil
	}
	a := c.world.Actor(c.ownerID)
	if a == nil {
		return nil
	}
	// идентификатор мог достаться другой сущности
	for _, comp := range a.Components() {
		if comp == c {
			return a
		}
	}
	return nil
}

// SubWorld разрешает слабую ссылку на мир; false если мира нет
func (c *Component) SubWorld() (relworld.SubWorld, bool) {
	if c.worldName == "" || c.resolver == nil {
		return nil, false
	}
	return c.resolver.Lookup(c.worldName)
}

// NeedsCorrection включена ли коррекция
func (c *Component) NeedsCorrection() bool { return c.needCorrection.Get() }

// InitialReplication флаг разовой синхронизации для новых наблюдателей
func (c *Component) InitialReplication() bool { return c.initialReplication.Get() }

// WorldLocation последнее известное начало координат мира
func (c *Component) WorldLocation() vec.Vec3 { return c.worldLocation.Get() }

// ReplicatedOwner идентификатор сущности на стороне авторитета
func (c *Component) ReplicatedOwner() host.ActorID { return c.owner.Get() }

// Tracker реплицируемые поля компонента
func (c *Component) Tracker() *replication.Tracker { return c.tracker }

// NewReplica создаёт компонент для копии сущности у наблюдателя.
// Состояние наблюдателя приходит только через репликацию.
func (c *Component) NewReplica() host.Component {
	return New(Options{Metrics: c.metrics})
}

// PreReplication переносит сдвиг начала координат мира в реплицируемое поле.
// Выполняется только на авторитете.
func (c *Component) PreReplication() {
	a := c.Owner()
	if a == nil || a.IsPendingKill() || !a.HasAuthority() {
		return
	}
	w, ok := c.SubWorld()
	if !ok {
		return
	}
	if origin := w.Origin(); origin != c.worldLocation.Get() {
		c.NotifyWorldLocationChanged(origin)
	}
}

// NotifyWorldChanged перепривязывает сущность к миру и сразу переносит его
// начало координат. nil отвязывает её, но коррекция остаётся включённой с
// последним началом координат.
func (c *Component) NotifyWorldChanged(w relworld.SubWorld) {
	if w == nil {
		c.worldName = ""
		return
	}
	c.bind(w)
}

// NotifyWorldLocationChanged запоминает новое начало координат мира
func (c *Component) NotifyWorldLocationChanged(origin vec.Vec3) {
	c.worldLocation.Set(origin)
}

// OnOwnerDestroyed сбрасывает слабые ссылки
func (c *Component) OnOwnerDestroyed() {
	c.worldName = ""
	logging.Debug("correction: сущность %d уничтожена", c.ownerID)
}

// OnRepInitial разово переносит позицию копии при первой синхронизации, если
// копия ещё не расставлена (нулевая позиция) или движется физикой.
func (c *Component) OnRepInitial() {
	a := c.Owner()
	if a == nil || a.IsPendingKill() || !c.needCorrection.Get() {
		return
	}
	root := a.Root()
	if root == nil {
		return
	}
	loc := root.Location()
	if root.IsSimulatingPhysics() || loc.IsZero() {
		root.SetWorldLocation(rebase.ToAbsolute(c.worldLocation.Get(), loc))
		c.metrics.inc(func(m *Metrics) prometheus.Counter { return m.InitialSnaps })
	}
}

// OnRepWorldLocation пересчитывает позицию после сдвига начала координат
func (c *Component) OnRepWorldLocation() {
	c.OnRepReplicatedMovement()
}

// OnRepReplicatedMovement применяет реплицированное движение сущности с
// переводом из координат мира в координаты основного пространства.
func (c *Component) OnRepReplicatedMovement() {
	a := c.Owner()
	if a == nil || a.IsPendingKill() || !a.IsReplicatingMovement() {
		return
	}

	if !c.needCorrection.Get() {
		c.metrics.inc(func(m *Metrics) prometheus.Counter { return m.PassThrough })
		a.OnRepReplicatedMovement()
		return
	}

	root := a.Root()
	if root == nil {
		return
	}
	rm := a.ReplicatedMovement()
	origin := c.worldLocation.Get()

	// движение и начало координат пришли одним пакетом: второе уведомление ничего не меняет
	if c.applied && c.appliedOrigin == origin && c.appliedMovement == rm {
		return
	}
	c.applied, c.appliedOrigin, c.appliedMovement = true, origin, rm

	if c.savedRepPhysics != rm.RepPhysics {
		c.SyncReplicatedPhysicsSimulation()
		c.savedRepPhysics = rm.RepPhysics
	}

	if rm.RepPhysics {
		if root.IsWelded() {
			c.metrics.inc(func(m *Metrics) prometheus.Counter { return m.WeldedSkips })
			return
		}
		if nanDiagnostics {
			c.checkNaN(a, rm)
		}
		c.postNetReceivePhysicState(a, rm)
		return
	}

	if root.AttachParent() != nil || a.Role() != host.RoleSimulatedProxy {
		return
	}
	if nanDiagnostics {
		c.checkNaN(a, rm)
	}
	a.PostNetReceiveVelocity(rm.LinearVelocity)
	c.postNetReceiveLocationAndRotation(a, rm)
}

// SyncReplicatedPhysicsSimulation приводит симуляцию к реплицированному флагу.
// При выключении снимает ожидающую цель репликации физики.
func (c *Component) SyncReplicatedPhysicsSimulation() {
	a := c.Owner()
	if a == nil || !a.IsReplicatingMovement() {
		return
	}
	root := a.Root()
	rm := a.ReplicatedMovement()
	if root == nil || !root.IsPrimitive() || root.IsSimulatingPhysics() == rm.RepPhysics {
		return
	}

	root.SetSimulatePhysics(rm.RepPhysics)
	if !rm.RepPhysics {
		a.World().Physics().RemoveReplicatedTarget(root)
	}
	c.metrics.inc(func(m *Metrics) prometheus.Counter { return m.PhysicsSyncs })
}

func (c *Component) correctedLocation(a *host.Actor, rm host.RepMovement) vec.Vec3Float {
	loc := rebase.RebaseOntoLocalOrigin(rm.Location, a.World().OriginLocation())
	return rebase.ToAbsolute(c.worldLocation.Get(), loc)
}

func (c *Component) postNetReceivePhysicState(a *host.Actor, rm host.RepMovement) {
	root := a.Root()
	if !root.IsPrimitive() {
		return
	}
	root.SetRigidBodyReplicatedTarget(host.NewRigidBodyState(rm, c.correctedLocation(a, rm)))
	c.metrics.inc(func(m *Metrics) prometheus.Counter { return m.PhysicsTarget })
}

func (c *Component) postNetReceiveLocationAndRotation(a *host.Actor, rm host.RepMovement) {
	loc := c.correctedLocation(a, rm)
	root := a.Root()
	if root.IsRegistered() && (loc != a.Location() || rm.Rotation != a.Rotation()) {
		a.SetActorLocationAndRotation(loc, rm.Rotation)
		c.metrics.inc(func(m *Metrics) prometheus.Counter { return m.Corrections })
	}
}

func (c *Component) checkNaN(a *host.Actor, rm host.RepMovement) {
	if rm.Location.ContainsNaN() {
		logging.Warn("correction: %s: некорректное число в ReplicatedMovement.Location %s", a.Name(), rm.Location)
		c.metrics.inc(func(m *Metrics) prometheus.Counter { return m.NaNWarnings })
	}
	if rm.Rotation.ContainsNaN() {
		logging.Warn("correction: %s: некорректное число в ReplicatedMovement.Rotation %v", a.Name(), rm.Rotation)
		c.metrics.inc(func(m *Metrics) prometheus.Counter { return m.NaNWarnings })
	}
}

func (c *Component) String() string {
	return fmt.Sprintf("LocationCorrection{owner=%d world=%q origin=%v need=%t}",
		c.ownerID, c.worldName, c.worldLocation.Get(), c.needCorrection.Get())
}
