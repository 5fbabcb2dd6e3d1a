package host

import (
	"fmt"

	"github.com/annel0/related-world/internal/hook"
	"github.com/annel0/related-world/internal/logging"
	"github.com/annel0/related-world/internal/rebase"
	"github.com/annel0/related-world/internal/replication"
	"github.com/annel0/related-world/internal/vec"
)

// ActorID идентификатор сущности внутри мира хоста
type ActorID uint64

// Component поведение, прикрепляемое к сущности
type Component interface {
	// InitializeComponent вызывается при прикреплении к сущности
	InitializeComponent(owner *Actor)
}

// PreReplicator компонент, которому нужен вызов перед каждым проходом репликации
type PreReplicator interface {
	PreReplication()
}

// Replicated компонент с реплицируемыми полями
type Replicated interface {
	Tracker() *replication.Tracker
	// NewReplica создаёт неинициализированный компонент того же типа для наблюдателя
	NewReplica() Component
}

// Actor сетевая сущность хоста
type Actor struct {
	id       ActorID
	name     string
	class    *hook.Class
	world    *World
	role     NetRole
	template bool

	pendingKill       bool
	replicateMovement bool
	savedRepPhysics   bool

	root     *SceneComponent
	velocity vec.Vec3Float

	tracker     *replication.Tracker
	repMovement *replication.Field[RepMovement]

	components []Component

	movementMode        uint8
	base                string
	baseBone            string
	lastAdjustTimestamp float32
}

func newActor(w *World, id ActorID, p SpawnParams, class *hook.Class) *Actor {
	a := &Actor{
		id:                id,
		name:              p.Name,
		class:             class,
		world:             w,
		role:              p.Role,
		template:          p.Template,
		replicateMovement: p.ReplicateMovement,
		root:              p.Root,
	}
	if a.name == "" {
		a.name = fmt.Sprintf("%s_%d", class.Name, id)
	}
	a.tracker = replication.NewTracker(fmt.Sprintf("actor:%d", id))
	a.repMovement = replication.NewField(a.tracker, "ReplicatedMovement", replication.CondNone, RepMovement{}).
		OnRep(a.dispatchOnRepReplicatedMovement)
	return a
}

// ClassName имя класса для таблицы диспетчеризации
func (a *Actor) ClassName() string { return a.class.Name }

// Class класс сущности в таблице диспетчеризации
func (a *Actor) Class() *hook.Class { return a.class }

// IsA принадлежит ли сущность классу className или его наследнику
func (a *Actor) IsA(className string) bool {
	other := a.world.Classes().Find(className)
	return other != nil && a.class.IsChildOf(other)
}

// ID идентификатор сущности
func (a *Actor) ID() ActorID { return a.id }

// Name имя сущности
func (a *Actor) Name() string { return a.name }

// World мир хоста
func (a *Actor) World() *World { return a.world }

// Role сетевая роль
func (a *Actor) Role() NetRole { return a.role }

// SetRole меняет сетевую роль
func (a *Actor) SetRole(role NetRole) { a.role = role }

// HasAuthority является ли экземпляр авторитетным
func (a *Actor) HasAuthority() bool { return a.role == RoleAuthority }

// IsTemplate является ли экземпляр шаблоном класса
func (a *Actor) IsTemplate() bool { return a.template }

// IsPendingKill помечена ли сущность к уничтожению
func (a *Actor) IsPendingKill() bool { return a.pendingKill }

// IsReplicatingMovement реплицирует ли сущность движение
func (a *Actor) IsReplicatingMovement() bool { return a.replicateMovement }

// SetReplicateMovement включает/выключает репликацию движения
func (a *Actor) SetReplicateMovement(v bool) { a.replicateMovement = v }

// Root корневой пространственный компонент или nil
func (a *Actor) Root() *SceneComponent { return a.root }

// Location позиция корня
func (a *Actor) Location() vec.Vec3Float {
	if a.root == nil {
		return vec.ZeroFloat
	}
	return a.root.Location()
}

// Rotation ориентация корня
func (a *Actor) Rotation() vec.Rotator {
	if a.root == nil {
		return vec.Rotator{}
	}
	return a.root.Rotation()
}

// SetActorLocationAndRotation перемещает корень без проверки столкновений
func (a *Actor) SetActorLocationAndRotation(loc vec.Vec3Float, rot vec.Rotator) bool {
	if a.root == nil {
		return false
	}
	a.root.SetWorldLocationAndRotation(loc, rot)
	return true
}

// Velocity текущая линейная скорость
func (a *Actor) Velocity() vec.Vec3Float { return a.velocity }

// SetVelocity задаёт скорость на стороне авторитета
func (a *Actor) SetVelocity(v vec.Vec3Float) { a.velocity = v }

// PostNetReceiveVelocity применяет реплицированную скорость
func (a *Actor) PostNetReceiveVelocity(v vec.Vec3Float) { a.velocity = v }

// Tracker реплицируемые поля сущности
func (a *Actor) Tracker() *replication.Tracker { return a.tracker }

// ReplicatedMovement последнее реплицированное состояние движения
func (a *Actor) ReplicatedMovement() RepMovement { return a.repMovement.Get() }

// SetReplicatedMovement записывает состояние движения на стороне авторитета
func (a *Actor) SetReplicatedMovement(rm RepMovement) bool { return a.repMovement.Set(rm) }

// GatherCurrentMovement снимает текущее движение корня в реплицируемое поле.
// Прикреплённые сущности движутся вместе с родителем и не реплицируют позицию.
func (a *Actor) GatherCurrentMovement() {
	if !a.replicateMovement || a.root == nil || a.root.AttachParent() != nil {
		return
	}
	a.repMovement.Set(RepMovement{
		LinearVelocity: a.velocity,
		Location:       rebase.RebaseOntoZeroOrigin(a.root.Location(), a.world.OriginLocation()),
		Rotation:       a.root.Rotation(),
		RepPhysics:     a.root.IsSimulatingPhysics(),
	})
}

// AddComponent прикрепляет компонент и инициализирует его
func (a *Actor) AddComponent(c Component) {
	a.components = append(a.components, c)
	c.InitializeComponent(a)
}

// Components прикреплённые компоненты
func (a *Actor) Components() []Component {
	return a.components
}

// FindComponent возвращает первый компонент типа T
func FindComponent[T any](a *Actor) (T, bool) {
	for _, c := range a.components {
		if typed, ok := c.(T); ok {
			return typed, true
		}
	}
	var zero T
	return zero, false
}

func (a *Actor) dispatchOnRepReplicatedMovement() {
	if err := a.world.classes.Call(a, FuncOnRepReplicatedMovement, hook.NewFrame()); err != nil {
		logging.Error("actor %s: %v", a.name, err)
	}
}

// OnRepReplicatedMovement обработчик реплицированного движения по умолчанию
func (a *Actor) OnRepReplicatedMovement() {
	if !a.replicateMovement || a.root == nil {
		return
	}
	rm := a.ReplicatedMovement()

	if a.savedRepPhysics != rm.RepPhysics {
		a.SyncReplicatedPhysicsSimulation()
		a.savedRepPhysics = rm.RepPhysics
	}

	if rm.RepPhysics {
		if !a.root.IsWelded() {
			a.postNetReceivePhysicState(rm)
		}
		return
	}

	if a.root.AttachParent() == nil && a.role == RoleSimulatedProxy {
		a.PostNetReceiveVelocity(rm.LinearVelocity)
		a.postNetReceiveLocationAndRotation(rm)
	}
}

// SyncReplicatedPhysicsSimulation приводит симуляцию физики к реплицированному флагу.
// При выключении снимается цель репликации, чтобы не применять устаревшую.
func (a *Actor) SyncReplicatedPhysicsSimulation() {
	rm := a.ReplicatedMovement()
	if !a.replicateMovement || a.root == nil || a.root.IsSimulatingPhysics() == rm.RepPhysics {
		return
	}
	if !a.root.IsPrimitive() {
		return
	}
	a.root.SetSimulatePhysics(rm.RepPhysics)
	if !rm.RepPhysics {
		a.world.physics.RemoveReplicatedTarget(a.root)
	}
}

func (a *Actor) postNetReceivePhysicState(rm RepMovement) {
	if !a.root.IsPrimitive() {
		return
	}
	loc := rebase.RebaseOntoLocalOrigin(rm.Location, a.world.OriginLocation())
	a.root.SetRigidBodyReplicatedTarget(NewRigidBodyState(rm, loc))
}

func (a *Actor) postNetReceiveLocationAndRotation(rm RepMovement) {
	loc := rebase.RebaseOntoLocalOrigin(rm.Location, a.world.OriginLocation())
	if a.root.IsRegistered() && (loc != a.Location() || rm.Rotation != a.Rotation()) {
		a.SetActorLocationAndRotation(loc, rm.Rotation)
	}
}
