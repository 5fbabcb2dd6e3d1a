package host

import "github.com/annel0/related-world/internal/vec"

// NetRole сетевая роль экземпляра сущности
type NetRole uint8

const (
	RoleNone NetRole = iota
	RoleSimulatedProxy
	RoleAutonomousProxy
	RoleAuthority
)

func (r NetRole) String() string {
	switch r {
	case RoleSimulatedProxy:
		return "simulated_proxy"
	case RoleAutonomousProxy:
		return "autonomous_proxy"
	case RoleAuthority:
		return "authority"
	default:
		return "none"
	}
}

// RepMovement реплицируемое состояние движения сущности.
// Location задаётся в системе координат мира-владельца на стороне авторитета.
type RepMovement struct {
	LinearVelocity       vec.Vec3Float
	AngularVelocity      vec.Vec3Float
	Location             vec.Vec3Float
	Rotation             vec.Rotator
	SimulatedPhysicSleep bool
	RepPhysics           bool
}

// RigidBodyFlags флаги цели репликации физического тела
type RigidBodyFlags uint8

const (
	RigidBodyNone        RigidBodyFlags = 0
	RigidBodySleeping    RigidBodyFlags = 1 << 0
	RigidBodyNeedsUpdate RigidBodyFlags = 1 << 1
)

// RigidBodyState цель, к которой физика подтягивает тело
type RigidBodyState struct {
	Position   vec.Vec3Float
	Quaternion vec.Quat
	LinVel     vec.Vec3Float
	AngVel     vec.Vec3Float
	Flags      RigidBodyFlags
}

// NewRigidBodyState собирает цель физики из реплицированного движения и уже пересчитанной позиции
func NewRigidBodyState(rm RepMovement, position vec.Vec3Float) RigidBodyState {
	flags := RigidBodyNeedsUpdate
	if rm.SimulatedPhysicSleep {
		flags |= RigidBodySleeping
	}
	return RigidBodyState{
		Position:   position,
		Quaternion: rm.Rotation.Quaternion(),
		LinVel:     rm.LinearVelocity,
		AngVel:     rm.AngularVelocity,
		Flags:      flags,
	}
}
