package host

import "github.com/annel0/related-world/internal/vec"

// BodyInstance физическое тело примитивного компонента
type BodyInstance struct {
	simulating bool
	welded     bool
}

// SceneComponent пространственное представление сущности.
// Компонент с телом считается примитивным и может симулировать физику.
type SceneComponent struct {
	world      *World
	location   vec.Vec3Float
	rotation   vec.Rotator
	parent     *SceneComponent
	registered bool
	body       *BodyInstance
}

// NewSceneComponent создаёт компонент без физического тела
func NewSceneComponent() *SceneComponent {
	return &SceneComponent{}
}

// NewPrimitiveComponent создаёт компонент с физическим телом
func NewPrimitiveComponent() *SceneComponent {
	return &SceneComponent{body: &BodyInstance{}}
}

func (c *SceneComponent) register(w *World) {
	c.world = w
	c.registered = true
}

// Location мировая позиция компонента
func (c *SceneComponent) Location() vec.Vec3Float { return c.location }

// Rotation мировая ориентация компонента
func (c *SceneComponent) Rotation() vec.Rotator { return c.rotation }

// SetWorldLocation перемещает компонент
func (c *SceneComponent) SetWorldLocation(loc vec.Vec3Float) {
	c.location = loc
}

// SetWorldLocationAndRotation перемещает и поворачивает компонент
func (c *SceneComponent) SetWorldLocationAndRotation(loc vec.Vec3Float, rot vec.Rotator) {
	c.location = loc
	c.rotation = rot
}

// IsRegistered зарегистрирован ли компонент в мире
func (c *SceneComponent) IsRegistered() bool { return c.registered }

// AttachParent родитель прикрепления или nil
func (c *SceneComponent) AttachParent() *SceneComponent { return c.parent }

// AttachTo прикрепляет компонент к родителю; weld сваривает физические тела
func (c *SceneComponent) AttachTo(parent *SceneComponent, weld bool) {
	c.parent = parent
	if c.body != nil {
		c.body.welded = weld && parent != nil && parent.body != nil
	}
}

// Detach открепляет компонент
func (c *SceneComponent) Detach() {
	c.parent = nil
	if c.body != nil {
		c.body.welded = false
	}
}

// IsPrimitive есть ли у компонента физическое тело
func (c *SceneComponent) IsPrimitive() bool { return c.body != nil }

// IsSimulatingPhysics симулирует ли тело физику
func (c *SceneComponent) IsSimulatingPhysics() bool {
	return c.body != nil && c.body.simulating
}

// SetSimulatePhysics включает/выключает симуляцию; для непримитивных ничего не делает
func (c *SceneComponent) SetSimulatePhysics(simulate bool) {
	if c.body == nil {
		return
	}
	c.body.simulating = simulate
}

// IsWelded сварено ли тело с телом родителя
func (c *SceneComponent) IsWelded() bool {
	return c.body != nil && c.body.welded
}

// SetRigidBodyReplicatedTarget передаёт цель репликации физике мира
func (c *SceneComponent) SetRigidBodyReplicatedTarget(state RigidBodyState) {
	if c.body == nil || c.world == nil {
		return
	}
	c.world.physics.SetReplicatedTarget(c, state)
}
