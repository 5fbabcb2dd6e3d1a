package host

// PhysicsReplication хранит цели репликации физических тел мира.
// Сама симуляция — внешний движок; здесь только контракт установки и снятия целей.
type PhysicsReplication struct {
	targets map[*SceneComponent]RigidBodyState
	sets    uint64
	removes uint64
}

// NewPhysicsReplication создаёт пустой набор целей
func NewPhysicsReplication() *PhysicsReplication {
	return &PhysicsReplication{targets: make(map[*SceneComponent]RigidBodyState)}
}

// SetReplicatedTarget задаёт цель для тела
func (p *PhysicsReplication) SetReplicatedTarget(c *SceneComponent, state RigidBodyState) {
	p.targets[c] = state
	p.sets++
}

// RemoveReplicatedTarget снимает цель тела
func (p *PhysicsReplication) RemoveReplicatedTarget(c *SceneComponent) {
	if _, ok := p.targets[c]; ok {
		delete(p.targets, c)
	}
	p.removes++
}

// Target возвращает текущую цель тела
func (p *PhysicsReplication) Target(c *SceneComponent) (RigidBodyState, bool) {
	st, ok := p.targets[c]
	return st, ok
}

// TargetCount количество активных целей
func (p *PhysicsReplication) TargetCount() int {
	return len(p.targets)
}

// SetCount сколько раз устанавливались цели
func (p *PhysicsReplication) SetCount() uint64 {
	return p.sets
}

// RemoveCount сколько раз снимались цели
func (p *PhysicsReplication) RemoveCount() uint64 {
	return p.removes
}

// Tick переносит симулируемые тела в их цели и сбрасывает NeedsUpdate
func (p *PhysicsReplication) Tick() {
	for c, st := range p.targets {
		if st.Flags&RigidBodyNeedsUpdate == 0 || !c.IsSimulatingPhysics() {
			continue
		}
		c.location = st.Position
		st.Flags &^= RigidBodyNeedsUpdate
		p.targets[c] = st
	}
}
