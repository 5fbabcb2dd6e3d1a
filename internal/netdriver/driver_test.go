package netdriver

import (
	"errors"
	"testing"

	"github.com/annel0/related-world/internal/hook"
	"github.com/annel0/related-world/internal/host"
	"github.com/annel0/related-world/internal/replication"
	"github.com/annel0/related-world/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterComp реплицируемый компонент со счётчиком
type counterComp struct {
	tracker *replication.Tracker
	value   *replication.Field[int]
	pre     int
	reps    int
}

func newCounterComp() *counterComp {
	c := &counterComp{tracker: replication.NewTracker("counter")}
	c.value = replication.NewField(c.tracker, "Value", replication.CondNone, 0).OnRep(func() { c.reps++ })
	return c
}

func (c *counterComp) InitializeComponent(owner *host.Actor) {}
func (c *counterComp) PreReplication() { c.pre++ }
func (c *counterComp) Tracker() *replication.Tracker { return c.tracker }
func (c *counterComp) NewReplica() host.Component { return newCounterComp() }

func setup(t *testing.T) (*Driver, *Connection, *host.World) {
	table := hook.NewClassTable()
	server := host.NewWorld("server", table)
	d := New(server)
	conn := d.Connect("observer", host.NewWorld("client", table))
	return d, conn, server
}

func TestDriver_SpawnsReplicaAtReplicatedLocation(t *testing.T) {
	d, conn, server := setup(t)

	a, err := server.SpawnActor(host.SpawnParams{
		Name:              "box",
		Location:          vec.Vec3Float{X: 3, Y: 4},
		Rotation:          vec.Rotator{Yaw: 90},
		Role:              host.RoleAuthority,
		ReplicateMovement: true,
		RootKind:          host.RootScene,
	})
	require.NoError(t, err)
	comp := newCounterComp()
	a.AddComponent(comp)

	_, err = d.Tick()
	require.NoError(t, err)

	r := conn.Replica(a.ID())
	require.NotNil(t, r)
	assert.Equal(t, "box", r.Name())
	assert.Equal(t, host.RoleSimulatedProxy, r.Role())
	assert.Equal(t, vec.Vec3Float{X: 3, Y: 4}, r.Location())
	assert.Equal(t, vec.Rotator{Yaw: 90}, r.Rotation())
	assert.False(t, r.Root().IsPrimitive(), "Вид корня совпадает с авторитетом")
	assert.Equal(t, 1, comp.pre, "PreReplication вызывается перед проходом")

	replicaComp, ok := host.FindComponent[*counterComp](r)
	require.True(t, ok, "Реплицируемый компонент создаётся у копии")

	comp.value.Set(7)
	_, err = d.Tick()
	require.NoError(t, err)
	assert.Equal(t, 7, replicaComp.value.Get())
	assert.Equal(t, 1, replicaComp.reps)

	n, err := d.Tick()
	require.NoError(t, err)
	assert.Equal(t, 0, n, "Без изменений ничего не отправляется")
}

func TestDriver_ClientOriginAndDestroy(t *testing.T) {
	d, conn, server := setup(t)
	conn.Client().SetOriginLocation(vec.Vec3{X: 100})

	a, err := server.SpawnActor(host.SpawnParams{Role: host.RoleAuthority, ReplicateMovement: true, Location: vec.Vec3Float{X: 150}})
	require.NoError(t, err)
	_, err = d.Tick()
	require.NoError(t, err)

	r := conn.Replica(a.ID())
	require.NotNil(t, r)
	assert.Equal(t, vec.Vec3Float{X: 50}, r.Location(), "Копия в локальном начале координат наблюдателя")

	a.SetActorLocationAndRotation(vec.Vec3Float{X: 160}, vec.Rotator{})
	_, err = d.Tick()
	require.NoError(t, err)
	assert.Equal(t, vec.Vec3Float{X: 60}, r.Location())

	require.NoError(t, server.DestroyActor(a.ID()))
	_, err = d.Tick()
	require.NoError(t, err)
	assert.Nil(t, conn.Replica(a.ID()))
	assert.Empty(t, conn.Client().Actors())
}

func TestDriver_SkipsTemplates(t *testing.T) {
	d, conn, server := setup(t)
	tmpl, err := server.SpawnActor(host.SpawnParams{Template: true})
	require.NoError(t, err)

	_, err = d.Tick()
	require.NoError(t, err)
	assert.Nil(t, conn.Replica(tmpl.ID()))
}

func TestConnection_ClientAdjustPosition(t *testing.T) {
	d, conn, server := setup(t)

	ch, err := server.SpawnActor(host.SpawnParams{Class: host.ClassCharacter, Role: host.RoleAuthority})
	require.NoError(t, err)
	plain, err := server.SpawnActor(host.SpawnParams{Role: host.RoleAuthority})
	require.NoError(t, err)
	_, err = d.Tick()
	require.NoError(t, err)

	adj := host.ClientAdjustment{TimeStamp: 2, NewLoc: vec.Vec3Float{Z: 8}, NewVel: vec.Vec3Float{X: 1}, ServerMovementMode: 1}
	require.NoError(t, conn.ClientAdjustPosition(ch.ID(), adj))
	r := conn.Replica(ch.ID())
	assert.Equal(t, vec.Vec3Float{Z: 8}, r.Location())
	assert.Equal(t, uint8(1), r.MovementMode())

	err = conn.ClientAdjustPosition(plain.ID(), adj)
	assert.True(t, errors.Is(err, hook.ErrFunctionNotFound), "У Actor нет ClientAdjustPosition")

	err = conn.ClientAdjustPosition(999, adj)
	assert.True(t, errors.Is(err, host.ErrActorNotFound))
}

// moveSeenComp запоминает реплицированное движение сущности в момент своего уведомления
type moveSeenComp struct {
	owner   *host.Actor
	tracker *replication.Tracker
	value   *replication.Field[int]
	seen    []vec.Vec3Float
}

func newMoveSeenComp() *moveSeenComp {
	c := &moveSeenComp{tracker: replication.NewTracker("moveSeen")}
	c.value = replication.NewField(c.tracker, "Value", replication.CondNone, 0).OnRep(func() {
		c.seen = append(c.seen, c.owner.ReplicatedMovement().Location)
	})
	return c
}

func (c *moveSeenComp) InitializeComponent(owner *host.Actor) { c.owner = owner }
func (c *moveSeenComp) Tracker() *replication.Tracker         { return c.tracker }
func (c *moveSeenComp) NewReplica() host.Component            { return newMoveSeenComp() }

func TestDriver_ComponentSeesMovementOfSameTick(t *testing.T) {
	d, conn, server := setup(t)

	a, err := server.SpawnActor(host.SpawnParams{
		Location:          vec.Vec3Float{X: 5},
		Role:              host.RoleAuthority,
		ReplicateMovement: true,
	})
	require.NoError(t, err)
	comp := newMoveSeenComp()
	a.AddComponent(comp)
	comp.value.Set(1)

	_, err = d.Tick()
	require.NoError(t, err)

	replicaComp, ok := host.FindComponent[*moveSeenComp](conn.Replica(a.ID()))
	require.True(t, ok)
	assert.Equal(t, []vec.Vec3Float{{X: 5}}, replicaComp.seen, "Движение применено до уведомлений компонента")

	a.SetActorLocationAndRotation(vec.Vec3Float{X: 9}, vec.Rotator{})
	comp.value.Set(2)
	_, err = d.Tick()
	require.NoError(t, err)
	assert.Equal(t, []vec.Vec3Float{{X: 5}, {X: 9}}, replicaComp.seen)
}
