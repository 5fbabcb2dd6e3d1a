package correction

import (
	"context"
	"testing"

	"github.com/annel0/related-world/internal/hook"
	"github.com/annel0/related-world/internal/host"
	"github.com/annel0/related-world/internal/netdriver"
	"github.com/annel0/related-world/internal/relworld"
	"github.com/annel0/related-world/internal/replication"
	"github.com/annel0/related-world/internal/vec"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	table    *hook.ClassTable
	registry *hook.Registry
	server   *host.World
	client   *host.World
	director *relworld.Director
	driver   *netdriver.Driver
	conn     *netdriver.Connection
	metrics  *Metrics
}

func newHarness(t *testing.T) *harness {
	table := hook.NewClassTable()
	h := &harness{
		table:    table,
		registry: hook.NewRegistry(table),
		server:   host.NewWorld("server", table),
		client:   host.NewWorld("client", table),
		metrics:  NewMetrics(prometheus.NewRegistry()),
	}
	require.NoError(t, InstallHooks(h.registry))
	h.registry.EnableAll()
	t.Cleanup(h.registry.DisableAll)

	h.director = relworld.NewDirector(h.server, relworld.Options{})
	h.driver = netdriver.New(h.server)
	h.conn = h.driver.Connect("observer", h.client)
	return h
}

func (h *harness) spawn(t *testing.T, name string, loc vec.Vec3Float, world string) (*host.Actor, *Component) {
	a, err := h.server.SpawnActor(host.SpawnParams{
		Name:              name,
		Location:          loc,
		Role:              host.RoleAuthority,
		ReplicateMovement: true,
		RootKind:          host.RootPrimitive,
	})
	require.NoError(t, err)
	if world != "" {
		require.NoError(t, h.director.AddActor(a, world))
	}
	comp := New(Options{Resolver: h.director, Metrics: h.metrics})
	a.AddComponent(comp)
	return a, comp
}

func (h *harness) tick(t *testing.T) {
	_, err := h.driver.Tick()
	require.NoError(t, err)
}

func TestAnnexScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.director.CreateWorld(ctx, "Annex", vec.Vec3{X: 1000}, true)
	require.NoError(t, err)

	e, comp := h.spawn(t, "E", vec.Vec3Float{X: 5}, "Annex")
	e.SetVelocity(vec.Vec3Float{Y: 2})
	require.True(t, comp.NeedsCorrection())
	require.Equal(t, vec.Vec3{X: 1000}, comp.WorldLocation())

	h.tick(t)
	replica := h.conn.Replica(e.ID())
	require.NotNil(t, replica)
	assert.Equal(t, vec.Vec3Float{X: 1005}, replica.Location(), "Наблюдатель видит позицию в основном пространстве")
	assert.Equal(t, vec.Vec3Float{Y: 2}, replica.Velocity())

	require.NoError(t, h.director.TranslateWorld(ctx, "Annex", vec.Vec3{X: 2000}))
	h.tick(t)

	assert.Equal(t, vec.Vec3Float{X: 2005}, replica.Location(), "Позиция учитывает новое начало координат")
	assert.Equal(t, vec.Vec3Float{Y: 2}, replica.Velocity(), "Скорость не меняется")
	assert.Equal(t, uint64(0), h.client.Physics().SetCount(), "Цели физики не выставляются")
	assert.Equal(t, vec.Vec3Float{X: 5}, e.Location(), "Авторитет остаётся в координатах мира")
}

func TestMovementUpdateAfterTranslate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.director.CreateWorld(ctx, "Annex", vec.Vec3{X: 1000}, true)
	require.NoError(t, err)
	e, _ := h.spawn(t, "E", vec.Vec3Float{X: 5}, "Annex")
	h.tick(t)

	require.NoError(t, h.director.TranslateWorld(ctx, "Annex", vec.Vec3{X: 2000}))
	e.SetActorLocationAndRotation(vec.Vec3Float{X: 7}, vec.Rotator{Yaw: 45})
	h.tick(t)

	replica := h.conn.Replica(e.ID())
	assert.Equal(t, vec.Vec3Float{X: 2007}, replica.Location())
	assert.Equal(t, vec.Rotator{Yaw: 45}, replica.Rotation())
}

// fakeWorld мир, сдвигаемый в обход реестра
type fakeWorld struct {
	name   string
	origin vec.Vec3
	net    bool
}

func (w *fakeWorld) Name() string     { return w.name }
func (w *fakeWorld) Origin() vec.Vec3 { return w.origin }
func (w *fakeWorld) IsNetWorld() bool { return w.net }

type fakeResolver struct {
	world *fakeWorld
}

func (r *fakeResolver) ResolveForActor(a *host.Actor) (relworld.SubWorld, bool) {
	if r.world == nil {
		return nil, false
	}
	return r.world, true
}

func (r *fakeResolver) Lookup(name string) (relworld.SubWorld, bool) {
	if r.world == nil || r.world.name != name {
		return nil, false
	}
	return r.world, true
}

func TestPreReplication_PicksUpOriginShift(t *testing.T) {
	w := host.NewWorld("server", hook.NewClassTable())
	a, err := w.SpawnActor(host.SpawnParams{Role: host.RoleAuthority, ReplicateMovement: true})
	require.NoError(t, err)

	world := &fakeWorld{name: "annex", origin: vec.Vec3{X: 10}, net: true}
	comp := New(Options{Resolver: &fakeResolver{world: world}})
	a.AddComponent(comp)
	assert.Equal(t, vec.Vec3{X: 10}, comp.WorldLocation())

	var changes []string
	comp.Tracker().OnChange(func(owner, field string, value any) { changes = append(changes, field) })

	comp.PreReplication()
	assert.Empty(t, changes, "Без сдвига поле не переписывается")

	world.origin = vec.Vec3{X: 20}
	comp.PreReplication()
	assert.Equal(t, vec.Vec3{X: 20}, comp.WorldLocation())
	assert.Equal(t, []string{FieldWorldLocation}, changes)

	a.SetRole(host.RoleSimulatedProxy)
	world.origin = vec.Vec3{X: 30}
	comp.PreReplication()
	assert.Equal(t, vec.Vec3{X: 20}, comp.WorldLocation(), "Не авторитет не пишет поле")
}

func TestInitialize_AbstractWorldAndTemplate(t *testing.T) {
	w := host.NewWorld("server", hook.NewClassTable())

	a, err := w.SpawnActor(host.SpawnParams{Role: host.RoleAuthority})
	require.NoError(t, err)
	comp := New(Options{Resolver: &fakeResolver{world: &fakeWorld{name: "abstract", origin: vec.Vec3{X: 1}}}})
	a.AddComponent(comp)
	assert.True(t, comp.NeedsCorrection(), "Несетевой мир тоже задаёт начало координат")
	assert.Equal(t, vec.Vec3{X: 1}, comp.WorldLocation())
	_, ok := comp.SubWorld()
	assert.True(t, ok)

	tmpl, err := w.SpawnActor(host.SpawnParams{Template: true})
	require.NoError(t, err)
	tc := New(Options{Resolver: &fakeResolver{world: &fakeWorld{name: "annex", net: true}}})
	tmpl.AddComponent(tc)
	assert.False(t, tc.NeedsCorrection())
	assert.Nil(t, tc.Owner(), "Шаблон не привязывается")
}

func TestNotifyWorldChanged_Sticky(t *testing.T) {
	w := host.NewWorld("server", hook.NewClassTable())
	a, err := w.SpawnActor(host.SpawnParams{Role: host.RoleAuthority})
	require.NoError(t, err)
	comp := New(Options{})
	a.AddComponent(comp)
	require.False(t, comp.NeedsCorrection())

	comp.NotifyWorldChanged(&fakeWorld{name: "annex", origin: vec.Vec3{Y: 5}, net: true})
	assert.True(t, comp.NeedsCorrection())
	assert.True(t, comp.InitialReplication())
	assert.Equal(t, vec.Vec3{Y: 5}, comp.WorldLocation())

	comp.NotifyWorldChanged(nil)
	assert.True(t, comp.NeedsCorrection(), "Коррекция не выключается")
	assert.Equal(t, vec.Vec3{Y: 5}, comp.WorldLocation(), "Последнее начало координат сохраняется")

	comp.NotifyWorldLocationChanged(vec.Vec3{Y: 9})
	assert.Equal(t, vec.Vec3{Y: 9}, comp.WorldLocation())
}

func TestMoveActorToAbstractWorld(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.director.CreateWorld(ctx, "Annex", vec.Vec3{X: 1000}, true)
	require.NoError(t, err)
	_, err = h.director.CreateWorld(ctx, "Abstract", vec.Vec3{X: 3000}, false)
	require.NoError(t, err)

	e, comp := h.spawn(t, "E", vec.Vec3Float{X: 5}, "Annex")
	h.tick(t)
	replica := h.conn.Replica(e.ID())
	require.NotNil(t, replica)
	require.Equal(t, vec.Vec3Float{X: 1005}, replica.Location())

	require.NoError(t, h.director.MoveActor(e, "Abstract"))
	assert.Equal(t, vec.Vec3{X: 3000}, comp.WorldLocation())
	w, ok := comp.SubWorld()
	require.True(t, ok)
	assert.Equal(t, "Abstract", w.Name())

	h.tick(t)
	assert.Equal(t, vec.Vec3Float{X: 3005}, replica.Location(), "Наблюдатель переходит в координаты нового мира")
}

func TestNeedCorrection_StickyOnObserver(t *testing.T) {
	comp := New(Options{})
	require.NoError(t, comp.Tracker().Receive([]replication.Value{{Field: FieldNeedCorrection, Data: true}}))
	require.NoError(t, comp.Tracker().Receive([]replication.Value{{Field: FieldNeedCorrection, Data: false}}))
	assert.True(t, comp.NeedsCorrection())
}

func TestOneShotInitialSnap(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.director.CreateWorld(ctx, "Annex", vec.Vec3{X: 1000}, true)
	require.NoError(t, err)
	e, _ := h.spawn(t, "E", vec.ZeroFloat, "Annex")

	h.tick(t)
	replica := h.conn.Replica(e.ID())
	require.NotNil(t, replica)
	assert.Equal(t, vec.Vec3Float{X: 1000}, replica.Location())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.InitialSnaps))

	// копия снова в нуле, но первая синхронизация уже была
	replica.Root().SetWorldLocation(vec.ZeroFloat)
	for i := 0; i < 5; i++ {
		e.SetActorLocationAndRotation(vec.Vec3Float{X: float64(i + 1)}, vec.Rotator{})
		h.tick(t)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.InitialSnaps), "Разовый перенос не повторяется")
	assert.Equal(t, vec.Vec3Float{X: 1005}, replica.Location())

	// новое соединение получает свою первую синхронизацию
	second := h.driver.Connect("late", host.NewWorld("late", h.table))
	e.SetActorLocationAndRotation(vec.ZeroFloat, vec.Rotator{})
	h.tick(t)
	assert.Equal(t, vec.Vec3Float{X: 1000}, second.Replica(e.ID()).Location())
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.InitialSnaps))
}

func TestPhysicsCorrection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.director.CreateWorld(ctx, "Annex", vec.Vec3{X: 1000}, true)
	require.NoError(t, err)
	e, _ := h.spawn(t, "Crate", vec.Vec3Float{X: 5}, "Annex")
	e.Root().SetSimulatePhysics(true)

	h.tick(t)
	replica := h.conn.Replica(e.ID())
	require.NotNil(t, replica)
	assert.True(t, replica.Root().IsSimulatingPhysics(), "Симуляция включена по реплицированному флагу")

	target, ok := h.client.Physics().Target(replica.Root())
	require.True(t, ok)
	assert.Equal(t, vec.Vec3Float{X: 1005}, target.Position)
	assert.True(t, target.Flags&host.RigidBodyNeedsUpdate != 0)
	assert.Equal(t, uint64(1), h.client.Physics().SetCount(), "Первая синхронизация выставляет цель один раз")
	assert.Zero(t, testutil.ToFloat64(h.metrics.PassThrough), "Обработчик по умолчанию не вызывается")
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.PhysicsSyncs))

	require.NoError(t, h.director.TranslateWorld(ctx, "Annex", vec.Vec3{X: 3000}))
	h.tick(t)
	target, ok = h.client.Physics().Target(replica.Root())
	require.True(t, ok)
	assert.Equal(t, vec.Vec3Float{X: 3005}, target.Position)

	e.Root().SetSimulatePhysics(false)
	h.tick(t)
	assert.False(t, replica.Root().IsSimulatingPhysics())
	_, ok = h.client.Physics().Target(replica.Root())
	assert.False(t, ok, "Устаревшая цель снимается при выключении физики")
	assert.Equal(t, vec.Vec3Float{X: 3005}, replica.Location())
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.PhysicsSyncs))
	assert.Zero(t, testutil.ToFloat64(h.metrics.PassThrough))
}

func TestPhysicsCorrection_WeldedSkipped(t *testing.T) {
	table := hook.NewClassTable()
	reg := hook.NewRegistry(table)
	require.NoError(t, InstallHooks(reg))
	reg.EnableAll()
	defer reg.DisableAll()

	w := host.NewWorld("client", table)
	parent, err := w.SpawnActor(host.SpawnParams{RootKind: host.RootPrimitive})
	require.NoError(t, err)
	a, err := w.SpawnActor(host.SpawnParams{Role: host.RoleSimulatedProxy, ReplicateMovement: true, RootKind: host.RootPrimitive})
	require.NoError(t, err)
	a.Root().AttachTo(parent.Root(), true)

	metrics := NewMetrics(nil)
	comp := New(Options{Metrics: metrics})
	a.AddComponent(comp)
	require.NoError(t, comp.Tracker().Receive([]replication.Value{
		{Field: FieldNeedCorrection, Data: true},
		{Field: FieldWorldLocation, Data: vec.Vec3{X: 100}},
	}))

	require.NoError(t, a.Tracker().Receive([]replication.Value{{Field: "ReplicatedMovement", Data: host.RepMovement{RepPhysics: true, Location: vec.Vec3Float{X: 1}}}}))
	assert.Equal(t, 0, w.Physics().TargetCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WeldedSkips))
}

func TestKinematic_AttachedAndAuthorityIgnored(t *testing.T) {
	w := host.NewWorld("client", hook.NewClassTable())
	parent, err := w.SpawnActor(host.SpawnParams{RootKind: host.RootScene})
	require.NoError(t, err)
	attached, err := w.SpawnActor(host.SpawnParams{Role: host.RoleSimulatedProxy, ReplicateMovement: true})
	require.NoError(t, err)
	attached.Root().AttachTo(parent.Root(), false)
	auth, err := w.SpawnActor(host.SpawnParams{Role: host.RoleAuthority, ReplicateMovement: true})
	require.NoError(t, err)

	for _, a := range []*host.Actor{attached, auth} {
		comp := New(Options{})
		a.AddComponent(comp)
		comp.NotifyWorldChanged(&fakeWorld{name: "annex", origin: vec.Vec3{X: 100}, net: true})
		a.SetReplicatedMovement(host.RepMovement{Location: vec.Vec3Float{X: 1}, LinearVelocity: vec.Vec3Float{X: 1}})
		comp.OnRepReplicatedMovement()
		assert.Equal(t, vec.ZeroFloat, a.Location())
		assert.Equal(t, vec.ZeroFloat, a.Velocity())
	}
}

func TestDestroyedOwnerResolvesAbsent(t *testing.T) {
	w := host.NewWorld("client", hook.NewClassTable())
	a, err := w.SpawnActor(host.SpawnParams{Role: host.RoleSimulatedProxy, ReplicateMovement: true})
	require.NoError(t, err)
	comp := New(Options{})
	a.AddComponent(comp)
	require.NotNil(t, comp.Owner())

	require.NoError(t, w.DestroyActor(a.ID()))
	assert.Nil(t, comp.Owner())

	// тот же идентификатор у другой сущности не оживляет ссылку
	_, err = w.SpawnActor(host.SpawnParams{ID: a.ID()})
	require.NoError(t, err)
	assert.Nil(t, comp.Owner())

	assert.NotPanics(t, func() {
		comp.OnRepReplicatedMovement()
		comp.OnRepInitial()
		comp.PreReplication()
	})
}

func TestReplicaDestroyedWithAuthority(t *testing.T) {
	h := newHarness(t)
	e, _ := h.spawn(t, "E", vec.Vec3Float{X: 1}, "")
	h.tick(t)
	require.NotNil(t, h.conn.Replica(e.ID()))

	require.NoError(t, h.server.DestroyActor(e.ID()))
	h.tick(t)
	assert.Nil(t, h.conn.Replica(e.ID()))
	assert.Nil(t, h.client.Actor(e.ID()))
}
