//go:build !production

package correction

import (
	"math"
	"testing"

	"github.com/annel0/related-world/internal/hook"
	"github.com/annel0/related-world/internal/host"
	"github.com/annel0/related-world/internal/logging"
	"github.com/annel0/related-world/internal/vec"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNaNDiagnostic_WarnsAndContinues(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logging.UseLogger(logging.FromZap(zap.New(core)))
	defer logging.CloseDefaultLogger()

	w := host.NewWorld("client", hook.NewClassTable())
	a, err := w.SpawnActor(host.SpawnParams{Role: host.RoleSimulatedProxy, ReplicateMovement: true})
	require.NoError(t, err)

	metrics := NewMetrics(nil)
	comp := New(Options{Metrics: metrics})
	a.AddComponent(comp)
	comp.NotifyWorldChanged(&fakeWorld{name: "annex", net: true})

	a.SetReplicatedMovement(host.RepMovement{
		Location:       vec.Vec3Float{X: math.NaN()},
		Rotation:       vec.Rotator{Yaw: math.Inf(1)},
		LinearVelocity: vec.Vec3Float{Y: 4},
	})
	comp.OnRepReplicatedMovement()

	assert.Equal(t, 2, logs.Len())
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.NaNWarnings))
	assert.Equal(t, vec.Vec3Float{Y: 4}, a.Velocity(), "Обработка не прерывается")
}

func TestNaNDiagnostic_PhysicsTarget(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logging.UseLogger(logging.FromZap(zap.New(core)))
	defer logging.CloseDefaultLogger()

	w := host.NewWorld("client", hook.NewClassTable())
	a, err := w.SpawnActor(host.SpawnParams{Role: host.RoleSimulatedProxy, ReplicateMovement: true, RootKind: host.RootPrimitive})
	require.NoError(t, err)

	metrics := NewMetrics(nil)
	comp := New(Options{Metrics: metrics})
	a.AddComponent(comp)
	comp.NotifyWorldChanged(&fakeWorld{name: "annex", origin: vec.Vec3{X: 10}, net: true})

	a.SetReplicatedMovement(host.RepMovement{Location: vec.Vec3Float{Z: math.NaN()}, RepPhysics: true})
	comp.OnRepReplicatedMovement()

	assert.Equal(t, 1, logs.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.NaNWarnings))
	assert.Equal(t, 1, w.Physics().TargetCount(), "Цель всё равно выставляется")
}
