package vec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVec3_Arithmetic(t *testing.T) {
	a := Vec3{X: 1000, Y: -20, Z: 3}
	b := Vec3{X: 5, Y: 5, Z: 5}

	assert.Equal(t, Vec3{X: 1005, Y: -15, Z: 8}, a.Add(b), "Сложение векторов")
	assert.Equal(t, a, a.Add(b).Sub(b), "Вычитание обратно сложению")
	assert.True(t, Zero3.IsZero())
	assert.False(t, a.IsZero())
	assert.Equal(t, Vec3Float{X: 1000, Y: -20, Z: 3}, a.ToFloat())
}

func TestVec3Float_ContainsNaN(t *testing.T) {
	assert.False(t, Vec3Float{X: 1, Y: 2, Z: 3}.ContainsNaN())
	assert.True(t, Vec3Float{X: math.NaN()}.ContainsNaN(), "NaN должен обнаруживаться")
	assert.True(t, Vec3Float{Z: math.Inf(1)}.ContainsNaN(), "Бесконечность тоже считается некорректной")
	assert.True(t, Rotator{Yaw: math.NaN()}.ContainsNaN())
	assert.False(t, Rotator{Yaw: 90}.ContainsNaN())
}

func TestRotator_Quaternion(t *testing.T) {
	q := Rotator{}.Quaternion()
	assert.Equal(t, IdentityQuat, q, "Нулевой поворот даёт единичный кватернион")

	q = Rotator{Yaw: 180}.Quaternion()
	assert.InDelta(t, 1.0, math.Abs(q.Z), 1e-9)
	assert.InDelta(t, 0.0, q.W, 1e-9)
}
