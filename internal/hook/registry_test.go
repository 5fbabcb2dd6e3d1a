package hook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndToggle(t *testing.T) {
	table, fn := newTestTable()
	table.Find("Character").AddNative("ClientAdjustPosition", FuncNet|FuncClient, func(Object, *Frame) {})

	reg := NewRegistry(table)
	_, err := reg.Register("Actor", "OnRep_ReplicatedMovement", func(Object, *Frame) {}, FuncNone)
	require.NoError(t, err)
	_, err = reg.Register("Character", "ClientAdjustPosition", func(Object, *Frame) {}, FuncReliable)
	require.NoError(t, err)

	_, err = reg.Register("Actor", "OnRep_ReplicatedMovement", func(Object, *Frame) {}, FuncNone)
	assert.Error(t, err, "Повторная регистрация слота запрещена")

	assert.Panics(t, func() {
		reg.MustRegister("Actor", "Missing", func(Object, *Frame) {}, FuncNone)
	})

	reg.EnableAll()
	for _, st := range reg.Statuses() {
		assert.True(t, st.Enabled, st.Function)
	}
	h, ok := reg.Get("Character", "ClientAdjustPosition")
	require.True(t, ok)
	assert.True(t, h.Function().Flags.Has(FuncReliable))

	reg.EnableAll()
	reg.DisableAll()
	reg.DisableAll()
	for _, st := range reg.Statuses() {
		assert.False(t, st.Enabled, st.Function)
	}
	assert.False(t, fn.Flags.Has(FuncHooked))
	assert.Len(t, reg.Statuses(), 2)
}
