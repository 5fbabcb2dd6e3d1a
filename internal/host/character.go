package host

import (
	"fmt"

	"github.com/annel0/related-world/internal/hook"
	"github.com/annel0/related-world/internal/vec"
)

// ClientAdjustment серверная поправка позиции персонажа
type ClientAdjustment struct {
	TimeStamp            float32
	NewLoc               vec.Vec3Float
	NewVel               vec.Vec3Float
	NewBase              string
	NewBaseBoneName      string
	HasBase              bool
	BaseRelativePosition bool
	ServerMovementMode   uint8
}

// Args раскладывает поправку в кадр в порядке параметров слота
func (adj ClientAdjustment) Args() []any {
	return []any{
		adj.TimeStamp, adj.NewLoc, adj.NewVel, adj.NewBase, adj.NewBaseBoneName,
		adj.HasBase, adj.BaseRelativePosition, adj.ServerMovementMode,
	}
}

// ReadClientAdjustment читает параметры ClientAdjustPosition из кадра
func ReadClientAdjustment(stack *hook.Frame) (ClientAdjustment, error) {
	var (
		adj ClientAdjustment
		err error
	)
	read := func(step string, fn func() error) {
		if err != nil {
			return
		}
		if e := fn(); e != nil {
			err = fmt.Errorf("%s: %w", step, e)
		}
	}

	read("TimeStamp", func() (e error) { adj.TimeStamp, e = hook.Arg[float32](stack); return })
	read("NewLoc", func() (e error) { adj.NewLoc, e = hook.Arg[vec.Vec3Float](stack); return })
	read("NewVel", func() (e error) { adj.NewVel, e = hook.Arg[vec.Vec3Float](stack); return })
	read("NewBase", func() (e error) { adj.NewBase, e = hook.Arg[string](stack); return })
	read("NewBaseBoneName", func() (e error) { adj.NewBaseBoneName, e = hook.Arg[string](stack); return })
	read("HasBase", func() (e error) { adj.HasBase, e = hook.Arg[bool](stack); return })
	read("BaseRelativePosition", func() (e error) { adj.BaseRelativePosition, e = hook.Arg[bool](stack); return })
	read("ServerMovementMode", func() (e error) { adj.ServerMovementMode, e = hook.Arg[uint8](stack); return })
	stack.Finish()

	return adj, err
}

// ClientAdjustPosition применяет серверную поправку по умолчанию
func (a *Actor) ClientAdjustPosition(adj ClientAdjustment) {
	if a.root == nil {
		return
	}
	if adj.TimeStamp < a.lastAdjustTimestamp {
		return
	}
	a.lastAdjustTimestamp = adj.TimeStamp

	loc := adj.NewLoc
	if adj.HasBase && adj.BaseRelativePosition {
		if base := a.world.FindActorByName(adj.NewBase); base != nil {
			loc = base.Location().Add(loc)
		}
	}

	a.root.SetWorldLocation(loc)
	a.velocity = adj.NewVel
	a.movementMode = adj.ServerMovementMode
	if adj.HasBase {
		a.base, a.baseBone = adj.NewBase, adj.NewBaseBoneName
	} else {
		a.base, a.baseBone = "", ""
	}
}

// MovementMode режим движения персонажа
func (a *Actor) MovementMode() uint8 { return a.movementMode }

// MovementBase имя сущности-опоры и кости
func (a *Actor) MovementBase() (string, string) { return a.base, a.baseBone }
