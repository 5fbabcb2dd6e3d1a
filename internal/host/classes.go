package host

import (
	"github.com/annel0/related-world/internal/hook"
	"github.com/annel0/related-world/internal/logging"
)

// Имена классов и слотов хоста
const (
	ClassActor     = "Actor"
	ClassCharacter = "Character"

	FuncOnRepReplicatedMovement = "OnRep_ReplicatedMovement"
	FuncClientAdjustPosition    = "ClientAdjustPosition"
)

// RegisterClasses регистрирует классы Actor и Character и их нативные слоты
func RegisterClasses(table *hook.ClassTable) {
	actor := table.Register(ClassActor, nil)
	if actor.FindFunctionByName(FuncOnRepReplicatedMovement) == nil {
		actor.AddNative(FuncOnRepReplicatedMovement, hook.FuncEvent, nativeOnRepReplicatedMovement)
	}

	character := table.Register(ClassCharacter, actor)
	if character.FindFunctionByName(FuncClientAdjustPosition) == nil {
		character.AddNative(FuncClientAdjustPosition, hook.FuncNet|hook.FuncClient|hook.FuncEvent, nativeClientAdjustPosition)
	}
}

func nativeOnRepReplicatedMovement(ctx hook.Object, stack *hook.Frame) {
	a, ok := ctx.(*Actor)
	if !ok {
		return
	}
	stack.Finish()
	a.OnRepReplicatedMovement()
}

func nativeClientAdjustPosition(ctx hook.Object, stack *hook.Frame) {
	a, ok := ctx.(*Actor)
	if !ok {
		return
	}
	adj, err := ReadClientAdjustment(stack)
	if err != nil {
		logging.Warn("ClientAdjustPosition %s: %v", a.Name(), err)
		return
	}
	a.ClientAdjustPosition(adj)
}
