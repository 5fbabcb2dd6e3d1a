package correction

import (
	"fmt"

	"github.com/annel0/related-world/internal/hook"
	"github.com/annel0/related-world/internal/host"
	"github.com/annel0/related-world/internal/logging"
)

// HookOnRepReplicatedMovement подмена Actor::OnRep_ReplicatedMovement.
// Сущность с компонентом коррекции обрабатывается компонентом, остальные —
// обработчиком по умолчанию.
func HookOnRepReplicatedMovement(ctx hook.Object, stack *hook.Frame) {
	a, ok := ctx.(*host.Actor)
	if !ok {
		return
	}
	stack.Finish()

	if comp, found := host.FindComponent[*Component](a); found {
		comp.OnRepReplicatedMovement()
		return
	}
	a.OnRepReplicatedMovement()
}

// HookClientAdjustPosition подмена Character::ClientAdjustPosition.
// Всегда передаёт вызов реализации по умолчанию; вызовы не для персонажа отбрасываются.
func HookClientAdjustPosition(ctx hook.Object, stack *hook.Frame) {
	a, ok := ctx.(*host.Actor)
	if !ok {
		return
	}
	if !a.IsA(host.ClassCharacter) {
		logging.Warn("HOOK ClientAdjustPosition: %s класса %s не персонаж", a.Name(), a.ClassName())
		return
	}
	adj, err := host.ReadClientAdjustment(stack)
	if err != nil {
		logging.Warn("HOOK ClientAdjustPosition %s: %v", a.Name(), err)
		return
	}
	a.ClientAdjustPosition(adj)
}

// InstallHooks регистрирует перехваты коррекции в реестре. Включение — отдельный шаг.
func InstallHooks(r *hook.Registry) error {
	host.RegisterClasses(r.Table())

	if _, err := r.Register(host.ClassActor, host.FuncOnRepReplicatedMovement, HookOnRepReplicatedMovement, hook.FuncNone); err != nil {
		return fmt.Errorf("install hooks: %w", err)
	}
	if _, err := r.Register(host.ClassCharacter, host.FuncClientAdjustPosition, HookClientAdjustPosition, hook.FuncNone); err != nil {
		return fmt.Errorf("install hooks: %w", err)
	}
	return nil
}
