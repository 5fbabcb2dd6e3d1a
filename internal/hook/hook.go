package hook

import (
	"fmt"

	"github.com/annel0/related-world/internal/logging"
)

// Hook перехват одного слота функции.
//
// Запоминает исходную реализацию и флаги слота при создании и умеет
// восстановить их после любого числа циклов Enable/Disable.
type Hook struct {
	function *Function

	storedPtr   *Native // исходная реализация, пока перехват включён; nil иначе
	hookedPtr   *Native // реализация слота на момент создания перехвата
	redirectPtr *Native // подменяющая реализация

	storedFlags FunctionFlags
	hookFlags   FunctionFlags
}

// New находит слот className::funcName и готовит перехват.
// Отсутствие слота — ошибка связывания, а не состояние времени выполнения.
func New(table *ClassTable, className, funcName string, replacement NativeFunc) (*Hook, error) {
	f, err := table.FindFunction(className, funcName)
	if err != nil {
		return nil, err
	}
	if f.NativeFunc() == nil {
		return nil, fmt.Errorf("hook: %s::%s has no native implementation", className, funcName)
	}
	if replacement == nil {
		return nil, fmt.Errorf("hook: nil replacement for %s::%s", className, funcName)
	}

	return &Hook{
		function:    f,
		hookedPtr:   f.NativeFunc(),
		hookFlags:   f.Flags | FuncHooked,
		redirectPtr: NewNative("HOOK_"+className+"_"+funcName, replacement),
	}, nil
}

// MustNew как New, но паникует: без слота подсистема не может стартовать
func MustNew(table *ClassTable, className, funcName string, replacement NativeFunc) *Hook {
	h, err := New(table, className, funcName, replacement)
	if err != nil {
		panic(fmt.Sprintf("hook wiring error: %v", err))
	}
	return h
}

// AddFlags добавляет флаги, которые получит слот при включении перехвата
func (h *Hook) AddFlags(flags FunctionFlags) {
	h.hookFlags |= flags
}

// Enable устанавливает подменяющую реализацию. Повторный вызов ничего не делает.
func (h *Hook) Enable() {
	if h.storedPtr == h.hookedPtr {
		return
	}

	h.storedFlags = h.function.Flags
	h.storedPtr = h.hookedPtr
	h.function.Flags = h.hookFlags
	h.function.SetNativeFunc(h.redirectPtr)

	logging.Debug("hook: %s включён", h.Name())
}

// Disable возвращает исходную реализацию и флаги. Повторный вызов ничего не делает.
func (h *Hook) Disable() {
	if h.storedPtr != h.hookedPtr {
		return
	}

	h.function.Flags = h.storedFlags
	h.storedPtr = nil
	h.function.SetNativeFunc(h.hookedPtr)

	logging.Debug("hook: %s отключён", h.Name())
}

// Enabled сообщает, включён ли перехват
func (h *Hook) Enabled() bool {
	return h.storedPtr == h.hookedPtr
}

// CallOriginal вызывает реализацию слота, бывшую до перехвата
func (h *Hook) CallOriginal(ctx Object, stack *Frame) {
	if h.hookedPtr == nil || h.hookedPtr.Fn == nil {
		return
	}
	if stack == nil {
		stack = NewFrame()
	}
	h.hookedPtr.Fn(ctx, stack)
}

// Function возвращает перехватываемый слот
func (h *Hook) Function() *Function {
	return h.function
}

// Name полное имя слота
func (h *Hook) Name() string {
	if h.function.Owner == nil {
		return h.function.Name
	}
	return h.function.Owner.Name + "::" + h.function.Name
}
