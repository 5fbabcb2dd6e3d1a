// Package replication описывает реплицируемые поля объектов: запись со
// стороны владельца только при реальном изменении значения и доставку
// изменений наблюдателям через канал соединения.
//
// Кодирование по сети принадлежит транспорту и здесь не определяется.
package replication

import "fmt"

// Condition условие репликации поля
type Condition uint8

const (
	// CondNone поле реплицируется при каждом изменении
	CondNone Condition = iota
	// CondInitialOnly поле отправляется только при открытии соединения
	CondInitialOnly
)

func (c Condition) String() string {
	switch c {
	case CondNone:
		return "none"
	case CondInitialOnly:
		return "initial_only"
	default:
		return "unknown"
	}
}

type field interface {
	name() string
	condition() Condition
	version() uint64
	value() any
	receive(v any) (bool, error)
	notify()
}

// Field реплицируемое значение с проверкой равенства при записи
type Field[T comparable] struct {
	tracker *Tracker
	fname   string
	cond    Condition
	current T
	ver     uint64
	onRep   func()
	guard   func(current, incoming T) bool
}

// NewField объявляет поле в трекере. Порядок объявления задаёт порядок уведомлений.
func NewField[T comparable](t *Tracker, name string, cond Condition, initial T) *Field[T] {
	f := &Field[T]{
		tracker: t,
		fname:   name,
		cond:    cond,
		current: initial,
	}
	t.add(f)
	return f
}

// OnRep задаёт обработчик, вызываемый у наблюдателя при получении нового значения
func (f *Field[T]) OnRep(fn func()) *Field[T] {
	f.onRep = fn
	return f
}

// Guard задаёт фильтр входящих значений у наблюдателя; false отбрасывает значение
func (f *Field[T]) Guard(fn func(current, incoming T) bool) *Field[T] {
	f.guard = fn
	return f
}

// Get возвращает текущее значение
func (f *Field[T]) Get() T {
	return f.current
}

// Set записывает значение со стороны владельца. Одинаковое значение не
// считается изменением и не попадает в репликацию.
func (f *Field[T]) Set(v T) bool {
	if f.current == v {
		return false
	}
	f.current = v
	f.ver++
	f.tracker.markChanged(f)
	return true
}

// Name имя поля
func (f *Field[T]) Name() string { return f.fname }

func (f *Field[T]) name() string         { return f.fname }
func (f *Field[T]) condition() Condition { return f.cond }
func (f *Field[T]) version() uint64      { return f.ver }
func (f *Field[T]) value() any           { return f.current }

func (f *Field[T]) receive(v any) (bool, error) {
	typed, ok := v.(T)
	if !ok {
		return false, fmt.Errorf("replication: field %s got %T, want %T", f.fname, v, f.current)
	}
	if typed == f.current {
		return false, nil
	}
	if f.guard != nil && !f.guard(f.current, typed) {
		return false, nil
	}
	f.current = typed
	return true, nil
}

func (f *Field[T]) notify() {
	if f.onRep != nil {
		f.onRep()
	}
}
