// Package hook реализует таблицу диспетчеризации нативных функций и
// перехват отдельных слотов этой таблицы.
//
// Класс хранит слоты функций по имени; вызов идёт через текущую реализацию
// слота, поэтому её можно подменить, не трогая вызывающий код.
package hook

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrFunctionNotFound слот функции не найден в классе
var ErrFunctionNotFound = errors.New("hook: function not found")

// ErrClassNotFound класс не зарегистрирован в таблице
var ErrClassNotFound = errors.New("hook: class not found")

// Object объект, на котором вызывается нативная функция
type Object interface {
	ClassName() string
}

// NativeFunc сигнатура нативной реализации: контекст вызова и кадр аргументов
type NativeFunc func(ctx Object, stack *Frame)

// Native именованная реализация слота. Сравнивается по указателю.
type Native struct {
	Name string
	Fn   NativeFunc
}

// NewNative создаёт реализацию слота
func NewNative(name string, fn NativeFunc) *Native {
	return &Native{Name: name, Fn: fn}
}

// FunctionFlags флаги диспетчеризации слота
type FunctionFlags uint32

const (
	FuncNone     FunctionFlags = 0
	FuncFinal    FunctionFlags = 1 << 0
	FuncNet      FunctionFlags = 1 << 1
	FuncReliable FunctionFlags = 1 << 2
	FuncNative   FunctionFlags = 1 << 3
	FuncEvent    FunctionFlags = 1 << 4
	FuncClient   FunctionFlags = 1 << 5
	FuncServer   FunctionFlags = 1 << 6
	FuncHooked   FunctionFlags = 1 << 7
)

// Has проверяет наличие всех указанных флагов
func (f FunctionFlags) Has(flags FunctionFlags) bool {
	return f&flags == flags
}

// Function слот нативной функции класса
type Function struct {
	Name   string
	Owner  *Class
	Flags  FunctionFlags
	native *Native
}

// NativeFunc возвращает текущую реализацию слота
func (f *Function) NativeFunc() *Native {
	return f.native
}

// SetNativeFunc устанавливает реализацию слота
func (f *Function) SetNativeFunc(n *Native) {
	f.native = n
}

// Invoke вызывает текущую реализацию слота
func (f *Function) Invoke(ctx Object, stack *Frame) {
	if stack == nil {
		stack = NewFrame()
	}
	if f.native == nil || f.native.Fn == nil {
		return
	}
	f.native.Fn(ctx, stack)
}

// Class набор слотов функций с необязательным родителем
type Class struct {
	Name      string
	Super     *Class
	functions map[string]*Function
}

// AddNative регистрирует слот с реализацией
func (c *Class) AddNative(name string, flags FunctionFlags, fn NativeFunc) *Function {
	f := &Function{
		Name:   name,
		Owner:  c,
		Flags:  flags | FuncNative,
		native: NewNative(c.Name+"::"+name, fn),
	}
	c.functions[name] = f
	return f
}

// FindFunctionByName ищет слот в классе и его родителях
func (c *Class) FindFunctionByName(name string) *Function {
	for cls := c; cls != nil; cls = cls.Super {
		if f, ok := cls.functions[name]; ok {
			return f
		}
	}
	return nil
}

// IsChildOf проверяет, наследуется ли класс от other
func (c *Class) IsChildOf(other *Class) bool {
	for cls := c; cls != nil; cls = cls.Super {
		if cls == other {
			return true
		}
	}
	return false
}

// FunctionNames возвращает имена собственных слотов класса
func (c *Class) FunctionNames() []string {
	names := make([]string, 0, len(c.functions))
	for name := range c.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ClassTable таблица классов процесса
type ClassTable struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

// NewClassTable создаёт пустую таблицу
func NewClassTable() *ClassTable {
	return &ClassTable{classes: make(map[string]*Class)}
}

// Register регистрирует класс; повторная регистрация возвращает существующий
func (t *ClassTable) Register(name string, super *Class) *Class {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cls, ok := t.classes[name]; ok {
		return cls
	}
	cls := &Class{Name: name, Super: super, functions: make(map[string]*Function)}
	t.classes[name] = cls
	return cls
}

// Find возвращает класс по имени
func (t *ClassTable) Find(name string) *Class {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.classes[name]
}

// FindFunction ищет слот className::funcName
func (t *ClassTable) FindFunction(className, funcName string) (*Function, error) {
	cls := t.Find(className)
	if cls == nil {
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, className)
	}
	f := cls.FindFunctionByName(funcName)
	if f == nil {
		return nil, fmt.Errorf("%w: %s::%s", ErrFunctionNotFound, className, funcName)
	}
	return f, nil
}

// Call вызывает функцию по имени на объекте через его класс
func (t *ClassTable) Call(obj Object, funcName string, stack *Frame) error {
	f, err := t.FindFunction(obj.ClassName(), funcName)
	if err != nil {
		return err
	}
	f.Invoke(obj, stack)
	return nil
}
