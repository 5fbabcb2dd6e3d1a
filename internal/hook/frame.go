package hook

import "fmt"

// Frame кадр аргументов вызова. Аргументы читаются последовательно.
type Frame struct {
	args     []any
	pos      int
	finished bool
	Result   any
}

// NewFrame создаёт кадр с аргументами
func NewFrame(args ...any) *Frame {
	return &Frame{args: args}
}

// Next возвращает следующий аргумент
func (f *Frame) Next() (any, error) {
	if f.pos >= len(f.args) {
		return nil, fmt.Errorf("hook: frame exhausted at argument %d", f.pos)
	}
	v := f.args[f.pos]
	f.pos++
	return v, nil
}

// Finish отмечает конец чтения аргументов
func (f *Frame) Finish() {
	f.finished = true
}

// Finished сообщает, дочитан ли кадр
func (f *Frame) Finished() bool {
	return f.finished
}

// Len количество аргументов
func (f *Frame) Len() int {
	return len(f.args)
}

// Arg читает следующий аргумент заданного типа
func Arg[T any](f *Frame) (T, error) {
	var zero T
	v, err := f.Next()
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("hook: argument %d is %T, want %T", f.pos-1, v, zero)
	}
	return typed, nil
}
