package hook

import (
	"fmt"
	"sync"

	"github.com/annel0/related-world/internal/logging"
)

// Key идентифицирует перехватываемый слот
type Key struct {
	Class    string
	Function string
}

func (k Key) String() string {
	return k.Class + "::" + k.Function
}

// Status состояние перехвата для администрирования
type Status struct {
	Class    string        `json:"class"`
	Function string        `json:"function"`
	Enabled  bool          `json:"enabled"`
	Flags    FunctionFlags `json:"flags"`
}

// Registry владеет всеми перехватами процесса.
// Создаётся один раз при загрузке модуля и передаётся зависимым компонентам.
// Enable/Disable вызываются в фазах инициализации и завершения, не во время диспетчеризации.
type Registry struct {
	mu    sync.Mutex
	table *ClassTable
	hooks map[Key]*Hook
	order []Key
}

// NewRegistry создаёт реестр поверх таблицы классов
func NewRegistry(table *ClassTable) *Registry {
	return &Registry{
		table: table,
		hooks: make(map[Key]*Hook),
	}
}

// Table возвращает таблицу классов реестра
func (r *Registry) Table() *ClassTable {
	return r.table
}

// Register создаёт перехват слота. Повторная регистрация того же слота — ошибка.
func (r *Registry) Register(className, funcName string, replacement NativeFunc, extraFlags FunctionFlags) (*Hook, error) {
	key := Key{Class: className, Function: funcName}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.hooks[key]; exists {
		return nil, fmt.Errorf("hook: %s already registered", key)
	}

	h, err := New(r.table, className, funcName, replacement)
	if err != nil {
		return nil, err
	}
	h.AddFlags(extraFlags)

	r.hooks[key] = h
	r.order = append(r.order, key)
	return h, nil
}

// MustRegister как Register, но паникует при ошибке связывания
func (r *Registry) MustRegister(className, funcName string, replacement NativeFunc, extraFlags FunctionFlags) *Hook {
	h, err := r.Register(className, funcName, replacement, extraFlags)
	if err != nil {
		panic(fmt.Sprintf("hook wiring error: %v", err))
	}
	return h
}

// Get возвращает перехват слота
func (r *Registry) Get(className, funcName string) (*Hook, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hooks[Key{Class: className, Function: funcName}]
	return h, ok
}

// EnableAll включает перехваты в порядке регистрации
func (r *Registry) EnableAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, key := range r.order {
		r.hooks[key].Enable()
	}
	logging.Info("🪝 Перехваты включены: %d", len(r.order))
}

// DisableAll отключает перехваты в обратном порядке
func (r *Registry) DisableAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.order) - 1; i >= 0; i-- {
		r.hooks[r.order[i]].Disable()
	}
	logging.Info("🪝 Перехваты отключены: %d", len(r.order))
}

// Statuses возвращает состояние всех перехватов
func (r *Registry) Statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Status, 0, len(r.order))
	for _, key := range r.order {
		h := r.hooks[key]
		out = append(out, Status{
			Class:    key.Class,
			Function: key.Function,
			Enabled:  h.Enabled(),
			Flags:    h.function.Flags,
		})
	}
	return out
}
