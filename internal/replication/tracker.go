package replication

import "fmt"

// Value значение поля, передаваемое наблюдателю
type Value struct {
	Field string
	Data  any
}

// ChangeSink получает уведомление о каждом изменении поля у владельца
type ChangeSink func(owner, field string, value any)

// Tracker набор реплицируемых полей одного объекта
type Tracker struct {
	owner  string
	fields []field
	index  map[string]field
	sinks  []ChangeSink
}

// NewTracker создаёт трекер объекта owner
func NewTracker(owner string) *Tracker {
	return &Tracker{
		owner: owner,
		index: make(map[string]field),
	}
}

// Owner идентификатор объекта
func (t *Tracker) Owner() string {
	return t.owner
}

// OnChange подписывает приёмник изменений
func (t *Tracker) OnChange(sink ChangeSink) {
	t.sinks = append(t.sinks, sink)
}

// FieldNames имена полей в порядке объявления
func (t *Tracker) FieldNames() []string {
	names := make([]string, 0, len(t.fields))
	for _, f := range t.fields {
		names = append(names, f.name())
	}
	return names
}

func (t *Tracker) add(f field) {
	if _, exists := t.index[f.name()]; exists {
		panic(fmt.Sprintf("replication: duplicate field %s on %s", f.name(), t.owner))
	}
	t.fields = append(t.fields, f)
	t.index[f.name()] = f
}

func (t *Tracker) markChanged(f field) {
	for _, sink := range t.sinks {
		sink(t.owner, f.name(), f.value())
	}
}

// Receive применяет значения у наблюдателя. Уведомления вызываются после
// применения всех значений, в порядке объявления полей.
func (t *Tracker) Receive(values []Value) error {
	changed, err := t.apply(values)
	if err != nil {
		return err
	}
	t.notify(changed)
	return nil
}

func (t *Tracker) apply(values []Value) (map[string]bool, error) {
	changed := make(map[string]bool, len(values))
	for _, v := range values {
		f, ok := t.index[v.Field]
		if !ok {
			return changed, fmt.Errorf("replication: unknown field %s on %s", v.Field, t.owner)
		}
		ok, err := f.receive(v.Data)
		if err != nil {
			return changed, err
		}
		if ok {
			changed[v.Field] = true
		}
	}
	return changed, nil
}

func (t *Tracker) notify(changed map[string]bool) {
	for _, f := range t.fields {
		if changed[f.name()] {
			f.notify()
		}
	}
}
