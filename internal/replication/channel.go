package replication

// Channel доставляет изменения полей владельца одному наблюдателю.
// Первая репликация отправляет все поля, включая CondInitialOnly;
// последующие — только изменившиеся поля CondNone.
type Channel struct {
	src  *Tracker
	dst  *Tracker
	sent map[string]uint64
	open bool
}

// NewChannel создаёт канал между трекером владельца и трекером наблюдателя
func NewChannel(src, dst *Tracker) *Channel {
	return &Channel{
		src:  src,
		dst:  dst,
		sent: make(map[string]uint64),
	}
}

// IsOpen сообщает, состоялась ли начальная репликация
func (c *Channel) IsOpen() bool {
	return c.open
}

// Pending возвращает значения, которые будут отправлены следующим Replicate
func (c *Channel) Pending() []Value {
	values := make([]Value, 0, len(c.src.fields))
	for _, f := range c.src.fields {
		if c.open {
			if f.condition() == CondInitialOnly {
				continue
			}
			if f.version() <= c.sent[f.name()] {
				continue
			}
		}
		values = append(values, Value{Field: f.name(), Data: f.value()})
	}
	return values
}

// Replicate отправляет ожидающие значения наблюдателю и возвращает их число
func (c *Channel) Replicate() (int, error) {
	return Bundle{c}.Replicate()
}

func (c *Channel) commit() {
	for _, f := range c.src.fields {
		c.sent[f.name()] = f.version()
	}
	c.open = true
}

// Bundle каналы одного объекта и его подобъектов. Значения всех каналов
// применяются до первого уведомления; уведомления идут в порядке каналов.
type Bundle []*Channel

// Replicate доставляет ожидающие значения всех каналов и возвращает их число
func (b Bundle) Replicate() (int, error) {
	type delivery struct {
		dst     *Tracker
		changed map[string]bool
	}
	deliveries := make([]delivery, 0, len(b))
	total := 0

	var err error
	for _, c := range b {
		values := c.Pending()
		if len(values) == 0 && c.open {
			continue
		}
		var changed map[string]bool
		if changed, err = c.dst.apply(values); err != nil {
			// уже принятые значения всё равно уведомляются
			deliveries = append(deliveries, delivery{dst: c.dst, changed: changed})
			break
		}
		c.commit()
		total += len(values)
		deliveries = append(deliveries, delivery{dst: c.dst, changed: changed})
	}

	for _, d := range deliveries {
		d.dst.notify(d.changed)
	}
	return total, err
}
