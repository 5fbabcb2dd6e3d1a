// Package relworld описывает вторичные миры с собственным целочисленным
// смещением начала координат и реестр, связывающий сущности с ними.
package relworld

import (
	"sync/atomic"

	"github.com/annel0/related-world/internal/vec"
)

// SubWorld вторичный мир, как его видят потребители реестра
type SubWorld interface {
	Name() string
	Origin() vec.Vec3
	IsNetWorld() bool
}

// Listener получает уведомления о смене мира сущности и сдвиге его начала координат
type Listener interface {
	NotifyWorldChanged(w SubWorld)
	NotifyWorldLocationChanged(origin vec.Vec3)
}

// Descriptor сохраняемое описание вторичного мира
type Descriptor struct {
	Name     string   `json:"name"`
	Origin   vec.Vec3 `json:"origin"`
	NetWorld bool     `json:"net_world"`
}

// RelatedWorld вторичный мир. Начало координат меняется только через Director.TranslateWorld;
// читатели получают снимок без блокировок.
type RelatedWorld struct {
	name     string
	origin   atomic.Pointer[vec.Vec3]
	netWorld bool
}

func newRelatedWorld(desc Descriptor) *RelatedWorld {
	w := &RelatedWorld{name: desc.Name, netWorld: desc.NetWorld}
	w.setOrigin(desc.Origin)
	return w
}

func (w *RelatedWorld) setOrigin(origin vec.Vec3) {
	w.origin.Store(&origin)
}

// Name имя мира
func (w *RelatedWorld) Name() string { return w.name }

// Origin смещение начала координат относительно основного мира
func (w *RelatedWorld) Origin() vec.Vec3 { return *w.origin.Load() }

// IsNetWorld участвует ли мир в сетевой коррекции позиций
func (w *RelatedWorld) IsNetWorld() bool { return w.netWorld }

// Descriptor снимок описания мира
func (w *RelatedWorld) Descriptor() Descriptor {
	return Descriptor{Name: w.name, Origin: w.Origin(), NetWorld: w.netWorld}
}
