// Package netdriver доставляет состояние сущностей авторитетного мира в
// миры наблюдателей внутри одного процесса.
package netdriver

import (
	"fmt"
	"sort"

	"github.com/annel0/related-world/internal/hook"
	"github.com/annel0/related-world/internal/host"
	"github.com/annel0/related-world/internal/logging"
	"github.com/annel0/related-world/internal/rebase"
	"github.com/annel0/related-world/internal/replication"
)

// Driver набор соединений авторитетного мира
type Driver struct {
	server *host.World
	conns  []*Connection
}

// New создаёт драйвер для авторитетного мира
func New(server *host.World) *Driver {
	return &Driver{server: server}
}

// Server авторитетный мир
func (d *Driver) Server() *host.World { return d.server }

// Connect открывает соединение с миром наблюдателя
func (d *Driver) Connect(name string, client *host.World) *Connection {
	c := &Connection{
		name:     name,
		server:   d.server,
		client:   client,
		replicas: make(map[host.ActorID]*replica),
	}
	d.conns = append(d.conns, c)
	logging.Info("🔌 Соединение %s открыто: %s → %s", name, d.server.Name(), client.Name())
	return c
}

// Connections открытые соединения
func (d *Driver) Connections() []*Connection {
	return d.conns
}

// Tick выполняет один проход репликации: подготовка на авторитете и доставка
// во все соединения. Возвращает число доставленных значений.
func (d *Driver) Tick() (int, error) {
	actors := d.server.Actors()
	for _, a := range actors {
		if a.IsTemplate() || a.IsPendingKill() {
			continue
		}
		for _, comp := range a.Components() {
			if pre, ok := comp.(host.PreReplicator); ok {
				pre.PreReplication()
			}
		}
		a.GatherCurrentMovement()
	}

	total := 0
	for _, c := range d.conns {
		n, err := c.replicate(actors)
		total += n
		if err != nil {
			return total, fmt.Errorf("connection %s: %w", c.name, err)
		}
	}
	return total, nil
}

type replica struct {
	actor    *host.Actor
	channels replication.Bundle
}

// Connection соединение с одним наблюдателем
type Connection struct {
	name     string
	server   *host.World
	client   *host.World
	replicas map[host.ActorID]*replica
}

// Name имя соединения
func (c *Connection) Name() string { return c.name }

// Client мир наблюдателя
func (c *Connection) Client() *host.World { return c.client }

// Replica копия сущности авторитета у наблюдателя
func (c *Connection) Replica(id host.ActorID) *host.Actor {
	if r, ok := c.replicas[id]; ok {
		return r.actor
	}
	return nil
}

func (c *Connection) replicate(actors []*host.Actor) (int, error) {
	alive := make(map[host.ActorID]bool, len(actors))
	total := 0

	for _, a := range actors {
		if a.IsTemplate() || a.IsPendingKill() {
			continue
		}
		alive[a.ID()] = true

		r, ok := c.replicas[a.ID()]
		if !ok {
			var err error
			if r, err = c.spawnReplica(a); err != nil {
				return total, err
			}
			c.replicas[a.ID()] = r
		}

		n, err := r.channels.Replicate()
		total += n
		if err != nil {
			return total, fmt.Errorf("actor %s: %w", a.Name(), err)
		}
	}

	c.destroyMissing(alive)
	return total, nil
}

func (c *Connection) spawnReplica(a *host.Actor) (*replica, error) {
	rm := a.ReplicatedMovement()
	params := host.SpawnParams{
		ID:                a.ID(),
		Name:              a.Name(),
		Class:             a.ClassName(),
		Location:          rebase.RebaseOntoLocalOrigin(rm.Location, c.client.OriginLocation()),
		Rotation:          rm.Rotation,
		Role:              host.RoleSimulatedProxy,
		ReplicateMovement: a.IsReplicatingMovement(),
		RootKind:          rootKindOf(a.Root()),
	}
	proxy, err := c.client.SpawnActor(params)
	if err != nil {
		return nil, fmt.Errorf("spawn replica of %s: %w", a.Name(), err)
	}

	// каналы компонентов раньше канала сущности: их уведомления идут первыми
	r := &replica{actor: proxy}
	for _, comp := range a.Components() {
		src, ok := comp.(host.Replicated)
		if !ok {
			continue
		}
		dstComp := src.NewReplica()
		proxy.AddComponent(dstComp)
		dst, ok := dstComp.(host.Replicated)
		if !ok {
			continue
		}
		r.channels = append(r.channels, replication.NewChannel(src.Tracker(), dst.Tracker()))
	}
	r.channels = append(r.channels, replication.NewChannel(a.Tracker(), proxy.Tracker()))

	logging.Debug("netdriver[%s]: копия %s создана в %s", c.name, a.Name(), c.client.Name())
	return r, nil
}

func (c *Connection) destroyMissing(alive map[host.ActorID]bool) {
	var gone []host.ActorID
	for id := range c.replicas {
		if !alive[id] {
			gone = append(gone, id)
		}
	}
	sort.Slice(gone, func(i, j int) bool { return gone[i] < gone[j] })

	for _, id := range gone {
		if err := c.client.DestroyActor(id); err != nil {
			logging.Warn("netdriver[%s]: %v", c.name, err)
		}
		delete(c.replicas, id)
	}
}

// ClientAdjustPosition отправляет наблюдателю поправку позиции персонажа
func (c *Connection) ClientAdjustPosition(id host.ActorID, adj host.ClientAdjustment) error {
	r, ok := c.replicas[id]
	if !ok {
		return fmt.Errorf("%w: %d", host.ErrActorNotFound, id)
	}
	return c.client.Classes().Call(r.actor, host.FuncClientAdjustPosition, hook.NewFrame(adj.Args()...))
}

func rootKindOf(root *host.SceneComponent) host.RootKind {
	switch {
	case root == nil:
		return host.RootNone
	case root.IsPrimitive():
		return host.RootPrimitive
	default:
		return host.RootScene
	}
}
