// Package app собирает мир сервера, реестр вторичных миров, перехваты и
// репликацию в один цикл симуляции.
//
// Состояние сущностей не потокобезопасно: любые изменения извне (REST, шина
// событий) попадают в очередь команд и выполняются в горутине цикла между тиками.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/related-world/internal/config"
	"github.com/annel0/related-world/internal/correction"
	"github.com/annel0/related-world/internal/eventbus"
	"github.com/annel0/related-world/internal/hook"
	"github.com/annel0/related-world/internal/host"
	"github.com/annel0/related-world/internal/logging"
	"github.com/annel0/related-world/internal/netdriver"
	"github.com/annel0/related-world/internal/relworld"
	rsync "github.com/annel0/related-world/internal/sync"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrStopped цикл симуляции остановлен
var ErrStopped = errors.New("app: simulation stopped")

const commandBuffer = 256

// Options зависимости симуляции
type Options struct {
	Config   *config.Config
	Bus      eventbus.EventBus     // nil — без событий миров и журнала
	Store    relworld.Store        // nil — открыть по Config.Storage
	Registry prometheus.Registerer // nil — метрики не регистрируются
}

// Simulation владеет миром сервера и всем, что его обслуживает
type Simulation struct {
	cfg *config.Config

	table    *hook.ClassTable
	hooks    *hook.Registry
	server   *host.World
	observer *host.World
	director *relworld.Director
	driver   *netdriver.Driver
	loopback *netdriver.Connection
	store    relworld.Store
	bus      eventbus.EventBus
	mirror   *relworld.Mirror
	journal  *rsync.SyncManager
	metrics  *correction.Metrics

	cmds     chan func()
	quit     chan struct{}
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once

	ticks  atomic.Uint64
	remote atomic.Uint64
}

// New собирает симуляцию: перехваты, хранилище, миры из хранилища и конфигурации
func New(ctx context.Context, opts Options) (*Simulation, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	s := &Simulation{
		cfg:     cfg,
		table:   hook.NewClassTable(),
		bus:     opts.Bus,
		metrics: correction.NewMetrics(opts.Registry),
		cmds:    make(chan func(), commandBuffer),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	s.server = host.NewWorld(cfg.Server.Name, s.table)
	s.hooks = hook.NewRegistry(s.table)
	if err := correction.InstallHooks(s.hooks); err != nil {
		return nil, fmt.Errorf("установка перехватов: %w", err)
	}
	if cfg.Hooks.Enabled {
		s.hooks.EnableAll()
	}

	s.store = opts.Store
	if s.store == nil {
		st, err := OpenStore(ctx, cfg.Storage)
		if err != nil {
			s.hooks.DisableAll()
			return nil, err
		}
		s.store = st
	}

	var publisher *relworld.Publisher
	if s.bus != nil {
		publisher = relworld.NewPublisher(s.bus, cfg.Server.Name)
	}
	s.director = relworld.NewDirector(s.server, relworld.Options{
		Store:     s.store,
		Publisher: publisher,
		Metrics:   relworld.NewMetrics(opts.Registry),
	})

	s.driver = netdriver.New(s.server)
	if cfg.Simulation.LoopbackObserver {
		s.observer = host.NewWorld(cfg.Server.Name+"-observer", s.table)
		s.loopback = s.driver.Connect("loopback", s.observer)
	}

	if err := s.bootstrapWorlds(ctx); err != nil {
		s.close()
		return nil, err
	}

	if s.bus != nil {
		s.mirror = relworld.NewMirror(s.director, cfg.Server.Name, s.Do)
		if cfg.Sync.Enabled {
			journal, err := rsync.NewSyncManager(rsync.SyncConfig{
				Source:       cfg.Server.Name,
				Bus:          s.bus,
				BatchSize:    cfg.Sync.BatchSize,
				FlushEvery:   cfg.Sync.FlushInterval(),
				UseGzipCompr: cfg.Sync.UseGzipCompr,
				OnRemote:     func(rsync.FieldChange) { s.remote.Add(1) },
			})
			if err != nil {
				s.close()
				return nil, fmt.Errorf("журнал репликации: %w", err)
			}
			s.journal = journal
		}
	}

	logging.Info("🌐 Симуляция %s готова: миров=%d, перехваты=%v, наблюдатель=%v",
		cfg.Server.Name, len(s.director.Worlds()), cfg.Hooks.Enabled, s.observer != nil)
	return s, nil
}

func (s *Simulation) bootstrapWorlds(ctx context.Context) error {
	if _, err := s.director.LoadFromStore(ctx); err != nil {
		return fmt.Errorf("загрузка миров: %w", err)
	}

	for _, wc := range s.cfg.Worlds {
		if _, ok := s.director.World(wc.Name); ok {
			continue
		}
		if _, err := s.director.CreateWorld(ctx, wc.Name, wc.Origin, wc.Networked); err != nil {
			return fmt.Errorf("мир %s: %w", wc.Name, err)
		}
	}
	return nil
}

// Director реестр вторичных миров
func (s *Simulation) Director() *relworld.Director { return s.director }

// Hooks реестр перехватов
func (s *Simulation) Hooks() *hook.Registry { return s.hooks }

// Server мир авторитета
func (s *Simulation) Server() *host.World { return s.server }

// Observer мир наблюдателя в процессе; nil если не включён
func (s *Simulation) Observer() *host.World { return s.observer }

// Ticks сколько тиков выполнено
func (s *Simulation) Ticks() uint64 { return s.ticks.Load() }

// RemoteChanges сколько записей журнала пришло от других хостов
func (s *Simulation) RemoteChanges() uint64 { return s.remote.Load() }

// Start запускает цикл симуляции и зеркалирование событий миров
func (s *Simulation) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("app: simulation already started")
	}
	if s.mirror != nil {
		if err := s.mirror.Start(ctx, s.bus); err != nil {
			return fmt.Errorf("зеркало миров: %w", err)
		}
	}
	go s.loop(s.cfg.Simulation.TickInterval())
	logging.Info("▶️  Цикл симуляции запущен (тик %v)", s.cfg.Simulation.TickInterval())
	return nil
}

func (s *Simulation) loop(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.quit:
			return
		case cmd := <-s.cmds:
			cmd()
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Simulation) tick() {
	if _, err := s.driver.Tick(); err != nil {
		logging.Error("tick %d: %v", s.ticks.Load(), err)
	}
	if s.observer != nil {
		s.observer.Physics().Tick()
	}
	s.ticks.Add(1)
}

// Step выполняет накопленные команды и один тик.
// Только пока цикл не запущен.
func (s *Simulation) Step() {
	for drained := false; !drained; {
		select {
		case cmd := <-s.cmds:
			cmd()
		default:
			drained = true
		}
	}
	s.tick()
}

// Do ставит команду в очередь цикла. Подходит как relworld.Dispatcher.
func (s *Simulation) Do(fn func()) {
	select {
	case s.cmds <- fn:
	case <-s.quit:
		logging.Warn("app: команда отброшена, симуляция остановлена")
	}
}

// Call выполняет fn в цикле и ждёт результата. До Start выполняет fn сразу.
func (s *Simulation) Call(ctx context.Context, fn func() error) error {
	if !s.started.Load() {
		return fn()
	}
	errCh := make(chan error, 1)
	select {
	case s.cmds <- func() { errCh <- fn() }:
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-errCh:
		return err
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop останавливает цикл, отключает перехваты и закрывает хранилище
func (s *Simulation) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
		if s.started.Load() {
			<-s.done
		}
		if s.mirror != nil {
			s.mirror.Stop()
		}
		s.close()
		logging.Info("⏹️  Симуляция остановлена после %d тиков", s.ticks.Load())
	})
}

func (s *Simulation) close() {
	if s.journal != nil {
		s.journal.Stop()
	}
	s.hooks.DisableAll()
	if err := s.store.Close(); err != nil {
		logging.Warn("app: закрытие хранилища: %v", err)
	}
}
