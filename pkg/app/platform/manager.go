package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/cyberguard/guardian/pkg/app/moderation"
	"github.com/cyberguard/guardian/pkg/app/poller"
	"github.com/cyberguard/guardian/pkg/cache"
	"github.com/cyberguard/guardian/pkg/config"
)

// Status describes one connected platform.
type Status struct {
	Name  string       `json:"name"`
	State poller.State `json:"state"`
}

type connection struct {
	source      interface{ Platform() string }
	poller      *poller.Poller
	credentials map[string]interface{}
}

// Manager owns the lifecycle of platform connections: connect builds a
// source and starts its poller, disconnect stops it. Connections persist
// to redis so a restart resumes where it left off.
type Manager struct {
	factory *Factory
	engine  *moderation.Engine
	cfg     *config.Config
	cache   cache.Client
	logger  *logrus.Logger

	mu          sync.Mutex
	connections map[string]*connection
}

func NewManager(
	factory *Factory,
	engine *moderation.Engine,
	cfg *config.Config,
	c cache.Client,
	logger *logrus.Logger,
) *Manager {
	return &Manager{
		factory:     factory,
		engine:      engine,
		cfg:         cfg,
		cache:       c,
		logger:      logger,
		connections: make(map[string]*connection),
	}
}

// Connect builds the platform source and starts polling it. Connecting an
// already-connected platform is a warning no-op; invalid credentials fail
// fast without touching poller state.
func (m *Manager) Connect(ctx context.Context, name string, credentials map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.connections[name]; ok {
		m.logger.WithField("platform", name).Warn("Platform already connected")
		return nil
	}

	source, err := m.factory.Build(name, credentials)
	if err != nil {
		return fmt.Errorf("failed to connect %s: %w", name, err)
	}
	opts, err := Options(m.cfg, name)
	if err != nil {
		return err
	}

	p := poller.New(source, m.engine, poller.Options{
		Interval:     opts.PollInterval,
		BatchLimit:   opts.BatchLimit,
		SeenCapacity: m.cfg.Platforms.SeenCapacity,
	}, m.logger)
	// The poller outlives the connect request; only Disconnect or
	// Shutdown stops it.
	p.Start(context.WithoutCancel(ctx))

	m.connections[name] = &connection{
		source:      source,
		poller:      p,
		credentials: credentials,
	}
	m.persistLocked(ctx)

	m.logger.WithField("platform", name).Info("Platform connected")
	return nil
}

// Disconnect stops the platform's poller and forgets the connection.
// Disconnecting an unknown platform is a warning no-op.
func (m *Manager) Disconnect(ctx context.Context, name string) {
	m.mu.Lock()
	conn, ok := m.connections[name]
	if !ok {
		m.mu.Unlock()
		m.logger.WithField("platform", name).Warn("Platform not connected")
		return
	}
	delete(m.connections, name)
	m.persistLocked(ctx)
	m.mu.Unlock()

	// Stop outside the lock: it waits for the in-flight cycle.
	conn.poller.Stop()
	m.logger.WithField("platform", name).Info("Platform disconnected")
}

// ListConnected returns connected platforms in stable name order.
func (m *Manager) ListConnected() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Status, 0, len(m.connections))
	for name, conn := range m.connections {
		out = append(out, Status{Name: name, State: conn.poller.State()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Restore reconnects every platform recorded in redis. Individual failures
// are logged and skipped so one stale credential set cannot block boot.
func (m *Manager) Restore(ctx context.Context) {
	raw, err := m.cache.Get(ctx, cache.ConnectedPlatformsKey)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			m.logger.WithError(err).Error("Failed to read stored platform connections")
		}
		return
	}
	if raw == "" {
		return
	}
	var stored map[string]map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		m.logger.WithError(err).Warn("Failed to decode stored platform connections")
		return
	}
	for name, credentials := range stored {
		if err := m.Connect(ctx, name, credentials); err != nil {
			m.logger.WithError(err).WithField("platform", name).
				Warn("Failed to restore platform connection")
		}
	}
}

// Shutdown stops every poller and leaves the redis record intact so the
// next boot restores the same connections.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	pollers := make([]*poller.Poller, 0, len(m.connections))
	for _, conn := range m.connections {
		pollers = append(pollers, conn.poller)
	}
	m.connections = make(map[string]*connection)
	m.mu.Unlock()

	for _, p := range pollers {
		p.Stop()
	}
	m.logger.Info("Platform manager shut down")
}

// persistLocked writes the connected-platform record; callers hold m.mu.
func (m *Manager) persistLocked(ctx context.Context) {
	stored := make(map[string]map[string]interface{}, len(m.connections))
	for name, conn := range m.connections {
		stored[name] = conn.credentials
	}
	payload, err := json.Marshal(stored)
	if err != nil {
		m.logger.WithError(err).Warn("Failed to encode platform connections")
		return
	}
	if err := m.cache.Set(ctx, cache.ConnectedPlatformsKey, string(payload), 0); err != nil {
		m.logger.WithError(err).Warn("Failed to persist platform connections")
	}
}
