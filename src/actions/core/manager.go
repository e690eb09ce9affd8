package core

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Module is a long-running piece of the bot that can be started and stopped.
type Module interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context)
}

// Manager starts modules in registration order and stops them in reverse.
type Manager struct {
	mu      sync.Mutex
	modules []Module
	running []Module
}

// NewManager creates a manager with the provided modules. Nil modules are
// skipped so optional modules can be passed unconditionally.
func NewManager(mods ...Module) *Manager {
	m := &Manager{}
	for _, mod := range mods {
		if mod != nil {
			m.modules = append(m.modules, mod)
		}
	}
	return m
}

// Add registers a module before Start is invoked.
func (m *Manager) Add(mod Module) error {
	if mod == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running != nil {
		return fmt.Errorf("actions.Manager: cannot add %s after start", mod.Name())
	}
	m.modules = append(m.modules, mod)
	return nil
}

// Names lists registered modules in start order.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.modules))
	for _, mod := range m.modules {
		names = append(names, mod.Name())
	}
	return names
}

// Start starts every module. If one fails, the ones already running are
// stopped before the error is returned.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running != nil {
		return fmt.Errorf("actions.Manager already started")
	}

	running := make([]Module, 0, len(m.modules))
	for _, mod := range m.modules {
		if err := mod.Start(ctx); err != nil {
			stopAll(ctx, running)
			return fmt.Errorf("module %s failed: %w", mod.Name(), err)
		}
		log.Printf("actions: module %s started", mod.Name())
		running = append(running, mod)
	}
	m.running = running
	return nil
}

// Stop shuts down running modules in reverse order. It is safe to call more
// than once.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stopAll(ctx, m.running)
	m.running = nil
}

func stopAll(ctx context.Context, mods []Module) {
	for i := len(mods) - 1; i >= 0; i-- {
		mods[i].Stop(ctx)
		log.Printf("actions: module %s stopped", mods[i].Name())
	}
}
