// Package interfaces defines extensible interfaces for send backend implementations.
// Each backend (e.g. stdout, stream socket, websocket, telegram) must implement SendBackend.
package interfaces

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mfulz/linegeist/protocol"
)

// SendBackend delivers formatted messages to a chat network.
type SendBackend interface {
	// Name returns the registry name of the backend.
	Name() string

	// Configure applies backend-specific options from the config file.
	// It is called once before the first Send.
	Configure(options map[string]any) error

	// Send delivers msg and blocks until the backend has accepted or
	// rejected it. Messages without text are skipped, not sent.
	Send(ctx context.Context, msg *protocol.Message) (*protocol.Receipt, error)

	// Close releases connections held by the backend.
	Close() error
}

// BackendFactory creates a fresh, unconfigured backend instance.
type BackendFactory func() SendBackend

var (
	registryMu         sync.RWMutex
	registeredBackends = make(map[string]BackendFactory)
)

// RegisterBackend adds a new backend factory to the global registry under a unique name.
func RegisterBackend(name string, factory BackendFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registeredBackends[name]; exists {
		panic(fmt.Sprintf("backend already registered: %s", name))
	}
	registeredBackends[name] = factory
}

// NewBackend creates an instance of a previously registered backend.
func NewBackend(name string) (SendBackend, error) {
	registryMu.RLock()
	factory, ok := registeredBackends[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no backend registered with name: %s (available: %s)",
			name, strings.Join(BackendNames(), ", "))
	}
	return factory(), nil
}

// BackendNames lists the registered backends in sorted order.
func BackendNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registeredBackends))
	for name := range registeredBackends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
