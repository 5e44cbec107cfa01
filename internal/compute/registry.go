// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compute

import (
	"sort"
	"sync"
)

// Factory opens a device for a registered backend.
type Factory func() (Device, error)

// RegistryEntry represents a registered compute backend.
type RegistryEntry struct {
	// Name is the unique identifier for this backend.
	Name string

	// Priority determines selection order (higher = preferred).
	// Standard priorities:
	//   - 100: GPU backends
	//   - 10: CPU backends
	Priority int

	// Hardware marks backends backed by a physical device. Only hardware
	// backends take part in automatic selection.
	Hardware bool

	// Factory opens the device.
	Factory Factory

	// Available reports if the backend can run on this system.
	Available func() bool
}

// globalRegistry is the default registry.
var globalRegistry = NewRegistry()

// Registry manages registered compute backends.
//
// Backends register themselves from init:
//
//	func init() {
//	    compute.Register("vulkan", 100, true, open, available)
//	}
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*RegistryEntry
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*RegistryEntry),
	}
}

// Register adds a backend to the global registry.
// If available is nil, the backend is assumed always available.
// Registering a name that already exists replaces the previous entry.
func Register(name string, priority int, hardware bool, factory Factory, available func() bool) {
	globalRegistry.Register(name, priority, hardware, factory, available)
}

// Unregister removes a backend from the global registry.
func Unregister(name string) {
	globalRegistry.Unregister(name)
}

// List returns all registered backend names sorted by priority (highest first).
func List() []string {
	return globalRegistry.List()
}

// Available returns names of all available backends sorted by priority.
func Available() []string {
	return globalRegistry.Available()
}

// Get returns information about a specific backend.
func Get(name string) (*RegistryEntry, bool) {
	return globalRegistry.Get(name)
}

// Register adds a backend to this registry.
func (r *Registry) Register(name string, priority int, hardware bool, factory Factory, available func() bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if available == nil {
		available = func() bool { return true }
	}

	r.entries[name] = &RegistryEntry{
		Name:      name,
		Priority:  priority,
		Hardware:  hardware,
		Factory:   factory,
		Available: available,
	}
}

// Unregister removes a backend from this registry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, name)
}

// List returns all registered backend names sorted by priority.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sortedNames(func(*RegistryEntry) bool { return true })
}

// Available returns names of all available backends sorted by priority.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sortedNames(func(e *RegistryEntry) bool { return e.Available() })
}

// Get returns information about a specific backend.
func (r *Registry) Get(name string) (*RegistryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[name]
	if !ok {
		return nil, false
	}

	entryCopy := *entry
	return &entryCopy, true
}

// Acquire opens a device. With an empty name the available hardware
// backends are tried in priority order and the first to open wins; CPU
// backends are only used when named explicitly.
func (r *Registry) Acquire(name string) (*DeviceContext, error) {
	if name != "" {
		return r.acquireByName(name)
	}

	r.mu.RLock()
	candidates := r.sortedNames(func(e *RegistryEntry) bool { return e.Hardware && e.Available() })
	r.mu.RUnlock()

	if len(candidates) == 0 {
		return nil, &NoDeviceError{}
	}

	var lastErr error
	for _, n := range candidates {
		dc, err := r.acquireByName(n)
		if err == nil {
			return dc, nil
		}
		slogger().Debug("compute: backend failed to open", "backend", n, "err", err)
		lastErr = err
	}
	return nil, &NoDeviceError{Tried: candidates, Err: lastErr}
}

func (r *Registry) acquireByName(name string) (*DeviceContext, error) {
	r.mu.RLock()
	entry, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return nil, &BackendNotFoundError{Name: name}
	}
	if !entry.Available() {
		return nil, &NoDeviceError{Tried: []string{name}, Err: &BackendUnavailableError{Name: name}}
	}

	dev, err := entry.Factory()
	if err != nil {
		return nil, &NoDeviceError{Tried: []string{name}, Err: err}
	}
	return newDeviceContext(dev, true), nil
}

// sortedNames returns backend names sorted by priority (highest first),
// ties broken by name. Must be called with lock held.
func (r *Registry) sortedNames(keep func(*RegistryEntry) bool) []string {
	if len(r.entries) == 0 {
		return nil
	}

	entries := make([]*RegistryEntry, 0, len(r.entries))
	for _, e := range r.entries {
		if keep(e) {
			entries = append(entries, e)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority > entries[j].Priority
		}
		return entries[i].Name < entries[j].Name
	})

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}
