// Package registry tracks which live connections are interested in
// which buildings and zones. It is the only shared mutable in-memory
// state in the core and is sized by connection count, not event volume.
package registry

import (
	"sort"
	"sync"

	"github.com/RainDancerX/air-harmony-insight-server/internal/contracts"
)

type connState struct {
	building string
	zones    map[string]struct{}
}

type Registry struct {
	mu         sync.RWMutex
	conns      map[string]*connState
	byBuilding map[string]map[string]struct{}
	byZone     map[string]map[string]struct{}
}

func New() *Registry {
	return &Registry{
		conns:      make(map[string]*connState),
		byBuilding: make(map[string]map[string]struct{}),
		byZone:     make(map[string]map[string]struct{}),
	}
}

// Register adds a fresh connection with no subscriptions. Must be
// called before any subscribe for that connection id.
func (r *Registry) Register(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[connID]; !ok {
		r.conns[connID] = &connState{zones: make(map[string]struct{})}
	}
}

// SubscribeBuilding replaces any prior building subscription for the
// connection; a connection holds at most one building at a time.
func (r *Registry) SubscribeBuilding(connID, buildingID string) error {
	if buildingID == "" {
		return contracts.ErrScopeRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.conns[connID]
	if !ok {
		return contracts.ErrConnectionClosed
	}
	if state.building != "" {
		r.removeFromIndex(r.byBuilding, state.building, connID)
	}
	state.building = buildingID
	r.addToIndex(r.byBuilding, buildingID, connID)
	return nil
}

func (r *Registry) SubscribeZone(connID, zoneID string) error {
	if zoneID == "" {
		return contracts.ErrScopeRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.conns[connID]
	if !ok {
		return contracts.ErrConnectionClosed
	}
	state.zones[zoneID] = struct{}{}
	r.addToIndex(r.byZone, zoneID, connID)
	return nil
}

func (r *Registry) UnsubscribeZone(connID, zoneID string) error {
	if zoneID == "" {
		return contracts.ErrScopeRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.conns[connID]
	if !ok {
		return contracts.ErrConnectionClosed
	}
	delete(state.zones, zoneID)
	r.removeFromIndex(r.byZone, zoneID, connID)
	return nil
}

// Disconnect removes the connection from every index in one pass.
// Disconnect wins over concurrent subscribes: once it returns, a late
// subscribe for the same id fails with ErrConnectionClosed.
func (r *Registry) Disconnect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.conns[connID]
	if !ok {
		return
	}
	if state.building != "" {
		r.removeFromIndex(r.byBuilding, state.building, connID)
	}
	for zoneID := range state.zones {
		r.removeFromIndex(r.byZone, zoneID, connID)
	}
	delete(r.conns, connID)
}

// ConnectionsForBuilding returns a point-in-time snapshot, sorted for
// deterministic fan-out order.
func (r *Registry) ConnectionsForBuilding(buildingID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.byBuilding[buildingID])
}

func (r *Registry) ConnectionsForZone(zoneID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.byZone[zoneID])
}

func (r *Registry) addToIndex(index map[string]map[string]struct{}, key, connID string) {
	set, ok := index[key]
	if !ok {
		set = make(map[string]struct{})
		index[key] = set
	}
	set[connID] = struct{}{}
}

func (r *Registry) removeFromIndex(index map[string]map[string]struct{}, key, connID string) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(index, key)
	}
}

func snapshot(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
