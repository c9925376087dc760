package handoff

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry is an in-memory table of outstanding handoffs, scoped to one
// Registry value — there is no hidden process-wide instance. Constructing
// several independent registries is supported and cheap. The registry is
// safe for concurrent use; hosts that need durability or cross-process
// coordination must layer it themselves.
type Registry struct {
	mu       sync.RWMutex
	packages map[uuid.UUID]*Package
	order    map[uuid.UUID]int
	seq      int
	now      func() time.Time
}

// RegistryOption configures a Registry at construction.
type RegistryOption func(*Registry)

// WithClock overrides the registry's time source. Test seam.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		packages: make(map[uuid.UUID]*Package),
		order:    make(map[uuid.UUID]int),
		now:      time.Now,
	}
	for _, fn := range opts {
		fn(r)
	}
	return r
}

// Register stores a prepared package by id. Registering the same id twice
// is an error; re-prepare instead of re-registering.
func (r *Registry) Register(pkg *Package) error {
	if pkg == nil {
		return fmt.Errorf("handoff: register: nil package")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.packages[pkg.ID]; exists {
		return fmt.Errorf("handoff: register: package %s already registered", pkg.ID)
	}
	r.packages[pkg.ID] = pkg.Clone()
	r.order[pkg.ID] = r.seq
	r.seq++
	return nil
}

// Get returns a copy of the package with the given id.
func (r *Registry) Get(id uuid.UUID) (*Package, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pkg, ok := r.packages[id]
	if !ok {
		return nil, false
	}
	return pkg.Clone(), true
}

// UpdateStatus moves the package to a new lifecycle state. It returns false
// when the id is unknown and an error when the status itself is not one of
// the known states.
func (r *Registry) UpdateStatus(id uuid.UUID, status Status) (bool, error) {
	if !ValidStatus(status) {
		return false, fmt.Errorf("handoff: unknown status %q", status)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	pkg, ok := r.packages[id]
	if !ok {
		return false, nil
	}
	pkg.Status = status
	return true, nil
}

// PendingFor returns the pending packages addressed to target, immediate
// priority first, then normal, then deferred; ties keep registration order.
// Expired-but-unswept packages are skipped.
func (r *Registry) PendingFor(target string) []*Package {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Package
	for _, pkg := range r.packages {
		if pkg.Target != target || pkg.Status != StatusPending {
			continue
		}
		if r.expiredLocked(pkg) {
			continue
		}
		out = append(out, pkg.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if ri, rj := out[i].Priority.rank(), out[j].Priority.rank(); ri != rj {
			return ri < rj
		}
		return r.order[out[i].ID] < r.order[out[j].ID]
	})
	return out
}

// IsExpired reports whether the package's expiry is set and has passed.
// Packages without an expiry never expire.
func (r *Registry) IsExpired(pkg *Package) bool {
	if pkg == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.expiredLocked(pkg)
}

func (r *Registry) expiredLocked(pkg *Package) bool {
	return pkg.ExpiresAt != nil && r.now().After(*pkg.ExpiresAt)
}

// ClearExpired removes every expired package and returns how many were
// removed. Call it from a sweep loop; the registry never sweeps on its own.
func (r *Registry) ClearExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, pkg := range r.packages {
		if r.expiredLocked(pkg) {
			delete(r.packages, id)
			delete(r.order, id)
			removed++
		}
	}
	return removed
}

// Remove deletes a package by id, expired or not.
func (r *Registry) Remove(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.packages[id]; !ok {
		return false
	}
	delete(r.packages, id)
	delete(r.order, id)
	return true
}

// Len returns the number of registered packages, expired ones included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.packages)
}
