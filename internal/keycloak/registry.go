package keycloak

import (
	"context"
	"sync"
	"time"

	"kcdev/internal/netutil"
	"kcdev/pkg/logging"

	"golang.org/x/sync/errgroup"
)

// evictStopTimeout bounds how long registration waits for a displaced
// instance to shut down before moving on.
const evictStopTimeout = 10 * time.Second

// Registry tracks all live Server instances of this process. It owns the
// shared port allocator, so automatically allocated port pairs are disjoint
// across instances.
//
// A Registry must be created with NewRegistry and handed to keycloak.New;
// the composition root is expected to call StopAll from its shutdown path
// so no instance outlives the process.
type Registry struct {
	mu        sync.Mutex
	servers   map[string]*Server
	allocator *netutil.Allocator
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		servers:   make(map[string]*Server),
		allocator: netutil.NewAllocator(),
	}
}

// Allocator returns the port allocator shared by all registered servers.
func (r *Registry) Allocator() *netutil.Allocator {
	return r.allocator
}

// register adds a server to the registry. Any other instance that is
// currently running is stopped first so the new one does not compete with
// it for ports or the distribution directory. Eviction failures are logged
// and swallowed: a misbehaving sibling must not block a new instance.
func (r *Registry) register(ctx context.Context, s *Server) {
	running := r.runningExcept(s.ID())

	for _, other := range running {
		logging.Info("Registry", "Stopping running instance %s before registering %s", other.ID(), s.ID())
		evictCtx, cancel := context.WithTimeout(ctx, evictStopTimeout)
		if _, err := other.Stop(evictCtx); err != nil {
			logging.Warn("Registry", "Could not stop instance %s: %v", other.ID(), err)
		}
		cancel()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.servers[s.ID()] = s
	logging.Debug("Registry", "Registered instance %s (%d total)", s.ID(), len(r.servers))
}

// runningExcept snapshots the currently running servers, leaving out the
// one with the given ID.
func (r *Registry) runningExcept(id string) []*Server {
	r.mu.Lock()
	defer r.mu.Unlock()

	var running []*Server
	for _, s := range r.servers {
		if s.ID() == id {
			continue
		}
		if s.IsRunning() {
			running = append(running, s)
		}
	}
	return running
}

// Deregister removes a server from the registry. It does not stop it.
func (r *Registry) Deregister(s *Server) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.servers, s.ID())
	logging.Debug("Registry", "Deregistered instance %s (%d left)", s.ID(), len(r.servers))
}

// Servers returns a snapshot copy of all registered servers.
func (r *Registry) Servers() []*Server {
	r.mu.Lock()
	defer r.mu.Unlock()

	servers := make([]*Server, 0, len(r.servers))
	for _, s := range r.servers {
		servers = append(servers, s)
	}
	return servers
}

// CountRunning returns how many registered servers currently have a live
// process.
func (r *Registry) CountRunning() int {
	count := 0
	for _, s := range r.Servers() {
		if s.IsRunning() {
			count++
		}
	}
	return count
}

// StopAll stops every registered server. Instances are stopped
// concurrently; individual failures are logged, the first error is
// returned after all stops have finished. The iteration works on a
// snapshot so servers may deregister while StopAll runs.
func (r *Registry) StopAll(ctx context.Context) error {
	servers := r.Servers()
	if len(servers) == 0 {
		return nil
	}

	logging.Info("Registry", "Stopping %d instance(s)", len(servers))

	var g errgroup.Group
	for _, s := range servers {
		g.Go(func() error {
			if _, err := s.Stop(ctx); err != nil {
				logging.Warn("Registry", "Failed to stop instance %s: %v", s.ID(), err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
