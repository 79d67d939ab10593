// Package keycloak manages the lifecycle of local Keycloak server
// instances: installation, startup with readiness probing, graceful
// shutdown, and rollback of the distribution state between runs.
//
// The central type is Server, a facade over the installation cache
// (internal/install), the port allocator (internal/netutil) and the
// process supervisor (internal/process). A Server moves through the
// states uninstalled → installed → starting → running → stopping →
// installed; Start and Stop block until the transition has settled and
// are serialized under one mutex per Server.
//
// Every Server belongs to a Registry. The Registry tracks all live
// instances of one process, evicts running instances that would compete
// for resources when a new one is registered, and offers StopAll for
// shutdown paths. It is constructed by the composition root and injected;
// there is no package-level instance list.
package keycloak
