// Package app is the composition root behind `kcdev up`. It wires a
// resolved configuration into an instance registry and one managed
// Keycloak server, runs the install and start phases with progress
// feedback, prints the connection summary, and then blocks until the
// process is asked to shut down.
//
// When a realm file is configured with watching enabled, the package
// also runs a file watcher that re-imports the realm through the admin
// API on every change. Reimport failures are logged and never take the
// server down.
package app
