// Package config provides configuration management for kcdev.
//
// Configuration is resolved in three layers, later layers winning:
//
//  1. Built-in defaults (Keycloak version, ports, admin credentials,
//     timeouts).
//  2. An optional kcdev.yaml file, either the one in the current directory
//     or a file named via the --config flag.
//  3. Environment variables: KEYCLOAK_ADMIN, KEYCLOAK_ADMIN_PASSWORD,
//     KCDEV_VERSION, KCDEV_INSTALL_DIR and KCDEV_HTTP_PORT.
//
// Command-line flags are applied by the cmd layer on top of the loaded
// config and therefore win over all three layers.
//
// Ports carry an extra bit of information: when the HTTP or management port
// came from the user (file, environment or flag) the config is marked as
// having explicit ports. Explicit ports are used exactly as given and a busy
// port is a startup error; defaulted ports are only the base for the
// automatic free-port search.
package config
