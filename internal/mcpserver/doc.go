// Package mcpserver exposes kcdev over the Model Context Protocol. It
// serves on stdio, so an AI assistant configured with `kcdev mcp` can
// start and stop a local Keycloak, inspect its status, create users, and
// obtain tokens without shelling out.
//
// The server owns one instance registry and manages at most one Keycloak
// server at a time; a second start request reuses or replaces the
// existing instance through the registry's eviction semantics.
package mcpserver
