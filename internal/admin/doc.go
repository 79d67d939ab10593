// Package admin is a client for the admin REST API of a running Keycloak
// instance. It covers the operations a development setup needs: user
// management, realm import, and token acquisition for test users.
//
// Tokens are obtained through OAuth2 password grants against the
// instance's token endpoints; the admin token is cached until shortly
// before it expires. Unexpected HTTP responses surface as *APIError so
// callers can distinguish conflicts (409) from genuine failures.
package admin
