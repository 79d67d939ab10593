// Package realm handles realm definition files: loading and templating,
// conversion into the representation Keycloak imports, import file
// management inside a distribution, and change watching for live reimport.
package realm

import (
	"fmt"

	"github.com/google/uuid"
)

// Config is a realm definition as written by users in YAML or JSON. It is
// deliberately smaller than Keycloak's full realm representation; Document
// expands it into the wire format.
type Config struct {
	// Realm is the realm name.
	Realm string `json:"realm"`

	// Enabled defaults to true.
	Enabled *bool `json:"enabled,omitempty"`

	// Users are created during realm import.
	Users []User `json:"users,omitempty"`

	// Clients are created during realm import.
	Clients []Client `json:"clients,omitempty"`
}

// User describes a realm user with a non-temporary password.
type User struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`

	// Enabled defaults to true.
	Enabled *bool `json:"enabled,omitempty"`

	RealmRoles  []string            `json:"realmRoles,omitempty"`
	ClientRoles map[string][]string `json:"clientRoles,omitempty"`
}

// Client describes an OIDC client.
type Client struct {
	ClientID string `json:"clientId"`

	// Enabled defaults to true.
	Enabled *bool `json:"enabled,omitempty"`

	// Secret is only meaningful for confidential clients. When empty on a
	// confidential client, ApplyDefaults generates one.
	Secret string `json:"secret,omitempty"`

	// PublicClient defaults to true.
	PublicClient *bool `json:"publicClient,omitempty"`

	// RedirectURIs and WebOrigins default to ["http://localhost:*"].
	RedirectURIs []string `json:"redirectUris,omitempty"`
	WebOrigins   []string `json:"webOrigins,omitempty"`

	// DirectAccessGrants defaults to true so password grants work out of
	// the box for development.
	DirectAccessGrants *bool `json:"directAccessGrants,omitempty"`
}

// IsPublic resolves the public/confidential default.
func (c *Client) IsPublic() bool {
	return boolValue(c.PublicClient, true)
}

// ApplyDefaults fills in values that must be materialized on the config
// rather than resolved per conversion. Currently that is one thing: a
// confidential client without a secret gets a generated one, so every later
// Document call renders the same secret.
func (c *Config) ApplyDefaults() {
	for i := range c.Clients {
		client := &c.Clients[i]
		if !client.IsPublic() && client.Secret == "" {
			client.Secret = uuid.NewString()
		}
	}
}

// Validate checks the realm definition for problems that would make the
// import fail or behave surprisingly.
func (c *Config) Validate() error {
	if c.Realm == "" {
		return fmt.Errorf("realm name must not be empty")
	}

	seenUsers := make(map[string]bool)
	for _, user := range c.Users {
		if user.Username == "" {
			return fmt.Errorf("user without username in realm %q", c.Realm)
		}
		if user.Password == "" {
			return fmt.Errorf("user %q has no password", user.Username)
		}
		if seenUsers[user.Username] {
			return fmt.Errorf("duplicate user %q", user.Username)
		}
		seenUsers[user.Username] = true
	}

	seenClients := make(map[string]bool)
	for _, client := range c.Clients {
		if client.ClientID == "" {
			return fmt.Errorf("client without clientId in realm %q", c.Realm)
		}
		if seenClients[client.ClientID] {
			return fmt.Errorf("duplicate client %q", client.ClientID)
		}
		seenClients[client.ClientID] = true
	}

	return nil
}

func boolValue(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
