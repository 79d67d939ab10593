package realm

// Document is the realm representation Keycloak understands, both for the
// --import-realm startup path and the admin REST API. Field names and
// structure follow Keycloak's partial realm representation.
type Document struct {
	Realm                       string                 `json:"realm"`
	Enabled                     bool                   `json:"enabled"`
	VerifyEmail                 bool                   `json:"verifyEmail"`
	RegistrationEmailAsUsername bool                   `json:"registrationEmailAsUsername"`
	Users                       []UserRepresentation   `json:"users"`
	Clients                     []ClientRepresentation `json:"clients"`
	Roles                       RolesRepresentation    `json:"roles"`
}

// RolesRepresentation holds the realm-level roles created on import.
type RolesRepresentation struct {
	Realm []RoleRepresentation `json:"realm"`
}

// RoleRepresentation is a single realm role.
type RoleRepresentation struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CredentialRepresentation is a user credential. kcdev only emits permanent
// passwords.
type CredentialRepresentation struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

// UserRepresentation is a user as imported by Keycloak.
type UserRepresentation struct {
	Username      string                     `json:"username"`
	Enabled       bool                       `json:"enabled"`
	Credentials   []CredentialRepresentation `json:"credentials"`
	Email         string                     `json:"email,omitempty"`
	EmailVerified bool                       `json:"emailVerified,omitempty"`
	FirstName     string                     `json:"firstName,omitempty"`
	LastName      string                     `json:"lastName,omitempty"`
	RealmRoles    []string                   `json:"realmRoles,omitempty"`
	ClientRoles   map[string][]string        `json:"clientRoles,omitempty"`
}

// ClientRepresentation is an OIDC client as imported by Keycloak.
type ClientRepresentation struct {
	ClientID                  string   `json:"clientId"`
	Enabled                   bool     `json:"enabled"`
	PublicClient              bool     `json:"publicClient"`
	RedirectURIs              []string `json:"redirectUris"`
	WebOrigins                []string `json:"webOrigins"`
	DirectAccessGrantsEnabled bool     `json:"directAccessGrantsEnabled"`
	StandardFlowEnabled       bool     `json:"standardFlowEnabled"`
	ImplicitFlowEnabled       bool     `json:"implicitFlowEnabled"`
	ServiceAccountsEnabled    bool     `json:"serviceAccountsEnabled"`
	Secret                    string   `json:"secret,omitempty"`
}

// Document expands the user-facing config into the representation Keycloak
// imports. Every realm gets a fixed pair of realm roles ("user", "admin")
// that users can reference in realmRoles.
func (c *Config) Document() *Document {
	doc := &Document{
		Realm:                       c.Realm,
		Enabled:                     boolValue(c.Enabled, true),
		VerifyEmail:                 false,
		RegistrationEmailAsUsername: false,
		Users:                       make([]UserRepresentation, 0, len(c.Users)),
		Clients:                     make([]ClientRepresentation, 0, len(c.Clients)),
		Roles: RolesRepresentation{
			Realm: []RoleRepresentation{
				{Name: "user", Description: "User role"},
				{Name: "admin", Description: "Admin role"},
			},
		},
	}

	for _, user := range c.Users {
		doc.Users = append(doc.Users, user.representation())
	}
	for _, client := range c.Clients {
		doc.Clients = append(doc.Clients, client.representation())
	}
	return doc
}

func (u *User) representation() UserRepresentation {
	rep := UserRepresentation{
		Username: u.Username,
		Enabled:  boolValue(u.Enabled, true),
		Credentials: []CredentialRepresentation{
			{Type: "password", Value: u.Password, Temporary: false},
		},
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		RealmRoles:  u.RealmRoles,
		ClientRoles: u.ClientRoles,
	}
	if u.Email != "" {
		rep.Email = u.Email
		rep.EmailVerified = true
	}
	return rep
}

func (c *Client) representation() ClientRepresentation {
	public := c.IsPublic()
	rep := ClientRepresentation{
		ClientID:                  c.ClientID,
		Enabled:                   boolValue(c.Enabled, true),
		PublicClient:              public,
		RedirectURIs:              orLocalhost(c.RedirectURIs),
		WebOrigins:                orLocalhost(c.WebOrigins),
		DirectAccessGrantsEnabled: boolValue(c.DirectAccessGrants, true),
		StandardFlowEnabled:       true,
		ImplicitFlowEnabled:       false,
		ServiceAccountsEnabled:    !public,
	}
	if !public && c.Secret != "" {
		rep.Secret = c.Secret
	}
	return rep
}

// orLocalhost fills empty URI lists with the development default: any local
// port, nothing else.
func orLocalhost(uris []string) []string {
	if len(uris) == 0 {
		return []string{"http://localhost:*"}
	}
	return uris
}
