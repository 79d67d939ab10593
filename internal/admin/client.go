package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"kcdev/internal/realm"
	"kcdev/pkg/logging"

	"golang.org/x/oauth2"
)

// adminCLIClientID is Keycloak's built-in client for admin API access.
const adminCLIClientID = "admin-cli"

// requestTimeout bounds individual admin API calls.
const requestTimeout = 30 * time.Second

// User describes a user to create. Only Username and Password are
// required; the other fields get development-friendly defaults.
type User struct {
	Username  string
	Password  string
	Email     string
	FirstName string
	LastName  string
}

// Client talks to the admin REST API of one Keycloak instance. It is safe
// for concurrent use; the admin token is acquired lazily and shared.
type Client struct {
	baseURL       string
	realm         string
	adminUser     string
	adminPassword string

	httpClient *http.Client

	mu    sync.Mutex
	token *oauth2.Token
}

// New creates a Client for the instance at baseURL. User operations
// target the given realm; admin authentication always goes through the
// master realm.
func New(baseURL, realmName, adminUser, adminPassword string) *Client {
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		realm:         realmName,
		adminUser:     adminUser,
		adminPassword: adminPassword,
		httpClient:    &http.Client{Timeout: requestTimeout},
	}
}

// Realm returns the realm this client operates on.
func (c *Client) Realm() string {
	return c.realm
}

// adminToken returns a valid admin bearer token, fetching a new one via
// password grant when the cached token is missing or about to expire.
func (c *Client) adminToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token.Valid() {
		return c.token.AccessToken, nil
	}

	cfg := oauth2.Config{
		ClientID: adminCLIClientID,
		Endpoint: oauth2.Endpoint{
			TokenURL: fmt.Sprintf("%s/realms/master/protocol/openid-connect/token", c.baseURL),
		},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := cfg.PasswordCredentialsToken(ctx, c.adminUser, c.adminPassword)
	if err != nil {
		return "", fmt.Errorf("failed to obtain admin token: %w", err)
	}

	logging.Debug("Admin", "Obtained admin token, valid until %s", token.Expiry)
	c.token = token
	return token.AccessToken, nil
}

// UserToken obtains a token for a realm user via password grant against
// the client's realm, e.g. to exercise an application the way a logged-in
// user would.
func (c *Client) UserToken(ctx context.Context, username, password, clientID string) (*oauth2.Token, error) {
	cfg := oauth2.Config{
		ClientID: clientID,
		Endpoint: oauth2.Endpoint{
			TokenURL: fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", c.baseURL, c.realm),
		},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := cfg.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain token for user %q: %w", username, err)
	}
	return token, nil
}

// do issues an authenticated admin API request and checks the response
// status. The response body is returned for 2xx answers; everything else
// becomes an *APIError.
func (c *Client) do(ctx context.Context, op, method, path string, payload interface{}) (*http.Response, error) {
	token, err := c.adminToken(ctx)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(msg)),
		}
	}
	return resp, nil
}

// CreateUser creates an enabled user with a permanent password in the
// client's realm and returns the user ID. A user that already exists is
// reported as a conflict APIError. The default realm role is assigned
// best-effort; a missing role does not fail the creation.
func (c *Client) CreateUser(ctx context.Context, u User) (string, error) {
	if u.Email == "" {
		u.Email = u.Username + "@example.com"
	}
	if u.FirstName == "" {
		u.FirstName = "Test"
	}
	if u.LastName == "" {
		u.LastName = "User"
	}

	payload := map[string]interface{}{
		"username":        u.Username,
		"enabled":         true,
		"email":           u.Email,
		"emailVerified":   true,
		"firstName":       u.FirstName,
		"lastName":        u.LastName,
		"requiredActions": []string{},
	}

	resp, err := c.do(ctx, "create user", http.MethodPost,
		fmt.Sprintf("/admin/realms/%s/users", c.realm), payload)
	if err != nil {
		return "", err
	}
	resp.Body.Close()

	id := idFromLocation(resp.Header.Get("Location"))
	if id == "" {
		// Older Keycloak versions omit the Location header.
		id, err = c.UserID(ctx, u.Username)
		if err != nil {
			return "", err
		}
	}

	if err := c.resetPassword(ctx, id, u.Password); err != nil {
		// A user without a working password is useless; take the creation
		// back so a retry starts clean.
		if delErr := c.DeleteUser(ctx, id); delErr != nil {
			logging.Warn("Admin", "Could not roll back user %q after password failure: %v", u.Username, delErr)
		}
		return "", err
	}

	c.assignDefaultRole(ctx, id, u.Username)

	logging.Info("Admin", "Created user %q (%s) in realm %q", u.Username, id, c.realm)
	return id, nil
}

// resetPassword sets a permanent password on an existing user.
func (c *Client) resetPassword(ctx context.Context, userID, password string) error {
	payload := map[string]interface{}{
		"type":      "password",
		"value":     password,
		"temporary": false,
	}
	resp, err := c.do(ctx, "reset password", http.MethodPut,
		fmt.Sprintf("/admin/realms/%s/users/%s/reset-password", c.realm, userID), payload)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// assignDefaultRole maps the realm's "user" role onto the new user,
// falling back to Keycloak's composite default role. Failures are logged
// only: role setup varies per realm and must not break user creation.
func (c *Client) assignDefaultRole(ctx context.Context, userID, username string) {
	role, err := c.realmRole(ctx, "user")
	if err != nil {
		role, err = c.realmRole(ctx, "default-roles-"+c.realm)
	}
	if err != nil {
		logging.Debug("Admin", "No default role to assign to %q: %v", username, err)
		return
	}

	resp, err := c.do(ctx, "assign role", http.MethodPost,
		fmt.Sprintf("/admin/realms/%s/users/%s/role-mappings/realm", c.realm, userID),
		[]map[string]interface{}{{"id": role.ID, "name": role.Name}})
	if err != nil {
		logging.Debug("Admin", "Could not assign role %q to %q: %v", role.Name, username, err)
		return
	}
	resp.Body.Close()
}

type roleRepresentation struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (c *Client) realmRole(ctx context.Context, name string) (roleRepresentation, error) {
	resp, err := c.do(ctx, "get role", http.MethodGet,
		fmt.Sprintf("/admin/realms/%s/roles/%s", c.realm, url.PathEscape(name)), nil)
	if err != nil {
		return roleRepresentation{}, err
	}
	defer resp.Body.Close()

	var role roleRepresentation
	if err := json.NewDecoder(resp.Body).Decode(&role); err != nil {
		return roleRepresentation{}, fmt.Errorf("failed to decode role %q: %w", name, err)
	}
	return role, nil
}

// UserID looks up a user ID by exact username.
func (c *Client) UserID(ctx context.Context, username string) (string, error) {
	resp, err := c.do(ctx, "find user", http.MethodGet,
		fmt.Sprintf("/admin/realms/%s/users?username=%s&exact=true", c.realm, url.QueryEscape(username)), nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var users []struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return "", fmt.Errorf("failed to decode user search result: %w", err)
	}
	for _, u := range users {
		if u.Username == username {
			return u.ID, nil
		}
	}
	return "", &APIError{Op: "find user", StatusCode: http.StatusNotFound,
		Message: fmt.Sprintf("user %q not found in realm %q", username, c.realm)}
}

// DeleteUser removes a user by ID.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	resp, err := c.do(ctx, "delete user", http.MethodDelete,
		fmt.Sprintf("/admin/realms/%s/users/%s", c.realm, userID), nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// EnsureRealm creates a realm from the given import document. A realm
// that already exists is not an error.
func (c *Client) EnsureRealm(ctx context.Context, doc *realm.Document) error {
	resp, err := c.do(ctx, "create realm", http.MethodPost, "/admin/realms", doc)
	if err != nil {
		if IsConflict(err) {
			logging.Debug("Admin", "Realm %q already exists", doc.Realm)
			return nil
		}
		return err
	}
	resp.Body.Close()

	logging.Info("Admin", "Created realm %q", doc.Realm)
	return nil
}

// DeleteRealm removes a realm. A realm that does not exist is not an
// error.
func (c *Client) DeleteRealm(ctx context.Context, name string) error {
	resp, err := c.do(ctx, "delete realm", http.MethodDelete, "/admin/realms/"+url.PathEscape(name), nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil
		}
		return err
	}
	resp.Body.Close()
	return nil
}

// ReimportRealm replaces a realm with the given document: delete if
// present, then create. Used by the realm file watcher for live reloads.
func (c *Client) ReimportRealm(ctx context.Context, doc *realm.Document) error {
	if err := c.DeleteRealm(ctx, doc.Realm); err != nil {
		return err
	}
	return c.EnsureRealm(ctx, doc)
}

// idFromLocation extracts the resource ID from a Location header.
func idFromLocation(location string) string {
	if location == "" {
		return ""
	}
	parts := strings.Split(strings.TrimRight(location, "/"), "/")
	return parts[len(parts)-1]
}
