package console

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"kcdev/internal/admin"
	"kcdev/internal/realm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeAdmin struct {
	users         map[string]string // username -> id
	deleted       []string
	createdRealms []string
	deletedRealms []string
	tokenErr      error
}

func newFakeAdmin() *fakeAdmin {
	return &fakeAdmin{users: make(map[string]string)}
}

func (f *fakeAdmin) CreateUser(ctx context.Context, u admin.User) (string, error) {
	if _, exists := f.users[u.Username]; exists {
		return "", &admin.APIError{Op: "create user", StatusCode: 409}
	}
	id := fmt.Sprintf("id-%d", len(f.users)+1)
	f.users[u.Username] = id
	return id, nil
}

func (f *fakeAdmin) DeleteUser(ctx context.Context, id string) error {
	for name, userID := range f.users {
		if userID == id {
			delete(f.users, name)
			f.deleted = append(f.deleted, id)
			return nil
		}
	}
	return &admin.APIError{Op: "delete user", StatusCode: 404}
}

func (f *fakeAdmin) UserID(ctx context.Context, username string) (string, error) {
	id, ok := f.users[username]
	if !ok {
		return "", &admin.APIError{Op: "find user", StatusCode: 404}
	}
	return id, nil
}

func (f *fakeAdmin) UserToken(ctx context.Context, username, password, clientID string) (*oauth2.Token, error) {
	if f.tokenErr != nil {
		return nil, f.tokenErr
	}
	return &oauth2.Token{AccessToken: "token-" + username}, nil
}

func (f *fakeAdmin) EnsureRealm(ctx context.Context, doc *realm.Document) error {
	f.createdRealms = append(f.createdRealms, doc.Realm)
	return nil
}

func (f *fakeAdmin) DeleteRealm(ctx context.Context, name string) error {
	f.deletedRealms = append(f.deletedRealms, name)
	return nil
}

func (f *fakeAdmin) Realm() string { return "dev" }

func newTestConsole(fake *fakeAdmin) (*Console, *bytes.Buffer) {
	c := New(fake, func(context.Context) string { return "running at http://localhost:18080" })
	out := &bytes.Buffer{}
	c.out = out
	return c, out
}

func TestExecuteLine_Help(t *testing.T) {
	c, out := newTestConsole(newFakeAdmin())

	require.NoError(t, c.executeLine(context.Background(), "help"))
	assert.Contains(t, out.String(), "create-user")
	assert.Contains(t, out.String(), "token")

	out.Reset()
	require.NoError(t, c.executeLine(context.Background(), "?"))
	assert.Contains(t, out.String(), "Available commands")
}

func TestExecuteLine_Status(t *testing.T) {
	c, out := newTestConsole(newFakeAdmin())

	require.NoError(t, c.executeLine(context.Background(), "status"))
	assert.Contains(t, out.String(), "http://localhost:18080")
}

func TestExecuteLine_CreateAndDeleteUser(t *testing.T) {
	fake := newFakeAdmin()
	c, out := newTestConsole(fake)

	require.NoError(t, c.executeLine(context.Background(), "create-user alice secret"))
	assert.Contains(t, out.String(), `Created user "alice"`)
	assert.Contains(t, fake.users, "alice")

	out.Reset()
	require.NoError(t, c.executeLine(context.Background(), "user-id alice"))
	assert.Contains(t, out.String(), "id-1")

	require.NoError(t, c.executeLine(context.Background(), "delete-user alice"))
	assert.NotContains(t, fake.users, "alice")
}

func TestExecuteLine_DeleteUnknownUser(t *testing.T) {
	c, _ := newTestConsole(newFakeAdmin())
	assert.Error(t, c.executeLine(context.Background(), "delete-user nobody"))
}

func TestExecuteLine_Token(t *testing.T) {
	c, out := newTestConsole(newFakeAdmin())

	require.NoError(t, c.executeLine(context.Background(), "token alice secret my-app"))
	assert.Contains(t, out.String(), "token-alice")

	assert.Error(t, c.executeLine(context.Background(), "token alice"), "wrong arity must be rejected")
}

func TestExecuteLine_CreateRealmFromFile(t *testing.T) {
	fake := newFakeAdmin()
	c, out := newTestConsole(fake)

	path := filepath.Join(t.TempDir(), "realm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("realm: staging\n"), 0o644))

	require.NoError(t, c.executeLine(context.Background(), "create-realm "+path))
	assert.Equal(t, []string{"staging"}, fake.createdRealms)
	assert.Contains(t, out.String(), `Realm "staging" imported`)
}

func TestExecuteLine_DeleteRealm(t *testing.T) {
	fake := newFakeAdmin()
	c, _ := newTestConsole(fake)

	require.NoError(t, c.executeLine(context.Background(), "delete-realm staging"))
	assert.Equal(t, []string{"staging"}, fake.deletedRealms)
}

func TestExecuteLine_Exit(t *testing.T) {
	c, _ := newTestConsole(newFakeAdmin())

	assert.ErrorIs(t, c.executeLine(context.Background(), "exit"), errExit)
	assert.ErrorIs(t, c.executeLine(context.Background(), "quit"), errExit)
}

func TestExecuteLine_UnknownCommand(t *testing.T) {
	c, _ := newTestConsole(newFakeAdmin())

	err := c.executeLine(context.Background(), "frobnicate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestExecuteLine_EmptyInput(t *testing.T) {
	c, out := newTestConsole(newFakeAdmin())

	require.NoError(t, c.executeLine(context.Background(), "   "))
	assert.Empty(t, out.String())
}
