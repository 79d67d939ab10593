package realm

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRealmFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile_YAML(t *testing.T) {
	path := writeRealmFile(t, "realm.yaml", `
realm: dev
users:
  - username: alice
    password: secret
    email: alice@example.com
clients:
  - clientId: webapp
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Realm)
	require.Len(t, cfg.Users, 1)
	assert.Equal(t, "alice", cfg.Users[0].Username)
	require.Len(t, cfg.Clients, 1)
	assert.Equal(t, "webapp", cfg.Clients[0].ClientID)
}

func TestLoadFile_JSON(t *testing.T) {
	path := writeRealmFile(t, "realm.json", `{
  "realm": "dev",
  "users": [{"username": "alice", "password": "secret"}]
}`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Realm)
}

func TestLoadFile_Templated(t *testing.T) {
	t.Setenv("KCDEV_TEST_REALM_NAME", "templated")
	path := writeRealmFile(t, "realm.yaml", `realm: {{ env "KCDEV_TEST_REALM_NAME" }}`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "templated", cfg.Realm)
}

func TestLoadFile_AppliesSecretDefaults(t *testing.T) {
	path := writeRealmFile(t, "realm.yaml", `
realm: dev
clients:
  - clientId: backend
    publicClient: false
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Clients[0].Secret, "loading must materialize confidential secrets")
}

func TestLoadFile_InvalidRealmRejected(t *testing.T) {
	path := writeRealmFile(t, "realm.yaml", `
realm: dev
users:
  - username: alice
`)

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no password")
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadFile_UnparseableYAML(t *testing.T) {
	path := writeRealmFile(t, "realm.yaml", "realm: [broken")
	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestWriteImportFile(t *testing.T) {
	distDir := t.TempDir()
	cfg := Config{Realm: "dev", Users: []User{{Username: "alice", Password: "pw"}}}

	path, err := WriteImportFile(cfg.Document(), distDir, 8080)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(distDir, "data", "import", "realm-8080.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// Keycloak wants plain JSON; make sure it parses and is indented.
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "dev", doc["realm"])
	assert.True(t, strings.Contains(string(data), "\n  "), "import file should be indented")
}

func TestImportFilePath_PerPort(t *testing.T) {
	a := ImportFilePath("/opt/kc", 8080)
	b := ImportFilePath("/opt/kc", 8081)
	assert.NotEqual(t, a, b, "instances on different ports must not share import files")
}

func TestRemoveImportFile(t *testing.T) {
	distDir := t.TempDir()
	cfg := Config{Realm: "dev"}
	path, err := WriteImportFile(cfg.Document(), distDir, 8080)
	require.NoError(t, err)

	require.NoError(t, RemoveImportFile(path))
	assert.NoFileExists(t, path)

	// Removing again must be fine.
	assert.NoError(t, RemoveImportFile(path))
	assert.NoError(t, RemoveImportFile(""))
}
