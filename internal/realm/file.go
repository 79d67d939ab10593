package realm

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"kcdev/pkg/logging"

	"sigs.k8s.io/yaml"
)

// LoadFile reads a realm definition from a YAML or JSON file, renders it as
// a template, applies defaults and validates it.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read realm file %s: %w", path, err)
	}

	rendered, err := Render(filepath.Base(path), data, nil)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(rendered, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse realm file %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid realm file %s: %w", path, err)
	}

	logging.Debug("Realm", "Loaded realm %q from %s (%d users, %d clients)",
		cfg.Realm, path, len(cfg.Users), len(cfg.Clients))
	return &cfg, nil
}

// ImportFilePath returns the import file location inside a distribution for
// an instance bound to httpPort. The port keeps concurrent instances sharing
// one distribution from clobbering each other's import files.
func ImportFilePath(distDir string, httpPort int) string {
	return filepath.Join(distDir, "data", "import", fmt.Sprintf("realm-%d.json", httpPort))
}

// WriteImportFile places the realm document where Keycloak's --import-realm
// looks for it and returns the written path.
func WriteImportFile(doc *Document, distDir string, httpPort int) (string, error) {
	path := ImportFilePath(distDir, httpPort)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create import directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode realm %q: %w", doc.Realm, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write import file %s: %w", path, err)
	}

	logging.Debug("Realm", "Wrote import file %s for realm %q", path, doc.Realm)
	return path, nil
}

// RemoveImportFile deletes a previously written import file. A missing file
// is not an error; the file may never have been written when startup failed
// early.
func RemoveImportFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove import file %s: %w", path, err)
	}
	return nil
}
