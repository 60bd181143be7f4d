package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/deskgate/assets"
	"github.com/doeshing/deskgate/internal/domain"
	"github.com/doeshing/deskgate/internal/pkg/filesystem"
	"github.com/doeshing/deskgate/internal/ports"
)

// EnvConfigPath overrides the configuration file location.
const EnvConfigPath = "DESKGATE_CONFIG"

// FileLoader loads YAML configuration from ~/.deskgate/config.yaml (overridable via DESKGATE_CONFIG).
type FileLoader struct {
	overridePath string
	home         string
}

// NewFileLoader builds a new loader. An empty path uses the environment or the default location.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{overridePath: path, home: filesystem.UserHomeDir()}
}

// Load implements ports.ConfigProvider. A missing file is created from the embedded defaults.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	path := l.Path()
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return domain.Config{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return domain.Config{}, err
		}
		if err := os.WriteFile(path, assets.DefaultConfigYAML, domain.SecureFilePermissions); err != nil {
			return domain.Config{}, fmt.Errorf("write default config: %w", err)
		}
		data = assets.DefaultConfigYAML
	}

	cfg, err := Parse(data)
	if err != nil {
		return domain.Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return l.hydrate(cfg), nil
}

// Path returns the file Load reads.
func (l *FileLoader) Path() string {
	if l.overridePath != "" {
		return l.expand(l.overridePath)
	}
	if custom := os.Getenv(EnvConfigPath); custom != "" {
		return l.expand(custom)
	}
	return filepath.Join(l.home, ".deskgate", "config.yaml")
}

// Parse decodes YAML without touching the filesystem. Unknown keys are errors.
func Parse(data []byte) (domain.Config, error) {
	var cfg domain.Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return domain.Config{}, err
	}
	return cfg, nil
}

// Defaults returns the embedded default configuration.
func Defaults() domain.Config {
	cfg, err := Parse(assets.DefaultConfigYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded config is invalid: %v", err))
	}
	return cfg
}

// ResolvedDefaults returns the embedded defaults as Load would return them,
// with "~" expanded for this loader's home directory.
func (l *FileLoader) ResolvedDefaults() domain.Config {
	return l.hydrate(Defaults())
}

// hydrate fills fields an older or hand-written file may omit and expands
// "~" in allowlist roots and file paths.
func (l *FileLoader) hydrate(cfg domain.Config) domain.Config {
	if cfg.ConfigFormatVersion == "" {
		cfg.ConfigFormatVersion = "1.0.0"
	}
	if cfg.Execution.Shell == "" {
		cfg.Execution.Shell = "auto"
	}
	if cfg.Elevation.Launcher == "" {
		cfg.Elevation.Launcher = "auto"
	}
	if cfg.Automation.ImageConfidence == 0 {
		cfg.Automation.ImageConfidence = domain.DefaultImageConfidence
	}
	if cfg.Automation.ControlTreeDepth == 0 {
		cfg.Automation.ControlTreeDepth = domain.DefaultControlTreeDepth
	}
	if cfg.Automation.OCRCommand == "" {
		cfg.Automation.OCRCommand = "tesseract"
	}
	if cfg.Audit.Driver == "" {
		cfg.Audit.Driver = "sqlite"
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "deskgate"
	}
	for i, root := range cfg.Allowlist.Roots {
		cfg.Allowlist.Roots[i] = l.expand(root)
	}
	if cfg.Elevation.RulesFile != "" {
		cfg.Elevation.RulesFile = l.expand(cfg.Elevation.RulesFile)
	}
	return cfg
}

func (l *FileLoader) expand(path string) string {
	switch {
	case path == "~":
		return l.home
	case strings.HasPrefix(path, "~/"), strings.HasPrefix(path, `~\`):
		return filepath.Join(l.home, path[2:])
	case filepath.IsAbs(path):
		return path
	default:
		return filepath.Clean(path)
	}
}

var _ ports.ConfigProvider = (*FileLoader)(nil)
