package daemon

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/petal-labs/tooltailor/tool"
)

const (
	projectConfigName = "tooltailor.yaml"
	homeConfigName    = "config.yaml"
	homeConfigDir     = ".tooltailor"

	// EnvConfigPath names a config file when --config is not given.
	EnvConfigPath = "TOOLTAILOR_CONFIG"
	// EnvStorePath overrides the configured store path.
	EnvStorePath = "TOOLTAILOR_STORE_PATH"
)

// Store drivers accepted in the store section.
const (
	StoreDriverFile   = "file"
	StoreDriverSQLite = "sqlite"
	StoreDriverMemory = "memory"
)

// ConfigFile is the shape of tooltailor.yaml.
type ConfigFile struct {
	Servers map[string]ServerDeclaration `yaml:"servers"`
	Store   StoreDeclaration             `yaml:"store,omitempty"`
	Drift   DriftDeclaration             `yaml:"drift,omitempty"`

	// baseDir anchors relative paths; empty means the working directory.
	baseDir string
	// storePath comes from a command-line flag and beats everything else.
	storePath string
}

// ServerDeclaration defines one server's tool catalog and how to reach it.
type ServerDeclaration struct {
	Tools     []string             `yaml:"tools"`
	Transport TransportDeclaration `yaml:"transport,omitempty"`
}

// TransportDeclaration holds transport fields. Values may reference
// environment variables as $VAR or ${VAR}.
type TransportDeclaration struct {
	Mode     string            `yaml:"mode,omitempty"`
	Command  string            `yaml:"command,omitempty"`
	Args     []string          `yaml:"args,omitempty"`
	Env      map[string]string `yaml:"env,omitempty"`
	Endpoint string            `yaml:"endpoint,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty"`
}

// StoreDeclaration selects where customizations are kept.
type StoreDeclaration struct {
	Driver string `yaml:"driver,omitempty"`
	Path   string `yaml:"path,omitempty"`
}

// DriftDeclaration schedules periodic drift checks. An empty schedule
// disables them.
type DriftDeclaration struct {
	Schedule string `yaml:"schedule,omitempty"`
}

// DiscoverConfigPath resolves the config location with first-match semantics:
// explicit path, $TOOLTAILOR_CONFIG, ./tooltailor.yaml, ~/.tooltailor/config.yaml.
func DiscoverConfigPath(explicitPath string) (string, bool, error) {
	if strings.TrimSpace(explicitPath) == "" {
		explicitPath = os.Getenv(EnvConfigPath)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", false, fmt.Errorf("resolve working directory: %w", err)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("resolve user home: %w", err)
	}
	return DiscoverConfigPathFrom(explicitPath, cwd, homeDir)
}

// DiscoverConfigPathFrom is a testable variant of DiscoverConfigPath.
func DiscoverConfigPathFrom(explicitPath, cwd, homeDir string) (string, bool, error) {
	candidates := make([]string, 0, 2)
	if clean := strings.TrimSpace(explicitPath); clean != "" {
		candidates = append(candidates, filepath.Clean(clean))
	} else {
		candidates = append(candidates, filepath.Join(cwd, projectConfigName))
		candidates = append(candidates, filepath.Join(homeDir, homeConfigDir, homeConfigName))
	}

	for i, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			if i == 0 && strings.TrimSpace(explicitPath) != "" {
				return "", false, fmt.Errorf("config file %q not found", candidate)
			}
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("checking config path %q: %w", candidate, err)
		}
	}
	return "", false, nil
}

// LoadConfig reads path. An empty path yields an empty config.
func LoadConfig(path string) (ConfigFile, error) {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return ConfigFile{}, nil
	}
	// #nosec G304 -- path resolved from explicit local config discovery.
	data, err := os.ReadFile(clean)
	if err != nil {
		return ConfigFile{}, fmt.Errorf("reading config %q: %w", clean, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return ConfigFile{}, fmt.Errorf("parsing config %q: %w", clean, err)
	}
	cfg.baseDir = filepath.Dir(clean)
	return cfg, nil
}

// ParseConfig decodes a config document. Unknown keys are rejected.
func ParseConfig(data []byte) (ConfigFile, error) {
	var cfg ConfigFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return ConfigFile{}, err
	}
	return cfg, nil
}

// Catalog builds the server catalog, expanding environment references and
// inferring transport modes.
func (c ConfigFile) Catalog() (tool.StaticCatalog, error) {
	specs := make([]tool.ServerSpec, 0, len(c.Servers))
	for _, name := range slices.Sorted(maps.Keys(c.Servers)) {
		decl := c.Servers[name]
		transport, err := declarationToTransport(decl.Transport)
		if err != nil {
			return nil, fmt.Errorf("server %q: %w", name, err)
		}
		tools := make([]string, 0, len(decl.Tools))
		for _, toolName := range decl.Tools {
			if clean := strings.TrimSpace(toolName); clean != "" {
				tools = append(tools, clean)
			}
		}
		specs = append(specs, tool.ServerSpec{Name: name, Tools: tools, Transport: transport})
	}
	return tool.NewStaticCatalog(specs...)
}

func declarationToTransport(decl TransportDeclaration) (tool.Transport, error) {
	mode := strings.ToLower(strings.TrimSpace(expandEnvValue(decl.Mode)))
	command := strings.TrimSpace(expandEnvValue(decl.Command))
	endpoint := strings.TrimSpace(expandEnvValue(decl.Endpoint))

	if mode == "" {
		switch {
		case endpoint != "":
			mode = string(tool.TransportHTTP)
		case command != "":
			mode = string(tool.TransportStdio)
		default:
			return tool.Transport{}, nil
		}
	}

	switch tool.TransportMode(mode) {
	case tool.TransportStdio:
		if command == "" {
			return tool.Transport{}, errors.New("stdio transport requires command")
		}
		args := make([]string, 0, len(decl.Args))
		for _, arg := range decl.Args {
			args = append(args, expandEnvValue(arg))
		}
		return tool.Transport{
			Mode:    tool.TransportStdio,
			Command: command,
			Args:    args,
			Env:     expandStringMap(decl.Env),
		}, nil
	case tool.TransportHTTP:
		if endpoint == "" {
			return tool.Transport{}, errors.New("http transport requires endpoint")
		}
		return tool.Transport{
			Mode:     tool.TransportHTTP,
			Endpoint: endpoint,
			Headers:  expandStringMap(decl.Headers),
		}, nil
	default:
		return tool.Transport{}, fmt.Errorf("unsupported transport mode %q", mode)
	}
}

// WithStorePath returns a copy whose store location is pinned to path.
// An empty path leaves the normal resolution in place.
func (c ConfigFile) WithStorePath(path string) ConfigFile {
	c.storePath = strings.TrimSpace(path)
	return c
}

// StorePath returns the effective store location: a pinned path, then
// $TOOLTAILOR_STORE_PATH, then the configured path relative to the config
// file, then the driver's default under ~/.tooltailor.
func (c ConfigFile) StorePath() (string, error) {
	if c.storePath != "" {
		return c.storePath, nil
	}
	if env := strings.TrimSpace(os.Getenv(EnvStorePath)); env != "" {
		return env, nil
	}
	if p := strings.TrimSpace(expandEnvValue(c.Store.Path)); p != "" {
		return resolveConfigRelative(c.baseDir, p), nil
	}
	switch c.storeDriver() {
	case StoreDriverSQLite:
		return tool.DefaultSQLitePath()
	case StoreDriverMemory:
		return "", nil
	default:
		return tool.DefaultFileStorePath()
	}
}

func (c ConfigFile) storeDriver() string {
	driver := strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if driver == "" {
		return StoreDriverFile
	}
	return driver
}

// OpenStore opens the configured store. The returned close function is
// never nil.
func (c ConfigFile) OpenStore() (tool.Store, func() error, error) {
	noop := func() error { return nil }
	driver := c.storeDriver()
	if driver == StoreDriverMemory {
		return tool.NewMemoryStore(), noop, nil
	}
	path, err := c.StorePath()
	if err != nil {
		return nil, noop, err
	}
	switch driver {
	case StoreDriverFile:
		return tool.NewFileStore(path), noop, nil
	case StoreDriverSQLite:
		store, err := tool.NewSQLiteStore(path)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	default:
		return nil, noop, fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}
}

func expandStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for key, value := range values {
		out[key] = expandEnvValue(value)
	}
	return out
}

func expandEnvValue(value string) string {
	return os.ExpandEnv(value)
}

func resolveConfigRelative(baseDir, p string) string {
	clean := filepath.Clean(p)
	if filepath.IsAbs(clean) || baseDir == "" {
		return clean
	}
	return filepath.Join(baseDir, clean)
}
