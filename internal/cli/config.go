package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default cache settings applied when the config file carries no cache
// section.
const (
	defaultCacheTTLMinutes = 60
	defaultCacheDirName    = ".databricks-cache"
)

// Config is the toolkit configuration, loaded from
// ~/.databricks-maintenance.yml or from environment variables.
type Config struct {
	Workspaces map[string]WorkspaceConfig `yaml:"workspaces"`
	Cache      CacheConfig                `yaml:"cache"`
}

// WorkspaceConfig holds the connection details for one workspace. The
// token may reference an environment variable as "${VAR_NAME}".
type WorkspaceConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// CacheConfig controls the file-backed API response cache.
type CacheConfig struct {
	TTL       int    `yaml:"ttl"` // minutes
	Directory string `yaml:"directory"`
}

// LoadConfig reads the configuration file at path, or at
// ~/.databricks-maintenance.yml when path is empty. A missing file is
// not an error: the DATABRICKS_HOST and DATABRICKS_TOKEN environment
// variables then provide a "default" workspace. Cache settings default
// to a 60 minute TTL under ~/.databricks-cache.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, ".databricks-maintenance.yml")
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// fall through to the environment
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if len(cfg.Workspaces) == 0 {
		host := os.Getenv("DATABRICKS_HOST")
		token := os.Getenv("DATABRICKS_TOKEN")
		if host != "" && token != "" {
			cfg.Workspaces = map[string]WorkspaceConfig{
				"default": {URL: host, Token: token},
			}
		}
	}

	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = defaultCacheTTLMinutes
	}
	if cfg.Cache.Directory == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.Cache.Directory = filepath.Join(home, defaultCacheDirName)
	}

	return cfg, nil
}

// Workspace resolves the named workspace, expanding a "${VAR}" token
// reference from the environment. An empty name selects the "default"
// workspace if present, and otherwise the first workspace by name.
func (c *Config) Workspace(name string) (WorkspaceConfig, error) {
	if len(c.Workspaces) == 0 {
		return WorkspaceConfig{}, fmt.Errorf("no workspaces configured: set DATABRICKS_HOST and DATABRICKS_TOKEN or create ~/.databricks-maintenance.yml")
	}

	if name == "" {
		if _, ok := c.Workspaces["default"]; ok {
			name = "default"
		} else {
			names := make([]string, 0, len(c.Workspaces))
			for n := range c.Workspaces {
				names = append(names, n)
			}
			sort.Strings(names)
			name = names[0]
		}
	}

	ws, ok := c.Workspaces[name]
	if !ok {
		return WorkspaceConfig{}, fmt.Errorf("workspace %q not found in configuration", name)
	}

	if strings.HasPrefix(ws.Token, "${") && strings.HasSuffix(ws.Token, "}") {
		ws.Token = os.Getenv(ws.Token[2 : len(ws.Token)-1])
	}
	if ws.URL == "" || ws.Token == "" {
		return WorkspaceConfig{}, fmt.Errorf("workspace %q is missing a URL or token", name)
	}
	return ws, nil
}
