// Package cli implements the databricks-maintenance command-line
// interface.
package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/sunny-sharma-datalytyx/databricks-maintenance/pkg/buildinfo"
	"github.com/sunny-sharma-datalytyx/databricks-maintenance/pkg/cache"
	"github.com/sunny-sharma-datalytyx/databricks-maintenance/pkg/databricks"
	"github.com/sunny-sharma-datalytyx/databricks-maintenance/pkg/maintenance"
	"github.com/sunny-sharma-datalytyx/databricks-maintenance/pkg/registry/pypi"
)

// appName is the application name used for config paths and display.
const appName = "databricks-maintenance"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// configPath overrides the default config location; set by the
	// --config flag and by tests.
	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands
// registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Maintenance toolkit for Databricks workspaces",
		Long:         `databricks-maintenance automates routine maintenance of Databricks workspaces: it finds clusters on deprecated runtime versions, recommends upgrade targets, flags outdated or vulnerable cluster libraries, and produces maintenance reports.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ~/.databricks-maintenance.yml)")

	root.AddCommand(c.runtimesCommand())
	root.AddCommand(c.librariesCommand())
	root.AddCommand(c.reportCommand())
	root.AddCommand(c.cacheCommand())

	return root
}

// toolkit bundles the client and managers for one workspace.
type toolkit struct {
	client  *databricks.Client
	runtime *maintenance.RuntimeManager
	library *maintenance.LibraryManager
	store   cache.Store
}

// Close releases the toolkit's cache store.
func (t *toolkit) Close() {
	if t.store != nil {
		_ = t.store.Close()
	}
}

// newToolkit resolves the named workspace from configuration and wires
// up the API client, the cache store, and both managers.
func (c *CLI) newToolkit(workspaceName string) (*toolkit, error) {
	cfg, err := LoadConfig(c.configPath)
	if err != nil {
		return nil, err
	}
	ws, err := cfg.Workspace(workspaceName)
	if err != nil {
		return nil, err
	}

	store := c.newStore(cfg.Cache)
	ttl := time.Duration(cfg.Cache.TTL) * time.Minute

	client, err := databricks.NewClient(ws.URL, ws.Token, store,
		databricks.WithLogger(c.Logger),
		databricks.WithCacheTTL(ttl),
	)
	if err != nil {
		return nil, err
	}

	return &toolkit{
		client:  client,
		runtime: maintenance.NewRuntimeManager(client, store, ttl, c.Logger),
		library: maintenance.NewLibraryManager(client, pypi.NewClient(store, ttl), c.Logger),
		store:   store,
	}, nil
}

// newStore opens the file-backed cache store, falling back to a null
// store when the cache directory cannot be created.
func (c *CLI) newStore(cfg CacheConfig) cache.Store {
	store, err := cache.NewFileStore(cfg.Directory)
	if err != nil {
		c.Logger.Warn("cache disabled", "dir", cfg.Directory, "err", err)
		return cache.NewNullStore()
	}
	return store
}
