// Package commands implements the CLI commands for the nupkg package
// manager.
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/git-pkgs/nupkg/client"
	"github.com/git-pkgs/nupkg/internal/core"
	"github.com/git-pkgs/nupkg/internal/events"
	"github.com/git-pkgs/nupkg/internal/install"
	"github.com/git-pkgs/nupkg/internal/profile"
	"github.com/git-pkgs/nupkg/manifest"
	"github.com/git-pkgs/nupkg/resolve"

	_ "github.com/git-pkgs/nupkg/all"
)

// Config is the CLI configuration, loaded from nupkg.yaml and the
// NUPKG_* environment.
type Config struct {
	Profile  string        `mapstructure:"profile"`
	Root     string        `mapstructure:"root"`
	Manifest string        `mapstructure:"manifest"`
	Sources  []core.Config `mapstructure:"sources"`
}

// CLI wires the command tree to a lazily constructed manager.
type CLI struct {
	rootCmd *cobra.Command

	cfgFile string
	verbose bool

	cfg  *Config
	mgr  *resolve.Manager
	sink events.Sink
}

// New creates the CLI instance.
func New() *CLI {
	c := &CLI{}

	c.rootCmd = &cobra.Command{
		Use:           "nupkg",
		Short:         "Manage NuGet-style packages from local and remote feeds",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := c.rootCmd.PersistentFlags()
	pf.StringVar(&c.cfgFile, "config", "", "Config file (default nupkg.yaml in the working directory)")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "Show resolution progress")

	c.rootCmd.AddCommand(
		c.newInstallCmd(),
		c.newUninstallCmd(),
		c.newRestoreCmd(),
		c.newUpdateCmd(),
		c.newOutdatedCmd(),
		c.newSearchCmd(),
		c.newListCmd(),
		c.newReconcileCmd(),
		c.newSourcesCmd(),
	)
	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

func (c *CLI) loadConfig() (*Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}

	v := viper.New()
	v.SetDefault("profile", profile.DefaultProfile)
	v.SetDefault("root", "packages")
	v.SetEnvPrefix("NUPKG")
	v.AutomaticEnv()

	if c.cfgFile != "" {
		v.SetConfigFile(c.cfgFile)
	} else {
		v.SetConfigName("nupkg")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "nupkg"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if c.cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Manifest == "" {
		cfg.Manifest = filepath.Join(cfg.Root, "manifest.yaml")
	}
	if len(cfg.Sources) == 0 {
		cfg.Sources = []core.Config{{
			Name:    "nuget.org",
			Kind:    "v3",
			URL:     "https://api.nuget.org/v3/index.json",
			Enabled: true,
		}}
	}

	c.cfg = &cfg
	return c.cfg, nil
}

// manager assembles the orchestrator from the configuration, once.
func (c *CLI) manager() (*resolve.Manager, error) {
	if c.mgr != nil {
		return c.mgr, nil
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})
	if c.verbose {
		logger.SetLevel(log.DebugLevel)
	}
	c.sink = events.NewLogger(logger)

	hc := client.NewClient(client.WithUserAgent("nupkg-cli/1.0"))

	var sources []core.Source
	for _, sc := range cfg.Sources {
		if !sc.Enabled {
			continue
		}
		src, err := core.New(sc, hc, c.sink)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", sc.Name, err)
		}
		sources = append(sources, src)
	}

	mgr, err := resolve.NewManager(resolve.Config{
		Sources:   sources,
		Profile:   cfg.Profile,
		Store:     manifest.NewStore(cfg.Manifest),
		Installer: install.New(cfg.Root, hc),
		Sink:      c.sink,
	})
	if err != nil {
		return nil, err
	}
	c.mgr = mgr
	return mgr, nil
}
