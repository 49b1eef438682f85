package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/nupkg/internal/core"
)

func (c *CLI) newSearchCmd() *cobra.Command {
	var (
		prerelease  bool
		allVersions bool
		take        int
		skip        int
	)

	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search the configured sources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := c.manager()
			if err != nil {
				return err
			}

			metas, err := mgr.Search(cmd.Context(), core.SearchQuery{
				Term:               args[0],
				IncludePrerelease:  prerelease,
				IncludeAllVersions: allVersions,
				Take:               take,
				Skip:               skip,
			})
			if err != nil {
				return err
			}

			for _, m := range metas {
				line := m.Name + " " + m.Version().Normalized()
				if m.Description != "" {
					line += "  " + firstLine(m.Description)
				}
				cmd.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&prerelease, "prerelease", false, "Include pre-release versions")
	cmd.Flags().BoolVar(&allVersions, "all-versions", false, "List every version instead of the newest")
	cmd.Flags().IntVar(&take, "take", 30, "Maximum results")
	cmd.Flags().IntVar(&skip, "skip", 0, "Results to skip")
	return cmd
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 100 {
		s = s[:100] + "..."
	}
	return s
}

func (c *CLI) newOutdatedCmd() *cobra.Command {
	var prerelease bool

	cmd := &cobra.Command{
		Use:   "outdated",
		Short: "Show installed packages with newer versions available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := c.manager()
			if err != nil {
				return err
			}

			updates, err := mgr.Outdated(cmd.Context(), prerelease)
			if err != nil {
				return err
			}
			if len(updates) == 0 {
				cmd.Println("everything is up to date")
				return nil
			}
			for _, u := range updates {
				cmd.Printf("%s %s available\n", u.Name, u.Version().Normalized())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&prerelease, "prerelease", false, "Consider pre-release versions")
	return cmd
}

func (c *CLI) newListCmd() *cobra.Command {
	var manual bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := c.manager()
			if err != nil {
				return err
			}
			recs, err := mgr.List(manual)
			if err != nil {
				return err
			}
			for _, r := range recs {
				line := r.Name + " " + r.Version
				if r.Manual {
					line += "  (manual)"
				}
				cmd.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&manual, "manual", false, "Only manually requested packages")
	return cmd
}

func (c *CLI) newSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "Show the configured package sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			for _, s := range cfg.Sources {
				state := "enabled"
				if !s.Enabled {
					state = "disabled"
				}
				location := s.URL
				if location == "" {
					location = s.Path
				}
				cmd.Printf("%s (%s, %s) %s\n", s.Name, s.Kind, state, location)
			}
			return nil
		},
	}
}
