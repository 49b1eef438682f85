package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/nupkg/internal/core"
	"github.com/git-pkgs/nupkg/resolve"
)

func (c *CLI) newInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install <package>[@version-or-range] ...",
		Short: "Install packages and their dependencies",
		Long: `Install resolves each requested package against the configured sources,
walks its dependency graph for the active target profile, and installs the
resulting plan in dependency order.

The version part accepts a plain version ("13.0.1", meaning that version or
newer) or interval notation ("[1.0,2.0)"). Package URLs of the form
pkg:nuget/Name@Version are accepted too.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := c.manager()
			if err != nil {
				return err
			}

			for _, arg := range args {
				id, err := parsePackageArg(arg)
				if err != nil {
					return err
				}
				id.Manual = true

				res, err := mgr.Install(cmd.Context(), id)
				if err != nil {
					return err
				}
				reportResult(cmd, id.Name, res)
				if res.Status == resolve.StatusUnresolvable || res.Status == resolve.StatusPartiallyFailed {
					return res.Err
				}
			}
			return nil
		},
	}
	return cmd
}

// parsePackageArg accepts "Name", "Name@spec", or a pkg:nuget purl.
func parsePackageArg(arg string) (core.Identifier, error) {
	if strings.HasPrefix(arg, "pkg:") {
		return core.ParsePURL(arg)
	}
	name, spec, _ := strings.Cut(arg, "@")
	if name == "" {
		return core.Identifier{}, fmt.Errorf("empty package name in %q", arg)
	}
	return core.NewIdentifier(name, spec)
}

func reportResult(cmd *cobra.Command, name string, res *resolve.Result) {
	switch res.Status {
	case resolve.StatusAlreadySatisfied:
		cmd.Printf("%s is already installed\n", name)
	case resolve.StatusInstalled:
		for _, id := range res.Installed {
			cmd.Printf("installed %s %s\n", id.Name, id.Version().Normalized())
		}
	case resolve.StatusUnresolvable:
		cmd.Printf("unable to resolve %s: %v\n", name, res.Err)
	case resolve.StatusPartiallyFailed:
		cmd.Printf("install of %s failed partway: %v\n", name, res.Err)
		for _, id := range res.Installed {
			cmd.Printf("  kept %s %s\n", id.Name, id.Version().Normalized())
		}
	}
}

func (c *CLI) newUninstallCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "uninstall [<package> ...]",
		Short: "Remove installed packages",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := c.manager()
			if err != nil {
				return err
			}

			if all {
				return mgr.UninstallAll(cmd.Context())
			}
			if len(args) == 0 {
				return fmt.Errorf("name at least one package, or pass --all")
			}
			for _, name := range args {
				if err := mgr.Uninstall(cmd.Context(), name); err != nil {
					return err
				}
				cmd.Printf("uninstalled %s\n", name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Remove every installed package")
	return cmd
}

func (c *CLI) newRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Reinstall manifest packages missing from disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := c.manager()
			if err != nil {
				return err
			}
			res, err := mgr.Restore(cmd.Context())
			if err != nil {
				return err
			}
			if len(res.Installed) == 0 {
				cmd.Println("nothing to restore")
				return res.Err
			}
			for _, id := range res.Installed {
				cmd.Printf("restored %s %s\n", id.Name, id.Version().Normalized())
			}
			return res.Err
		},
	}
}

func (c *CLI) newUpdateCmd() *cobra.Command {
	var prerelease bool

	cmd := &cobra.Command{
		Use:   "update [<package> ...]",
		Short: "Upgrade installed packages to their newest versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := c.manager()
			if err != nil {
				return err
			}

			if len(args) == 0 {
				res, err := mgr.UpdateAll(cmd.Context(), prerelease)
				if err != nil {
					return err
				}
				reportResult(cmd, "packages", res)
				return res.Err
			}

			for _, name := range args {
				res, err := mgr.Update(cmd.Context(), name, prerelease)
				if err != nil {
					return err
				}
				reportResult(cmd, name, res)
				if res.Err != nil {
					return res.Err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&prerelease, "prerelease", false, "Consider pre-release versions")
	return cmd
}

func (c *CLI) newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Remove on-disk packages the manifest no longer lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := c.manager()
			if err != nil {
				return err
			}
			removed, err := mgr.Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			if len(removed) == 0 {
				cmd.Println("manifest and disk agree")
				return nil
			}
			for _, id := range removed {
				cmd.Printf("removed orphan %s %s\n", id.Name, id.Version().Normalized())
			}
			return nil
		},
	}
}
