package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/common/log"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/gateways/client"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/gateways/sitefile"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/repos/kv"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/repos/sitelist"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/services/rules"
)

func newSitesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sites",
		Short: "Edit the list of blocked sites",
		Long: `Edit the list of blocked sites. Changes apply to the next session.

The list lives in the daemon's state database. While "focusd serve" holds the
database, edits are sent to it over the control socket.`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "ls",
			Short: "List blocked sites",
			Args:  cobra.NoArgs,
			RunE:  runSitesList,
		},
		&cobra.Command{
			Use:   "add <site>...",
			Short: "Append sites (a host like example.com or a pattern like *://news.test/*)",
			Args:  cobra.MinimumNArgs(1),
			RunE:  runSitesAdd,
		},
		&cobra.Command{
			Use:   "rm <index>",
			Short: "Remove the site at index (as shown by ls)",
			Args:  cobra.ExactArgs(1),
			RunE:  runSitesRemove,
		},
		&cobra.Command{
			Use:   "import <file>",
			Short: "Replace the list with the contents of a plain or YAML site file",
			Args:  cobra.ExactArgs(1),
			RunE:  runSitesImport,
		},
	)
	return cmd
}

// siteEditor is satisfied by the local repository and by the daemon client.
type siteEditor interface {
	List(ctx context.Context) ([]string, error)
	Add(ctx context.Context, specifiers ...string) ([]string, error)
	RemoveAt(ctx context.Context, index int) ([]string, error)
	Replace(ctx context.Context, sites []string) error
}

// withSites opens the state database for the duration of fn. When a running
// daemon holds the database lock, fn edits through the control socket.
func withSites(cmd *cobra.Command, fn func(siteEditor) error) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	db, err := kv.Open(cfg.Store.Path, nsSites)
	if errors.Is(err, kv.ErrLocked) {
		return withDaemonSites(cfg.Control.Socket, err, fn)
	}
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, db.Close()) }()

	return fn(sitelist.NewRepository(db.Namespace(nsSites)))
}

func withDaemonSites(socket string, lockErr error, fn func(siteEditor) error) error {
	err := fn(client.New(socket).Sites())
	if errors.Is(err, client.ErrDaemonUnavailable) {
		return fmt.Errorf("%w and no daemon answers on %s", lockErr, socket)
	}
	return err
}

func runSitesList(cmd *cobra.Command, args []string) error {
	return withSites(cmd, func(repo siteEditor) error {
		list, err := repo.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No sites configured")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tSITE\tPATTERN\tAPEX")
		for i, s := range list {
			apex := rules.Apex(s)
			if apex == "" {
				apex = "-"
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i, s, rules.PatternFor(s), apex)
		}
		return tw.Flush()
	})
}

func runSitesAdd(cmd *cobra.Command, args []string) error {
	return withSites(cmd, func(repo siteEditor) error {
		list, err := repo.Add(cmd.Context(), args...)
		if err != nil {
			return fmt.Errorf("add sites: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d site(s) configured\n", len(list))
		return nil
	})
}

func runSitesRemove(cmd *cobra.Command, args []string) error {
	idx, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid index %q", args[0])
	}
	return withSites(cmd, func(repo siteEditor) error {
		list, err := repo.RemoveAt(cmd.Context(), idx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d site(s) configured\n", len(list))
		return nil
	})
}

func runSitesImport(cmd *cobra.Command, args []string) error {
	return withSites(cmd, func(repo siteEditor) error {
		w := sitefile.New(sitefile.Options{Path: args[0], Sites: repo, Logger: log.GetLogger()})
		n, err := w.Import(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d site(s)\n", n)
		return nil
	})
}
