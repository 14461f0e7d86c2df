package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/domain"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/gateways/client"
)

// errDeclined is returned when the daemon refuses to start an empty session.
var errDeclined = errors.New("nothing to block: add sites with \"focusd sites add\" first")

func newClient(cmd *cobra.Command) (*client.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return client.New(cfg.Control.Socket), nil
}

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start (or restart) a blocking session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			minutes, _ := cmd.Flags().GetFloat64("minutes")
			resp, err := c.Start(cmd.Context(), minutes)
			if err != nil {
				return err
			}
			if err := responseError(resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Blocking until %s\n", resp.BlockEnd.Local().Format(time.Kitchen))
			return nil
		},
	}
	cmd.Flags().Float64P("minutes", "m", 0, "Session length in minutes (0 uses the configured default)")
	return cmd
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "End the current blocking session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			resp, err := c.Stop(cmd.Context())
			if err != nil {
				return err
			}
			if err := responseError(resp); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Blocking stopped")
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a blocking session is active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			resp, err := c.Status(cmd.Context())
			if err != nil {
				return err
			}
			if err := responseError(resp); err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), resp, time.Now())
			return nil
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <url>",
		Short: "Report whether a URL would be blocked right now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			resp, err := c.Check(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := responseError(resp); err != nil {
				return err
			}
			printDecision(cmd.OutOrStdout(), args[0], resp.Decision)
			return nil
		},
	}
}

func responseError(resp domain.ControlResponse) error {
	switch resp.Status {
	case domain.StatusDeclined:
		return errDeclined
	case domain.StatusError:
		return fmt.Errorf("daemon error: %s", resp.Error)
	}
	return nil
}

func printStatus(w io.Writer, resp domain.ControlResponse, now time.Time) {
	if !resp.IsBlocking {
		fmt.Fprintln(w, "Not blocking")
		return
	}
	left := resp.BlockEnd.Sub(now).Round(time.Second)
	if left < 0 {
		left = 0
	}
	fmt.Fprintf(w, "Blocking until %s (%s left)\n", resp.BlockEnd.Local().Format(time.Kitchen), left)
}

func printDecision(w io.Writer, url string, d domain.BlockDecision) {
	if !d.Blocked {
		fmt.Fprintf(w, "%s: allowed\n", url)
		return
	}
	fmt.Fprintf(w, "%s: blocked by rule %d (%s)\n", url, d.RuleID, d.Pattern)
}
