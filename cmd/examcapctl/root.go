// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ManuGH/examcap/internal/client"
	"github.com/ManuGH/examcap/internal/messenger"
	"github.com/ManuGH/examcap/internal/version"
	"github.com/spf13/cobra"
)

const (
	msgStopSent    = "Recording stop signal sent."
	msgNothingStop = "No active recording to stop."
)

type rootOptions struct {
	addr    string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "examcapctl",
		Short: "Control the examcap recording daemon",
		Long: `examcapctl starts and stops screen recordings on a running examcap daemon,
reports page titles for the caption track and adjusts the capture frame rate.

Quick Start:
  examcapctl start                 # start recording and wait until it ends
  examcapctl stop                  # stop the running recording
  examcapctl title "Question 4"    # record a title change
  examcapctl settings set --fps 15`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.addr, "addr", envOr("EXAMCAP_ADDR", "http://127.0.0.1:8787"), "daemon base URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "per-request timeout")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newStartCmd(opts),
		newStopCmd(opts),
		newTitleCmd(opts),
		newStatusCmd(opts),
		newSettingsCmd(opts),
	)
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (o *rootOptions) client() (*client.Client, error) {
	return client.New(o.addr, o.timeout)
}

func newStartCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start a recording and follow it until it ends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			err = c.Record(cmd.Context(), func(ev client.Event) {
				switch ev.Action {
				case messenger.ActionStartRecording:
					fmt.Fprintln(out, ev.Reply.Message)
				case messenger.ActionRecordingStarted:
					fmt.Fprintln(out, "Recording started.")
				case messenger.ActionRecordingStoppedCallback:
					fmt.Fprintln(out, "Recording stopped.")
				}
			})
			if err != nil && cmd.Context().Err() != nil {
				// interrupted; the recording keeps running
				return nil
			}
			return err
		},
	}
}

func newStopCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running recording",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			res, err := c.StopRecording(cmd.Context())
			if err != nil {
				return err
			}
			if res.Accepted {
				fmt.Fprintln(cmd.OutOrStdout(), msgStopSent)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), msgNothingStop)
			}
			return nil
		},
	}
}

func newTitleCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "title <text>",
		Short: "Report the current page title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			return c.StoreTitle(cmd.Context(), args[0])
		},
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			resp, err := c.Session(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			s := resp.Session
			fmt.Fprintf(out, "phase:    %s\n", s.Phase)
			if s.SessionID != "" {
				fmt.Fprintf(out, "session:  %s\n", s.SessionID)
				fmt.Fprintf(out, "window:   %s\n", s.WindowHandle)
				fmt.Fprintf(out, "stopping: %t\n", s.Stopping)
			}
			if !s.StartedAt.IsZero() {
				fmt.Fprintf(out, "started:  %s\n", s.StartedAt.Format(time.RFC3339))
			}
			if resp.Window != nil && resp.Window.Status != "" {
				fmt.Fprintf(out, "status:   %s\n", resp.Window.Status)
			}
			return nil
		},
	}
}

func newSettingsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read or change capture settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the capture frame rate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			fps, err := c.FPS(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "fps: %d\n", fps)
			return nil
		},
	})

	var fps int
	set := &cobra.Command{
		Use:   "set",
		Short: "Change the capture frame rate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			if err := c.SetFPS(cmd.Context(), fps); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Settings saved: fps "+strconv.Itoa(fps))
			return nil
		},
	}
	set.Flags().IntVar(&fps, "fps", 0, "capture frames per second (1-120)")
	_ = set.MarkFlagRequired("fps")
	cmd.AddCommand(set)
	return cmd
}
