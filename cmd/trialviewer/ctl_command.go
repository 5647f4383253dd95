package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/trialviewer/internal/hostbridge"
	"github.com/banshee-data/trialviewer/internal/httputil"
	"github.com/banshee-data/trialviewer/internal/playback"
)

func printSnapshot(w io.Writer, s playback.Snapshot) {
	if !s.Loaded {
		fmt.Fprintln(w, "not loaded")
		return
	}
	state := "stopped"
	switch {
	case s.Preparing:
		state = "preparing"
	case s.Playing:
		state = "playing"
	}
	fmt.Fprintf(w, "trial %d/%d  frame %d  t=%.3fs  %s\n", s.TrialNo, s.TrialCount, s.MasterFrame, s.Time, state)
}

func newCtlCommand() *cobra.Command {
	var (
		server  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ctl",
		Short: "Control a running viewer",
	}
	cmd.PersistentFlags().StringVar(&server, "server", "http://localhost:8080", "Viewer HTTP base URL")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	request := func(method string, path string) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			client := httputil.NewJSONClient(server, nil)
			var snap playback.Snapshot
			var err error
			if method == "GET" {
				err = client.Get(ctx, path, &snap)
			} else {
				err = client.Post(ctx, path, nil, &snap)
			}
			if err != nil {
				return err
			}
			printSnapshot(cmd.OutOrStdout(), snap)
			return nil
		}
	}

	cmd.AddCommand(&cobra.Command{Use: "state", Short: "Show the playback state", Args: cobra.NoArgs, RunE: request("GET", "/api/state")})
	cmd.AddCommand(&cobra.Command{Use: "play", Short: "Start playback", Args: cobra.NoArgs, RunE: request("POST", "/api/play")})
	cmd.AddCommand(&cobra.Command{Use: "stop", Short: "Stop playback", Args: cobra.NoArgs, RunE: request("POST", "/api/stop")})
	cmd.AddCommand(&cobra.Command{Use: "next", Short: "Jump to the next trial", Args: cobra.NoArgs, RunE: request("POST", "/api/next")})
	cmd.AddCommand(&cobra.Command{Use: "prev", Short: "Jump to the previous trial", Args: cobra.NoArgs, RunE: request("POST", "/api/prev")})
	cmd.AddCommand(&cobra.Command{
		Use:   "goto <trial>",
		Short: "Jump to a trial",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("trial number %q is not an integer", args[0])
			}
			return request("POST", "/api/goto/"+strconv.Itoa(n))(cmd, args)
		},
	})
	cmd.AddCommand(newWatchCommand())
	return cmd
}

func newWatchCommand() *cobra.Command {
	var (
		target string
		count  int
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream host events from the gRPC bridge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := hostbridge.Dial(target)
			if err != nil {
				return err
			}
			defer client.Close()

			stream, err := client.Events(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for seen := 0; count <= 0 || seen < count; seen++ {
				msg, err := stream.Recv()
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}
				ev := hostbridge.EventFromStruct(msg)
				switch ev.Kind {
				case hostbridge.KindTimeUpdated:
					fmt.Fprintf(out, "%d %s %.3f\n", ev.Seq, ev.Kind, ev.Time)
				case hostbridge.KindTrialChanged:
					fmt.Fprintf(out, "%d %s %d\n", ev.Seq, ev.Kind, ev.TrialNo)
				default:
					fmt.Fprintf(out, "%d %s\n", ev.Seq, ev.Kind)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "grpc", "localhost:50051", "Host bridge address")
	cmd.Flags().IntVar(&count, "count", 0, "Stop after this many events (0 streams until interrupted)")
	return cmd
}
