package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/trialviewer/internal/api"
	"github.com/banshee-data/trialviewer/internal/catalog"
	"github.com/banshee-data/trialviewer/internal/config"
	"github.com/banshee-data/trialviewer/internal/hostbridge"
	"github.com/banshee-data/trialviewer/internal/media"
	"github.com/banshee-data/trialviewer/internal/monitoring"
	"github.com/banshee-data/trialviewer/internal/playback"
	"github.com/banshee-data/trialviewer/internal/sessionio"
	"github.com/banshee-data/trialviewer/internal/timeseries"
	"github.com/banshee-data/trialviewer/internal/timeutil"
	"github.com/banshee-data/trialviewer/internal/wheel"
)

var logf = monitoring.Tagged("serve")

// logHost reports trial changes and loads to the log. Time updates are too
// frequent to log.
type logHost struct {
	name string
}

func (logHost) OnTimeUpdated(float64) {}

func (h logHost) OnTrialChanged(trialNo int) {
	logf("%s: trial %d", h.name, trialNo)
}

func (h logHost) OnLoaded() {
	logf("%s: loaded", h.name)
}

// player is everything needed to replay one session.
type player struct {
	session api.Session
	runner  *playback.Runner
	pub     *hostbridge.Publisher
	cfg     *config.ViewerConfig
}

// localFrames is the frame count of a secondary camera, taken from the
// largest local index that references it.
func localFrames(store *timeseries.Store, channel string) (int, error) {
	values, err := store.Channel(channel)
	if err != nil {
		return 0, err
	}
	top := float32(0)
	for _, v := range values {
		top = max(top, v)
	}
	return int(top) + 1, nil
}

func newPlayer(id string, raw *sessionio.Session, cfg *config.ViewerConfig, clock timeutil.Clock) (*player, error) {
	store, index, err := raw.Open()
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", raw.Name, err)
	}

	frames := map[media.TrackID]int{media.TrackRight: store.Len()}
	if frames[media.TrackLeft], err = localFrames(store, timeseries.LeftLocalIndex); err != nil {
		return nil, err
	}
	if frames[media.TrackBody], err = localFrames(store, timeseries.BodyLocalIndex); err != nil {
		return nil, err
	}
	sim := func(camera media.TrackID) (*media.SimTrack, error) {
		return media.NewSimTrack(media.SimConfig{
			URL:          media.TrackURL(cfg.GetMediaURLTemplate(), raw.Name, camera),
			Frames:       frames[camera],
			FPS:          cfg.GetVideoFPS(),
			PreparePolls: cfg.GetPreparePolls(),
		}, clock)
	}
	var tracks media.Tracks
	if tracks.Right, err = sim(media.TrackRight); err != nil {
		return nil, err
	}
	if tracks.Left, err = sim(media.TrackLeft); err != nil {
		return nil, err
	}
	if tracks.Body, err = sim(media.TrackBody); err != nil {
		return nil, err
	}
	coord, err := media.NewCoordinator(store, tracks)
	if err != nil {
		return nil, err
	}

	geometry := wheel.NewGeometry(cfg.GetWheelUnitsPerRevolution())
	pub := hostbridge.NewPublisher(hostbridge.DefaultClientBuffer)
	engine, err := playback.NewEngine(playback.Session{Store: store, Trials: index}, coord, playback.Options{
		Host:               playback.MultiHost{pub, logHost{name: raw.Name}},
		Clock:              clock,
		Geometry:           geometry,
		GoCueDuration:      cfg.GetGoCueDuration(),
		OutcomeCueDuration: cfg.GetOutcomeCueDuration(),
		PollInterval:       cfg.GetTickInterval(),
	})
	if err != nil {
		return nil, err
	}
	runner := playback.NewRunner(engine, clock, cfg.GetTickInterval())
	runner.SetLoadTimeout(cfg.GetLoadTimeout())

	return &player{
		session: api.Session{ID: id, Name: raw.Name, Store: store, Index: index, Geometry: geometry},
		runner:  runner,
		pub:     pub,
		cfg:     cfg,
	}, nil
}

// serveAll runs the playback runner, the HTTP API and the host bridge until
// ctx is cancelled or the runner fails. cat may be nil.
func serveAll(ctx context.Context, p *player, cat *catalog.Catalog, httpLis, grpcLis net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := api.NewServer(p.runner, p.session, cat)
	srv.SetConfig(p.cfg)
	mux := srv.ServeMux()
	if cat != nil {
		if err := cat.AttachAdminRoutes(mux); err != nil {
			return err
		}
	}
	server := &http.Server{
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	errs := make(chan error, 3)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		if err := p.runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs <- fmt.Errorf("playback: %w", err)
		}
		logf("playback runner stopped")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hostbridge.NewServer(p.runner, p.pub).Serve(ctx, grpcLis); err != nil {
			errs <- fmt.Errorf("host bridge: %w", err)
			cancel()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		go func() {
			if err := server.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- fmt.Errorf("http: %w", err)
				cancel()
			}
		}()

		<-ctx.Done()
		logf("shutting down HTTP server...")

		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				logf("HTTP server force close error: %v", err)
			}
		}
	}()

	wg.Wait()
	select {
	case err := <-errs:
		return err
	default:
		return nil
	}
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	var (
		dir        string
		name       string
		demo       bool
		listen     string
		grpcListen string
	)

	cmd := &cobra.Command{
		Use:   "serve [session]",
		Short: "Replay a session over HTTP and gRPC",
		Long: `Serve loads one session and replays it with simulated camera tracks.

The session comes from the catalog (by id or name), from a directory with
--dir and --name, or is generated with --demo.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if listen == "" {
				listen = cfg.GetListen()
			}
			if grpcListen == "" {
				grpcListen = cfg.GetGRPCListen()
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			serve := func(id string, raw *sessionio.Session, cat *catalog.Catalog) error {
				p, err := newPlayer(id, raw, cfg, timeutil.RealClock{})
				if err != nil {
					return err
				}
				httpLis, err := net.Listen("tcp", listen)
				if err != nil {
					return err
				}
				grpcLis, err := net.Listen("tcp", grpcListen)
				if err != nil {
					httpLis.Close()
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "serving %s on http://%s (gRPC %s)\n", raw.Name, httpLis.Addr(), grpcLis.Addr())
				return serveAll(runCtx, p, cat, httpLis, grpcLis)
			}

			switch {
			case demo:
				if len(args) > 0 || dir != "" {
					return errors.New("--demo takes no session")
				}
				return serve("", sessionio.Synthetic(sessionio.SyntheticOptions{Name: name, FPS: cfg.GetVideoFPS()}), nil)
			case dir != "":
				if len(args) > 0 {
					return errors.New("give either a catalog session or --dir, not both")
				}
				if name == "" {
					return errors.New("--dir needs --name")
				}
				raw, err := sessionio.LoadDir(dir, name)
				if err != nil {
					return err
				}
				return serve("", raw, nil)
			case len(args) == 1:
				return ctx.withCatalog(func(cat *catalog.Catalog) error {
					info, err := cat.Resolve(runCtx, args[0])
					if err != nil {
						return err
					}
					raw, err := cat.Load(runCtx, info.ID)
					if err != nil {
						return err
					}
					return serve(info.ID.String(), raw, cat)
				})
			default:
				return errors.New("no session: give a catalog session, --dir or --demo")
			}
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Serve a session directory instead of a catalog entry")
	cmd.Flags().StringVar(&name, "name", "", "Session name within --dir (or of the --demo session)")
	cmd.Flags().BoolVar(&demo, "demo", false, "Serve a generated session")
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides listen)")
	cmd.Flags().StringVar(&grpcListen, "grpc-listen", "", "gRPC listen address (overrides grpc_listen)")
	return cmd
}
