package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tarun-kavipurapu/rcmd/pkg/config"
	"tarun-kavipurapu/rcmd/pkg/discovery"
	"tarun-kavipurapu/rcmd/pkg/logger"
	"tarun-kavipurapu/rcmd/pkg/monitor"
	"tarun-kavipurapu/rcmd/pkg/ops"
	"tarun-kavipurapu/rcmd/pkg/transport/tcp"
	"tarun-kavipurapu/rcmd/server"
)

type serverOptions struct {
	configPath string
	flags      config.ServerConfig
}

func newServerCmd() *cobra.Command {
	o := &serverOptions{flags: config.DefaultServerConfig()}

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Serve remote commands, one client at a time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.load(cmd.Flags())
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}
	o.bind(cmd.Flags())
	return cmd
}

func (o *serverOptions) bind(f *pflag.FlagSet) {
	f.StringVarP(&o.configPath, "config", "c", "", "TOML config file")
	f.StringVarP(&o.flags.Addr, "addr", "a", o.flags.Addr, "address to listen on")
	f.StringVar(&o.flags.CaptureFile, "capture-file", o.flags.CaptureFile, "where TAKE_SCREENSHOT stores the capture")
	f.IntVar(&o.flags.MaxFrameBytes, "max-frame-bytes", o.flags.MaxFrameBytes, "largest frame accepted or sent")
	f.DurationVar(&o.flags.IdleTimeout, "idle-timeout", o.flags.IdleTimeout, "drop a client silent for this long (0 disables)")
	f.BoolVar(&o.flags.Advertise, "advertise", o.flags.Advertise, "announce the server over mDNS")
	f.StringVar(&o.flags.Instance, "instance", o.flags.Instance, "mDNS instance name")
	f.StringVar(&o.flags.MetricsAddr, "metrics-addr", o.flags.MetricsAddr, "serve Prometheus metrics on this address")
	f.StringVar(&o.flags.Log.File, "log-file", o.flags.Log.File, "event log path")
	f.StringVar(&o.flags.Log.Level, "log-level", o.flags.Log.Level, "log level")
	f.BoolVar(&o.flags.Log.Console, "log-console", o.flags.Log.Console, "mirror the event log to stderr")
}

// load layers defaults, the config file and flags set on the command line.
func (o *serverOptions) load(flags *pflag.FlagSet) (config.ServerConfig, error) {
	cfg := config.DefaultServerConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadServer(o.configPath); err != nil {
			return cfg, err
		}
	}

	applyChanged(flags, map[string]func(){
		"addr":            func() { cfg.Addr = o.flags.Addr },
		"capture-file":    func() { cfg.CaptureFile = o.flags.CaptureFile },
		"max-frame-bytes": func() { cfg.MaxFrameBytes = o.flags.MaxFrameBytes },
		"idle-timeout":    func() { cfg.IdleTimeout = o.flags.IdleTimeout },
		"advertise":       func() { cfg.Advertise = o.flags.Advertise },
		"instance":        func() { cfg.Instance = o.flags.Instance },
		"metrics-addr":    func() { cfg.MetricsAddr = o.flags.MetricsAddr },
		"log-file":        func() { cfg.Log.File = o.flags.Log.File },
		"log-level":       func() { cfg.Log.Level = o.flags.Log.Level },
		"log-console":     func() { cfg.Log.Console = o.flags.Log.Console },
	})

	if cfg.MaxFrameBytes <= 0 {
		return cfg, fmt.Errorf("max-frame-bytes must be positive, got %d", cfg.MaxFrameBytes)
	}
	return cfg, nil
}

func applyChanged(flags *pflag.FlagSet, overrides map[string]func()) {
	flags.Visit(func(f *pflag.Flag) {
		if set, ok := overrides[f.Name]; ok {
			set()
		}
	})
}

func runServer(ctx context.Context, cfg config.ServerConfig) error {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	metrics := monitor.NewMetrics()
	trans := tcp.NewTCPTransport(cfg.Addr, tcp.WithLimits(cfg.Limits()), tcp.WithIdleTimeout(cfg.IdleTimeout))
	srv := server.New(trans, ops.NewLocal(cfg.CaptureFile), server.WithLogger(log), server.WithMetrics(metrics), server.WithLimits(cfg.Limits()))
	if err := srv.Start(); err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}
	pterm.Info.Printfln("rcmd server listening on %s", srv.Addr())

	if cfg.Advertise {
		adv := discovery.NewAdvertiser(log)
		if err := adv.Start(cfg.Instance, portOf(srv.Addr()), map[string]string{"version": version}); err != nil {
			log.Warn("mDNS advertisement failed", zap.Error(err))
		} else {
			defer adv.Stop()
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx)
	})

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		httpSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			log.Info("metrics endpoint started", zap.String("addr", cfg.MetricsAddr))
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		pterm.Info.Println("rcmd server stopped")
		return nil
	}
	return err
}

func portOf(addr string) int {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return config.DefaultPort
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return config.DefaultPort
	}
	return port
}
