package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/term"

	"tarun-kavipurapu/rcmd/client"
	"tarun-kavipurapu/rcmd/pkg/config"
	"tarun-kavipurapu/rcmd/pkg/discovery"
	"tarun-kavipurapu/rcmd/pkg/logger"
	"tarun-kavipurapu/rcmd/pkg/protocol"
)

type clientOptions struct {
	configPath string
	flags      config.ClientConfig
}

func newClientCmd() *cobra.Command {
	o := &clientOptions{flags: config.DefaultClientConfig()}

	cmd := &cobra.Command{
		Use:   "client [COMMAND ARGS...]",
		Short: "Connect to an rcmd server",
		Long: `Connect to an rcmd server. With a command on the command line it is run
once; otherwise an interactive shell reads commands until EXIT.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.load(cmd.Flags())
			if err != nil {
				return err
			}
			return runClient(cmd.Context(), cfg, args)
		},
	}
	o.bind(cmd.Flags())
	return cmd
}

func (o *clientOptions) bind(f *pflag.FlagSet) {
	// everything after the first positional belongs to the remote command
	f.SetInterspersed(false)
	f.StringVarP(&o.configPath, "config", "c", "", "TOML config file")
	f.StringVarP(&o.flags.Server, "server", "s", o.flags.Server, "server address")
	f.StringVarP(&o.flags.ReceivedFile, "out", "o", o.flags.ReceivedFile, "where SEND_PHOTO images are written")
	f.IntVar(&o.flags.MaxFrameBytes, "max-frame-bytes", o.flags.MaxFrameBytes, "largest frame accepted or sent")
	f.BoolVarP(&o.flags.Discover, "discover", "d", o.flags.Discover, "find the server over mDNS")
	f.DurationVar(&o.flags.DiscoverTimeout, "discover-timeout", o.flags.DiscoverTimeout, "how long to browse for a server")
	f.StringVar(&o.flags.Log.File, "log-file", o.flags.Log.File, "client log path")
	f.StringVar(&o.flags.Log.Level, "log-level", o.flags.Log.Level, "log level")
}

func (o *clientOptions) load(flags *pflag.FlagSet) (config.ClientConfig, error) {
	cfg := config.DefaultClientConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadClient(o.configPath); err != nil {
			return cfg, err
		}
	}

	applyChanged(flags, map[string]func(){
		"server":           func() { cfg.Server = o.flags.Server },
		"out":              func() { cfg.ReceivedFile = o.flags.ReceivedFile },
		"max-frame-bytes":  func() { cfg.MaxFrameBytes = o.flags.MaxFrameBytes },
		"discover":         func() { cfg.Discover = o.flags.Discover },
		"discover-timeout": func() { cfg.DiscoverTimeout = o.flags.DiscoverTimeout },
		"log-file":         func() { cfg.Log.File = o.flags.Log.File },
		"log-level":        func() { cfg.Log.Level = o.flags.Log.Level },
	})

	if cfg.MaxFrameBytes <= 0 {
		return cfg, fmt.Errorf("max-frame-bytes must be positive, got %d", cfg.MaxFrameBytes)
	}
	return cfg, nil
}

func runClient(ctx context.Context, cfg config.ClientConfig, args []string) error {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	addr := cfg.Server
	if cfg.Discover {
		if addr, err = discoverServer(ctx, cfg, log); err != nil {
			return err
		}
	}

	c, err := client.Dial(ctx, addr, client.WithLogger(log), client.WithLimits(cfg.Limits()))
	if err != nil {
		return err
	}
	defer c.Close()
	pterm.Success.Printfln("connected to %s", c.Addr())

	sh := client.NewShell(c, cfg.ReceivedFile, os.Stdout, log)
	if len(args) > 0 {
		return sh.RunOnce(strings.Join(args, " "))
	}
	if !isTerminal(os.Stdin) {
		return sh.Run(os.Stdin)
	}

	fmt.Println("rcmd interactive shell. Type EXIT to close the session.")
	done := false
	prompt.New(
		func(in string) {
			if sh.Exec(in) {
				done = true
			}
		},
		commandCompleter,
		prompt.OptionPrefix("rcmd> "),
		prompt.OptionTitle("rcmd client"),
		prompt.OptionSetExitCheckerOnInput(func(string, bool) bool { return done }),
	).Run()
	return nil
}

func discoverServer(ctx context.Context, cfg config.ClientConfig, log *zap.Logger) (string, error) {
	resolver, err := discovery.NewResolver(log)
	if err != nil {
		return "", err
	}
	dctx, cancel := context.WithTimeout(ctx, cfg.DiscoverTimeout)
	defer cancel()

	spinner, _ := pterm.DefaultSpinner.Start("looking for an rcmd server")
	svc, err := resolver.First(dctx)
	if err != nil {
		spinner.Fail("no rcmd server found")
		return "", err
	}
	spinner.Success(fmt.Sprintf("found %s at %s", svc.InstanceName, svc.Addr()))
	return svc.Addr(), nil
}

func commandCompleter(d prompt.Document) []prompt.Suggest {
	if strings.Contains(d.TextBeforeCursor(), " ") {
		return nil
	}
	specs := protocol.Commands()
	s := make([]prompt.Suggest, 0, len(specs))
	for _, spec := range specs {
		s = append(s, prompt.Suggest{Text: spec.Name, Description: spec.Usage() + " - " + spec.Description})
	}
	return prompt.FilterHasPrefix(s, d.GetWordBeforeCursor(), true)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
