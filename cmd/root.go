// Package cmd wires up the CLI: a cobra root carrying the shared
// connection flags plus one subcommand per wire operation.
package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"wirebridge/config"
	"wirebridge/internal/metrics"
	"wirebridge/internal/registry"
	"wirebridge/internal/runner"
	"wirebridge/internal/transport"
	"wirebridge/internal/wire"
	"wirebridge/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X wirebridge/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// RootOptions holds the global flags and the state built from them
// before a subcommand runs.
type RootOptions struct {
	WireFile      string
	Host          string
	Port          int
	Timeout       time.Duration
	Tunnel        string
	SSHKey        string
	SSHPassword   bool
	SSHAgent      bool
	StrictHostKey bool
	KnownHosts    string
	Duplicates    string
	Verbose       int
	LogFormat     string
	LogFile       string
	Stats         bool
	NoColor       bool

	cfg     *config.Config
	log     *zap.Logger
	metrics *metrics.Collector
	errOut  io.Writer
}

// Execute parses args and runs the selected subcommand.
func Execute(ctx context.Context, args []string) error {
	root, opts := NewRootCommand()
	root.SetArgs(args)
	return execute(ctx, root, opts)
}

func execute(ctx context.Context, root *cobra.Command, opts *RootOptions) error {
	err := root.ExecuteContext(ctx)
	opts.finish()
	return err
}

// NewRootCommand creates the root command and its options.
func NewRootCommand() (*cobra.Command, *RootOptions) {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "wirebridge",
		Short: "Drive step definitions hosted by a remote wire server",
		Long: `wirebridge talks the wire protocol to a step definition server over
TCP: it lists the server's step definitions, matches step text against
them and invokes them, settling any table diffs the server raises.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.prepare(cmd)
		},
	}
	cmd.SetVersionTemplate("wirebridge {{.Version}}\n")
	cmd.PersistentFlags().AddFlagSet(connectionFlags(opts))

	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newMatchCommand(opts))
	cmd.AddCommand(newInvokeCommand(opts))
	cmd.AddCommand(newRunCommand(opts))

	return cmd, opts
}

// connectionFlags is the flag set shared by every subcommand.
func connectionFlags(opts *RootOptions) *flag.FlagSet {
	fs := flag.NewFlagSet("wirebridge", flag.ContinueOnError)

	// ── connection ───────────────────────────────────────────────
	fs.StringVarP(&opts.WireFile, "wire-file", "f", "", "YAML wire file with host and port")
	fs.StringVar(&opts.Host, "host", config.DefaultHost, "Wire server host")
	fs.IntVarP(&opts.Port, "port", "p", config.DefaultPort, "Wire server port")
	fs.DurationVarP(&opts.Timeout, "timeout", "w", config.DefaultCallTimeout, "Timeout for each send and each receive")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&opts.Tunnel, "tunnel", "T", "", "SSH tunnel via [user@]host[:port]")
	fs.StringVar(&opts.SSHKey, "ssh-key", "", "SSH private key file")
	fs.BoolVar(&opts.SSHPassword, "ssh-password", false, "Prompt for SSH password")
	fs.BoolVar(&opts.SSHAgent, "ssh-agent", false, "Use SSH agent")
	fs.BoolVar(&opts.StrictHostKey, "strict-hostkey", false, "Verify SSH host keys")
	fs.StringVar(&opts.KnownHosts, "known-hosts", "", "Custom known_hosts path")

	// ── registry ─────────────────────────────────────────────────
	fs.StringVar(&opts.Duplicates, "duplicates", config.DefaultDuplicatePolicy, "Duplicate step definition ids: warn, reject or allow")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&opts.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.StringVar(&opts.LogFormat, "log-format", config.DefaultLogFormat, "Log format: console or json")
	fs.StringVar(&opts.LogFile, "log-file", "", "Also write debug logs to this file")
	fs.BoolVar(&opts.Stats, "stats", false, "Print session metrics as JSON on exit")
	fs.BoolVar(&opts.NoColor, "no-color", false, "Disable colored output")

	return fs
}

// prepare resolves the configuration (flags > environment > wire file
// > defaults), validates it and builds the logger.
func (o *RootOptions) prepare(cmd *cobra.Command) error {
	cfg := config.Defaults()
	if o.WireFile != "" {
		if err := config.LoadFile(o.WireFile, cfg); err != nil {
			return err
		}
	}
	config.LoadFromEnv(cfg)

	changed := cmd.Flags().Changed
	if changed("host") {
		cfg.Host = o.Host
	}
	if changed("port") {
		cfg.Port = o.Port
	}
	if changed("timeout") {
		cfg.Timeout = o.Timeout
	}
	if changed("tunnel") {
		cfg.TunnelSpec = o.Tunnel
	}
	if changed("ssh-key") {
		cfg.SSHKeyPath = o.SSHKey
	}
	if changed("known-hosts") {
		cfg.KnownHostsPath = o.KnownHosts
	}
	if changed("duplicates") {
		cfg.Duplicates = o.Duplicates
	}
	if changed("verbose") {
		cfg.Verbose = o.Verbose
	}
	if changed("log-format") {
		cfg.LogFormat = o.LogFormat
	}
	if changed("log-file") {
		cfg.LogFile = o.LogFile
	}
	cfg.SSHPassword = cfg.SSHPassword || o.SSHPassword
	cfg.UseSSHAgent = cfg.UseSSHAgent || o.SSHAgent
	cfg.StrictHostKey = cfg.StrictHostKey || o.StrictHostKey
	cfg.Stats = o.Stats

	if err := cfg.Validate(); err != nil {
		return err
	}

	o.errOut = cmd.ErrOrStderr()
	log, err := util.NewLogger(util.LogOptions{
		Verbosity: cfg.Verbose,
		Format:    cfg.LogFormat,
		File:      cfg.LogFile,
		Output:    o.errOut,
	})
	if err != nil {
		return err
	}
	o.cfg = cfg
	o.log = log
	o.metrics = metrics.New()
	o.log.Debug("configuration resolved",
		zap.String("address", cfg.Address()),
		zap.Duration("timeout", cfg.Timeout),
		zap.Bool("tunnel", cfg.TunnelEnabled),
		zap.String("wire_file", cfg.WireFile))
	return nil
}

// finish flushes the logger and prints metrics when asked to.
func (o *RootOptions) finish() {
	if o.log != nil {
		_ = o.log.Sync()
	}
	if o.cfg != nil && o.cfg.Stats {
		fmt.Fprintln(o.errOut, o.metrics.JSON())
	}
}

// ── session helpers ──────────────────────────────────────────────────

func (o *RootOptions) newChannel() *transport.Channel {
	return transport.NewChannel(o.cfg.Dialer(o.log), o.cfg.Address(),
		transport.WithLogger(o.log), transport.WithMetrics(o.metrics))
}

func (o *RootOptions) connectOptions() (runner.ConnectOptions, error) {
	policy, ok := registry.ParseDuplicatePolicy(o.cfg.Duplicates)
	if !ok {
		return runner.ConnectOptions{}, fmt.Errorf("unknown duplicate policy %q", o.cfg.Duplicates)
	}
	return runner.ConnectOptions{
		NewChannel: o.newChannel,
		Registry: registry.Options{
			Duplicates: policy,
			Logger:     o.log,
			Metrics:    o.metrics,
		},
		Client: []wire.ClientOption{
			wire.WithDefaultTimeout(o.cfg.Timeout),
			wire.WithClientLogger(o.log),
			wire.WithClientMetrics(o.metrics),
		},
		Logger: o.log,
	}, nil
}

// connect loads the remote's definitions over a single attempt.
func (o *RootOptions) connect(ctx context.Context) (*runner.Session, error) {
	co, err := o.connectOptions()
	if err != nil {
		return nil, err
	}
	return runner.Connect(ctx, co)
}
