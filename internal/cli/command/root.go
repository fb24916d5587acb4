package command

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokgate/internal/cli/client"
	"github.com/yndnr/tokgate/internal/cli/config"
	"github.com/yndnr/tokgate/internal/cli/output"
	"github.com/yndnr/tokgate/internal/infra/buildinfo"
	"github.com/yndnr/tokgate/internal/infra/tlsroots"
	"github.com/yndnr/tokgate/internal/transport/quictransport"
)

const (
	metaProfile = "profile"
	metaDialer  = "dialer"
)

// Dialer establishes the client connection used by a command.
type Dialer func(ctx context.Context, flags *GlobalFlags) (*client.Client, error)

// App creates the CLI application.
func App() *cli.App {
	app := &cli.App{
		Name:    "tokgate-cli",
		Usage:   "tokgate command-line client",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			LoginGetCommand(),
			GetCommand(),
			UploadCommand(),
			PingCommand(),
			HashPasswordCommand(),
			ConfigCommand(),
		},
		Before: func(c *cli.Context) error {
			profile, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			c.App.Metadata[metaProfile] = profile
			if _, ok := c.App.Metadata[metaDialer]; !ok {
				c.App.Metadata[metaDialer] = Dialer(DialQUIC)
			}
			return nil
		},
	}

	return app
}

// globalFlags returns the global CLI flags. Flags without a value fall back
// to the profile.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "CLI profile path",
			EnvVars: []string{"TOKGATE_CLI_CONFIG"},
			Value:   config.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "tokgate server address (e.g., 127.0.0.1:4843)",
			EnvVars: []string{"TOKGATE_SERVER"},
		},
		&cli.StringFlag{
			Name:    "ca-file",
			Usage:   "Trusted CA certificate file or directory (PEM or DER)",
			EnvVars: []string{"TOKGATE_CA_FILE"},
		},
		&cli.StringFlag{
			Name:  "server-name",
			Usage: "Name verified against the server certificate",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml, raw",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Overall timeout of one command",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	// Server connection
	Server     string
	CAFile     string
	ServerName string
	Timeout    time.Duration

	// Output format
	Output output.Format
	Wide   bool

	// Username from the profile, used when a command has no --username.
	Username string
}

// ParseGlobalFlags extracts global flags from context, filling unset flags
// from the profile.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	profile := GetProfile(c)

	pick := func(name, fallback string) string {
		if c.IsSet(name) {
			return c.String(name)
		}
		return fallback
	}

	flags := &GlobalFlags{
		Server:     pick("server", profile.Server),
		CAFile:     pick("ca-file", profile.CAFile),
		ServerName: pick("server-name", profile.ServerName),
		Output:     output.Format(pick("output", profile.Output)),
		Wide:       c.Bool("wide"),
		Timeout:    profile.Timeout,
		Username:   profile.Username,
	}
	if c.IsSet("timeout") {
		flags.Timeout = c.Duration("timeout")
	}
	return flags
}

// GetProfile retrieves the loaded profile from context.
func GetProfile(c *cli.Context) *config.CLIConfig {
	if p, ok := c.App.Metadata[metaProfile].(*config.CLIConfig); ok {
		return p
	}
	return config.Default()
}

// DialQUIC connects to flags.Server over QUIC, trusting flags.CAFile.
func DialQUIC(ctx context.Context, flags *GlobalFlags) (*client.Client, error) {
	pool, err := tlsroots.LoadPool(flags.CAFile)
	if err != nil {
		return nil, err
	}

	cl, err := client.Dial(ctx, flags.Server, pool.ClientTLSConfig(flags.ServerName), quictransport.Config{
		IdleTimeout: flags.Timeout,
		MaxStreams:  quictransport.DefaultConfig().MaxStreams,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", flags.Server, err)
	}
	return cl, nil
}

// withClient runs fn with a connected client and a context bounded by the
// global timeout.
func withClient(c *cli.Context, fn func(ctx context.Context, cl *client.Client) error) error {
	flags := ParseGlobalFlags(c)

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if flags.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flags.Timeout)
		defer cancel()
	}

	dial, ok := c.App.Metadata[metaDialer].(Dialer)
	if !ok {
		dial = DialQUIC
	}
	cl, err := dial(ctx, flags)
	if err != nil {
		return err
	}
	defer cl.Close()

	return fn(ctx, cl)
}

// render writes data in the selected output format.
func render(c *cli.Context, data any) error {
	flags := ParseGlobalFlags(c)
	format, err := output.ParseFormat(string(flags.Output))
	if err != nil {
		return err
	}
	return output.NewFormatter(format, flags.Wide).Format(c.App.Writer, data)
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
