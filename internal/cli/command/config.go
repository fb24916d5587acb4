package command

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	cliconfig "github.com/yndnr/tokgate/internal/cli/config"
	srvconfig "github.com/yndnr/tokgate/internal/server/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management",
		Subcommands: []*cli.Command{
			{
				Name:  "cli",
				Usage: "CLI profile",
				Subcommands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "Show the effective CLI settings",
						Action: configCLIShow,
					},
					{
						Name:   "save",
						Usage:  "Save the effective CLI settings to the profile",
						Action: configCLISave,
					},
				},
			},
			{
				Name:  "server",
				Usage: "Server configuration",
				Subcommands: []*cli.Command{
					{
						Name:      "test",
						Usage:     "Load and verify a server configuration file",
						ArgsUsage: "FILE",
						Action:    configServerTest,
					},
				},
			},
		},
	}
}

func effectiveProfile(c *cli.Context) *cliconfig.CLIConfig {
	flags := ParseGlobalFlags(c)
	return &cliconfig.CLIConfig{
		Server:     flags.Server,
		CAFile:     flags.CAFile,
		ServerName: flags.ServerName,
		Username:   flags.Username,
		Output:     string(flags.Output),
		Timeout:    flags.Timeout,
	}
}

func configCLIShow(c *cli.Context) error {
	p := effectiveProfile(c)
	return render(c, map[string]string{
		"profile":     c.String("config"),
		"server":      p.Server,
		"ca_file":     p.CAFile,
		"server_name": p.ServerName,
		"username":    p.Username,
		"output":      p.Output,
		"timeout":     p.Timeout.String(),
	})
}

func configCLISave(c *cli.Context) error {
	path := c.String("config")
	if err := cliconfig.Save(effectiveProfile(c), path); err != nil {
		return err
	}
	_, err := fmt.Fprintf(c.App.Writer, "Saved CLI profile to %s\n", path)
	return err
}

func configServerTest(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("FILE argument is required")
	}

	cfg, err := srvconfig.Load(path)
	if err != nil {
		return err
	}
	if err := srvconfig.Verify(cfg); err != nil {
		return fmt.Errorf("configuration is invalid:\n%w", err)
	}

	if _, err := fmt.Fprintf(c.App.Writer, "Configuration is valid: %s\n", path); err != nil {
		return err
	}
	return render(c, srvconfig.Sanitize(cfg))
}
