package command

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokgate/internal/cli/output"
	"github.com/yndnr/tokgate/internal/core/service"
	srvconfig "github.com/yndnr/tokgate/internal/server/config"
	"github.com/yndnr/tokgate/pkg/token"
)

// HashPasswordCommand returns the hash-password command. Its output goes
// into security.admin_password_hash of the server configuration.
func HashPasswordCommand() *cli.Command {
	return &cli.Command{
		Name:      "hash-password",
		Usage:     "Hash a password for security.admin_password_hash",
		ArgsUsage: "[PASSWORD]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "scheme",
				Value: srvconfig.PasswordSchemeArgon2id,
				Usage: "Hash scheme: sha256 or argon2id",
			},
		},
		Action: hashPassword,
	}
}

func hashPassword(c *cli.Context) error {
	password := c.Args().First()
	if password == "" {
		line, err := bufio.NewReader(c.App.Reader).ReadString('\n')
		password = strings.TrimRight(line, "\r\n")
		if password == "" {
			if err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("read password: %w", err)
			}
			return errors.New("PASSWORD argument or a line on stdin is required")
		}
	}

	scheme := strings.ToLower(c.String("scheme"))
	hash, err := HashPassword(scheme, password)
	if err != nil {
		return err
	}

	switch ParseGlobalFlags(c).Output {
	case output.FormatJSON, output.FormatYAML:
	default:
		_, err := fmt.Fprintln(c.App.Writer, hash)
		return err
	}
	return render(c, map[string]string{
		"password_scheme":     scheme,
		"admin_password_hash": hash,
	})
}

// HashPassword hashes password under scheme.
func HashPassword(scheme, password string) (string, error) {
	switch scheme {
	case srvconfig.PasswordSchemeSHA256:
		return token.HashPassword(password), nil
	case srvconfig.PasswordSchemeArgon2id:
		return service.HashArgon2id(password)
	default:
		return "", fmt.Errorf("unknown scheme %q (want %s or %s)", scheme,
			srvconfig.PasswordSchemeSHA256, srvconfig.PasswordSchemeArgon2id)
	}
}
