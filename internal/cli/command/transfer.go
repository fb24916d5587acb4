package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokgate/internal/cli/client"
)

// UploadCommand returns the upload command.
func UploadCommand() *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Usage:     "Send a file on a unidirectional stream (- reads stdin)",
		ArgsUsage: "PATH",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "linger",
				Value: 250 * time.Millisecond,
				Usage: "Keep the connection open this long after sending; closing drops undelivered data",
			},
		},
		Action: upload,
	}
}

// PingCommand returns the ping command.
func PingCommand() *cli.Command {
	return &cli.Command{
		Name:      "ping",
		Usage:     "Send a datagram and wait for the acknowledgement",
		ArgsUsage: "[MESSAGE]",
		Action:    ping,
	}
}

func upload(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("PATH argument is required")
	}

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(c.App.Reader)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	err = withClient(c, func(ctx context.Context, cl *client.Client) error {
		if err := cl.Upload(ctx, data); err != nil {
			return err
		}
		select {
		case <-time.After(c.Duration("linger")):
		case <-ctx.Done():
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	return render(c, map[string]string{
		"path":  path,
		"bytes": strconv.Itoa(len(data)),
	})
}

func ping(c *cli.Context) error {
	msg := c.Args().First()
	if msg == "" {
		msg = "ping"
	}

	var (
		reply string
		rtt   time.Duration
	)
	err := withClient(c, func(ctx context.Context, cl *client.Client) error {
		start := time.Now()
		r, err := cl.Ping(ctx, msg)
		if err != nil {
			return err
		}
		reply, rtt = r, time.Since(start)
		return nil
	})
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return render(c, map[string]string{
		"reply": reply,
		"rtt":   rtt.String(),
	})
}
