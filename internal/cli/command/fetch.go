package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokgate/internal/cli/client"
	"github.com/yndnr/tokgate/internal/cli/output"
)

// LoginGetCommand returns the login-get command: log in once, then fetch a
// file several times on the authenticated stream.
func LoginGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "login-get",
		Aliases:   []string{"lg"},
		Usage:     "Log in and fetch a file with the issued session",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "username",
				Aliases: []string{"u"},
				Usage:   "Login name (defaults to the profile username)",
				EnvVars: []string{"TOKGATE_USERNAME"},
			},
			&cli.StringFlag{
				Name:     "password",
				Aliases:  []string{"p"},
				Usage:    "Login password",
				EnvVars:  []string{"TOKGATE_PASSWORD"},
				Required: true,
			},
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Value:   3,
				Usage:   "Number of authenticated requests",
			},
		},
		Action: loginGet,
	}
}

// GetCommand returns the anonymous get command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Fetch a file without logging in (server must allow anonymous requests)",
		ArgsUsage: "FILE",
		Action:    anonymousGet,
	}
}

// fetchResult is one response received for a file request.
type fetchResult struct {
	Seq   int    `json:"seq" yaml:"seq"`
	File  string `json:"file" yaml:"file"`
	Bytes int    `json:"bytes" yaml:"bytes"`
	Body  string `json:"body" yaml:"body"`
}

type fetchResults []fetchResult

func (r fetchResults) Raw() []byte {
	var out []byte
	for _, f := range r {
		out = append(out, f.Body...)
	}
	return out
}

func (r fetchResults) Table(wide bool) *output.Table {
	t := output.NewTable("#", "FILE", "BYTES", "BODY")
	for _, f := range r {
		body := f.Body
		if !wide && len(body) > 60 {
			body = body[:57] + "..."
		}
		t.AddRow(strconv.Itoa(f.Seq), f.File, strconv.Itoa(f.Bytes), body)
	}
	return t
}

func fileArg(c *cli.Context) (string, error) {
	name := c.Args().First()
	if name == "" {
		return "", errors.New("FILE argument is required")
	}
	if c.Args().Len() > 1 {
		return "", fmt.Errorf("expected one FILE argument, got %d", c.Args().Len())
	}
	return name, nil
}

func loginGet(c *cli.Context) error {
	name, err := fileArg(c)
	if err != nil {
		return err
	}
	count := c.Int("count")
	if count < 1 {
		return fmt.Errorf("--count must be at least 1, got %d", count)
	}
	username := c.String("username")
	if username == "" {
		username = ParseGlobalFlags(c).Username
	}

	var results fetchResults
	err = withClient(c, func(ctx context.Context, cl *client.Client) error {
		sess, err := cl.Login(ctx, username, c.String("password"))
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		defer sess.Close()

		for i := 1; i <= count; i++ {
			body, err := sess.Get(ctx, name)
			if err != nil {
				return fmt.Errorf("request %d: %w", i, err)
			}
			results = append(results, fetchResult{Seq: i, File: name, Bytes: len(body), Body: string(body)})
		}
		return nil
	})
	if err != nil {
		return err
	}
	return render(c, results)
}

func anonymousGet(c *cli.Context) error {
	name, err := fileArg(c)
	if err != nil {
		return err
	}

	var results fetchResults
	err = withClient(c, func(ctx context.Context, cl *client.Client) error {
		body, err := cl.Get(ctx, name)
		if err != nil {
			return fmt.Errorf("get %s: %w", name, err)
		}
		results = append(results, fetchResult{Seq: 1, File: name, Bytes: len(body), Body: string(body)})
		return nil
	})
	if err != nil {
		return err
	}
	return render(c, results)
}
