package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	db "github.com/KazanKK/mariadump/database"
	utils "github.com/KazanKK/mariadump/internal/utils"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

// connectionFlags are shared by every command that talks to the database.
func connectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Usage:   "MariaDB server host (e.g., localhost, 192.168.1.100)",
			EnvVars: []string{"MARIADUMP_HOST"},
		},
		&cli.IntFlag{
			Name:    "port",
			Usage:   "MariaDB server port (default: 3306)",
			EnvVars: []string{"MARIADUMP_PORT"},
		},
		&cli.StringFlag{
			Name:    "user",
			Aliases: []string{"u"},
			Usage:   "Database user",
			EnvVars: []string{"MARIADUMP_USER"},
		},
		&cli.StringFlag{
			Name:    "password",
			Aliases: []string{"p"},
			Usage:   "Database password (or set MARIADUMP_PASSWORD env var)",
			EnvVars: []string{"MARIADUMP_PASSWORD"},
		},
		&cli.BoolFlag{
			Name:  "ask-password",
			Usage: "Prompt for the database password",
		},
		&cli.StringFlag{
			Name:    "database",
			Aliases: []string{"d"},
			Usage:   "Database (schema) to use",
			EnvVars: []string{"MARIADUMP_DATABASE"},
		},
		&cli.StringFlag{
			Name:  "ssl-mode",
			Usage: "TLS mode: disable, prefer or require",
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Write log output to the log file only",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Log every batch",
		},
	}
}

// loadConfig reads the project config, if any.
func loadConfig() (utils.Config, error) {
	cfg, _, err := utils.LoadConfig()
	if err != nil {
		return cfg, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// connParams merges connection flags over the config file values.
func connParams(c *cli.Context, base db.ConnParams) (db.ConnParams, error) {
	p := base
	if c.IsSet("host") {
		p.Host = c.String("host")
	}
	if c.IsSet("port") {
		p.Port = c.Int("port")
	}
	if c.IsSet("user") {
		p.User = c.String("user")
	}
	if c.IsSet("password") {
		p.Password = c.String("password")
	}
	if c.IsSet("database") {
		p.Database = c.String("database")
	}
	if c.IsSet("ssl-mode") {
		p.SSLMode = c.String("ssl-mode")
	}
	if c.Bool("ask-password") {
		pw, err := readPassword(fmt.Sprintf("Password for %s: ", p.User))
		if err != nil {
			return p, err
		}
		p.Password = pw
	}
	return p, p.Validate()
}

func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("cannot prompt for password: stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pw), nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
