package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	utils "github.com/KazanKK/mariadump/internal/utils"
	"github.com/urfave/cli/v2"
)

func InitCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize the mariadump configuration file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "output-dir",
				Usage: "Directory to store exported files",
				Value: "exports",
			},
			&cli.StringFlag{Name: "host", Usage: "MariaDB server host", Value: "localhost"},
			&cli.IntFlag{Name: "port", Usage: "MariaDB server port", Value: 3306},
			&cli.StringFlag{Name: "user", Usage: "Database user"},
			&cli.StringFlag{Name: "database", Usage: "Database to export"},
			&cli.IntFlag{Name: "batch-size", Usage: "Rows per INSERT statement", Value: 5000},
		},
		Action: func(c *cli.Context) error {
			config := utils.DefaultConfig()

			// Re-running init updates the existing file in place
			if _, err := os.Stat(utils.ConfigFileName); err == nil {
				existing, err := utils.ReadConfig(utils.ConfigFileName)
				if err != nil {
					return err
				}
				config = existing
				if cwd, err := os.Getwd(); err == nil {
					if rel, err := filepath.Rel(cwd, existing.OutputDir); err == nil {
						config.OutputDir = rel
					}
				}
			}

			if c.IsSet("output-dir") || config.OutputDir == "" {
				config.OutputDir = c.String("output-dir")
			}
			if c.IsSet("host") {
				config.Connection.Host = c.String("host")
			}
			if c.IsSet("port") {
				config.Connection.Port = c.Int("port")
			}
			if c.IsSet("user") {
				config.Connection.User = c.String("user")
			}
			if c.IsSet("database") {
				config.Connection.Database = c.String("database")
			}
			if c.IsSet("batch-size") {
				config.BatchSize = c.Int("batch-size")
			}
			if config.BatchSize < 1 {
				return fmt.Errorf("batch size must be at least 1")
			}

			if err := utils.WriteConfig(utils.ConfigFileName, config); err != nil {
				return err
			}

			if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
				return fmt.Errorf("creating output directory: %v", err)
			}

			fmt.Printf("Created %s with output directory: %s\n", utils.ConfigFileName, config.OutputDir)
			return nil
		},
	}
}
