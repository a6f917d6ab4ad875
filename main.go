package main

import (
	"fmt"
	"os"

	"github.com/KazanKK/mariadump/cmd"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "mariadump",
		Usage: "Export MariaDB/MySQL schemas and data as SQL scripts",
		Commands: []*cli.Command{
			cmd.InitCommand(),
			cmd.CheckCommand(),
			cmd.ExportCommand(),
			cmd.ListCommand(),
			cmd.SendCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
