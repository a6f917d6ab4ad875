package cmd

import (
	"fmt"
	"os"
	"strconv"

	db "github.com/KazanKK/mariadump/database"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func CheckCommand() *cli.Command {
	flags := append(connectionFlags(), loggingFlags()...)
	return &cli.Command{
		Name:  "check",
		Usage: "Test the database connection and count exportable objects",
		Flags: flags,
		Action: func(c *cli.Context) error {
			config, err := loadConfig()
			if err != nil {
				return err
			}
			params, err := connParams(c, config.Connection)
			if err != nil {
				return fmt.Errorf("connection settings: %v", err)
			}
			if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
				return fmt.Errorf("creating output directory: %v", err)
			}
			InitLogging(config.OutputDir, c.Bool("quiet"), c.Bool("verbose"), "check")

			fmt.Printf("Testing connection to %s\n", params)
			ctx, cancel := signalContext(c.Context)
			defer cancel()

			conn, err := db.Connect(ctx, params)
			if err != nil {
				fmt.Println("❌ Connection failed, check your credentials")
				return err
			}
			defer conn.Close()

			version, err := conn.ServerVersion(ctx)
			if err != nil {
				log.Warnf("%v", err)
				version = "unknown"
			}
			counts, err := db.CountObjects(ctx, conn)
			if err != nil {
				return err
			}

			fmt.Printf("✅ Connected (server version %s)\n\n", version)
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Object", "Count"})
			table.SetBorder(false)
			table.SetColumnSeparator(" ")
			table.Append([]string{"Tables", strconv.Itoa(counts.Tables)})
			table.Append([]string{"Views", strconv.Itoa(counts.Views)})
			table.Append([]string{"Procedures", strconv.Itoa(counts.Procedures)})
			table.Append([]string{"Functions", strconv.Itoa(counts.Functions)})
			table.Append([]string{"Triggers", strconv.Itoa(counts.Triggers)})
			table.Render()

			fmt.Println("\nConnection OK, you can run an export.")
			return nil
		},
	}
}
