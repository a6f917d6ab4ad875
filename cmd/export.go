package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	db "github.com/KazanKK/mariadump/database"
	"github.com/KazanKK/mariadump/export"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func ExportCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "export-method",
			Value: string(export.ModeFull),
			Usage: "structure (DDL only), data (DML only) or full (both in one file)",
		},
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "Rows per INSERT statement (default: 5000)",
		},
		&cli.StringFlag{
			Name:  "output-dir",
			Usage: "Directory for the exported SQL files (default: exports)",
		},
		&cli.BoolFlag{Name: "no-views", Usage: "Skip the views file"},
		&cli.BoolFlag{Name: "no-routines", Usage: "Skip the procedures and functions file"},
		&cli.BoolFlag{Name: "no-triggers", Usage: "Skip the triggers file"},
		&cli.BoolFlag{
			Name:  "keep-auto-increment",
			Usage: "Keep the AUTO_INCREMENT=<n> table option in CREATE TABLE statements",
		},
		&cli.StringFlag{
			Name:  "merge-strategy",
			Value: string(export.MergeAppend),
			Usage: "How full mode joins data to structure: append or copy",
		},
		&cli.StringFlag{
			Name:  "paging",
			Value: string(export.PagingOffset),
			Usage: "Row paging: offset, or keyset for tables with a primary key",
		},
		&cli.BoolFlag{
			Name:  "notify",
			Usage: "Email the exported files using the smtp settings of the config file",
		},
		&cli.StringFlag{
			Name:  "recipient",
			Usage: "Email recipient for --notify (overrides the config file)",
		},
	}
	flags = append(flags, connectionFlags()...)
	flags = append(flags, loggingFlags()...)

	return &cli.Command{
		Name:  "export",
		Usage: "Export database structure and/or data to SQL files",
		Flags: flags,
		Action: func(c *cli.Context) error {
			config, err := loadConfig()
			if err != nil {
				return err
			}

			outputDir := config.OutputDir
			if c.IsSet("output-dir") {
				outputDir = c.String("output-dir")
			}
			batchSize := config.BatchSize
			if c.IsSet("batch-size") {
				batchSize = c.Int("batch-size")
			}
			params, err := connParams(c, config.Connection)
			if err != nil {
				return fmt.Errorf("connection settings: %v", err)
			}

			runCfg := export.NewRunConfig(params.Database, outputDir, export.Mode(c.String("export-method")), batchSize)
			runCfg.IncludeViews = !c.Bool("no-views")
			runCfg.IncludeRoutines = !c.Bool("no-routines")
			runCfg.IncludeTriggers = !c.Bool("no-triggers")
			runCfg.StripAutoIncrement = !c.Bool("keep-auto-increment")
			runCfg.Merge = export.MergeStrategy(c.String("merge-strategy"))
			runCfg.Paging = export.Paging(c.String("paging"))
			if err := runCfg.Validate(); err != nil {
				return err
			}

			if err := os.MkdirAll(outputDir, 0755); err != nil {
				return fmt.Errorf("creating output directory: %v", err)
			}
			InitLogging(outputDir, c.Bool("quiet"), c.Bool("verbose"), "export")

			fmt.Printf("Exporting %s from %s (mode: %s, batch size: %d)\n",
				params.Database, params, runCfg.Mode, runCfg.BatchSize)

			ctx, cancel := signalContext(c.Context)
			defer cancel()

			start := time.Now()
			res, err := export.NewExporter(runCfg, params, db.Connect).Run(ctx)
			if err != nil {
				log.Errorf("Export failed: %v", err)
				return fmt.Errorf("export failed: %v", err)
			}

			printArtifacts(res.Artifacts)
			for _, f := range res.Failures {
				fmt.Printf("  ⚠ %v\n", f)
			}
			fmt.Printf("\n✅ Export finished in %s: %d tables, %d rows, %d files in %s\n",
				time.Since(start).Round(time.Millisecond), res.Tables, res.Rows, len(res.Artifacts), outputDir)

			if c.Bool("notify") {
				smtpCfg := config.SMTP
				if c.IsSet("recipient") {
					smtpCfg.Recipient = c.String("recipient")
				}
				if err := sendFiles(smtpCfg, "", "", res.Artifacts, false); err != nil {
					return fmt.Errorf("sending export: %v", err)
				}
			}
			return nil
		},
	}
}

func printArtifacts(paths []string) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"File", "Size"})
	table.SetBorder(false)
	table.SetColumnSeparator(" ")
	for _, p := range paths {
		size := "?"
		if info, err := os.Stat(p); err == nil {
			size = humanize.IBytes(uint64(info.Size()))
		}
		table.Append([]string{filepath.Base(p), size})
	}
	table.Render()
}
