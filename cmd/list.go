package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/KazanKK/mariadump/export"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
)

// exportRun groups the artifacts of one run.
type exportRun struct {
	schema    string
	timestamp string
	sections  []string
	size      int64
}

func ListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List export runs in the output directory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "output-dir",
				Usage: "Directory to scan (default: output_dir of the config file)",
			},
		},
		Action: func(c *cli.Context) error {
			config, err := loadConfig()
			if err != nil {
				return err
			}
			dir := config.OutputDir
			if c.IsSet("output-dir") {
				dir = c.String("output-dir")
			}

			runs, err := scanRuns(dir)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Printf("No exports found in %s.\n", dir)
				return nil
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Database", "Run", "Sections", "Size"})
			table.SetBorder(false)
			table.SetColumnSeparator(" ")
			for _, r := range runs {
				table.Append([]string{r.schema, r.timestamp, strings.Join(r.sections, ", "), humanize.IBytes(uint64(r.size))})
			}
			table.Render()
			return nil
		},
	}
}

// scanRuns groups artifact files in dir by schema and run timestamp, newest
// run first.
func scanRuns(dir string) ([]*exportRun, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading output directory: %v", err)
	}

	byKey := make(map[string]*exportRun)
	var runs []*exportRun
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		schema, section, ts, ok := export.ParseArtifactName(entry.Name())
		if !ok {
			continue
		}
		key := schema + "\x00" + ts
		r, exists := byKey[key]
		if !exists {
			r = &exportRun{schema: schema, timestamp: ts}
			byKey[key] = r
			runs = append(runs, r)
		}
		r.sections = append(r.sections, string(section))
		if info, err := entry.Info(); err == nil {
			r.size += info.Size()
		}
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].timestamp != runs[j].timestamp {
			return runs[i].timestamp > runs[j].timestamp
		}
		return runs[i].schema < runs[j].schema
	})
	return runs, nil
}
