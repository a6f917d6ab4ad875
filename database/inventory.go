package db

import (
	"context"
	"fmt"
)

// ObjectCounts is what the connection check reports.
type ObjectCounts struct {
	Tables     int
	Views      int
	Procedures int
	Functions  int
	Triggers   int
}

// CountObjects runs the five catalog listings and counts the results.
// The first failing listing aborts the count.
func CountObjects(ctx context.Context, c Catalog) (ObjectCounts, error) {
	var counts ObjectCounts
	steps := []struct {
		what string
		list func(context.Context) ([]string, error)
		dst  *int
	}{
		{"tables", c.ListTables, &counts.Tables},
		{"views", c.ListViews, &counts.Views},
		{"procedures", c.ListProcedures, &counts.Procedures},
		{"functions", c.ListFunctions, &counts.Functions},
		{"triggers", c.ListTriggers, &counts.Triggers},
	}
	for _, step := range steps {
		names, err := step.list(ctx)
		if err != nil {
			return counts, fmt.Errorf("listing %s: %w", step.what, err)
		}
		*step.dst = len(names)
	}
	return counts, nil
}
