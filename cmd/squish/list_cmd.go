package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
)

// ListCmd prints every live container the daemon knows about.
type ListCmd struct{}

func (c *ListCmd) Run(cctx *Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	containers, err := cctx.Client.List(ctx)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPID")
	for _, c := range containers {
		fmt.Fprintf(w, "%s\t%s\t%d\n", c.ID, c.Name, c.PID)
	}
	return w.Flush()
}
