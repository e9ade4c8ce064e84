package main

import (
	"context"
	"fmt"
)

// StopCmd fuzzy-matches Prefix against live container ids/names and
// tears down every match.
type StopCmd struct {
	Prefix string `arg:"" help:"id or name prefix of the container(s) to stop"`
}

func (c *StopCmd) Run(cctx *Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	removed, err := cctx.Client.Stop(ctx, c.Prefix)
	if err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	if len(removed) == 0 {
		fmt.Println("no matching containers")
		return nil
	}
	for _, id := range removed {
		fmt.Println(id)
	}
	return nil
}
