package main

import (
	"context"
	"fmt"
)

// StatusCmd pings the daemon's /status endpoint.
type StatusCmd struct{}

func (c *StatusCmd) Run(cctx *Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := cctx.Client.Status(ctx); err != nil {
		fmt.Println("daemon is not running")
		return nil
	}
	fmt.Println("daemon is running")
	return nil
}
