package main

import (
	"context"
	"fmt"
	"os"

	"github.com/queer/squish/squishfile"
)

// CreateCmd parses a squishfile, resolves its relative layer paths
// against the caller's cwd (spec.md §3's path-resolution rule — the
// daemon only ever sees absolute paths), and submits the resulting JSON
// manifest to squishd.
type CreateCmd struct {
	Squishfile string `arg:"" default:"squishfile.toml" help:"path to the squishfile to build"`
}

func (c *CreateCmd) Run(cctx *Context) error {
	text, err := os.ReadFile(c.Squishfile)
	if err != nil {
		return fmt.Errorf("create: read %s: %w", c.Squishfile, err)
	}

	manifest, err := squishfile.Parse(text)
	if err != nil {
		return fmt.Errorf("create: parse %s: %w", c.Squishfile, err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("create: getwd: %w", err)
	}

	resolved, err := squishfile.ResolvePaths(manifest, cwd)
	if err != nil {
		return fmt.Errorf("create: resolve paths: %w", err)
	}

	encoded, err := squishfile.ToJSON(resolved)
	if err != nil {
		return fmt.Errorf("create: encode manifest: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ids, err := cctx.Client.Create(ctx, []byte(encoded))
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}
