package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LogsCmd prints a container's captured stdout.log (or, with --stderr,
// stderr.log) directly off disk: the file's current contents are copied
// once; the file is not followed.
// Supplements the core Control API: the daemon's on-disk layout names
// these files by convention (container/<id>/{stdout,stderr}.log), so no
// daemon round trip is needed to read them.
type LogsCmd struct {
	ID     string `arg:"" help:"container id"`
	Stderr bool   `help:"show stderr.log instead of stdout.log"`
}

func (c *LogsCmd) Run(cctx *Context) error {
	name := "stdout.log"
	if c.Stderr {
		name = "stderr.log"
	}
	path := filepath.Join(cctx.BaseDir, "container", c.ID, name)

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("logs: open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(os.Stdout, f); err != nil {
		return fmt.Errorf("logs: read %s: %w", path, err)
	}
	return nil
}
