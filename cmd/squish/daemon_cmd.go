package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/queer/squish/mux"
)

// DaemonCmd starts, stops, restarts, or reports the status of squishd.
// Unlike the teacher (a single binary that runs its own mux server
// in-process), squish and squishd are separate binaries per spec.md §2's
// component split, so "start" execs squishd as a detached child.
type DaemonCmd struct {
	Action       string `arg:"" optional:"" default:"status" enum:"start,stop,restart,status" help:"start, stop, restart, or status (default)"`
	DaemonBinary string `default:"squishd" help:"path to the squishd binary"`
}

func (c *DaemonCmd) Run(cctx *Context) error {
	switch c.Action {
	case "start":
		return c.start(cctx)
	case "stop":
		return c.stop(cctx)
	case "restart":
		if err := c.stop(cctx); err != nil {
			return err
		}
		return c.start(cctx)
	default:
		return c.status(cctx)
	}
}

func (c *DaemonCmd) status(cctx *Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := cctx.Client.Status(ctx); err != nil {
		fmt.Println("daemon is not running")
		return nil
	}
	fmt.Println("daemon is running")
	return nil
}

func (c *DaemonCmd) start(cctx *Context) error {
	statusCtx, statusCancel := context.WithTimeout(context.Background(), 2*time.Second)
	alreadyRunning := cctx.Client.Status(statusCtx) == nil
	statusCancel()
	if alreadyRunning {
		fmt.Println("daemon is already running")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := mux.EnsureDaemon(ctx, cctx.SocketPath, func() error {
		cmd := exec.Command(c.DaemonBinary)
		cmd.Stdout = nil
		cmd.Stderr = nil
		cmd.Stdin = nil
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
		return cmd.Start()
	})
	if err != nil {
		return fmt.Errorf("daemon start: %w", err)
	}
	fmt.Println("daemon started")
	return nil
}

func (c *DaemonCmd) stop(cctx *Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := cctx.Client.Status(ctx); err != nil {
		fmt.Println("daemon is not running")
		return nil
	}

	proc, err := findDaemonProcess(cctx.SocketPath)
	if err != nil {
		return fmt.Errorf("daemon stop: %w", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("daemon stop: signal: %w", err)
	}
	fmt.Println("daemon stopped")
	return nil
}

// findDaemonProcess reads the lockfile squishd writes alongside its
// socket (socket_path + ".lock") to recover its pid.
func findDaemonProcess(socketPath string) (*os.Process, error) {
	lockPath := socketPath + ".lock"
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return nil, fmt.Errorf("read lockfile %s: %w", lockPath, err)
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return nil, fmt.Errorf("parse lockfile %s: %w", lockPath, err)
	}
	return os.FindProcess(pid)
}
