// Command squish is the thin CLI front-end: it resolves squishfile paths
// and parses TOML locally, then hands a JSON manifest to squishd over the
// Control API. It owns no container lifecycle logic itself (spec.md §1,
// §4.G).
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	kongyaml "github.com/alecthomas/kong-yaml"
	kongcompletion "github.com/jotaen/kong-completion"
	"github.com/posener/complete"

	"github.com/queer/squish/mux"
)

// Context is handed to every command's Run method, mirroring the
// teacher's cmd/sand/main.go::Context.
type Context struct {
	SocketPath string
	BaseDir    string
	LogLevel   string
	Client     *mux.Client
}

// CLI is the full command tree.
type CLI struct {
	SocketPath string `default:"/tmp/squishd.sock" placeholder:"<socket-path>" help:"path to the squishd control socket"`
	BaseDir    string `default:"/var/lib/squish" placeholder:"<dir>" help:"daemon's base dir, for reading on-disk container logs directly"`
	LogLevel   string `default:"info" placeholder:"<debug|info|warn|error>" help:"CLI log level"`

	Create  CreateCmd  `cmd:"" help:"resolve a squishfile and create a container from it"`
	List    ListCmd    `cmd:"" help:"list live containers"`
	Stop    StopCmd    `cmd:"" help:"stop containers matching an id/name prefix"`
	Status  StatusCmd  `cmd:"" help:"check whether the daemon is reachable"`
	Logs    LogsCmd    `cmd:"" help:"print a container's stdout or stderr log"`
	Daemon  DaemonCmd  `cmd:"" help:"start, stop, or check the squishd daemon"`
	Version VersionCmd `cmd:"" help:"print version information"`
}

func (c *CLI) initSlog() {
	var level slog.Level
	switch c.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func main() {
	var cli CLI

	parser := kong.Must(&cli,
		kong.Name("squish"),
		kong.Description("Manage rootless squish containers."),
		kong.Configuration(kongyaml.Loader, "~/.squish.yaml"),
		kong.UsageOnError(),
	)

	kongcompletion.Register(parser,
		kongcompletion.WithPredictor("path", complete.PredictFiles("*")),
	)

	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	cli.initSlog()

	runCtx := &Context{
		SocketPath: cli.SocketPath,
		BaseDir:    cli.BaseDir,
		LogLevel:   cli.LogLevel,
		Client:     mux.NewClient(cli.SocketPath),
	}

	if err := kctx.Run(runCtx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
