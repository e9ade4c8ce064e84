package main

import (
	"fmt"
	"runtime/debug"

	"github.com/queer/squish/version"
)

// VersionCmd prints build-time and VCS version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(cctx *Context) error {
	info := version.Get()
	fmt.Printf("Git Repository: %s\n", info.GitRepo)
	fmt.Printf("Git Branch: %s\n", info.GitBranch)
	fmt.Printf("Git Commit: %s\n", info.GitCommit)
	fmt.Printf("Build Time: %s\n", info.BuildTime)

	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		fmt.Println("Build info not available")
		return nil
	}
	for _, setting := range buildInfo.Settings {
		switch setting.Key {
		case "vcs.revision":
			if info.GitCommit == "" {
				fmt.Printf("Git Commit: %s\n", setting.Value)
			}
		case "vcs.time":
			if info.BuildTime == "" {
				fmt.Printf("Commit Time: %s\n", setting.Value)
			}
		case "vcs.modified":
			fmt.Printf("Modified: %s\n", setting.Value)
		}
	}
	return nil
}
