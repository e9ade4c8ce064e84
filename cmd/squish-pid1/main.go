// Command squish-pid1 is the bootstrap executor: it runs as PID 1 inside a
// freshly cloned set of Linux namespaces, assembles the guest rootfs, and
// execs the declared command. Its contract is argv-in, exit-code-out; see
// spec.md §4.C and §6.
//
// It is invoked in two hops. The supervisor execs it as a plain process in
// the host's namespaces (runLauncher); that process clones a nested copy of
// itself into the fresh namespace set (runGuest) and prints the clone's
// host-visible pid before exiting. The launcher never joins the new PID
// namespace itself, because a process already inside CLONE_NEWPID always
// sees its own pid as 1 — self-reporting os.Getpid() from in there would
// hand the supervisor the same meaningless value for every container.
// original_source/pid1/src/main.rs uses the same split: its main() clones
// a child and prints the child's pid rather than its own.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/queer/squish/executor"
)

// guestFlag marks the nested, actually-namespaced re-exec of this binary.
const guestFlag = "--guest"

func main() {
	if len(os.Args) > 1 && os.Args[1] == guestFlag {
		runGuest(os.Args[2:])
		return
	}
	runLauncher(os.Args[1:])
}

// runLauncher stays in the host's namespaces. It clones a guest copy of
// this same binary with the namespace flags spec.md §5 requires, then
// reports the clone's pid on its own original stdout — the single source
// of truth the supervisor parses (spec.md §4.D step 4) before it gets
// redirected away in the guest's own step 2.
func runLauncher(args []string) {
	if len(args) != 4 {
		fmt.Fprintln(os.Stderr, "usage: squish-pid1 <rootfs_path> <container_id> <work_dir> <manifest_fd>")
		os.Exit(1)
	}
	fd, err := strconv.Atoi(args[3])
	if err != nil {
		fmt.Fprintf(os.Stderr, "squish-pid1: bad manifest fd %q: %v\n", args[3], err)
		os.Exit(1)
	}
	manifestFile := os.NewFile(uintptr(fd), "squishfile-manifest")

	guestArgs := append([]string{guestFlag, args[0], args[1], args[2]}, "3")
	cmd := exec.Command(os.Args[0], guestArgs...)
	cmd.ExtraFiles = []*os.File{manifestFile}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: syscall.CLONE_NEWUSER | syscall.CLONE_NEWPID | syscall.CLONE_NEWNS |
			syscall.CLONE_NEWUTS | syscall.CLONE_NEWNET | syscall.CLONE_NEWCGROUP,
		UidMappings: []syscall.SysProcIDMap{{ContainerID: 0, HostID: os.Getuid(), Size: 1}},
		GidMappings: []syscall.SysProcIDMap{{ContainerID: 0, HostID: os.Getgid(), Size: 1}},
	}

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "squish-pid1: clone guest: %v\n", err)
		os.Exit(1)
	}

	// cmd.Process.Pid is the clone's pid as seen from out here, in the
	// namespace the supervisor itself lives in — exactly spec.md's "guest
	// PID": the host-visible pid of the process that is PID 1 inside the
	// container's new PID namespace.
	fmt.Fprintf(os.Stdout, "%d\n", cmd.Process.Pid)
}

// runGuest is PID 1 of the new namespace set; it performs the actual
// bootstrap steps and, on success, never returns.
func runGuest(args []string) {
	if len(args) != 4 {
		fmt.Fprintln(os.Stderr, "usage: squish-pid1 --guest <rootfs_path> <container_id> <work_dir> <manifest_fd>")
		os.Exit(1)
	}
	fd, err := strconv.Atoi(args[3])
	if err != nil {
		fmt.Fprintf(os.Stderr, "squish-pid1: bad manifest fd %q: %v\n", args[3], err)
		os.Exit(1)
	}

	a := executor.Args{
		RootfsPath:  args[0],
		ContainerID: args[1],
		WorkDir:     args[2],
		ManifestFD:  fd,
	}
	if err := executor.Run(a); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	// executor.Run only returns on failure; a successful run ends in exec.
}
