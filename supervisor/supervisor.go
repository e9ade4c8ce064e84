// Package supervisor implements the spawn pipeline: the 8-step protocol
// in spec.md §4.D that turns a validated manifest into a live container,
// recorded in the registry.
package supervisor

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/queer/squish/registry"
	"github.com/queer/squish/squishfile"
	"github.com/queer/squish/telemetry"
)

const helperRendezvousAttempts = 100

// Supervisor orchestrates one container creation end-to-end.
type Supervisor struct {
	Registry    *registry.Registry
	Fetcher     *ImageFetcher
	Pid1Binary  string
	SlirpBinary string
	BaseDir     string
	Tracer      trace.Tracer
}

// New builds a Supervisor. Its tracer is a no-op until telemetry.Setup
// has registered a real SDK provider.
func New(reg *registry.Registry, fetcher *ImageFetcher, pid1Binary, slirpBinary, baseDir string) *Supervisor {
	return &Supervisor{
		Registry:    reg,
		Fetcher:     fetcher,
		Pid1Binary:  pid1Binary,
		SlirpBinary: slirpBinary,
		BaseDir:     baseDir,
		Tracer:      telemetry.Tracer("github.com/queer/squish/supervisor"),
	}
}

// Spawn runs the 8-step protocol for one container. On success it returns
// the guest pid and the helper's aux_pid; the registry has already
// recorded the container. On failure, no registry mutation has occurred
// (on RegistryConflict the insert itself was refused and the spawned
// processes have been signalled).
func (s *Supervisor) Spawn(ctx context.Context, id, name string, m *squishfile.Manifest) (pid, auxPID int, err error) {
	ctx, span := s.Tracer.Start(ctx, "supervisor.Spawn")
	defer span.End()
	s.transition(ctx, span, id, Requested)

	var committed bool
	defer func() {
		// Resolves spec.md §9's mid-spawn-cancellation open question: if
		// the caller's context was cancelled after we spawned live
		// processes but before the registry commit, tear down whatever
		// exists instead of leaking an unrecorded executor/helper pair.
		if !committed && ctx.Err() != nil {
			teardownProcs(pid, auxPID)
		}
	}()

	// Step 1: port precheck.
	s.transition(ctx, span, id, ValidatingPorts)
	if err := s.precheckPorts(ctx, m.Ports); err != nil {
		return 0, 0, err
	}

	// Step 2: base image.
	version, arch := alpineVersionArch(m)
	rootfs, err := s.Fetcher.EnsureBaseImage(ctx, version, arch)
	if err != nil {
		return 0, 0, err
	}
	s.transition(ctx, span, id, ImageReady)

	workDir := filepath.Join(s.BaseDir, "container", id)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return 0, 0, fmt.Errorf("supervisor: mkdir work dir: %w", err)
	}

	// Step 3: manifest transport via anonymous memory file.
	manifestJSON, err := squishfile.ToJSON(m)
	if err != nil {
		return 0, 0, fmt.Errorf("supervisor: encode manifest: %w", err)
	}
	memfd, err := writeManifestMemfd(fmt.Sprintf("squishfile-%s", id), []byte(manifestJSON))
	if err != nil {
		return 0, 0, fmt.Errorf("supervisor: manifest transport: %w", err)
	}
	defer memfd.Close()

	// Step 4: executor launch.
	pid, err = s.launchExecutor(ctx, rootfs, id, workDir, memfd)
	if err != nil {
		return 0, 0, err
	}
	s.transition(ctx, span, id, ExecutorSpawned, "pid", pid)

	// Step 5: userspace network helper.
	socketPath := s.Registry.SocketPath(id)
	helperCmd, err := launchHelper(s.SlirpBinary, socketPath, pid)
	if err != nil {
		teardownProcs(pid, 0)
		return 0, 0, fmt.Errorf("supervisor: launch helper: %w", err)
	}
	auxPID = helperCmd.Process.Pid
	go func() { _ = helperCmd.Wait() }()
	s.transition(ctx, span, id, HelperSpawned, "aux_pid", auxPID)

	// Step 6: control-socket rendezvous.
	if err := dialHelperWithRetry(socketPath, helperRendezvousAttempts); err != nil {
		teardownProcs(pid, auxPID)
		return 0, 0, err
	}
	s.transition(ctx, span, id, HelperReachable)

	// Step 7: port forwards.
	if err := s.programPortForwards(ctx, socketPath, m.Ports); err != nil {
		// Partial port-forward state is left in place per spec.md §7;
		// the container is otherwise still viable, so we do not tear
		// down pid/auxPID here.
		return pid, auxPID, err
	}
	s.transition(ctx, span, id, Forwarded)

	// Step 8: commit.
	err = s.Registry.Add(registry.Container{
		ID:     id,
		Name:   name,
		PID:    pid,
		AuxPID: auxPID,
	})
	if err != nil {
		teardownProcs(pid, auxPID)
		return 0, 0, &RegistryConflict{ID: id}
	}
	committed = true
	s.transition(ctx, span, id, Live)
	return pid, auxPID, nil
}

// transition records one step of the spec.md §4.D/§9 state machine as both
// a span event on the Spawn trace and a structured log line.
func (s *Supervisor) transition(ctx context.Context, span trace.Span, id string, st State, kv ...any) {
	span.AddEvent(string(st))
	slog.InfoContext(ctx, "supervisor: state transition", append([]any{"id", id, "state", string(st)}, kv...)...)
}

// LogTeardown records the Terminating->Gone transition for a container
// whose removal has already run. The teardown side effects themselves
// (SIGTERM, unlinking on-disk state) live in registry.Remove/FuzzyRemove;
// callers there report the transition through the Supervisor so it stays
// part of the one state machine defined in state.go.
func (s *Supervisor) LogTeardown(ctx context.Context, id string) {
	ctx, span := s.Tracer.Start(ctx, "supervisor.Teardown")
	defer span.End()
	s.transition(ctx, span, id, Terminating)
	s.transition(ctx, span, id, Gone)
}

func alpineVersionArch(m *squishfile.Manifest) (version, arch string) {
	version = "3.14"
	if layer, ok := m.Layers[squishfile.AlpineLayer]; ok && layer.Version != "" {
		version = layer.Version
	}
	arch = runtime.GOARCH
	if arch == "amd64" {
		arch = "x86_64"
	} else if arch == "arm64" {
		arch = "aarch64"
	}
	return version, arch
}

// precheckPorts attempts to bind a throwaway listener on every requested
// host port; prechecks are intentionally racy across concurrent spawns —
// the kernel bind decides the winner.
func (s *Supervisor) precheckPorts(ctx context.Context, ports []squishfile.PortSpec) error {
	_, span := s.Tracer.Start(ctx, "precheck_ports")
	defer span.End()
	for _, p := range ports {
		l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", p.Host))
		if err != nil {
			return &PortInUse{Port: p.Host}
		}
		l.Close()
	}
	return nil
}

// launchExecutor spawns the bootstrap binary as a plain host-namespace
// process and parses the guest PID off its original stdout before it gets
// redirected away in the executor's own step 2.
//
// The binary itself performs the actual namespace clone as a nested
// self-reexec (cmd/squish-pid1's runLauncher/runGuest split): a process
// already inside CLONE_NEWPID always sees its own pid as 1, so the
// supervisor cannot learn the guest's host-visible pid by asking the
// namespaced process to report its own os.Getpid() — that value is 1 for
// every container, not a usable identity. The launcher half stays outside
// the new namespaces and observes the clone's pid directly, the same
// two-hop split original_source/pid1/src/main.rs uses.
func (s *Supervisor) launchExecutor(ctx context.Context, rootfs, id, workDir string, memfd *os.File) (int, error) {
	_, span := s.Tracer.Start(ctx, "launch_executor")
	defer span.End()

	cmd := exec.CommandContext(ctx, s.Pid1Binary, rootfs, id, workDir, "3")
	cmd.ExtraFiles = []*os.File{memfd}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("supervisor: executor stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return 0, fmt.Errorf("supervisor: executor stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return 0, &ExecutorFailed{Stderr: err.Error()}
	}
	go func() { _ = cmd.Wait() }()

	reader := bufio.NewReader(stdout)
	line, readErr := reader.ReadString('\n')
	go drain(stdout)

	if readErr != nil && line == "" {
		return 0, &ExecutorFailed{Stderr: diagnosticText(stderr, workDir)}
	}
	guestPID, convErr := strconv.Atoi(strings.TrimSpace(line))
	if convErr != nil {
		return 0, &ExecutorFailed{Stderr: diagnosticText(stderr, workDir)}
	}
	return guestPID, nil
}

// diagnosticText collects whatever the executor wrote to its
// pre-redirect stderr pipe, falling back to the on-disk stderr.log the
// executor's own step 2 creates once it has gotten that far.
func diagnosticText(stderr interface{ Read([]byte) (int, error) }, workDir string) string {
	buf := make([]byte, 4096)
	n, _ := stderr.Read(buf)
	if n > 0 {
		return string(buf[:n])
	}
	if data, err := os.ReadFile(filepath.Join(workDir, "stderr.log")); err == nil {
		return string(data)
	}
	return "executor exited without a parseable guest pid"
}

func drain(r interface{ Read([]byte) (int, error) }) {
	buf := make([]byte, 4096)
	for {
		_, err := r.Read(buf)
		if err != nil {
			return
		}
	}
}

// programPortForwards dispatches one goroutine per port under an errgroup
// so independent forwards don't serialize behind a slow reply, returning
// the full per-port success/failure list.
func (s *Supervisor) programPortForwards(ctx context.Context, socketPath string, ports []squishfile.PortSpec) error {
	_, span := s.Tracer.Start(ctx, "port_forwards")
	defer span.End()
	if len(ports) == 0 {
		return nil
	}

	results := make([]PortForward, len(ports))
	g, _ := errgroup.WithContext(ctx)
	for i, p := range ports {
		i, p := i, p
		g.Go(func() error {
			err := addHostFwd(socketPath, p)
			results[i] = PortForward{Host: p.Host, Container: p.Container, Protocol: string(p.Protocol), Err: err}
			return nil // collect per-port errors in results, don't abort siblings
		})
	}
	_ = g.Wait()

	var applied, rejected []PortForward
	for _, r := range results {
		if r.Err != nil {
			rejected = append(rejected, r)
		} else {
			applied = append(applied, r)
		}
	}
	if len(rejected) > 0 {
		return &PortForwardRejected{Applied: applied, Rejected: rejected}
	}
	return nil
}

// teardownProcs best-effort SIGTERMs whichever of pid/auxPID are set,
// ignoring errors — the process may already be gone.
func teardownProcs(pid, auxPID int) {
	for _, p := range []int{pid, auxPID} {
		if p <= 0 {
			continue
		}
		proc, err := os.FindProcess(p)
		if err != nil {
			continue
		}
		if err := proc.Signal(unix.SIGTERM); err != nil {
			slog.Debug("supervisor: teardown signal failed", "pid", p, "error", err)
		}
	}
}
