// Package executor implements the bootstrap stage: the short-lived program
// that runs inside freshly cloned Linux namespaces, assembles the guest
// root filesystem from bind mounts, and execs the declared command. It is
// the "pid1" half of the daemon's spawn handoff (spec.md §4.C).
package executor

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/queer/squish/squishfile"
)

// Args are the inputs delivered to the bootstrap stage via argv: the base
// rootfs path, the container id, its on-disk work directory, and the
// numeric descriptor of the inherited manifest buffer.
type Args struct {
	RootfsPath  string
	ContainerID string
	WorkDir     string
	ManifestFD  int
}

const (
	bindMountFlags = unix.MS_BIND
	rdonlyRemount  = unix.MS_BIND | unix.MS_REMOUNT | unix.MS_RDONLY | unix.MS_NOATIME | unix.MS_NOSUID
	rwRemount      = unix.MS_BIND | unix.MS_REMOUNT | unix.MS_NOATIME | unix.MS_NOSUID
	devNodes       = "dev"
)

var devNodeNames = []string{"null", "zero", "random", "urandom"}

// Run executes the ordered bootstrap steps 1-8 from spec.md §4.C. On
// success it never returns: step 8 execs the declared command, replacing
// this process image. On failure it returns a non-nil error describing
// which step failed; the caller (cmd/squish-pid1) turns that into exit
// code 1 and the error text on stderr.
func Run(a Args) error {
	manifest, err := readManifest(a.ManifestFD)
	if err != nil {
		return fmt.Errorf("executor: read manifest: %w", err)
	}

	rootfs := filepath.Join(a.WorkDir, "rootfs")

	// Step 1: create <work>/rootfs on the host view.
	if err := os.MkdirAll(rootfs, 0o755); err != nil {
		return fmt.Errorf("executor: step1 mkdir rootfs: %w", err)
	}

	// Step 2: redirect fd 1 and 2 to stdout.log/stderr.log, exclusive-create.
	if err := redirectStdio(a.WorkDir); err != nil {
		return fmt.Errorf("executor: step2 redirect stdio: %w", err)
	}

	// Step 3: bind-mount the base rootfs read-only.
	if err := bindMountReadOnly(a.RootfsPath, rootfs); err != nil {
		return fmt.Errorf("executor: step3 mount base rootfs: %w", err)
	}

	// Step 4: bind-mount the character devices.
	if err := mountDevNodes(rootfs); err != nil {
		return fmt.Errorf("executor: step4 mount dev nodes: %w", err)
	}

	// Step 5: create and bind-mount <work>/tmp, writable.
	if err := mountTmp(a.WorkDir, rootfs); err != nil {
		return fmt.Errorf("executor: step5 mount tmp: %w", err)
	}

	// Step 6: mount every manifest layer other than alpine.
	if err := mountLayers(manifest, rootfs); err != nil {
		return fmt.Errorf("executor: step6 mount layers: %w", err)
	}

	// Step 7: chroot and chdir.
	if err := unix.Chroot(rootfs); err != nil {
		return fmt.Errorf("executor: step7 chroot: %w", err)
	}
	if err := unix.Chdir("/"); err != nil {
		return fmt.Errorf("executor: step7 chdir: %w", err)
	}

	// Step 8: exec the declared command. On success this never returns.
	return execCommand(manifest)
}

func readManifest(fd int) (*squishfile.Manifest, error) {
	f := os.NewFile(uintptr(fd), "squishfile-manifest")
	defer f.Close()
	if _, err := f.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("seek manifest fd: %w", err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read manifest fd: %w", err)
	}
	return squishfile.FromJSON(string(data))
}

func redirectStdio(workDir string) error {
	stdoutPath := filepath.Join(workDir, "stdout.log")
	stderrPath := filepath.Join(workDir, "stderr.log")

	outFile, err := os.OpenFile(stdoutPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", stdoutPath, err)
	}
	defer outFile.Close()
	if err := unix.Dup2(int(outFile.Fd()), 1); err != nil {
		return fmt.Errorf("dup2 stdout: %w", err)
	}

	errFile, err := os.OpenFile(stderrPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", stderrPath, err)
	}
	defer errFile.Close()
	if err := unix.Dup2(int(errFile.Fd()), 2); err != nil {
		return fmt.Errorf("dup2 stderr: %w", err)
	}
	return nil
}

func bindMountReadOnly(src, dst string) error {
	if err := unix.Mount(src, dst, "", bindMountFlags, ""); err != nil {
		return fmt.Errorf("bind %s -> %s: %w", src, dst, err)
	}
	if err := unix.Mount("", dst, "", rdonlyRemount, ""); err != nil {
		return fmt.Errorf("remount ro %s: %w", dst, err)
	}
	return nil
}

func mountDevNodes(rootfs string) error {
	destDir := filepath.Join(rootfs, devNodes)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", destDir, err)
	}
	for _, name := range devNodeNames {
		src := filepath.Join("/dev", name)
		dst := filepath.Join(destDir, name)
		if f, err := os.OpenFile(dst, os.O_CREATE, 0o666); err == nil {
			f.Close()
		}
		if err := unix.Mount(src, dst, "", bindMountFlags, ""); err != nil {
			return fmt.Errorf("bind %s -> %s: %w", src, dst, err)
		}
	}
	return nil
}

func mountTmp(workDir, rootfs string) error {
	hostTmp := filepath.Join(workDir, "tmp")
	if err := os.MkdirAll(hostTmp, 0o1777); err != nil {
		return fmt.Errorf("mkdir %s: %w", hostTmp, err)
	}
	guestTmp := filepath.Join(rootfs, "tmp")
	if err := os.MkdirAll(guestTmp, 0o1777); err != nil {
		return fmt.Errorf("mkdir %s: %w", guestTmp, err)
	}
	if err := unix.Mount(hostTmp, guestTmp, "", bindMountFlags, ""); err != nil {
		return fmt.Errorf("bind %s -> %s: %w", hostTmp, guestTmp, err)
	}
	if err := unix.Mount("", guestTmp, "", rwRemount, ""); err != nil {
		return fmt.Errorf("remount %s: %w", guestTmp, err)
	}
	return nil
}

func mountLayers(m *squishfile.Manifest, rootfs string) error {
	for _, name := range squishfile.SortedLayerNames(m) {
		if name == squishfile.AlpineLayer {
			continue
		}
		layer := m.Layers[name]
		if layer.Path == "" {
			// version-only layer with no source path (e.g. an SDK pulled
			// by a collaborator outside this loop) has nothing to mount.
			continue
		}
		if _, err := os.Stat(layer.Path); err != nil {
			slog.Warn("executor: layer source missing, skipping", "layer", name, "path", layer.Path)
			continue
		}
		target := filepath.Join(rootfs, squishfile.LayerTarget(name, layer))
		if err := prepareMountPoint(layer.Path, target); err != nil {
			return fmt.Errorf("layer %s: %w", name, err)
		}
		if err := unix.Mount(layer.Path, target, "", bindMountFlags, ""); err != nil {
			return fmt.Errorf("layer %s: bind %s -> %s: %w", name, layer.Path, target, err)
		}
		if !layer.RW {
			if err := unix.Mount("", target, "", rdonlyRemount, ""); err != nil {
				return fmt.Errorf("layer %s: remount ro %s: %w", name, target, err)
			}
		} else {
			if err := unix.Mount("", target, "", rwRemount, ""); err != nil {
				return fmt.Errorf("layer %s: remount %s: %w", name, target, err)
			}
		}
	}
	return nil
}

// prepareMountPoint ensures dst exists and matches src's type (file or
// directory) so the bind mount has a valid target.
func prepareMountPoint(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	if info.IsDir() {
		return os.MkdirAll(dst, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(dst, os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("create mount point %s: %w", dst, err)
	}
	return f.Close()
}

func execCommand(m *squishfile.Manifest) error {
	argv := append([]string{m.Run.Command}, m.Run.Args...)
	env := make([]string, 0, len(m.Env))
	for k, v := range m.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	if err := unix.Exec(m.Run.Command, argv, env); err != nil {
		return fmt.Errorf("exec %s: %w", m.Run.Command, err)
	}
	return nil // unreachable on success
}
