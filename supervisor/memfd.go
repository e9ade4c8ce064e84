package supervisor

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// writeManifestMemfd creates an anonymous in-memory file, writes data into
// it, clears close-on-exec on its descriptor, and seeks back to the
// start, per spec.md §4.D step 3 and §5's FD-inheritance requirement.
// Close-on-exec must be cleared on this descriptor and only this one
// before the executor is spawned.
func writeManifestMemfd(name string, data []byte) (*os.File, error) {
	fd, err := unix.MemfdCreate(name, 0)
	if err != nil {
		return nil, fmt.Errorf("memfd_create: %w", err)
	}
	f := os.NewFile(uintptr(fd), name)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, fmt.Errorf("write manifest memfd: %w", err)
	}

	flags, err := unix.FcntlInt(f.Fd(), unix.F_GETFD, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("fcntl getfd: %w", err)
	}
	if _, err := unix.FcntlInt(f.Fd(), unix.F_SETFD, flags &^ unix.FD_CLOEXEC); err != nil {
		f.Close()
		return nil, fmt.Errorf("fcntl clear cloexec: %w", err)
	}

	if _, err := f.Seek(0, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("seek manifest memfd: %w", err)
	}
	return f, nil
}
