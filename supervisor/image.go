package supervisor

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
	"golang.org/x/sync/singleflight"
)

// ImageFetcher implements the EnsureBaseImage collaborator spec.md §1
// names as external: it pulls the alpine base rootfs from an OCI registry
// via go-containerregistry, caches both the tarball and the extracted
// rootfs on disk, and collapses concurrent callers for the same
// (version, arch) tuple onto a single fetch.
type ImageFetcher struct {
	cacheDir string
	group    singleflight.Group
}

// NewImageFetcher roots the image cache at cacheDir/alpine/rootfs, per the
// on-disk layout in spec.md §6.
func NewImageFetcher(cacheDir string) *ImageFetcher {
	return &ImageFetcher{cacheDir: cacheDir}
}

// EnsureBaseImage returns the extracted rootfs directory for the given
// alpine version and architecture, fetching and extracting it first if
// necessary.
func (f *ImageFetcher) EnsureBaseImage(ctx context.Context, version, arch string) (string, error) {
	key := version + "/" + arch
	v, err, _ := f.group.Do(key, func() (any, error) {
		return f.fetch(ctx, version, arch)
	})
	if err != nil {
		return "", &ImageUnavailable{Version: version, Arch: arch, Err: err}
	}
	return v.(string), nil
}

func (f *ImageFetcher) rootfsDir(version, arch string) string {
	return filepath.Join(f.cacheDir, "alpine", "rootfs", fmt.Sprintf("alpine-rootfs-%s-%s", version, arch))
}

func (f *ImageFetcher) tarballPath(version, arch string) string {
	return filepath.Join(f.cacheDir, "alpine", "rootfs", fmt.Sprintf("alpine-rootfs-%s-%s.tar.gz", version, arch))
}

func (f *ImageFetcher) fetch(ctx context.Context, version, arch string) (string, error) {
	rootfs := f.rootfsDir(version, arch)
	if info, err := os.Stat(rootfs); err == nil && info.IsDir() {
		return rootfs, nil
	}

	tarPath := f.tarballPath(version, arch)
	if err := os.MkdirAll(filepath.Dir(tarPath), 0o755); err != nil {
		return "", fmt.Errorf("mkdir cache dir: %w", err)
	}

	ref, err := name.ParseReference(fmt.Sprintf("docker.io/library/alpine:%s", version))
	if err != nil {
		return "", fmt.Errorf("parse alpine:%s reference: %w", version, err)
	}
	img, err := remote.Image(ref,
		remote.WithContext(ctx),
		remote.WithPlatform(v1.Platform{OS: "linux", Architecture: arch}),
	)
	if err != nil {
		return "", fmt.Errorf("pull alpine:%s (%s): %w", version, arch, err)
	}

	if err := tarball.WriteToFile(tarPath, ref, img); err != nil {
		return "", fmt.Errorf("cache tarball %s: %w", tarPath, err)
	}

	if err := extractImage(img, rootfs); err != nil {
		os.RemoveAll(rootfs)
		return "", fmt.Errorf("extract alpine:%s rootfs: %w", version, err)
	}
	slog.Info("supervisor: fetched base image", "version", version, "arch", arch, "rootfs", rootfs)
	return rootfs, nil
}

// extractImage unpacks every layer of img onto disk at dir, in order,
// later layers overwriting earlier ones (standard OCI layer semantics,
// whiteout files aside — alpine's single-layer image never exercises
// that path).
func extractImage(img v1.Image, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	layers, err := img.Layers()
	if err != nil {
		return fmt.Errorf("list layers: %w", err)
	}
	for _, layer := range layers {
		rc, err := layer.Uncompressed()
		if err != nil {
			return fmt.Errorf("open layer: %w", err)
		}
		err = extractTar(rc, dir)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func extractTar(r io.Reader, dir string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}
		target := filepath.Join(dir, hdr.Name)
		if target != dir && !strings.HasPrefix(target, dir+string(filepath.Separator)) {
			return fmt.Errorf("tar entry %q escapes extraction dir", hdr.Name)
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			_, err = io.Copy(out, tr)
			out.Close()
			if err != nil {
				return err
			}
		case tar.TypeSymlink:
			os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		default:
			// hardlinks, char/block devices etc. are not present in the
			// alpine base image; skip anything unexpected rather than fail.
			slog.Debug("supervisor: skipping unsupported tar entry", "name", hdr.Name, "type", hdr.Typeflag)
		}
	}
}
