// Package squishfile implements the manifest model: the typed, in-memory
// representation of a container spec plus its TOML/JSON interchange and
// path-resolution rule.
package squishfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ParseError reports a manifest that failed to parse or type-check, naming
// the offending key.
type ParseError struct {
	Key string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("squishfile: %s: %v", e.Key, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Protocol is a port-forward transport protocol.
type Protocol string

const (
	TCP Protocol = "tcp"
	UDP Protocol = "udp"
)

// Run describes the command executed inside the container once the
// bootstrap stage has chrooted into the assembled rootfs.
type Run struct {
	Command string   `toml:"command" json:"command"`
	Args    []string `toml:"args" json:"args"`
}

// LayerSpec describes one named filesystem contribution mounted into the
// container's root. At least one of Version or Path must be set.
type LayerSpec struct {
	Version string `toml:"version,omitempty" json:"version,omitempty"`
	Path    string `toml:"path,omitempty" json:"path,omitempty"`
	Target  string `toml:"target,omitempty" json:"target,omitempty"`
	RW      bool   `toml:"rw,omitempty" json:"rw,omitempty"`
}

// PortSpec describes one host-to-container port forward.
type PortSpec struct {
	Host      uint16   `toml:"host" json:"host"`
	Container uint16   `toml:"container" json:"container"`
	Protocol  Protocol `toml:"protocol" json:"protocol"`
}

// Manifest is the parsed, validated squishfile.
type Manifest struct {
	Run    Run                  `toml:"run" json:"run"`
	Layers map[string]LayerSpec `toml:"layers" json:"layers"`
	Env    map[string]string    `toml:"env" json:"env"`
	Ports  []PortSpec           `toml:"ports" json:"ports"`
}

// AlpineLayer is the reserved layer name handled by the base-image fetcher
// rather than the executor's mount loop.
const AlpineLayer = "alpine"

// AppLayer is the reserved layer name whose default target is derived from
// the basename of its source path rather than /sdk/<name>.
const AppLayer = "app"

// Parse decodes TOML text into a validated Manifest.
func Parse(text []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(text, &m); err != nil {
		return nil, &ParseError{Key: tomlErrorKey(err), Err: err}
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// tomlErrorKey best-efforts a key name out of a go-toml decode error so
// ParseError always names something, even when the library doesn't expose
// structured position info for a given failure.
func tomlErrorKey(err error) string {
	var derr *toml.DecodeError
	if ok := asDecodeError(err, &derr); ok {
		return fmt.Sprintf("line %d, col %d", derr.Position().Line, derr.Position().Col)
	}
	return "<manifest>"
}

func asDecodeError(err error, target **toml.DecodeError) bool {
	de, ok := err.(*toml.DecodeError)
	if !ok {
		return false
	}
	*target = de
	return true
}

func (m *Manifest) validate() error {
	for name, layer := range m.Layers {
		if name == AlpineLayer {
			continue
		}
		if layer.Version == "" && layer.Path == "" {
			return &ParseError{Key: "layers." + name, Err: fmt.Errorf("must set version or path")}
		}
	}
	for i, p := range m.Ports {
		if p.Protocol != TCP && p.Protocol != UDP {
			return &ParseError{Key: fmt.Sprintf("ports[%d].protocol", i), Err: fmt.Errorf("must be tcp or udp, got %q", p.Protocol)}
		}
	}
	return nil
}

// ToJSON serializes a Manifest for IPC across the control socket.
func ToJSON(m *Manifest) (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("squishfile: marshal manifest: %w", err)
	}
	return string(b), nil
}

// FromJSON is the inverse of ToJSON.
func FromJSON(text string) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return nil, &ParseError{Key: "<json>", Err: err}
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// ResolvePaths canonicalizes every relative layer Path against baseCWD and
// returns a new Manifest with only absolute paths. Per spec, a layer path
// that does not exist is a caller error and this function surfaces it
// immediately, by panicking, rather than deferring to the daemon.
func ResolvePaths(m *Manifest, baseCWD string) (*Manifest, error) {
	out := *m
	out.Layers = make(map[string]LayerSpec, len(m.Layers))
	for name, layer := range m.Layers {
		if layer.Path != "" && (strings.HasPrefix(layer.Path, "./") || strings.HasPrefix(layer.Path, "../")) {
			abs := filepath.Join(baseCWD, layer.Path)
			resolved, err := filepath.Abs(abs)
			if err != nil {
				return nil, fmt.Errorf("squishfile: resolve layer %q path: %w", name, err)
			}
			if _, err := os.Stat(resolved); err != nil {
				panic(fmt.Sprintf("squishfile: layer %q path %q does not exist: %v", name, resolved, err))
			}
			layer.Path = resolved
		}
		out.Layers[name] = layer
	}
	return &out, nil
}

// LayerTarget computes the in-container mount target for a named layer per
// the defaulting rule in spec.md §3.
func LayerTarget(name string, layer LayerSpec) string {
	if layer.Target != "" {
		return layer.Target
	}
	if name == AppLayer && layer.Path != "" {
		return "/app/" + filepath.Base(layer.Path)
	}
	return "/sdk/" + name
}

// SortedLayerNames returns layer names in a deterministic order (the
// squishfile's TOML table and the JSON object it round-trips through don't
// preserve insertion order in Go, so mount-building iterates sorted keys
// instead of a map range).
func SortedLayerNames(m *Manifest) []string {
	names := make([]string, 0, len(m.Layers))
	for name := range m.Layers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
