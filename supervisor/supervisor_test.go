package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"testing"

	"go.opentelemetry.io/otel"

	"github.com/queer/squish/squishfile"
)

func TestAlpineVersionArchDefaults(t *testing.T) {
	m := &squishfile.Manifest{Layers: map[string]squishfile.LayerSpec{}}
	version, arch := alpineVersionArch(m)
	if version != "3.14" {
		t.Errorf("version = %q, want 3.14", version)
	}
	if arch == "" {
		t.Errorf("arch should not be empty")
	}
}

func TestAlpineVersionArchHonorsManifest(t *testing.T) {
	m := &squishfile.Manifest{Layers: map[string]squishfile.LayerSpec{
		squishfile.AlpineLayer: {Version: "3.18"},
	}}
	version, _ := alpineVersionArch(m)
	if version != "3.18" {
		t.Errorf("version = %q, want 3.18", version)
	}
}

func TestPrecheckPortsDetectsInUse(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l.Close()
	port := uint16(l.Addr().(*net.TCPAddr).Port)

	s := &Supervisor{Tracer: otel.Tracer("test")}
	err = s.precheckPorts(context.Background(), []squishfile.PortSpec{{Host: port, Container: 80, Protocol: squishfile.TCP}})
	var inUse *PortInUse
	if !errors.As(err, &inUse) {
		t.Fatalf("err = %v, want *PortInUse", err)
	}
	if inUse.Port != port {
		t.Errorf("PortInUse.Port = %d, want %d", inUse.Port, port)
	}
}

func TestPrecheckPortsOKWhenFree(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	port := uint16(l.Addr().(*net.TCPAddr).Port)
	l.Close()

	s := &Supervisor{Tracer: otel.Tracer("test")}
	if err := s.precheckPorts(context.Background(), []squishfile.PortSpec{{Host: port, Container: 80, Protocol: squishfile.TCP}}); err != nil {
		t.Fatalf("precheckPorts: %v", err)
	}
}

// fakeHelper serves one add_hostfwd reply per connection, accepting or
// rejecting based on the requested host port.
func fakeHelper(t *testing.T, socketPath string, rejectPort uint16) func() {
	t.Helper()
	l, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("Listen unix: %v", err)
	}
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				var cmd addHostFwdCommand
				dec := json.NewDecoder(conn)
				if err := dec.Decode(&cmd); err != nil {
					return
				}
				if cmd.Arguments.HostPort == rejectPort {
					conn.Write([]byte(`{"return":{"error":"port busy"}}`))
					return
				}
				conn.Write([]byte(`{"return":{}}`))
			}()
		}
	}()
	return func() { l.Close() }
}

func TestProgramPortForwardsPartialRejection(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "slirp.sock")
	stop := fakeHelper(t, socketPath, 9999)
	defer stop()

	s := &Supervisor{Tracer: otel.Tracer("test")}
	ports := []squishfile.PortSpec{
		{Host: 8080, Container: 80, Protocol: squishfile.TCP},
		{Host: 9999, Container: 81, Protocol: squishfile.TCP},
	}
	err := s.programPortForwards(context.Background(), socketPath, ports)
	var rejected *PortForwardRejected
	if !errors.As(err, &rejected) {
		t.Fatalf("err = %v, want *PortForwardRejected", err)
	}
	if len(rejected.Applied) != 1 || len(rejected.Rejected) != 1 {
		t.Fatalf("rejected = %+v", rejected)
	}
}

func TestProgramPortForwardsAllSucceed(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "slirp.sock")
	stop := fakeHelper(t, socketPath, 0)
	defer stop()

	s := &Supervisor{Tracer: otel.Tracer("test")}
	ports := []squishfile.PortSpec{{Host: 8080, Container: 80, Protocol: squishfile.TCP}}
	if err := s.programPortForwards(context.Background(), socketPath, ports); err != nil {
		t.Fatalf("programPortForwards: %v", err)
	}
}

func TestDialHelperWithRetrySucceedsOnceListening(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "slirp.sock")
	l, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l.Close()
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	if err := dialHelperWithRetry(socketPath, 10); err != nil {
		t.Fatalf("dialHelperWithRetry: %v", err)
	}
}

func TestDialHelperWithRetryFailsWhenAbsent(t *testing.T) {
	err := dialHelperWithRetry(filepath.Join(t.TempDir(), "nope.sock"), 3)
	var unreachable *HelperUnreachable
	if !errors.As(err, &unreachable) {
		t.Fatalf("err = %v, want *HelperUnreachable", err)
	}
	if unreachable.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", unreachable.Attempts)
	}
}
