package supervisor

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os/exec"
	"time"

	"github.com/queer/squish/options"
	"github.com/queer/squish/squishfile"
)

// launchHelper starts slirp4netns against guestPID, writing its control
// socket at socketPath. Standard streams are discarded per spec.md §4.D
// step 5; its PID becomes the container's aux_pid.
func launchHelper(slirpBinary, socketPath string, guestPID int) (*exec.Cmd, error) {
	opts := options.Slirp4netns{
		Configure:           true,
		MTU:                 65520,
		DisableHostLoopback: true,
		APISocket:           socketPath,
	}
	args := options.ToArgs(&opts)
	args = append(args, options.Slirp4netnsPositional(guestPID, "tap0")...)

	cmd := exec.Command(slirpBinary, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start slirp4netns: %w", err)
	}
	return cmd, nil
}

// dialHelperWithRetry repeatedly attempts to connect to the helper's
// control socket, up to maxAttempts times with a 1ms pause between
// attempts, per spec.md §4.D step 6.
func dialHelperWithRetry(socketPath string, maxAttempts int) error {
	for i := 0; i < maxAttempts; i++ {
		conn, err := net.Dial("unix", socketPath)
		if err == nil {
			conn.Close()
			return nil
		}
		time.Sleep(time.Millisecond)
	}
	return &HelperUnreachable{Attempts: maxAttempts}
}

// addHostFwdCommand is the JSON payload for one port-forward request.
type addHostFwdCommand struct {
	Execute   string            `json:"execute"`
	Arguments addHostFwdPayload `json:"arguments"`
}

type addHostFwdPayload struct {
	Proto     string `json:"proto"`
	HostIP    string `json:"host_ip"`
	HostPort  uint16 `json:"host_port"`
	GuestPort uint16 `json:"guest_port"`
}

// addHostFwd performs one connect/write/read/close round trip against the
// helper's control socket, per spec.md §6's one-request-per-connection
// protocol.
func addHostFwd(socketPath string, port squishfile.PortSpec) error {
	cmd := addHostFwdCommand{
		Execute: "add_hostfwd",
		Arguments: addHostFwdPayload{
			Proto:     string(port.Protocol),
			HostIP:    "127.0.0.1",
			HostPort:  port.Host,
			GuestPort: port.Container,
		},
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal add_hostfwd: %w", err)
	}

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("dial helper socket: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("write add_hostfwd: %w", err)
	}
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		cw.CloseWrite()
	}

	reply, err := io.ReadAll(conn)
	if err != nil {
		return fmt.Errorf("read add_hostfwd reply: %w", err)
	}
	var result map[string]any
	if err := json.Unmarshal(reply, &result); err != nil {
		return fmt.Errorf("decode add_hostfwd reply %q: %w", reply, err)
	}
	if ok, present := result["return"]; present {
		if m, isMap := ok.(map[string]any); isMap {
			if errVal, hasErr := m["error"]; hasErr {
				return fmt.Errorf("add_hostfwd rejected: %v", errVal)
			}
		}
	}
	return nil
}
