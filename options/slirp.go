package options

import "strconv"

// Slirp4netns are the flags passed to the slirp4netns userspace-network
// helper when the Supervisor brings up networking for a new container
// (spec.md §4.D step 5). ToArgs turns it into the helper's argv.
type Slirp4netns struct {
	// Configure has slirp4netns assign the guest's tap interface an
	// address and default route itself.
	Configure bool `flag:"--configure"`
	// MTU is the tap device MTU. slirp4netns wants this as a single
	// --mtu=N token, not a separate value argument.
	MTU int `flag:"--mtu,join"`
	// DisableHostLoopback blocks the guest from reaching the host's
	// loopback interface.
	DisableHostLoopback bool `flag:"--disable-host-loopback"`
	// APISocket is the path to the control socket the Supervisor later
	// dials to program port forwards.
	APISocket string `flag:"--api-socket"`
}

// Slirp4netnsPositional returns the two positional arguments slirp4netns
// expects after its flags: the guest's PID-namespace-visible PID and the
// tap device name inside it.
func Slirp4netnsPositional(guestPID int, tapDevice string) []string {
	return []string{strconv.Itoa(guestPID), tapDevice}
}
