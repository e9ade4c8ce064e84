package options

import (
	"reflect"
	"testing"
)

func TestSlirp4netnsToArgs(t *testing.T) {
	opts := Slirp4netns{
		Configure:           true,
		MTU:                 65520,
		DisableHostLoopback: true,
		APISocket:           "/tmp/slirp4netns-abc.sock",
	}
	got := ToArgs(&opts)
	want := []string{
		"--configure",
		"--mtu=65520",
		"--disable-host-loopback",
		"--api-socket", "/tmp/slirp4netns-abc.sock",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ToArgs(%+v) = %v, want %v", opts, got, want)
	}
}

func TestSlirp4netnsPositional(t *testing.T) {
	got := Slirp4netnsPositional(4242, "tap0")
	want := []string{"4242", "tap0"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Slirp4netnsPositional = %v, want %v", got, want)
	}
}
