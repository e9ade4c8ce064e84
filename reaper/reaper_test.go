package reaper

import (
	"testing"
)

type fakeRegistry struct {
	pids    map[int]string
	removed []string
	failOn  string
}

func (f *fakeRegistry) Snapshot() map[int]string {
	out := make(map[int]string, len(f.pids))
	for k, v := range f.pids {
		out[k] = v
	}
	return out
}

func (f *fakeRegistry) Remove(id string) error {
	if id == f.failOn {
		return errTest
	}
	f.removed = append(f.removed, id)
	return nil
}

var errTest = errorString("boom")

type errorString string

func (e errorString) Error() string { return string(e) }

func TestSweepRemovesOnlyDeadPIDs(t *testing.T) {
	reg := &fakeRegistry{pids: map[int]string{
		1: "alive-id",
		2: "dead-id",
	}}
	exists := func(pid int) bool { return pid == 1 }
	r := New(reg, exists)
	r.Sweep()

	if len(reg.removed) != 1 || reg.removed[0] != "dead-id" {
		t.Fatalf("removed = %v, want [dead-id]", reg.removed)
	}
}

func TestSweepContinuesPastRemovalError(t *testing.T) {
	reg := &fakeRegistry{
		pids: map[int]string{
			2: "dead-id-1",
			3: "dead-id-2",
		},
		failOn: "dead-id-1",
	}
	exists := func(pid int) bool { return false }
	r := New(reg, exists)
	r.Sweep()

	if len(reg.removed) != 1 || reg.removed[0] != "dead-id-2" {
		t.Fatalf("removed = %v, want [dead-id-2]", reg.removed)
	}
}

func TestSweepNoOpWhenAllAlive(t *testing.T) {
	reg := &fakeRegistry{pids: map[int]string{1: "a", 2: "b"}}
	r := New(reg, func(int) bool { return true })
	r.Sweep()
	if len(reg.removed) != 0 {
		t.Fatalf("removed = %v, want none", reg.removed)
	}
}
