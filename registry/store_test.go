package registry

import (
	"path/filepath"
	"testing"
)

func TestStoreInsertDeleteReconcile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "squish.db")
	store, err := OpenStore(dbPath)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()

	live := Container{ID: "live1111", Name: "swift-otter-1", PID: 111, AuxPID: 222, CreatedAt: 1000}
	dead := Container{ID: "dead2222", Name: "quiet-lynx-2", PID: 999999, AuxPID: 0, CreatedAt: 2000}

	if err := store.Insert(live); err != nil {
		t.Fatalf("Insert(live): %v", err)
	}
	if err := store.Insert(dead); err != nil {
		t.Fatalf("Insert(dead): %v", err)
	}

	alive := func(pid int) bool { return pid == live.PID }
	survivors, err := store.Reconcile(alive)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(survivors) != 1 || survivors[0].ID != live.ID {
		t.Fatalf("survivors = %+v, want only %q", survivors, live.ID)
	}

	if err := store.Delete(live.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	survivors, err = store.Reconcile(alive)
	if err != nil {
		t.Fatalf("Reconcile after delete: %v", err)
	}
	if len(survivors) != 0 {
		t.Fatalf("survivors after delete = %+v, want none", survivors)
	}
}
