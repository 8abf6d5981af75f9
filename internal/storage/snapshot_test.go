package storage

import (
	"os"
	"testing"
)

type state struct {
	Names map[string]string `json:"names"`
}

func TestSnapshotSaveLoad(t *testing.T) {
	dir := t.TempDir()
	snap, err := NewSnapshot(dir, "state.json")
	if err != nil {
		t.Fatal(err)
	}

	var empty state
	ok, err := snap.Load(&empty)
	if err != nil || ok {
		t.Fatalf("missing file: ok=%v err=%v", ok, err)
	}

	if err := snap.Save(state{Names: map[string]string{"a": "Alpha"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(snap.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temporary file left behind")
	}

	var got state
	ok, err = snap.Load(&got)
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if got.Names["a"] != "Alpha" {
		t.Fatalf("unexpected state %+v", got)
	}
}
