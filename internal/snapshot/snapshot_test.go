package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/chrissnell/remotesensing/internal/sceneclass"
	"github.com/chrissnell/remotesensing/internal/types"
)

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := Path(dir, "T32TMR")
	s := New("T32TMR")
	s.Zenith = 41.2
	s.Thresh = sceneclass.DefaultThresholds()
	s.Files["B02"] = "/data/B02.jp2"
	s.MarkDone(types.R20)
	s.MarkDone(types.R20)
	if err := Save(path, s); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Done(types.R20) || got.Done(types.R10) || got.Processed != 1 {
		t.Errorf("completed = %v, processed = %d", got.Completed, got.Processed)
	}
	if got.Thresh != s.Thresh || got.Files["B02"] != "/data/B02.jp2" || got.Zenith != 41.2 {
		t.Errorf("loaded %+v", got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}

	if err := Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := Remove(path); err != nil {
		t.Errorf("removing a missing snapshot: %v", err)
	}
}

func TestLoadUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.snapshot")
	data, err := msgpack.Marshal(&Snapshot{Version: 99, Tile: "T01AAA"})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrVersion) {
		t.Errorf("err = %v, want ErrVersion", err)
	}
}
