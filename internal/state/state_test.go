package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "state.json"), nil)

	_, ok, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected no snapshot for missing file")
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewStore(path, nil)

	s.Save(Snapshot{Address: "0xabc", ChainID: 11155111, SellSymbol: "VOV", BuySymbol: "LID"})
	s.Flush()

	got, ok, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("snapshot not found after save")
	}
	if got.Address != "0xabc" || got.ChainID != 11155111 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if got.UpdatedAt == "" {
		t.Fatal("updated_at not set")
	}
}

func TestDebouncedSaveWritesLastValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewStore(path, nil)
	s.debounce.Stop()

	s.Save(Snapshot{PayAmount: "1"})
	s.Save(Snapshot{PayAmount: "2"})
	s.Save(Snapshot{PayAmount: "3"})
	s.Flush()

	got, ok, err := s.Load()
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.PayAmount != "3" {
		t.Fatalf("pay amount = %s, want 3", got.PayAmount)
	}
}

func TestFlushWithoutSaveKeepsExistingSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	first := NewStore(path, nil)
	first.Save(Snapshot{SellSymbol: "VOV", BuySymbol: "LID", PayAmount: "10"})
	first.Flush()

	// A later session that never changes state must not write on shutdown.
	second := NewStore(path, nil)
	second.Flush()

	got, ok, err := second.Load()
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.SellSymbol != "VOV" || got.BuySymbol != "LID" || got.PayAmount != "10" {
		t.Fatalf("prior snapshot clobbered: %+v", got)
	}
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(path, nil)
	if _, _, err := s.Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSaveEventuallyFlushesWithoutExplicitFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewStore(path, nil)

	s.Save(Snapshot{PayAmount: "42"})

	deadline := time.After(5 * time.Second)
	for {
		if _, err := os.Stat(path); err == nil {
			return
		}
		select {
		case <-deadline:
			t.Fatal("debounced save never flushed")
		case <-time.After(50 * time.Millisecond):
		}
	}
}
