package lobby

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadGamesCreatesEmptyFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	p := NewFilePersister(dir, "", "")

	snap, err := p.LoadGames()
	if err != nil {
		t.Fatalf("LoadGames: %v", err)
	}
	if snap.GameCount != 0 || snap.Games == nil {
		t.Fatalf("snapshot = %+v, want empty non-nil list", snap)
	}

	data, err := os.ReadFile(p.GamesPath())
	if err != nil {
		t.Fatalf("games file not created: %v", err)
	}
	var onDisk Snapshot
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("games file is not JSON: %v", err)
	}
}

func TestSaveGamesReplacesFile(t *testing.T) {
	dir := t.TempDir()
	p := NewFilePersister(dir, "maps.json", "games.json")

	first := Snapshot{GameCount: 1, Games: []Game{{ID: 1, Name: "a", MapID: 1, NbPlayers: 1}}}
	second := Snapshot{GameCount: 2, Games: append(first.Games, Game{ID: 2, Name: "b", MapID: 1, NbPlayers: 1})}
	if err := p.SaveGames(first); err != nil {
		t.Fatalf("SaveGames: %v", err)
	}
	if err := p.SaveGames(second); err != nil {
		t.Fatalf("SaveGames: %v", err)
	}

	got, err := p.LoadGames()
	if err != nil {
		t.Fatalf("LoadGames: %v", err)
	}
	if got.GameCount != 2 || got.Games[1].Name != "b" {
		t.Fatalf("loaded %+v", got)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("temp file %s left behind", e.Name())
		}
	}
}

func TestSaveGamesFailsWithoutDirectory(t *testing.T) {
	p := NewFilePersister(filepath.Join(t.TempDir(), "missing"), "", "")
	if err := p.SaveGames(Snapshot{Games: []Game{}}); err == nil {
		t.Fatal("expected error writing into a missing directory")
	}
}
