package lobby

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	DefaultMapsFile  = "mapslist.json"
	DefaultGamesFile = "gameslist.json"
)

// Persister loads and saves the durable lobby state
type Persister interface {
	LoadMaps() ([]Map, error)
	LoadGames() (Snapshot, error)
	SaveGames(Snapshot) error
}

// FilePersister keeps the map catalog and the game list as JSON files in one directory
type FilePersister struct {
	dataDir   string
	mapsFile  string
	gamesFile string
}

// NewFilePersister creates a persister rooted at dataDir. Empty file names use the defaults.
func NewFilePersister(dataDir, mapsFile, gamesFile string) *FilePersister {
	if mapsFile == "" {
		mapsFile = DefaultMapsFile
	}
	if gamesFile == "" {
		gamesFile = DefaultGamesFile
	}
	return &FilePersister{
		dataDir:   dataDir,
		mapsFile:  filepath.Join(dataDir, mapsFile),
		gamesFile: filepath.Join(dataDir, gamesFile),
	}
}

// GamesPath returns the path of the game list file
func (p *FilePersister) GamesPath() string { return p.gamesFile }

// LoadMaps reads the map catalog. A missing catalog is an error.
func (p *FilePersister) LoadMaps() ([]Map, error) {
	data, err := os.ReadFile(p.mapsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read maps file: %w", err)
	}

	var catalog MapCatalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse maps JSON: %w", err)
	}
	if catalog.MapCount != len(catalog.Maps) {
		return nil, fmt.Errorf("maps file declares %d maps but lists %d", catalog.MapCount, len(catalog.Maps))
	}

	return catalog.Maps, nil
}

// LoadGames reads the game list, creating an empty one on first boot
func (p *FilePersister) LoadGames() (Snapshot, error) {
	if _, err := os.Stat(p.gamesFile); os.IsNotExist(err) {
		if err := os.MkdirAll(p.dataDir, 0755); err != nil {
			return Snapshot{}, fmt.Errorf("failed to create data directory: %w", err)
		}
		empty := Snapshot{Games: []Game{}}
		return empty, p.SaveGames(empty)
	}

	data, err := os.ReadFile(p.gamesFile)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read games file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to parse games JSON: %w", err)
	}
	if snap.GameCount != len(snap.Games) {
		return Snapshot{}, fmt.Errorf("games file declares %d games but lists %d", snap.GameCount, len(snap.Games))
	}
	if snap.Games == nil {
		snap.Games = []Game{}
	}

	return snap, nil
}

// SaveGames rewrites the whole game list. The file is replaced atomically.
func (p *FilePersister) SaveGames(snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal games: %w", err)
	}

	tmp, err := os.CreateTemp(p.dataDir, ".gameslist-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp games file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write games file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync games file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close games file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p.gamesFile); err != nil {
		return fmt.Errorf("failed to replace games file: %w", err)
	}

	return nil
}
