package lobby

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"bomberstudent/pkg/logger"
)

// Store is the single owner of the game list.
//
// Readers load an immutable snapshot through an atomic pointer and never block.
// Writers are serialized by mu; a new snapshot is published only after it has
// been persisted, so a failed write leaves memory and disk identical.
type Store struct {
	persister Persister
	maps      []Map
	mapIndex  map[int]Map

	mu     sync.Mutex
	nextID int
	snap   atomic.Pointer[Snapshot]

	observers []func(Game)
	logger    *logger.Logger
}

// Option customizes a Store
type Option func(*Store)

// WithObserver registers fn to be called, outside the write lock, after each successful create
func WithObserver(fn func(Game)) Option {
	return func(s *Store) { s.observers = append(s.observers, fn) }
}

// WithLogger sets the store logger
func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore loads the map catalog and the game list. Any inconsistency is ErrFatalConfig.
func NewStore(p Persister, opts ...Option) (*Store, error) {
	s := &Store{persister: p, logger: logger.Server}
	for _, opt := range opts {
		opt(s)
	}

	maps, err := p.LoadMaps()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFatalConfig, err)
	}
	s.mapIndex = make(map[int]Map, len(maps))
	for _, m := range maps {
		if _, dup := s.mapIndex[m.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate map id %d", ErrFatalConfig, m.ID)
		}
		s.mapIndex[m.ID] = m
	}
	s.maps = append([]Map(nil), maps...)

	games, err := p.LoadGames()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFatalConfig, err)
	}
	for _, g := range games.Games {
		if _, ok := s.mapIndex[g.MapID]; !ok {
			return nil, fmt.Errorf("%w: game %d refers to unknown map %d", ErrFatalConfig, g.ID, g.MapID)
		}
		if g.ID >= s.nextID {
			s.nextID = g.ID + 1
		}
	}
	if s.nextID == 0 {
		s.nextID = 1
	}

	loaded := games.clone()
	s.snap.Store(&loaded)

	s.logger.Info("Lobby loaded: %d maps, %d games", len(s.maps), loaded.GameCount)
	return s, nil
}

// ListGames returns a consistent copy of the current game list
func (s *Store) ListGames() Snapshot {
	return s.snap.Load().clone()
}

// ListMaps returns a copy of the map catalog
func (s *Store) ListMaps() []Map {
	return append([]Map(nil), s.maps...)
}

// MapCatalog returns the map list in its wire form
func (s *Store) MapCatalog() MapCatalog {
	maps := s.ListMaps()
	return MapCatalog{MapCount: len(maps), Maps: maps}
}

// CreateGame validates req, appends a new game and persists the full list before returning
func (s *Store) CreateGame(req CreateRequest) (Game, error) {
	name := req.Name
	if strings.TrimSpace(name) == "" {
		return Game{}, fmt.Errorf("%w: name must not be empty", ErrInvalidRequest)
	}
	if _, ok := s.mapIndex[req.MapID]; !ok {
		return Game{}, fmt.Errorf("%w: unknown map %d", ErrInvalidRequest, req.MapID)
	}

	s.mu.Lock()
	game := Game{
		ID:        s.nextID,
		Name:      name,
		MapID:     req.MapID,
		NbPlayers: 1,
	}

	next := s.snap.Load().clone()
	next.Games = append(next.Games, game)
	next.GameCount = len(next.Games)

	if err := s.persister.SaveGames(next); err != nil {
		s.mu.Unlock()
		s.logger.Error("Failed to persist game %q: %v", name, err)
		return Game{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	s.nextID++
	s.snap.Store(&next)
	s.mu.Unlock()

	s.logger.Info("Game %d %q created on map %d", game.ID, game.Name, game.MapID)
	for _, fn := range s.observers {
		fn(game)
	}
	return game, nil
}

// Loaded reports whether the store holds a snapshot; used by health checks
func (s *Store) Loaded() bool {
	return s.snap.Load() != nil
}
