// Package lobby owns the shared list of maps and registered games
package lobby

import "errors"

// Map is one entry of the static map catalog
type Map struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// MapCatalog is the persisted and wire form of the map list
type MapCatalog struct {
	MapCount int   `json:"mapCount"`
	Maps     []Map `json:"maps"`
}

// Game is a registered game waiting for players
type Game struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	MapID     int    `json:"mapId"`
	NbPlayers int    `json:"nbPlayers"`
}

// Snapshot is a consistent copy of the game list at one instant.
// GameCount always equals len(Games).
type Snapshot struct {
	GameCount int    `json:"gameCount"`
	Games     []Game `json:"games"`
}

// CreateRequest is the client-supplied part of a new game
type CreateRequest struct {
	Name  string `json:"name" mapstructure:"name"`
	MapID int    `json:"mapId" mapstructure:"mapId"`
}

var (
	// ErrInvalidRequest marks a well-formed but unacceptable create request
	ErrInvalidRequest = errors.New("invalid request")
	// ErrStorage marks a failure of the persistence collaborator
	ErrStorage = errors.New("storage error")
	// ErrFatalConfig marks an unusable catalog or game file at startup
	ErrFatalConfig = errors.New("fatal config error")
)

// clone returns a deep copy so callers can never alias the store's slice
func (s Snapshot) clone() Snapshot {
	games := make([]Game, len(s.Games))
	copy(games, s.Games)
	return Snapshot{GameCount: len(games), Games: games}
}
