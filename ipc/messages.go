package ipc

import (
	"fmt"

	"github.com/nstehr/vimy/vimy-bot/model"
)

// These constants must stay in sync with the game-side plugin's message enum.
const (
	TypeHello   = "hello"
	TypeAck     = "ack"
	TypeFrame   = "frame"
	TypeIntents = "intents"
	TypeBye     = "bye"
)

// HelloMessage announces the bots a connection drives.
type HelloMessage struct {
	Match   string       `json:"match"`
	Bots    []BotInfo    `json:"bots"`
	Terrain *TerrainData `json:"terrain,omitempty"`
	// Debug turns on debug logging for this match only.
	Debug bool `json:"debug,omitempty"`
}

// BotInfo identifies one bot and its class.
type BotInfo struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Class string `json:"class"`
	Team  string `json:"team"`
}

// TerrainData carries the coarse navigation grid.
// Optional; if absent bots run without terrain awareness.
type TerrainData struct {
	Cols  int     `json:"cols"`
	Rows  int     `json:"rows"`
	CellW float64 `json:"cellW"`
	CellH float64 `json:"cellH"`
	Grid  []int   `json:"grid"`
}

// Validate checks that the grid is well formed: positive dimensions and
// cell sizes, exactly Cols*Rows zones, and only known terrain types.
func (t *TerrainData) Validate() error {
	if t == nil {
		return nil
	}
	if t.Cols <= 0 || t.Rows <= 0 {
		return fmt.Errorf("terrain: bad dimensions %dx%d", t.Cols, t.Rows)
	}
	if t.CellW <= 0 || t.CellH <= 0 {
		return fmt.Errorf("terrain: bad cell size %gx%g", t.CellW, t.CellH)
	}
	if len(t.Grid) != t.Cols*t.Rows {
		return fmt.Errorf("terrain: %d zones for a %dx%d grid", len(t.Grid), t.Cols, t.Rows)
	}
	for i, v := range t.Grid {
		if v < int(model.Open) || v > int(model.Chokepoint) {
			return fmt.Errorf("terrain: zone %d has unknown type %d", i, v)
		}
	}
	return nil
}

// ToGrid converts the wire form into a model grid. Call Validate first.
func (t *TerrainData) ToGrid() *model.TerrainGrid {
	if t == nil {
		return nil
	}
	g := &model.TerrainGrid{
		Cols:  t.Cols,
		Rows:  t.Rows,
		CellW: t.CellW,
		CellH: t.CellH,
		Grid:  make([]model.TerrainType, len(t.Grid)),
	}
	for i, v := range t.Grid {
		g.Grid[i] = model.TerrainType(v)
	}
	return g
}

// FrameMessage carries one perception snapshot per bot for a single tick.
type FrameMessage struct {
	Tick      int              `json:"tick"`
	Snapshots []model.Snapshot `json:"snapshots"`
}

// IntentsMessage answers a frame with every bot's intents for that tick.
type IntentsMessage struct {
	Tick    int           `json:"tick"`
	Batches []IntentBatch `json:"batches"`
}

// IntentBatch is the ordered list of intents one bot emitted in a tick.
type IntentBatch struct {
	Bot     int      `json:"bot"`
	Intents []Intent `json:"intents"`
}

type AckMessage struct {
	Status string `json:"status"`
	Bots   int    `json:"bots,omitempty"`
}
