// Package driver runs the bots one game connection drives. Each frame is
// fanned out across the bots with a bounded errgroup; config changes are
// applied between frames.
package driver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nstehr/vimy/vimy-bot/agent"
	"github.com/nstehr/vimy/vimy-bot/config"
	"github.com/nstehr/vimy/vimy-bot/ipc"
	"github.com/nstehr/vimy/vimy-bot/model"
)

// Pool owns the agents of one connection.
type Pool struct {
	mu      sync.Mutex // held for a whole frame; Apply waits for it
	ctx     context.Context
	cfg     *config.Config
	match   string
	debug   bool // requested by the plugin in its hello
	terrain *model.TerrainGrid
	agents  map[int]*agent.Agent
	order   []int
	base    *slog.Logger
	level   *slog.LevelVar
	log     *slog.Logger
}

// NewPool creates an empty pool. Its log level is its own: the match's
// debug setting gates what reaches log's handler.
func NewPool(ctx context.Context, cfg *config.Config, log *slog.Logger) *Pool {
	if log == nil {
		log = slog.Default()
	}
	p := &Pool{
		ctx:    ctx,
		cfg:    cfg,
		agents: make(map[int]*agent.Agent),
		base:   log,
		level:  new(slog.LevelVar),
	}
	p.log = slog.New(Leveled(log.Handler(), p.level))
	p.setLevel()
	return p
}

func (p *Pool) setLevel() {
	if p.cfg.Match.Debug || p.debug {
		p.level.Set(slog.LevelDebug)
	} else {
		p.level.Set(slog.LevelInfo)
	}
}

// Log returns the pool's match-scoped logger.
func (p *Pool) Log() *slog.Logger {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.log
}

// Options builds an agent's options from the current config.
func (p *Pool) Options(class string) agent.Options {
	cl := p.cfg.Class(class)
	return agent.Options{
		Policy:     p.cfg.Policy.Decision(),
		Tunables:   cl.Tunables,
		Perception: p.cfg.Perception,
		Doctrine:   cl.Doctrine,
		Rules:      cl.Rules,
		Terrain:    p.terrain,
		DiagEvery:  p.cfg.Match.DiagEvery,
		AdaptEvery: p.cfg.Match.AdaptEvery,
		Log:        p.log,
	}
}

// Hello replaces the pool's bots with the ones announced. Any bot that
// fails to set up fails the whole handshake.
func (p *Pool) Hello(h ipc.HelloMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := h.Terrain.Validate(); err != nil {
		return err
	}
	p.match = h.Match
	p.debug = h.Debug
	p.setLevel()
	p.log = slog.New(Leveled(p.base.Handler(), p.level)).With("match", h.Match)
	p.terrain = h.Terrain.ToGrid()
	agents := make(map[int]*agent.Agent, len(h.Bots))
	order := make([]int, 0, len(h.Bots))
	for _, bot := range h.Bots {
		if _, dup := agents[bot.ID]; dup {
			return fmt.Errorf("duplicate bot id %d", bot.ID)
		}
		a, err := agent.New(bot, p.Options(bot.Class))
		if err != nil {
			return err
		}
		agents[bot.ID] = a
		order = append(order, bot.ID)
	}
	p.agents = agents
	p.order = order
	p.log.Info("bots joined", "bots", len(order), "terrain", p.terrain != nil)
	return nil
}

// Frame steps every bot that has a snapshot in f and returns their intents
// in snapshot order. Snapshots for unknown bots, and repeats within a frame,
// are answered with an empty batch.
func (p *Pool) Frame(f ipc.FrameMessage) (ipc.IntentsMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := ipc.IntentsMessage{Tick: f.Tick, Batches: make([]ipc.IntentBatch, len(f.Snapshots))}
	g, ctx := errgroup.WithContext(p.ctx)
	g.SetLimit(max(p.cfg.Workers, 1))
	seen := make(map[int]bool, len(f.Snapshots))
	for i := range f.Snapshots {
		snap := &f.Snapshots[i]
		a, ok := p.agents[snap.Self.ID]
		out.Batches[i].Bot = snap.Self.ID
		switch {
		case !ok:
			p.log.Warn("snapshot for unknown bot", "bot", snap.Self.ID, "tick", f.Tick)
			continue
		case seen[snap.Self.ID]:
			p.log.Warn("duplicate snapshot", "bot", snap.Self.ID, "tick", f.Tick)
			continue
		}
		seen[snap.Self.ID] = true
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out.Batches[i].Intents = a.Step(snap)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ipc.IntentsMessage{}, fmt.Errorf("frame %d: %w", f.Tick, err)
	}
	return out, nil
}

// Apply swaps in a new config. Agents pick up what can change live; a
// failure leaves that agent on its previous tuning.
func (p *Pool) Apply(cfg *config.Config) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cfg = cfg
	p.setLevel()
	for _, id := range p.order {
		a := p.agents[id]
		if err := a.Reconfigure(p.Options(a.Class)); err != nil {
			p.log.Error("reconfigure failed", "bot", id, "error", err)
		}
	}
}

// Shutdown aborts every bot and returns their releases.
func (p *Pool) Shutdown() ipc.IntentsMessage {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out ipc.IntentsMessage
	for _, id := range p.order {
		if in := p.agents[id].Shutdown(); len(in) > 0 {
			out.Batches = append(out.Batches, ipc.IntentBatch{Bot: id, Intents: in})
		}
	}
	return out
}

// Agent returns a bot's agent.
func (p *Pool) Agent(id int) (*agent.Agent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.agents[id]
	return a, ok
}

// Match returns the match named in the last handshake.
func (p *Pool) Match() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.match
}

// Len returns the number of bots.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.order)
}
