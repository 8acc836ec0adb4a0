package driver

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nstehr/vimy/vimy-bot/config"
)

// Hub tracks the live pools so a reloaded config reaches every connection.
type Hub struct {
	mu    sync.Mutex
	cfg   *config.Config
	pools map[*Pool]struct{}
	log   *slog.Logger
}

func NewHub(cfg *config.Config, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{cfg: cfg, pools: make(map[*Pool]struct{}), log: log}
}

// Open creates a pool on the current config. Close it when the connection
// ends.
func (h *Hub) Open(ctx context.Context, log *slog.Logger) *Pool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if log == nil {
		log = h.log
	}
	p := NewPool(ctx, h.cfg, log)
	h.pools[p] = struct{}{}
	return p
}

// Close forgets a pool.
func (h *Hub) Close(p *Pool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.pools, p)
}

// Config returns the config new pools start from.
func (h *Hub) Config() *config.Config {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cfg
}

// Apply makes cfg current and pushes it to every open pool.
func (h *Hub) Apply(cfg *config.Config) {
	h.mu.Lock()
	h.cfg = cfg
	pools := make([]*Pool, 0, len(h.pools))
	for p := range h.pools {
		pools = append(pools, p)
	}
	h.mu.Unlock()

	for _, p := range pools {
		p.Apply(cfg)
	}
	h.log.Info("config applied", "pools", len(pools))
}

// Len returns the number of open pools.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pools)
}
