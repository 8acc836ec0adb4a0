package ipc

import (
	"log/slog"
	"net"
	"sync"
)

// Handler processes a received envelope. Return nil to send no reply.
type Handler func(env Envelope) (*Envelope, error)

// Connection represents a single game-side plugin instance talking to the
// sidecar. One connection may drive several bots.
type Connection struct {
	conn     net.Conn
	handlers map[string]Handler
	writeMu  sync.Mutex
	log      *slog.Logger
	Match    string
}

func NewConnection(conn net.Conn, handlers map[string]Handler) *Connection {
	if handlers == nil {
		handlers = make(map[string]Handler)
	}
	return &Connection{
		conn:     conn,
		handlers: handlers,
		log:      slog.Default(),
	}
}

// SetLogger replaces the logger the read loop reports to. Call it before
// ReadLoop.
func (c *Connection) SetLogger(log *slog.Logger) {
	if log != nil {
		c.log = log
	}
}

func (c *Connection) RegisterHandler(msgType string, handler Handler) {
	c.handlers[msgType] = handler
}

func (c *Connection) Send(msgType string, data any) error {
	env, err := NewEnvelope(msgType, data)
	if err != nil {
		return err
	}
	return c.write(env)
}

func (c *Connection) write(env Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return WriteEnvelope(c.conn, env)
}

// Close shuts the underlying socket, unblocking ReadLoop.
func (c *Connection) Close() error {
	return c.conn.Close()
}

// ReadLoop blocks until the connection closes or errors. It owns the conn lifetime
// so callers don't need to track cleanup. A bye handler, if registered, gets
// to send a last reply before the socket closes.
func (c *Connection) ReadLoop() {
	defer c.conn.Close()

	for {
		env, err := ReadEnvelope(c.conn)
		if err != nil {
			c.log.Info("connection read ended", "match", c.Match, "error", err)
			return
		}

		if env.Type == TypeBye {
			c.log.Info("peer said goodbye", "match", c.Match)
			if handler, ok := c.handlers[TypeBye]; ok {
				c.dispatch(env, handler)
			}
			return
		}

		handler, ok := c.handlers[env.Type]
		if !ok {
			c.log.Warn("no handler for message type", "type", env.Type)
			continue
		}
		if !c.dispatch(env, handler) {
			return
		}
	}
}

// dispatch runs a handler and sends its reply. It reports false once the
// connection can no longer be written to.
func (c *Connection) dispatch(env Envelope, handler Handler) bool {
	resp, err := handler(env)
	if err != nil {
		c.log.Error("handler error", "type", env.Type, "error", err)
		return true
	}
	if resp == nil {
		return true
	}
	if err := c.write(*resp); err != nil {
		c.log.Error("failed to send response", "type", resp.Type, "error", err)
		return false
	}
	c.log.Debug("sent response", "type", resp.Type, "match", c.Match)
	return true
}
