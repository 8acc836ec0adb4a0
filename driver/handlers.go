package driver

import (
	"fmt"

	"github.com/nstehr/vimy/vimy-bot/ipc"
)

// HandleHello completes the handshake so the plugin knows its bots are
// ready.
func (p *Pool) HandleHello(env ipc.Envelope) (*ipc.Envelope, error) {
	var hello ipc.HelloMessage
	if err := env.Decode(&hello); err != nil {
		return nil, err
	}
	if err := p.Hello(hello); err != nil {
		ack, aerr := ipc.NewEnvelope(ipc.TypeAck, ipc.AckMessage{Status: "error: " + err.Error()})
		if aerr != nil {
			return nil, aerr
		}
		p.Log().Error("hello rejected", "match", hello.Match, "error", err)
		return &ack, nil
	}
	ack, err := ipc.NewEnvelope(ipc.TypeAck, ipc.AckMessage{Status: "ok", Bots: p.Len()})
	if err != nil {
		return nil, err
	}
	return &ack, nil
}

// HandleFrame answers a frame with every bot's intents.
func (p *Pool) HandleFrame(env ipc.Envelope) (*ipc.Envelope, error) {
	var frame ipc.FrameMessage
	if err := env.Decode(&frame); err != nil {
		return nil, err
	}
	intents, err := p.Frame(frame)
	if err != nil {
		return nil, err
	}
	resp, err := ipc.NewEnvelope(ipc.TypeIntents, intents)
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", frame.Tick, err)
	}
	return &resp, nil
}

// HandleBye aborts every bot and answers with their releases, so the plugin
// lets go of held controls before the socket closes.
func (p *Pool) HandleBye(ipc.Envelope) (*ipc.Envelope, error) {
	out := p.Shutdown()
	if len(out.Batches) == 0 {
		return nil, nil
	}
	resp, err := ipc.NewEnvelope(ipc.TypeIntents, out)
	if err != nil {
		return nil, err
	}
	p.Log().Info("released held controls", "bots", len(out.Batches))
	return &resp, nil
}

// Register installs the pool's handlers on a connection. The connection is
// labelled with the match once the handshake succeeds.
func (p *Pool) Register(c *ipc.Connection) {
	c.RegisterHandler(ipc.TypeHello, func(env ipc.Envelope) (*ipc.Envelope, error) {
		resp, err := p.HandleHello(env)
		if err == nil {
			c.Match = p.Match()
		}
		return resp, err
	})
	c.RegisterHandler(ipc.TypeFrame, p.HandleFrame)
	c.RegisterHandler(ipc.TypeBye, p.HandleBye)
	c.SetLogger(p.Log())
}
