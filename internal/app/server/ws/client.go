package ws

import (
	"context"
	"errors"
	"sync"

	"chatrelay/internal/core/domain"
)

// RuntimeClient owns the outbound side of one connection: a buffered
// channel drained by a single write loop, so broadcasts never block on
// a slow peer for longer than the channel has room.
type RuntimeClient struct {
	ctx    context.Context
	cancel context.CancelFunc
	ws     *WebSocket
	id     domain.ConnID
	out    chan []byte
	once   sync.Once
}

func NewClient(parent context.Context, ws *WebSocket) *RuntimeClient {
	ctx, cancel := context.WithCancel(parent)
	c := &RuntimeClient{
		ctx:    ctx,
		cancel: cancel,
		ws:     ws,
		id:     domain.NewConnID(),
		out:    make(chan []byte, 256),
	}
	go c.writeLoop()
	return c
}

func (c *RuntimeClient) ID() domain.ConnID { return c.id }

func (c *RuntimeClient) Send(ctx context.Context, data []byte) error {
	select {
	case <-c.ctx.Done():
		return errors.New("client closed")
	case c.out <- data:
		return nil
	default:
		// Full buffer means the peer stopped draining; drop the frame
		// rather than stall a room-wide broadcast.
		return errors.New("client backlogged")
	}
}

// Close is idempotent. The outbound channel is never closed; the write
// loop exits on context cancellation, which sidesteps the send-on-closed
// race with concurrent broadcasters.
func (c *RuntimeClient) Close() {
	c.once.Do(func() {
		c.cancel()
		c.ws.Close()
	})
}

func (c *RuntimeClient) writeLoop() {
	defer c.Close()
	for {
		select {
		case <-c.ctx.Done():
			return
		case data, ok := <-c.out:
			if !ok {
				return
			}
			_ = c.ws.WriteMessage(data)
		}
	}
}
