package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WSInvoker multiplexes concurrent host calls over one WebSocket. Each call
// carries a fresh id and waits for the reply frame with the same id.
type WSInvoker struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan *Response
	closed  chan struct{}
	err     error
}

// DialWS connects to a host WebSocket endpoint such as
// ws://localhost:8080/api/host/ws.
func DialWS(ctx context.Context, url string) (*WSInvoker, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	w := &WSInvoker{
		conn:    conn,
		pending: make(map[string]chan *Response),
		closed:  make(chan struct{}),
	}
	go w.readLoop()
	return w, nil
}

func (w *WSInvoker) readLoop() {
	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			w.fail(err)
			return
		}
		var resp Response
		if err := sonic.Unmarshal(data, &resp); err != nil {
			continue
		}

		w.mu.Lock()
		ch, ok := w.pending[resp.ID]
		delete(w.pending, resp.ID)
		w.mu.Unlock()
		if ok {
			ch <- &resp
		}
	}
}

func (w *WSInvoker) fail(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = fmt.Errorf("%w: %v", ErrClosed, err)
		close(w.closed)
	}
}

// Invoke implements fs.Invoker.
func (w *WSInvoker) Invoke(ctx context.Context, op string, args, result any) error {
	raw, err := Encode(args)
	if err != nil {
		return fmt.Errorf("invoke %s: encode arguments: %w", op, err)
	}
	req := Request{ID: uuid.NewString(), Op: op, Args: raw}
	frame, err := sonic.Marshal(req)
	if err != nil {
		return fmt.Errorf("invoke %s: %w", op, err)
	}

	ch := make(chan *Response, 1)
	w.mu.Lock()
	if w.err != nil {
		err := w.err
		w.mu.Unlock()
		return err
	}
	w.pending[req.ID] = ch
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		delete(w.pending, req.ID)
		w.mu.Unlock()
	}()

	w.writeMu.Lock()
	err = w.conn.WriteMessage(websocket.TextMessage, frame)
	w.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("invoke %s: %w", op, err)
	}

	select {
	case resp := <-ch:
		if err := resp.Err(); err != nil {
			return err
		}
		return resp.Decode(result)
	case <-w.closed:
		return w.closedErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *WSInvoker) closedErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Close sends a close frame and shuts the connection down.
func (w *WSInvoker) Close() error {
	w.writeMu.Lock()
	_ = w.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	w.writeMu.Unlock()
	err := w.conn.Close()
	w.fail(ErrClosed)
	return err
}
