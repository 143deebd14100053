package player

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/PizzaHomicide/marquee/internal/log"
)

// frameConn moves whole JSON documents over some transport
type frameConn interface {
	WriteFrame(data []byte) error
	ReadFrame() ([]byte, error)
	Close() error
}

// lineFrames frames JSON documents as newline separated lines over a stream socket or named pipe
type lineFrames struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

func newLineFrames(conn net.Conn) *lineFrames {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &lineFrames{conn: conn, scanner: scanner}
}

func (f *lineFrames) WriteFrame(data []byte) error {
	_, err := f.conn.Write(append(data, '\n'))
	return err
}

func (f *lineFrames) ReadFrame() ([]byte, error) {
	if !f.scanner.Scan() {
		if err := f.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, ErrBridgeClosed
	}
	return f.scanner.Bytes(), nil
}

func (f *lineFrames) Close() error {
	return f.conn.Close()
}

// wsFrames carries one JSON document per websocket text message
type wsFrames struct {
	conn *websocket.Conn
}

func (f *wsFrames) WriteFrame(data []byte) error {
	return f.conn.WriteMessage(websocket.TextMessage, data)
}

func (f *wsFrames) ReadFrame() ([]byte, error) {
	_, data, err := f.conn.ReadMessage()
	return data, err
}

func (f *wsFrames) Close() error {
	_ = f.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return f.conn.Close()
}

// rpcMessage is the envelope shared by requests, responses and events.  A message with Event set is an event;
// otherwise a message with an ID answers the request of the same ID.
type rpcMessage struct {
	ID     uint64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params any             `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Event  string          `json:"event,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// RemoteError is an error reported by the far end of a bridge
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Method, e.Message)
}

// rpcPeer issues requests and dispatches events over a frameConn.  One goroutine reads; writes are serialised.
type rpcPeer struct {
	frames  frameConn
	onEvent func(name string, data json.RawMessage)
	onClose func()

	writeMu sync.Mutex

	mu        sync.Mutex
	pending   map[uint64]chan rpcMessage
	nextID    uint64
	closed    bool
	local     bool
	closeOnce sync.Once
	done      chan struct{}
}

func newRPCPeer(frames frameConn, onEvent func(string, json.RawMessage), onClose func()) *rpcPeer {
	p := &rpcPeer{
		frames:  frames,
		onEvent: onEvent,
		onClose: onClose,
		pending: make(map[uint64]chan rpcMessage),
		done:    make(chan struct{}),
	}
	go p.readLoop()
	return p
}

// Call sends method with params and waits for the answer.  result may be nil when the answer carries nothing useful.
func (p *rpcPeer) Call(ctx context.Context, method string, params any, result any) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrBridgeClosed
	}
	p.nextID++
	id := p.nextID
	reply := make(chan rpcMessage, 1)
	p.pending[id] = reply
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
	}()

	data, err := json.Marshal(rpcMessage{ID: id, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	log.Trace("Bridge request", "method", method, "id", id)
	p.writeMu.Lock()
	err = p.frames.WriteFrame(data)
	p.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to send %s request: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrBridgeClosed
	case msg := <-reply:
		if msg.Error != "" {
			return &RemoteError{Method: method, Message: msg.Error}
		}
		if result != nil && len(msg.Result) > 0 {
			if err := json.Unmarshal(msg.Result, result); err != nil {
				return fmt.Errorf("failed to decode %s response: %w", method, err)
			}
		}
		return nil
	}
}

// Close shuts the transport down and waits for the read loop.  onClose is not invoked for a local close.
func (p *rpcPeer) Close() error {
	p.mu.Lock()
	p.closed = true
	p.local = true
	p.mu.Unlock()

	var err error
	p.closeOnce.Do(func() {
		p.writeMu.Lock()
		defer p.writeMu.Unlock()
		err = p.frames.Close()
	})
	<-p.done
	return err
}

// Done is closed once the read loop has exited
func (p *rpcPeer) Done() <-chan struct{} {
	return p.done
}

func (p *rpcPeer) readLoop() {
	defer close(p.done)

	for {
		data, err := p.frames.ReadFrame()
		if err != nil {
			p.mu.Lock()
			local := p.local
			p.closed = true
			p.mu.Unlock()
			if !local {
				log.Debug("Bridge connection lost", "error", err)
				if p.onClose != nil {
					p.onClose()
				}
			}
			return
		}

		var msg rpcMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn("Failed to unmarshal bridge message", "error", err)
			continue
		}

		if msg.Event != "" {
			log.Trace("Bridge event", "event", msg.Event)
			if p.onEvent != nil {
				p.onEvent(msg.Event, msg.Data)
			}
			continue
		}

		p.mu.Lock()
		reply, ok := p.pending[msg.ID]
		p.mu.Unlock()
		if !ok {
			log.Debug("Dropping bridge response with no waiting request", "id", msg.ID)
			continue
		}
		reply <- msg
	}
}
