package serial

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = errors.New("websocket connection closed")

// WebSocketPort carries the link stream in binary WebSocket messages
type WebSocketPort struct {
	conn *websocket.Conn

	rmu       sync.Mutex
	buf       []byte
	bufOffset int
	closed    bool

	wmu sync.Mutex
}

// NewWebSocketPort wraps an established connection
func NewWebSocketPort(conn *websocket.Conn) *WebSocketPort {
	return &WebSocketPort{conn: conn}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  256,
	WriteBufferSize: 256,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Upgrade accepts a WebSocket connection on an HTTP request
func Upgrade(w http.ResponseWriter, r *http.Request) (*WebSocketPort, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return NewWebSocketPort(conn), nil
}

// Dial opens a WebSocket connection to url
func Dial(url string) (*WebSocketPort, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return NewWebSocketPort(conn), nil
}

func (w *WebSocketPort) Read(p []byte) (int, error) {
	w.rmu.Lock()
	defer w.rmu.Unlock()

	if w.closed {
		return 0, ErrConnectionClosed
	}

	// Return buffered data first
	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			return 0, err
		}
		// Text messages are not part of the link
		if messageType != websocket.BinaryMessage {
			continue
		}
		w.buf = data
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	}
}

func (w *WebSocketPort) Write(p []byte) (int, error) {
	w.wmu.Lock()
	defer w.wmu.Unlock()
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketPort) Close() error {
	return w.conn.Close()
}

// Flush is a no-op; every Write is sent as one message
func (w *WebSocketPort) Flush() error {
	return nil
}

// String describes the port
func (w *WebSocketPort) String() string {
	return "websocket " + w.conn.RemoteAddr().String()
}
