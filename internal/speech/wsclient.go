package speech

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSConfig holds connection settings for the websocket STT gateway.
type WSConfig struct {
	URL             string
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	SendBufferSize  int
	HandshakeWindow time.Duration
}

// DefaultWSConfig returns default STT gateway settings.
func DefaultWSConfig(url string) WSConfig {
	return WSConfig{
		URL:             url,
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		SendBufferSize:  256,
		HandshakeWindow: 10 * time.Second,
	}
}

// segmentMessage is the wire shape of one recognition event from the gateway.
type segmentMessage struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

// WSCapturer streams audio frames to an STT gateway over a websocket and
// delivers recognition segments back. One capture session per Start/Stop
// pair; frames are fed in via Feed.
type WSCapturer struct {
	config WSConfig

	mu      sync.Mutex
	conn    *websocket.Conn
	sendCh  chan []byte
	closeCh chan struct{}
	active  bool
}

// NewWSCapturer returns a capturer for the given gateway config.
func NewWSCapturer(config WSConfig) *WSCapturer {
	return &WSCapturer{config: config}
}

// Start dials the gateway and begins streaming. Segments are delivered to h
// from the read pump goroutine until Stop is called or the gateway closes.
func (c *WSCapturer) Start(h SegmentHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.config.HandshakeWindow}
	conn, _, err := dialer.Dial(c.config.URL, nil)
	if err != nil {
		return fmt.Errorf("dial speech gateway: %w", err)
	}

	c.conn = conn
	c.sendCh = make(chan []byte, c.config.SendBufferSize)
	c.closeCh = make(chan struct{})
	c.active = true

	go c.writePump(conn, c.sendCh, c.closeCh)
	go c.readPump(conn, h)

	log.Info().Str("url", c.config.URL).Msg("speech capture started")
	return nil
}

// Feed queues one audio frame for the gateway. Frames are dropped when the
// send buffer is full; recognition quality degrades gracefully rather than
// blocking the caller.
func (c *WSCapturer) Feed(frame []byte) {
	c.mu.Lock()
	sendCh := c.sendCh
	active := c.active
	c.mu.Unlock()
	if !active {
		return
	}
	select {
	case sendCh <- frame:
	default:
		log.Warn().Msg("speech send buffer full, dropping frame")
	}
}

// Stop ends the capture session.
func (c *WSCapturer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	c.active = false
	close(c.closeCh)
	c.conn.Close()
	c.conn = nil
	log.Info().Msg("speech capture stopped")
}

// Capturing reports whether a capture session is active.
func (c *WSCapturer) Capturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// writePump forwards audio frames and keepalive pings to the gateway.
func (c *WSCapturer) writePump(conn *websocket.Conn, sendCh chan []byte, closeCh chan struct{}) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closeCh:
			conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-sendCh:
			conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				log.Error().Err(err).Msg("failed to write audio frame")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Msg("failed to ping speech gateway")
				return
			}
		}
	}
}

// readPump delivers recognition segments until the connection closes.
func (c *WSCapturer) readPump(conn *websocket.Conn, h SegmentHandler) {
	conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Msg("speech gateway closed unexpectedly")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		var msg segmentMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn().Err(err).Msg("unparseable speech segment, skipping")
			continue
		}
		if msg.Text == "" {
			continue
		}
		h(Segment{Text: msg.Text, Final: msg.IsFinal})
	}
}
