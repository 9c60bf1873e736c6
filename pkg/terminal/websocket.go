package terminal

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antibyte/retrocalc/pkg/calc"
	"github.com/antibyte/retrocalc/pkg/configuration"
	"github.com/antibyte/retrocalc/pkg/logger"
	"github.com/antibyte/retrocalc/pkg/repl"
	"github.com/antibyte/retrocalc/pkg/shared"
)

// WebSocket-Konfigurationswerte, siehe [Network] Sektion in settings.cfg

func getWriteWait() time.Duration {
	return configuration.GetDuration("Network", "write_wait_timeout", 10*time.Second)
}

func getPongWait() time.Duration {
	return configuration.GetDuration("Network", "pong_timeout", 90*time.Second)
}

func getPingPeriod() time.Duration {
	return (getPongWait() * 9) / 10
}

func getMaxMessageSize() int64 {
	return int64(configuration.GetInt("Network", "max_message_size_kb", 64) * 1024)
}

func getMaxChannelBuffer() int {
	return configuration.GetInt("Network", "max_channel_buffer", 256)
}

// Client is one websocket connection and the calculator session it owns.
type Client struct {
	conn      *websocket.Conn
	send      chan shared.Message
	handler   *TerminalHandler
	ipAddress string
	sessionID string
	session   *calc.Session
	recorder  repl.Recorder

	lastActivity atomic.Int64 // unix nanoseconds
	sendOnce     sync.Once
	closeOnce    sync.Once
}

func newClient(h *TerminalHandler, sessionID, ipAddress string) *Client {
	c := &Client{
		send:      make(chan shared.Message, getMaxChannelBuffer()),
		handler:   h,
		ipAddress: ipAddress,
		sessionID: sessionID,
		session:   calc.NewSession(),
	}
	c.touch()
	return c
}

// SessionID returns the id of the client's session.
func (c *Client) SessionID() string {
	return c.sessionID
}

// LastActivity returns when the client last sent a frame.
func (c *Client) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

func (c *Client) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

// queue hands msg to the write pump. Only the read pump (and the handler
// before the pumps start) call it, so send is never closed underneath it.
func (c *Client) queue(msg shared.Message) {
	select {
	case c.send <- msg:
	default:
		logger.WebSocketWarn("Send buffer full for session %s, dropping connection", c.sessionID)
		c.close()
	}
}

func (c *Client) closeSend() {
	c.sendOnce.Do(func() { close(c.send) })
}

// close tears down the connection; the read pump notices and cleans up.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// readPump reads input frames and executes them until the connection ends
// or the session exits.
func (c *Client) readPump() {
	defer func() {
		if r := recover(); r != nil {
			logger.WebSocketError("Panic in readPump for session %s: %v", c.sessionID, r)
		}
		c.handler.cleanupClient(c)
	}()

	c.conn.SetReadLimit(getMaxMessageSize())
	c.conn.SetReadDeadline(time.Now().Add(getPongWait()))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(getPongWait()))
		return nil
	})

	for {
		messageType, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.WebSocketWarn("Unexpected close for session %s: %v", c.sessionID, err)
			} else {
				logger.WebSocketDebug("Connection closed for session %s: %v", c.sessionID, err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(getPongWait()))
		c.touch()

		if messageType != websocket.TextMessage {
			c.queue(shared.Message{Type: shared.MessageTypeError, Content: "only text frames are accepted"})
			continue
		}
		if err := c.handler.clientManager.CheckRateLimit(c.ipAddress); err != nil {
			c.queue(shared.Message{Type: shared.MessageTypeError, Content: "rate limit exceeded"})
			continue
		}

		if exit := c.processFrame(frame); exit {
			logger.Info(logger.AreaSession, "Session %s exited", c.sessionID)
			c.queue(shared.Message{Type: shared.MessageTypeExit, Content: "exit"})
			return
		}
	}
}

// processFrame executes every line of frame in the client's session. It
// reports whether the exit keyword was read.
func (c *Client) processFrame(frame []byte) bool {
	lx := calc.NewLexer(bytes.NewReader(frame))
	lx.SetMaxLineLength(configuration.GetInt("Calc", "max_line_length", calc.DefaultMaxLineLength))

	for {
		stmt, err := lx.Next(c.session)
		switch {
		case errors.Is(err, io.EOF):
			return false
		case errors.Is(err, calc.ErrExit):
			return true
		case err != nil:
			c.emit(errorMessage(lx.Line(), err))
			continue
		}

		if msg, ok := exec(c.session, stmt); ok {
			c.emit(msg)
		}
	}
}

// emit queues msg and journals it.
func (c *Client) emit(msg shared.Message) {
	if c.recorder != nil {
		if err := c.recorder.Record(msg.Input, msg.Content, msg.Type == shared.MessageTypeError); err != nil {
			logger.Warn(logger.AreaTranscript, "Recording statement of session %s failed: %v", c.sessionID, err)
		}
	}
	c.queue(msg)
}

// writePump writes queued messages, one JSON frame each, and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(getPingPeriod())
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				logger.WebSocketError("Marshalling message for session %s failed: %v", c.sessionID, err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.WebSocketDebug("Write to session %s failed: %v", c.sessionID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.WebSocketDebug("Ping to session %s failed: %v", c.sessionID, err)
				return
			}
		}
	}
}
