// ABOUTME: WebSocket client for the group control protocol
// ABOUTME: Handles connection, handshake, commands and routing of group state
package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ControlPath is the websocket endpoint of the control server
const ControlPath = "/control"

// Config holds client configuration
type Config struct {
	ServerAddr string
	ClientID   string
	Name       string

	// HandshakeTimeout bounds the wait for server/hello (default: 5s)
	HandshakeTimeout time.Duration
}

// Client is a controller connection
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex

	// writeMu serializes writers; websocket allows one at a time
	writeMu sync.Mutex

	// States receives every group/state broadcast
	States chan GroupState
	// Errors receives server/error replies
	Errors chan ServerError

	server    ServerHello
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new control client
func NewClient(config Config) *Client {
	if config.ClientID == "" {
		config.ClientID = uuid.New().String()
	}
	if config.Name == "" {
		config.Name = "syncctl"
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config: config,
		States: make(chan GroupState, 10),
		Errors: make(chan ServerError, 10),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Connect establishes the websocket connection and performs the handshake
func (c *Client) Connect() error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: ControlPath}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()

	return nil
}

func (c *Client) handshake() error {
	hello := Message{
		Type: TypeClientHello,
		Payload: ClientHello{
			ClientID: c.config.ClientID,
			Name:     c.config.Name,
		},
	}
	if err := c.sendJSON(hello); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(c.config.HandshakeTimeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}
	if msg.Type != TypeServerHello {
		return fmt.Errorf("expected server/hello, got %s", msg.Type)
	}

	var server ServerHello
	if err := DecodePayload(msg.Payload, &server); err != nil {
		return err
	}

	c.mu.Lock()
	c.server = server
	c.mu.Unlock()

	log.Printf("Handshake complete with %s (ID: %s)", server.Name, server.ServerID)
	return nil
}

// Server returns the server/hello received during the handshake
func (c *Client) Server() ServerHello {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.server
}

func (c *Client) sendJSON(msg Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return fmt.Errorf("not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (c *Client) readMessages() {
	defer c.Close()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Read error: %v", err)
			}
			return
		}

		c.handleJSONMessage(data)
	}
}

func (c *Client) handleJSONMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Failed to parse JSON message: %v", err)
		return
	}

	switch msg.Type {
	case TypeGroupState:
		var state GroupState
		if err := DecodePayload(msg.Payload, &state); err != nil {
			log.Printf("Failed to parse group/state: %v", err)
			return
		}
		select {
		case c.States <- state:
		case <-time.After(100 * time.Millisecond):
			log.Printf("Group state channel full, dropping message")
		}

	case TypeServerError:
		var serverErr ServerError
		if err := DecodePayload(msg.Payload, &serverErr); err != nil {
			log.Printf("Failed to parse server/error: %v", err)
			return
		}
		select {
		case c.Errors <- serverErr:
		case <-c.ctx.Done():
		}

	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}

// SendCommand sends a group/command
func (c *Client) SendCommand(cmd GroupCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	return c.sendJSON(Message{Type: TypeGroupCommand, Payload: cmd})
}

// Play starts the group from where its members are
func (c *Client) Play() error {
	return c.SendCommand(GroupCommand{Command: CommandPlay})
}

// PlayAt starts the group at offset
func (c *Client) PlayAt(offset time.Duration) error {
	ms := offset.Milliseconds()
	return c.SendCommand(GroupCommand{Command: CommandPlay, OffsetMs: &ms})
}

// Pause pauses the group
func (c *Client) Pause() error {
	return c.SendCommand(GroupCommand{Command: CommandPause})
}

// Stop stops the group
func (c *Client) Stop() error {
	return c.SendCommand(GroupCommand{Command: CommandStop})
}

// Seek moves the group to offset
func (c *Client) Seek(offset time.Duration) error {
	ms := offset.Milliseconds()
	return c.SendCommand(GroupCommand{Command: CommandSeek, OffsetMs: &ms})
}

// SetSource sends a source/set
func (c *Client) SetSource(set SourceSet) error {
	if set.ID == "" {
		return fmt.Errorf("source/set requires an id")
	}
	return c.sendJSON(Message{Type: TypeSourceSet, Payload: set})
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.Close()
		log.Printf("Connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
