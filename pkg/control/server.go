// ABOUTME: WebSocket control server for a synchronized source group
// ABOUTME: Applies remote group commands and source settings, broadcasts group state
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/Resonate-Protocol/syncsource-go/internal/discovery"
	"github.com/Resonate-Protocol/syncsource-go/pkg/audio"
	"github.com/Resonate-Protocol/syncsource-go/pkg/filter"
	"github.com/Resonate-Protocol/syncsource-go/pkg/groupsync"
	"github.com/Resonate-Protocol/syncsource-go/pkg/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// DefaultPort is the control port advertised over mDNS
const DefaultPort = 8927

var (
	ErrNoGroup       = errors.New("group is required")
	ErrUnknownSource = errors.New("unknown source")
	ErrNoLowPass     = errors.New("no low-pass filter configured")
)

// Adjustable is a member whose mix settings can be changed remotely
type Adjustable interface {
	SetVolume(volume float32)
	SetPitch(pitch float32)
	SetFilter(f filter.Filter)
}

// ServerConfig configures a control server
type ServerConfig struct {
	// Port to listen on (default: 8927)
	Port int

	// Name of the server for identification
	Name string

	// Group to control (required)
	Group *groupsync.Group

	// LowPass is attached to a source by source/set {"lowpass": true}
	LowPass filter.Filter

	// StateInterval is the group/state broadcast period while playing (default: 1s)
	StateInterval time.Duration

	// CommandTimeout bounds how long a command waits for members to get ready (default: 10s)
	CommandTimeout time.Duration

	// EnableMDNS advertises the server as _syncsource._tcp
	EnableMDNS bool

	// Debug enables debug logging
	Debug bool
}

// Server accepts controller connections on /control
type Server struct {
	config   ServerConfig
	serverID string
	group    *groupsync.Group

	upgrader   websocket.Upgrader
	httpServer *http.Server
	mux        *http.ServeMux

	clients   map[string]*client
	clientsMu sync.RWMutex

	mdnsManager *discovery.Manager

	ctx        context.Context
	cancel     context.CancelFunc
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

type client struct {
	ID   string
	Name string
	Conn *websocket.Conn

	sendChan chan protocol.Message
}

// ClientInfo describes a connected controller
type ClientInfo struct {
	ID   string
	Name string
}

// NewServer creates a control server for config.Group
func NewServer(config ServerConfig) (*Server, error) {
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.Name == "" {
		config.Name = "SyncSource"
	}
	if config.Group == nil {
		return nil, ErrNoGroup
	}
	if config.StateInterval <= 0 {
		config.StateInterval = time.Second
	}
	if config.CommandTimeout <= 0 {
		config.CommandTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		config:   config,
		serverID: uuid.New().String(),
		group:    config.Group,
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			// Controllers run on the local network
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*client),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// ID returns the server id sent in server/hello
func (s *Server) ID() string {
	return s.serverID
}

// Start serves until Stop is called
func (s *Server) Start() error {
	log.Printf("Control server starting: %s (ID: %s, group: %s)", s.config.Name, s.serverID, s.group.Name())

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		}
	}

	s.mux.HandleFunc(protocol.ControlPath, s.handleWebSocket)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.broadcastLoop()
	}()

	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Printf("Control server listening on %s%s", addr, protocol.ControlPath)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var serveErr error
	select {
	case <-s.ctx.Done():
		log.Printf("Control server shutting down...")
	case serveErr = <-errChan:
		log.Printf("HTTP server error: %v", serveErr)
		s.cancel()
	}

	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Hijacked websocket connections are not closed by Shutdown
	s.clientsMu.RLock()
	for _, c := range s.clients {
		c.Conn.Close()
	}
	s.clientsMu.RUnlock()

	s.wg.Wait()
	log.Printf("Control server stopped cleanly")

	return serveErr
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(s.cancel)
}

// Clients returns the connected controllers
func (s *Server) Clients() []ClientInfo {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	clients := make([]ClientInfo, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, ClientInfo{ID: c.ID, Name: c.Name})
	}
	return clients
}

// Notify broadcasts the current group state, for changes made outside the server
func (s *Server) Notify() {
	s.broadcast(protocol.Message{Type: protocol.TypeGroupState, Payload: protocol.NewGroupState(s.group)})
}

// broadcastLoop refreshes offsets on every controller while the group plays
func (s *Server) broadcastLoop() {
	ticker := time.NewTicker(s.config.StateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.group.Status() == audio.StatusPlaying {
				s.Notify()
			}
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("New control connection from %s", r.RemoteAddr)
	s.handleConnection(conn)
}

func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		log.Printf("Rejecting connection during shutdown")
		return
	}
	s.shutdownMu.RUnlock()

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		log.Printf("Error reading hello: %v", err)
		return
	}
	conn.SetReadDeadline(time.Time{})

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return
	}
	if msg.Type != protocol.TypeClientHello {
		log.Printf("Expected client/hello, got %s", msg.Type)
		return
	}

	var hello protocol.ClientHello
	if err := protocol.DecodePayload(msg.Payload, &hello); err != nil {
		log.Printf("Error decoding client hello: %v", err)
		return
	}
	if hello.ClientID == "" || hello.Name == "" {
		log.Printf("Client hello missing required fields")
		return
	}

	c := &client{
		ID:       hello.ClientID,
		Name:     hello.Name,
		Conn:     conn,
		sendChan: make(chan protocol.Message, 32),
	}

	s.clientsMu.Lock()
	if _, exists := s.clients[c.ID]; exists {
		s.clientsMu.Unlock()
		log.Printf("Client ID %s already connected, rejecting duplicate", c.ID)
		return
	}
	s.clients[c.ID] = c
	s.clientsMu.Unlock()

	log.Printf("Controller connected: %s (ID: %s)", c.Name, c.ID)

	writerDone := make(chan struct{})
	defer func() {
		s.removeClient(c)
		<-writerDone
		log.Printf("Controller disconnected: %s", c.Name)
	}()

	s.sendMessage(c, protocol.TypeServerHello, protocol.ServerHello{ServerID: s.serverID, Name: s.config.Name})
	s.sendMessage(c, protocol.TypeGroupState, protocol.NewGroupState(s.group))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(writerDone)
		s.clientWriter(c)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		if err := s.handleClientMessage(c, data); err != nil {
			log.Printf("Request from %s failed: %v", c.Name, err)
			s.sendMessage(c, protocol.TypeServerError, protocol.ServerError{Message: err.Error()})
			continue
		}
		s.Notify()
	}
}

func (s *Server) clientWriter(c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	const writeDeadline = 10 * time.Second

	for {
		select {
		case msg, ok := <-c.sendChan:
			if !ok {
				return
			}
			c.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.Conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleClientMessage(c *client, data []byte) error {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}

	switch msg.Type {
	case protocol.TypeGroupCommand:
		var cmd protocol.GroupCommand
		if err := protocol.DecodePayload(msg.Payload, &cmd); err != nil {
			return err
		}
		if s.config.Debug {
			log.Printf("Command from %s: %+v", c.Name, cmd)
		}
		return s.Apply(cmd)

	case protocol.TypeSourceSet:
		var set protocol.SourceSet
		if err := protocol.DecodePayload(msg.Payload, &set); err != nil {
			return err
		}
		return s.SetSource(set)

	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}

// Apply runs a group command. Play with an offset and seek wait for every member to be
// ready at that offset; plain play resumes members from where they are.
func (s *Server) Apply(cmd protocol.GroupCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.config.CommandTimeout)
	defer cancel()

	offset, hasOffset := cmd.Offset()

	var err error
	switch cmd.Command {
	case protocol.CommandPlay:
		if hasOffset {
			err = s.group.SynchronizeAt(ctx, audio.StatusPlaying, offset)
		} else {
			err = s.group.Play(ctx)
		}
	case protocol.CommandPause:
		err = s.group.Pause(ctx)
	case protocol.CommandStop:
		err = s.group.Stop(ctx)
	case protocol.CommandSeek:
		err = s.group.Seek(ctx, offset)
	}
	if err != nil {
		return fmt.Errorf("%s failed: %w", cmd.Command, err)
	}
	return nil
}

// SetSource applies a source/set to one group member
func (s *Server) SetSource(set protocol.SourceSet) error {
	id, err := uuid.Parse(set.ID)
	if err != nil {
		return fmt.Errorf("invalid source id %q: %w", set.ID, err)
	}

	member, ok := s.group.Find(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSource, set.ID)
	}
	adj, ok := member.(Adjustable)
	if !ok {
		return fmt.Errorf("source %s cannot be adjusted", set.ID)
	}

	if set.LowPass != nil && *set.LowPass && s.config.LowPass == nil {
		return ErrNoLowPass
	}
	if set.Pitch != nil && *set.Pitch <= 0 {
		return fmt.Errorf("pitch must be positive, got %v", *set.Pitch)
	}

	if set.Volume != nil {
		adj.SetVolume(min(max(*set.Volume, 0), 100))
	}
	if set.Pitch != nil {
		adj.SetPitch(*set.Pitch)
	}
	if set.LowPass != nil {
		if *set.LowPass {
			adj.SetFilter(s.config.LowPass)
		} else {
			adj.SetFilter(nil)
		}
	}
	return nil
}

func (s *Server) removeClient(c *client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	delete(s.clients, c.ID)
	close(c.sendChan)
}

func (s *Server) sendMessage(c *client, msgType string, payload interface{}) error {
	select {
	case c.sendChan <- protocol.Message{Type: msgType, Payload: payload}:
		return nil
	default:
		return fmt.Errorf("client send buffer full")
	}
}

func (s *Server) broadcast(msg protocol.Message) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, c := range s.clients {
		if err := s.sendMessage(c, msg.Type, msg.Payload); err != nil && s.config.Debug {
			log.Printf("Dropping %s for %s: %v", msg.Type, c.Name, err)
		}
	}
}
