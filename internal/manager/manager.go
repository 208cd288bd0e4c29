// Package manager owns the shared Bancho connection and the set of managed
// rooms, demultiplexing one inbound line stream across all of them.
package manager

import (
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/astrolabio1417/legacy-osu-bot/internal/irc"
	"github.com/astrolabio1417/legacy-osu-bot/internal/room"
)

var matchCreatedRe = regexp.MustCompile(`https://osu\.ppy\.sh/mp/(\d+) (.*)`)

// Manager routes every inbound line to the right room, or handles it itself
// when it is a connection-lifecycle marker or a creation/numeric reply
// addressed to the bot.
type Manager struct {
	conn *irc.Conn
	log  *zap.SugaredLogger

	mu    sync.Mutex
	rooms map[string]*room.Room // keyed by unique id

	dispatchDone chan struct{}
	started      bool
}

func New(conn *irc.Conn, log *zap.SugaredLogger) *Manager {
	return &Manager{
		conn:  conn,
		log:   log,
		rooms: make(map[string]*room.Room),
	}
}

func (m *Manager) Conn() *irc.Conn { return m.conn }

// Add registers a room under its unique id.
func (m *Manager) Add(r *room.Room) *room.Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[r.ID()] = r
	return r
}

// Remove drops a room from the registry; its lobby is untouched.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[id]; !ok {
		return false
	}
	delete(m.rooms, id)
	return true
}

// Get looks a room up by unique id.
func (m *Manager) Get(id string) *room.Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rooms[id]
}

// GetByChannel looks a room up by its server-assigned channel id.
func (m *Manager) GetByChannel(channelID string) *room.Room {
	if channelID == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rooms {
		if r.ChannelID() == channelID {
			return r
		}
	}
	return nil
}

// List returns the registered rooms in no particular order.
func (m *Manager) List() []*room.Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	rooms := make([]*room.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// CreateAll asks Bancho for a channel for every room not yet created.
func (m *Manager) CreateAll() {
	for _, r := range m.List() {
		r.Create()
	}
}

// JoinAll re-sends JOIN for every room with a known channel, used after a
// reconnect.
func (m *Manager) JoinAll() {
	for _, r := range m.List() {
		r.Join()
	}
}

// Start launches the connection and consumes its line sequence, either on a
// background goroutine or on the caller's.
func (m *Manager) Start(background bool) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.dispatchDone = make(chan struct{})
	m.mu.Unlock()

	m.conn.Start()

	if background {
		go m.runDispatch()
		return
	}
	m.runDispatch()
}

// Stop tears the connection down; the dispatch loop drains and exits. A
// manager that was never started has nothing to stop.
func (m *Manager) Stop() {
	m.mu.Lock()
	started := m.started
	done := m.dispatchDone
	m.mu.Unlock()
	if !started {
		return
	}

	m.conn.Stop()
	if done != nil {
		<-done
	}
}

// Started reports whether the dispatch loop has been launched.
func (m *Manager) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

func (m *Manager) runDispatch() {
	defer close(m.dispatchDone)
	for in := range m.conn.Lines() {
		m.dispatch(in)
	}
}

// dispatch is the single consumer of the line sequence; every room mutation
// it performs is serialized here.
func (m *Manager) dispatch(in irc.Inbound) {
	switch in.Marker {
	case irc.MarkerDisconnected:
		m.log.Error("connection has been lost")
		for _, r := range m.List() {
			r.MarkDisconnected()
		}
		return
	case irc.MarkerReconnectFailed:
		m.log.Error("reconnection failed")
		return
	case irc.MarkerReconnected:
		m.log.Info("connection has been reestablished")
		m.JoinAll()
		return
	}

	event, ok := irc.ParseEvent(in.Line)
	if !ok || event.Command == "QUIT" {
		return
	}
	m.log.Debugw("event", "sender", event.Sender, "command", event.Command, "channel", event.Channel, "message", event.Message)

	switch {
	case event.Channel == m.conn.Username() && event.Sender == room.BanchoBot:
		if strings.HasPrefix(event.Message, "Created the tournament match") {
			m.handleMatchCreated(event.Message)
		}

	case strings.HasPrefix(event.Channel, "#mp_"):
		if r := m.GetByChannel(event.Channel); r != nil {
			r.HandleEvent(event.Sender, event.Message)
		}

	case event.Channel == m.conn.Username() && strings.HasPrefix(event.Message, "#mp_"):
		// numeric replies carry the channel as the first word of the body
		channelID := strings.SplitN(event.Message, " ", 2)[0]
		r := m.GetByChannel(channelID)
		if r == nil {
			return
		}
		switch event.Command {
		case "403": // no such channel; the lobby expired
			r.Restart()
		case "332": // topic reply confirms the join
			r.MarkJoined()
		}
	}
}

// handleMatchCreated resolves Bancho's creation announcement back to the room
// that asked for it: lobbies are made under the room's unique id, so the
// trailing name in the URL line is the lookup key.
func (m *Manager) handleMatchCreated(message string) {
	match := matchCreatedRe.FindStringSubmatch(message)
	if match == nil {
		return
	}
	matchID, name := match[1], match[2]

	r := m.Get(name)
	if r == nil {
		m.log.Warnw("creation reply for unknown room", "name", name)
		return
	}
	r.HandleMatchCreated("#mp_" + matchID)
}
