// Package room implements the per-lobby state machine: roster and host
// rotation, beatmap enforcement, vote-gated skip/abort, and the countdown,
// all driven by Bancho events routed in by the manager.
package room

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/astrolabio1417/legacy-osu-bot/internal/beatmap"
	"github.com/astrolabio1417/legacy-osu-bot/internal/countdown"
	"github.com/astrolabio1417/legacy-osu-bot/internal/irc"
	"github.com/astrolabio1417/legacy-osu-bot/internal/osu"
)

// BanchoBot is the service bot reporting lobby events; any other sender is a
// player.
const BanchoBot = "BanchoBot"

// Countdown announcements fire when the remaining seconds hit one of these.
var countdownCheckpoints = map[int]bool{
	3: true, 10: true, 30: true, 60: true, 90: true, 120: true, 150: true, 180: true,
}

var beatmapChangedRe = regexp.MustCompile(`Beatmap.*?: (.*)? \[(.*?)\] \((.*)?\)`)

// Sender is the outbound side of the shared connection.
type Sender interface {
	Send(message string) bool
	SendPrivate(channel, message string) bool
}

// Config is the validated lobby policy.
type Config struct {
	Name      string
	Password  string
	BotMode   osu.BotMode
	PlayMode  osu.PlayMode
	TeamMode  osu.TeamMode
	ScoreMode osu.ScoreMode
	Size      int
}

func (c Config) validate() error {
	if _, err := osu.ParseBotMode(string(c.BotMode)); err != nil {
		return err
	}
	if c.PlayMode.Name() == "" {
		return osu.ErrUnknownPlayMode
	}
	if c.TeamMode.Name() == "" {
		return osu.ErrUnknownTeamMode
	}
	if c.ScoreMode.Name() == "" {
		return osu.ErrUnknownScoreMode
	}
	return nil
}

// phase is the room lifecycle tag. Collapsing it into one value keeps the
// illegal combinations (configured without a channel, connected without
// creation) unrepresentable.
type phase int

const (
	phaseNew      phase = iota // nothing requested from Bancho yet
	phasePending               // creation requested, channel not yet assigned
	phaseJoined                // channel known, setup applied, on the channel
	phaseDetached              // channel known but the connection dropped
)

// Room is one managed lobby. The manager's dispatch goroutine, the countdown
// goroutine, and the admin API all reach into it; mu serializes them.
type Room struct {
	conn     Sender
	selector *beatmap.Selector
	provider beatmap.Provider
	log      *zap.SugaredLogger

	// assigned once at construction, never changes
	id string

	mu        sync.Mutex
	cfg       Config
	channelID string
	users     *Roster
	skipVotes map[string]struct{}
	abortVotes map[string]struct{}

	// joining-roster buffer for one "!mp settings" reply
	tmpUsers map[string]struct{}
	tmpTotal int

	phase phase

	counter *countdown.Timer
}

// Data is the JSON-able room snapshot served by the admin API.
type Data struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	RoomID       string       `json:"room_id"`
	BotMode      string       `json:"bot_mode"`
	PlayMode     string       `json:"play_mode"`
	TeamMode     string       `json:"team_mode"`
	ScoreMode    string       `json:"score_mode"`
	RoomSize     int          `json:"room_size"`
	IsConnected  bool         `json:"is_connected"`
	IsCreated    bool         `json:"is_created"`
	IsConfigured bool         `json:"is_configured"`
	Users        []string     `json:"users"`
	Skips        []string     `json:"skips"`
	Beatmap      beatmap.Data `json:"beatmap"`
}

// New builds a room with its own freshly constructed countdown timer. Mode
// values are validated up front; an invalid enum rejects construction.
func New(conn Sender, selector *beatmap.Selector, provider beatmap.Provider, cfg Config, log *zap.SugaredLogger) (*Room, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Size == 0 {
		cfg.Size = 16
	}

	r := &Room{
		conn:       conn,
		selector:   selector,
		provider:   provider,
		log:        log,
		id:         uuid.NewString(),
		cfg:        cfg,
		users:      NewRoster(),
		skipVotes:  make(map[string]struct{}),
		abortVotes: make(map[string]struct{}),
		tmpUsers:   make(map[string]struct{}),
		counter:    countdown.NewTimer(),
	}
	r.counter.OnTick = r.onCountdownTick
	r.counter.OnFinished = r.onCountdownFinished
	return r, nil
}

func (r *Room) ID() string { return r.id }

func (r *Room) ChannelID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channelID
}

func (r *Room) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg.Name
}

func (r *Room) Selector() *beatmap.Selector { return r.selector }

// Snapshot returns the JSON-able view of the room.
func (r *Room) Snapshot() Data {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Data{
		ID:           r.id,
		Name:         r.cfg.Name,
		RoomID:       r.channelID,
		BotMode:      string(r.cfg.BotMode),
		PlayMode:     r.cfg.PlayMode.Name(),
		TeamMode:     r.cfg.TeamMode.Name(),
		ScoreMode:    r.cfg.ScoreMode.Name(),
		RoomSize:     r.cfg.Size,
		IsConnected:  r.phase == phaseJoined,
		IsCreated:    r.phase != phaseNew,
		IsConfigured: r.phase == phaseJoined || r.phase == phaseDetached,
		Users:        r.users.List(),
		Skips:        setToList(r.skipVotes),
		Beatmap:      r.selector.Snapshot(),
	}
}

// Create asks Bancho to allocate a channel. The lobby is made under the
// room's unique id so the creation reply can be routed back to it; setup
// renames it afterwards.
func (r *Room) Create() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase == phaseNew {
		r.conn.SendPrivate(BanchoBot, "mp make "+r.id)
		r.phase = phasePending
	}
	return r.phase != phaseNew
}

// Join re-enters the known channel, used after a reconnect.
func (r *Room) Join() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.channelID == "" {
		return false
	}
	r.conn.Send("JOIN " + r.channelID)
	return r.phase == phaseJoined
}

// HandleMatchCreated records the server-assigned channel id and runs the
// one-time setup command sequence.
func (r *Room) HandleMatchCreated(channelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase == phaseJoined && r.channelID == channelID {
		return
	}
	r.channelID = channelID
	r.setupLocked()
	r.phase = phaseJoined
}

func (r *Room) setupLocked() {
	if r.channelID == "" {
		return
	}
	r.sendLocked("!mp name " + r.cfg.Name)
	r.sendLocked("!mp password " + r.cfg.Password)
	r.sendLocked(fmt.Sprintf("!mp set %d %d %d", r.cfg.TeamMode, r.cfg.ScoreMode, r.cfg.Size))
	r.sendLocked("!mp mods Freemod")
	r.setBeatmapLocked(r.selector.Current().ID)
}

// Update is a partial reconfiguration: recognized fields are validated before
// anything commits, the nested filter update goes to the selector, and the
// setup sequence re-runs against the current channel.
type Update struct {
	Name      *string               `json:"name"`
	Password  *string               `json:"password"`
	BotMode   *string               `json:"bot_mode"`
	PlayMode  *string               `json:"play_mode"`
	TeamMode  *string               `json:"team_mode"`
	ScoreMode *string               `json:"score_mode"`
	Size      *int                  `json:"room_size"`
	Beatmap   *beatmap.FilterUpdate `json:"beatmap"`
}

func (r *Room) Configure(update Update) error {
	r.mu.Lock()

	next := r.cfg
	if update.Name != nil {
		next.Name = *update.Name
	}
	if update.Password != nil {
		next.Password = *update.Password
	}
	if update.Size != nil {
		next.Size = *update.Size
	}
	if update.BotMode != nil {
		mode, err := osu.ParseBotMode(*update.BotMode)
		if err != nil {
			r.mu.Unlock()
			return err
		}
		next.BotMode = mode
	}
	if update.PlayMode != nil {
		mode, err := osu.ParsePlayMode(*update.PlayMode)
		if err != nil {
			r.mu.Unlock()
			return err
		}
		next.PlayMode = mode
	}
	if update.TeamMode != nil {
		mode, err := osu.ParseTeamMode(*update.TeamMode)
		if err != nil {
			r.mu.Unlock()
			return err
		}
		next.TeamMode = mode
	}
	if update.ScoreMode != nil {
		mode, err := osu.ParseScoreMode(*update.ScoreMode)
		if err != nil {
			r.mu.Unlock()
			return err
		}
		next.ScoreMode = mode
	}
	r.mu.Unlock()

	if update.Beatmap != nil {
		if err := r.selector.Configure(*update.Beatmap); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.cfg = next
	r.setupLocked()
	r.mu.Unlock()
	return nil
}

// Restart fully closes the lobby state and asks for a fresh channel; used
// when the channel turned out to be stale.
func (r *Room) Restart() {
	r.HandleClosed()
	r.Create()
}

// SendClose asks Bancho to close the match; the "Closed the match" event
// drives the actual state transition.
func (r *Room) SendClose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sendLocked("!mp close")
}

// HandleClosed resets the room to uninitialized so it can be recreated.
// Idempotent.
func (r *Room) HandleClosed() {
	r.counter.Stop()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channelID = ""
	r.users.Clear()
	r.skipVotes = make(map[string]struct{})
	r.abortVotes = make(map[string]struct{})
	r.tmpUsers = make(map[string]struct{})
	r.tmpTotal = 0
	r.phase = phaseNew
}

// MarkDisconnected flags the room after the shared connection dropped.
func (r *Room) MarkDisconnected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase == phaseJoined {
		r.phase = phaseDetached
	}
}

// MarkJoined flags the room once the channel topic arrives after a JOIN.
func (r *Room) MarkJoined() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase == phaseDetached {
		r.phase = phaseJoined
	}
}

func (r *Room) sendLocked(message string) {
	r.conn.SendPrivate(r.channelID, message)
}

func (r *Room) send(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sendLocked(message)
}

func (r *Room) setBeatmapLocked(beatmapID int) {
	r.sendLocked(fmt.Sprintf("!mp map %d %d", beatmapID, r.cfg.PlayMode))
}

// rotateLocked applies the room's rotation policy and clears skip votes.
func (r *Room) rotateLocked() {
	switch r.cfg.BotMode {
	case osu.AutoHost:
		r.rotateHostLocked()
	case osu.AutoRotateMap:
		r.rotateBeatmapLocked()
	}
	r.skipVotes = make(map[string]struct{})
}

func (r *Room) rotateHostLocked() {
	host, ok := r.users.RotateToTail()
	if !ok {
		return
	}
	r.sendLocked("!mp host " + host)
}

func (r *Room) rotateBeatmapLocked() {
	next := r.selector.Rotate()
	r.setBeatmapLocked(next.ID)
}

func (r *Room) queueStringLocked() string {
	switch r.cfg.BotMode {
	case osu.AutoHost:
		return strings.Join(r.users.List(), ", ")
	case osu.AutoRotateMap:
		return r.selector.Queue()
	}
	return ""
}

// quorum is the majority threshold over the current roster.
func quorum(rosterSize int) int {
	return (rosterSize + 1) / 2
}

func setToList(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	return out
}

// HandleEvent interprets one routed sender+message pair against room state.
// Called from the manager's dispatch goroutine.
func (r *Room) HandleEvent(sender, message string) {
	if sender != BanchoBot {
		r.handlePlayerMessage(sender, message)
		return
	}
	r.handleBanchoMessage(message)
}

func (r *Room) handlePlayerMessage(sender, message string) {
	if strings.HasPrefix(message, "!start") {
		r.handleStartCommand(message)
		return
	}

	switch message {
	case "!stop":
		// Start/Stop join the countdown goroutine, so they run before mu.
		r.counter.Stop()
		r.send("Countdown aborted")
	case "!users":
		r.mu.Lock()
		r.sendLocked("Users: " + strings.Join(r.users.List(), ", "))
		r.mu.Unlock()
	case "!skip":
		r.handleSkip(sender)
	case "!abort":
		r.handleAbort(sender)
	case "!queue":
		r.mu.Lock()
		queue := r.queueStringLocked()
		if queue == "" {
			queue = "No Queue"
		}
		r.sendLocked("Queue: " + queue)
		r.mu.Unlock()
	case "!info":
		r.send("Commands: !start <seconds>, !stop, !queue, !skip, !alt, !abort")
	case "!alt":
		r.sendBeatmapAlt()
	}
}

func (r *Room) handleStartCommand(message string) {
	words := strings.Fields(message)
	count := 3
	if len(words) == 2 {
		if n, err := strconv.Atoi(words[1]); err == nil {
			count = n
		}
	}
	r.counter.Start(count)
	r.sendStartMessage(count)
}

func (r *Room) sendStartMessage(seconds int) {
	r.send(fmt.Sprintf("Match starts in %d seconds", seconds))
}

func (r *Room) sendBeatmapAlt() {
	r.send("Links: " + r.selector.Links())
}

func (r *Room) onCountdownTick(remaining int) {
	if countdownCheckpoints[remaining] {
		r.sendStartMessage(remaining)
	}
}

func (r *Room) onCountdownFinished() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.users.Len() > 0 {
		r.sendLocked("!mp start")
	}
}

func (r *Room) handleSkip(sender string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.skipVotes[sender] = struct{}{}
	votes := len(r.skipVotes)
	needed := quorum(r.users.Len())

	head, _ := r.users.Head()
	hostSkip := r.cfg.BotMode == osu.AutoHost && sender == head

	if votes >= needed || hostSkip {
		r.rotateLocked()
		return
	}
	r.sendLocked(fmt.Sprintf("Skip voting: %d / %d", votes, needed))
}

func (r *Room) handleAbort(sender string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.abortVotes[sender] = struct{}{}
	votes := len(r.abortVotes)
	needed := quorum(r.users.Len())

	if votes >= needed {
		r.sendLocked("!mp abort")
		r.abortVotes = make(map[string]struct{})
		return
	}
	r.sendLocked(fmt.Sprintf("Abort voting: %d / %d", votes, needed))
}

func (r *Room) handleBanchoMessage(message string) {
	switch {
	case message == "Closed the match":
		r.HandleClosed()

	case strings.Contains(message, " joined in slot"):
		username := irc.NormalizeUsername(strings.SplitN(message, " joined in slot", 2)[0])
		r.handleJoined(username)

	case strings.HasSuffix(message, "left the game."):
		username := irc.NormalizeUsername(strings.SplitN(message, " left the game.", 2)[0])
		r.handleLeft(username)

	case strings.HasSuffix(message, " became the host."):
		username := irc.NormalizeUsername(strings.SplitN(message, " became the host.", 2)[0])
		r.handleHostChanged(username)

	case message == "The match has started!":
		r.handleMatchStarted()

	case message == "The match has finished!":
		r.handleMatchFinished()

	case message == "All players are ready":
		r.send("!mp start")

	case strings.HasPrefix(message, "Beatmap changed to: "):
		if m := beatmapChangedRe.FindStringSubmatch(message); m != nil {
			r.handleBeatmapChangedTo(irc.BeatmapIDFromURL(m[3]))
		}

	case strings.HasPrefix(message, "Changed beatmap to "):
		words := strings.Split(message, " ")
		if len(words) >= 4 {
			r.handleChangedBeatmapTo(irc.BeatmapIDFromURL(words[3]))
		}

	case strings.HasPrefix(message, "Slot "):
		if slot, ok := irc.ParseSlot(message); ok {
			r.handleSlot(slot)
		}

	case strings.HasPrefix(message, "Players: "):
		words := strings.Split(message, " ")
		if n, err := strconv.Atoi(words[len(words)-1]); err == nil {
			r.handlePlayers(n)
		}
	}
}

func (r *Room) handleJoined(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users.Add(username)
	// first joiner becomes the first host
	if r.cfg.BotMode == osu.AutoHost && r.users.Len() == 1 {
		r.rotateHostLocked()
	}
}

func (r *Room) handleLeft(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if head, ok := r.users.Head(); ok && r.cfg.BotMode == osu.AutoHost && head == username {
		r.rotateHostLocked()
	}
	r.users.Remove(username)
	delete(r.skipVotes, username)
	delete(r.abortVotes, username)
}

func (r *Room) handleHostChanged(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.skipVotes = make(map[string]struct{})
	r.abortVotes = make(map[string]struct{})

	if r.cfg.BotMode != osu.AutoHost {
		return
	}
	if head, ok := r.users.Head(); ok && head != username {
		// someone else grabbed host; re-assert rotation policy
		r.rotateHostLocked()
	}
}

func (r *Room) handleMatchStarted() {
	r.counter.Stop()
	r.mu.Lock()
	defer r.mu.Unlock()

	r.skipVotes = make(map[string]struct{})
	r.abortVotes = make(map[string]struct{})

	// pre-assign the next host so it is ready when the match ends
	if r.cfg.BotMode == osu.AutoHost {
		r.rotateHostLocked()
	}
	if r.users.Len() == 0 {
		r.sendLocked("!mp abort")
	}
}

func (r *Room) handleMatchFinished() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sendLocked("!mp settings | Queue: " + r.queueStringLocked())
	if r.cfg.BotMode == osu.AutoRotateMap {
		r.rotateBeatmapLocked()
	}
}

// handleBeatmapChangedTo reacts to the host browsing to a different map; the
// enforced command triggers the confirmed-change flow where validation runs.
func (r *Room) handleBeatmapChangedTo(beatmapID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.selector.Current()
	if beatmapID == current.ID {
		return
	}
	if beatmapID == 0 {
		beatmapID = current.ID
	}
	r.setBeatmapLocked(beatmapID)
}

// handleChangedBeatmapTo validates a confirmed beatmap change against the
// filters, rolling back to the previous selection on any violation.
func (r *Room) handleChangedBeatmapTo(beatmapID int) {
	r.mu.Lock()
	r.skipVotes = make(map[string]struct{})
	r.abortVotes = make(map[string]struct{})
	autoRotate := r.cfg.BotMode == osu.AutoRotateMap
	current := r.selector.Current()
	r.mu.Unlock()

	if autoRotate {
		r.sendBeatmapAlt()
		return
	}
	if beatmapID == current.ID {
		return
	}

	// provider lookups run outside mu; only the outcome mutates state
	b, err := r.provider.Beatmap(beatmapID)
	if err != nil {
		r.log.Warnw("beatmap lookup failed", "beatmap_id", beatmapID, "error", err)
		r.mu.Lock()
		r.sendLocked(fmt.Sprintf("!mp map %d %d | Failed to find beatmap!", current.ID, r.cfg.PlayMode))
		r.mu.Unlock()
		return
	}

	var errs []string
	set, err := r.provider.Beatmapset(b.BeatmapsetID)
	if err != nil {
		r.log.Warnw("beatmapset lookup failed", "beatmapset_id", b.BeatmapsetID, "error", err)
	} else {
		errs = append(errs, r.selector.BeatmapsetErrors(set)...)
		b.Title, b.Artist = set.Title, set.Artist
	}
	errs = append(errs, r.selector.BeatmapErrors(b)...)

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(errs) > 0 {
		named := errs[:min(len(errs), 2)]
		r.sendLocked(fmt.Sprintf("!mp map %d %d | Violations: %s", current.ID, r.cfg.PlayMode, strings.Join(named, ", ")))
		return
	}

	r.selector.SetCurrent(b)
	r.sendLocked("Links: " + r.selector.Links())
}

// handleSlot accumulates one roster line of a settings reply; once the
// buffer reaches the announced player count the roster is reconciled to
// exactly the reported usernames.
func (r *Room) handleSlot(slot irc.Slot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tmpUsers[slot.Username] = struct{}{}
	r.users.Add(slot.Username)

	if len(r.tmpUsers) < r.tmpTotal {
		return
	}
	for _, username := range r.users.List() {
		if _, ok := r.tmpUsers[username]; !ok {
			r.users.Remove(username)
		}
	}
}

// handlePlayers scopes the slot buffer to this settings reply: the player
// count always precedes the slot lines, so it doubles as the reset marker.
func (r *Room) handlePlayers(count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tmpUsers = make(map[string]struct{})
	r.tmpTotal = count
}
