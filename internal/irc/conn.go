package irc

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Marker is a connection-lifecycle sentinel yielded in place of a line.
type Marker int

const (
	MarkerNone Marker = iota
	MarkerDisconnected
	MarkerReconnected
	MarkerReconnectFailed
)

// Inbound is one item of the connection's line sequence: either a raw
// protocol line (Marker == MarkerNone) or a lifecycle marker.
type Inbound struct {
	Line   string
	Marker Marker
}

const (
	DefaultHost = "irc.ppy.sh"
	DefaultPort = 6667

	// Bancho allows roughly 10 messages per 5 seconds.
	sendCooldown = 600 * time.Millisecond

	connectTimeout = 10 * time.Second
	reconnectPause = time.Second
	recvBufferSize = 2048
)

// Config carries the connection settings. Zero Host/Port fall back to Bancho.
type Config struct {
	Username string
	Password string
	Host     string
	Port     int
	Cooldown time.Duration
}

// Conn owns the socket to Bancho: connect/reconnect, the PASS/NICK handshake,
// and a single sender goroutine draining the outbound queue under the
// rate-limit cooldown shared by every room.
type Conn struct {
	cfg Config
	log *zap.SugaredLogger

	mu        sync.Mutex
	sock      net.Conn
	running   bool
	connected bool

	queue      *messageQueue
	senderDone chan struct{}
	stopOnce   sync.Once
}

func NewConn(cfg Config, log *zap.SugaredLogger) *Conn {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = sendCooldown
	}
	return &Conn{
		cfg:        cfg,
		log:        log,
		queue:      newMessageQueue(),
		senderDone: make(chan struct{}),
	}
}

func (c *Conn) addr() string {
	return net.JoinHostPort(c.cfg.Host, fmt.Sprintf("%d", c.cfg.Port))
}

// Username is the authenticated nick; the manager compares inbound channels
// against it to recognize private messages.
func (c *Conn) Username() string { return c.cfg.Username }

func (c *Conn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Conn) isRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Connect performs one blocking dial and, on success, the two-line
// authentication handshake. Transport faults are logged, never returned.
func (c *Conn) Connect(timeout time.Duration) bool {
	c.log.Infof("connecting to %s...", c.addr())
	c.setConnected(false)

	if c.cfg.Username == "" || c.cfg.Password == "" {
		c.log.Info("connection refused: no username or password supplied")
		time.Sleep(reconnectPause)
		return false
	}

	sock, err := net.DialTimeout("tcp", c.addr(), timeout)
	if err != nil {
		c.log.Infof("connect failed: %v", err)
		return false
	}

	c.mu.Lock()
	c.sock = sock
	c.connected = true
	c.mu.Unlock()
	c.log.Info("connected")

	if err := c.directSend("PASS " + c.cfg.Password); err != nil {
		c.Disconnect()
		return false
	}
	if err := c.directSend("NICK " + c.cfg.Username); err != nil {
		c.Disconnect()
		return false
	}
	return true
}

// Disconnect drops the socket; queued messages stay queued.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	sock := c.sock
	c.connected = false
	c.mu.Unlock()
	if sock != nil {
		_ = sock.Close()
	}
}

func (c *Conn) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func (c *Conn) receive() (string, error) {
	c.mu.Lock()
	sock := c.sock
	c.mu.Unlock()
	if sock == nil {
		return "", fmt.Errorf("receive: no socket")
	}

	buf := make([]byte, recvBufferSize)
	n, err := sock.Read(buf)
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

func (c *Conn) directSend(message string) error {
	c.mu.Lock()
	sock := c.sock
	c.mu.Unlock()
	if sock == nil {
		return fmt.Errorf("send: no socket")
	}

	c.log.Debugf("SEND: %s", message)
	_, err := sock.Write([]byte(message + "\n"))
	return err
}

// Send enqueues a line for the sender loop. The message is queued regardless
// of connection state; the return value only reports whether we are currently
// connected.
func (c *Conn) Send(message string) bool {
	c.queue.push(message)
	return c.IsConnected()
}

// SendPrivate enqueues a PRIVMSG to a channel or user.
func (c *Conn) SendPrivate(channel, message string) bool {
	return c.Send(fmt.Sprintf("PRIVMSG %s : %s", channel, message))
}

// runSender drains the queue one line at a time, only transmitting while
// connected and sleeping the cooldown after each write. A failed write puts
// the line back at the head so nothing is lost or reordered.
func (c *Conn) runSender() {
	defer close(c.senderDone)

	for {
		message, ok := c.queue.pop()
		if !ok {
			return
		}

		for !c.IsConnected() {
			if !c.isRunning() {
				c.queue.pushFront(message)
				return
			}
			time.Sleep(100 * time.Millisecond)
		}

		if err := c.directSend(message); err != nil {
			c.log.Infof("send failed, requeueing: %v", err)
			c.queue.pushFront(message)
			c.Disconnect()
			continue
		}

		time.Sleep(c.cfg.Cooldown)
	}
}

// Lines returns the inbound sequence: raw protocol lines interleaved with
// lifecycle markers. The channel is fed by a dedicated goroutine, closed when
// the connection stops, and cannot be restarted afterwards.
func (c *Conn) Lines() <-chan Inbound {
	out := make(chan Inbound)

	go func() {
		defer close(out)
		buffer := ""

		for c.isRunning() {
			if !c.IsConnected() {
				if c.Connect(connectTimeout) {
					out <- Inbound{Marker: MarkerReconnected}
				} else {
					out <- Inbound{Marker: MarkerReconnectFailed}
					time.Sleep(reconnectPause)
				}
				continue
			}

			chunk, err := c.receive()
			if err != nil || chunk == "" {
				if !c.isRunning() {
					return
				}
				c.log.Info("connection lost on receive")
				c.Disconnect()
				out <- Inbound{Marker: MarkerDisconnected}
				continue
			}

			lines := strings.Split(buffer+chunk, "\n")
			buffer = lines[len(lines)-1]
			for _, line := range lines[:len(lines)-1] {
				out <- Inbound{Line: strings.TrimSuffix(line, "\r")}
			}
		}
	}()

	return out
}

// Start launches the sender loop and makes the initial connect attempt.
func (c *Conn) Start() {
	c.mu.Lock()
	c.running = true
	c.mu.Unlock()

	go c.runSender()
	c.Connect(connectTimeout)
}

// Stop tears down the socket and joins the sender loop. Idempotent.
func (c *Conn) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()

		c.queue.close()
		c.Disconnect()
		<-c.senderDone
	})
}

// messageQueue is the unbounded FIFO between the dispatch/timer producers and
// the single sender consumer.
type messageQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []string
	closed bool
}

func newMessageQueue() *messageQueue {
	q := &messageQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *messageQueue) push(item string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
	q.cond.Signal()
}

func (q *messageQueue) pushFront(item string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append([]string{item}, q.items...)
	q.cond.Signal()
}

// pop blocks until an item is available or the queue is closed.
func (q *messageQueue) pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return "", false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

func (q *messageQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
