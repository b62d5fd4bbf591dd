package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config carries the coordination knobs. Zero values take the defaults
// below.
type Config struct {
	// WSBaseURL is the websocket endpoint without query parameters, usually
	// derived from the API base URL via StreamBaseURL.
	WSBaseURL string

	// ElectionWindow is how long a starting instance waits for a pong
	// before assuming leadership.
	ElectionWindow time.Duration

	// ReconnectBase is the first reconnect delay; each attempt doubles it.
	ReconnectBase time.Duration

	// MaxReconnectAttempts failed reconnects switch the stream to polling.
	MaxReconnectAttempts int

	// PollInterval spaces the synthetic sync events emitted while polling.
	PollInterval time.Duration

	// PollRetryInterval spaces fresh connection attempts made from the
	// polling state. Zero disables recovery back to streaming.
	PollRetryInterval time.Duration

	// DedupeCapacity bounds the set of recently seen event ids.
	DedupeCapacity int
}

const (
	defaultElectionWindow = 150 * time.Millisecond
	defaultReconnectBase  = time.Second
	defaultMaxAttempts    = 5
	defaultPollInterval   = 5 * time.Second
	defaultPollRetry      = time.Minute
	defaultDedupeCapacity = 1000

	dialTimeout = 10 * time.Second
)

func (c Config) withDefaults() Config {
	if c.ElectionWindow <= 0 {
		c.ElectionWindow = defaultElectionWindow
	}
	if c.ReconnectBase <= 0 {
		c.ReconnectBase = defaultReconnectBase
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = defaultMaxAttempts
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.DedupeCapacity <= 0 {
		c.DedupeCapacity = defaultDedupeCapacity
	}
	return c
}

type role int

const (
	roleCandidate role = iota
	roleFollower
	roleLeader
)

func (r role) String() string {
	switch r {
	case roleLeader:
		return "leader"
	case roleFollower:
		return "follower"
	default:
		return "candidate"
	}
}

type coordMsg interface{ isCoordMsg() }

type subscribeMsg struct{ Topic string }
type unsubscribeMsg struct{}
type addEventListener struct {
	Fn    func(Event)
	Reply chan func()
}
type addStatusListener struct {
	Fn    func(Status)
	Reply chan func()
}
type removeEventListener struct{ ID int }
type removeStatusListener struct{ ID int }
type busFrame struct{ Frame Frame }
type electionTimeout struct{}
type socketOpened struct {
	Epoch int
	Conn  Conn
}
type socketData struct {
	Epoch int
	Data  []byte
}
type socketClosed struct {
	Epoch int
	Err   error
}
type reconnectFire struct{ Epoch int }
type pollTick struct{ Epoch int }
type pollRetry struct{ Epoch int }
type getView struct{ Reply chan View }

func (subscribeMsg) isCoordMsg()         {}
func (unsubscribeMsg) isCoordMsg()       {}
func (addEventListener) isCoordMsg()     {}
func (addStatusListener) isCoordMsg()    {}
func (removeEventListener) isCoordMsg()  {}
func (removeStatusListener) isCoordMsg() {}
func (busFrame) isCoordMsg()             {}
func (electionTimeout) isCoordMsg()      {}
func (socketOpened) isCoordMsg()         {}
func (socketData) isCoordMsg()           {}
func (socketClosed) isCoordMsg()         {}
func (reconnectFire) isCoordMsg()        {}
func (pollTick) isCoordMsg()             {}
func (pollRetry) isCoordMsg()            {}
func (getView) isCoordMsg()              {}

// View reflects coordinator state without data races; used by tests and the
// status endpoint.
type View struct {
	PeerID    string `json:"peerId"`
	Role      string `json:"role"`
	Status    Status `json:"status"`
	Topic     string `json:"topic,omitempty"`
	Connected bool   `json:"connected"`
}

// Coordinator owns this instance's side of the shared-stream protocol. All
// state below the inbox is touched only by the loop goroutine.
type Coordinator struct {
	cfg    Config
	bus    Bus
	dialer Dialer
	log    *zap.Logger

	peerID   string
	inbox    chan coordMsg
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once

	busCancel func()

	role      role
	status    Status
	topic     string
	conn      Conn
	connEpoch int
	attempts  int
	delays    *backoff.ExponentialBackOff
	seen      *dedupeSet

	electionTimer  *time.Timer
	reconnectTimer *time.Timer
	pollTimer      *time.Timer
	retryTimer     *time.Timer

	eventSubs  map[int]func(Event)
	statusSubs map[int]func(Status)
	nextSubID  int
}

func NewCoordinator(cfg Config, bus Bus, dialer Dialer, log *zap.Logger) *Coordinator {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	delays := backoff.NewExponentialBackOff()
	delays.InitialInterval = cfg.ReconnectBase
	delays.RandomizationFactor = 0
	delays.Multiplier = 2
	delays.MaxInterval = cfg.ReconnectBase * time.Duration(1<<cfg.MaxReconnectAttempts)
	delays.MaxElapsedTime = 0
	delays.Reset()

	return &Coordinator{
		cfg:        cfg,
		bus:        bus,
		dialer:     dialer,
		log:        log,
		peerID:     uuid.NewString(),
		inbox:      make(chan coordMsg, 64),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		status:     StatusDisconnected,
		delays:     delays,
		seen:       newDedupeSet(cfg.DedupeCapacity),
		eventSubs:  make(map[int]func(Event)),
		statusSubs: make(map[int]func(Status)),
	}
}

// PeerID identifies this instance on the bus.
func (c *Coordinator) PeerID() string { return c.peerID }

// Start joins the bus and begins the leader election.
func (c *Coordinator) Start() error {
	cancel, err := c.bus.Subscribe(func(f Frame) {
		if f.Sender == c.peerID {
			return
		}
		c.post(busFrame{Frame: f})
	})
	if err != nil {
		return err
	}
	c.busCancel = cancel
	c.started.Store(true)
	go c.loop()
	return nil
}

// Stop announces departure if leading, tears everything down and waits for
// the loop to exit. No listener callback fires after Stop returns. Safe on a
// coordinator that never started.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		c.cancel()
		if c.started.Load() {
			<-c.done
		}
	})
}

// Subscribe switches the shared stream to topic. Re-subscribing to the same
// topic is a no-op while connected; a new topic replaces the old one.
func (c *Coordinator) Subscribe(topic string) { c.post(subscribeMsg{Topic: topic}) }

// Unsubscribe clears the topic and, if this instance owns the socket,
// closes it. Pending reconnects are cancelled.
func (c *Coordinator) Unsubscribe() { c.post(unsubscribeMsg{}) }

// OnEvent registers fn to receive each deduplicated event once, in stream
// order. The returned func removes the listener.
func (c *Coordinator) OnEvent(fn func(Event)) func() {
	reply := make(chan func(), 1)
	c.post(addEventListener{Fn: fn, Reply: reply})
	select {
	case disposer := <-reply:
		return disposer
	case <-c.done:
		return func() {}
	}
}

// OnStatusChange registers fn, invoking it with the current status before
// any later change is delivered.
func (c *Coordinator) OnStatusChange(fn func(Status)) func() {
	reply := make(chan func(), 1)
	c.post(addStatusListener{Fn: fn, Reply: reply})
	select {
	case disposer := <-reply:
		return disposer
	case <-c.done:
		return func() {}
	}
}

// Snapshot returns a race-free view of the coordinator.
func (c *Coordinator) Snapshot() View {
	reply := make(chan View, 1)
	c.post(getView{Reply: reply})
	select {
	case v := <-reply:
		return v
	case <-c.done:
		return View{PeerID: c.peerID, Status: StatusDisconnected}
	}
}

func (c *Coordinator) post(m coordMsg) {
	select {
	case c.inbox <- m:
	case <-c.ctx.Done():
	}
}

func (c *Coordinator) loop() {
	c.startElection()
	for {
		select {
		case <-c.ctx.Done():
			c.teardown()
			close(c.done)
			return

		case m := <-c.inbox:
			switch msg := m.(type) {
			case subscribeMsg:
				c.handleSubscribe(msg.Topic)
			case unsubscribeMsg:
				c.handleUnsubscribe()
			case addEventListener:
				id := c.nextSubID
				c.nextSubID++
				c.eventSubs[id] = msg.Fn
				msg.Reply <- func() { c.post(removeEventListener{ID: id}) }
			case addStatusListener:
				id := c.nextSubID
				c.nextSubID++
				c.statusSubs[id] = msg.Fn
				msg.Fn(c.status)
				msg.Reply <- func() { c.post(removeStatusListener{ID: id}) }
			case removeEventListener:
				delete(c.eventSubs, msg.ID)
			case removeStatusListener:
				delete(c.statusSubs, msg.ID)
			case busFrame:
				c.handleFrame(msg.Frame)
			case electionTimeout:
				if c.role == roleCandidate {
					c.becomeLeader()
				}
			case socketOpened:
				c.handleSocketOpened(msg)
			case socketData:
				c.handleSocketData(msg)
			case socketClosed:
				c.handleSocketClosed(msg)
			case reconnectFire:
				if msg.Epoch == c.connEpoch && c.role == roleLeader && c.topic != "" && c.conn == nil {
					c.connect()
				}
			case pollTick:
				c.handlePollTick(msg)
			case pollRetry:
				c.handlePollRetry(msg)
			case getView:
				msg.Reply <- View{
					PeerID:    c.peerID,
					Role:      c.role.String(),
					Status:    c.status,
					Topic:     c.topic,
					Connected: c.conn != nil,
				}
			}
		}
	}
}

// --- election ---

func (c *Coordinator) startElection() {
	c.role = roleCandidate
	c.publish(Frame{Kind: KindLeaderPing})
	c.stopTimer(&c.electionTimer)
	c.electionTimer = time.AfterFunc(c.cfg.ElectionWindow, func() {
		c.post(electionTimeout{})
	})
}

func (c *Coordinator) becomeLeader() {
	c.role = roleLeader
	c.log.Info("assumed stream leadership", zap.String("peer", c.peerID))
	// Announce the claim. Peers that won the same election window see it and
	// the lowest-id tie-break settles who keeps the socket.
	c.publish(Frame{Kind: KindLeaderPong, Status: c.status})
	if c.topic != "" {
		c.resetRetryState()
		c.connect()
	}
}

// abdicate steps down after losing a tie-break against another leader. The
// topic is handed back over the bus so the winner picks it up, and the local
// status mirror is reset to the winner's reported status.
func (c *Coordinator) abdicate(winnerStatus Status) {
	c.log.Info("conceding leadership to lower peer id", zap.String("peer", c.peerID))
	c.role = roleFollower
	c.stopTimer(&c.reconnectTimer)
	c.stopTimer(&c.pollTimer)
	c.stopTimer(&c.retryTimer)
	c.dropConn()
	if winnerStatus == "" {
		winnerStatus = StatusDisconnected
	}
	c.setStatus(winnerStatus)
	if c.topic != "" {
		c.publish(Frame{Kind: KindSubscribe, Topic: c.topic})
	}
}

func (c *Coordinator) handleFrame(f Frame) {
	switch f.Kind {
	case KindLeaderPing:
		if c.role == roleLeader {
			c.publish(Frame{Kind: KindLeaderPong, Status: c.status})
		}
	case KindLeaderPong:
		switch c.role {
		case roleCandidate:
			c.role = roleFollower
			c.stopTimer(&c.electionTimer)
			// A leader exists; mirror its status right away instead of
			// waiting for the next change, and hand over our topic.
			if f.Status != "" {
				c.setStatus(f.Status)
			}
			if c.topic != "" {
				c.publish(Frame{Kind: KindSubscribe, Topic: c.topic})
			}
		case roleFollower:
			if f.Status != "" {
				c.setStatus(f.Status)
			}
		case roleLeader:
			// Another leader claimed or answered a ping. Lowest peer id
			// wins; the survivor re-asserts so the loser hears the claim
			// even if the original one was missed.
			if f.Sender < c.peerID {
				c.abdicate(f.Status)
			} else {
				c.publish(Frame{Kind: KindLeaderPong, Status: c.status})
			}
		}
	case KindLeaderExit:
		if c.role != roleLeader {
			c.startElection()
		}
	case KindSubscribe:
		// A follower asks for a topic; an idle leader adopts it.
		if c.role == roleLeader && c.topic == "" && f.Topic != "" {
			c.topic = f.Topic
			c.resetRetryState()
			c.connect()
		}
	case KindEvent:
		if f.Event != nil {
			c.deliver(*f.Event)
		}
	case KindStatus:
		if c.role != roleLeader && f.Status != "" {
			c.setStatus(f.Status)
		}
	}
}

// --- subscription ---

func (c *Coordinator) handleSubscribe(topic string) {
	if topic == "" {
		return
	}
	if topic == c.topic && c.conn != nil {
		return
	}
	c.topic = topic
	if c.role == roleLeader {
		c.dropConn()
		c.resetRetryState()
		c.connect()
		return
	}
	// Relay to whoever leads; also kept locally in case leadership moves
	// here later.
	c.publish(Frame{Kind: KindSubscribe, Topic: topic})
}

func (c *Coordinator) handleUnsubscribe() {
	c.topic = ""
	c.stopTimer(&c.reconnectTimer)
	c.stopTimer(&c.pollTimer)
	c.stopTimer(&c.retryTimer)
	owned := c.conn != nil
	c.dropConn()
	if c.role == roleLeader && (owned || c.status != StatusDisconnected) {
		c.setStatus(StatusDisconnected)
	}
}

// --- connection lifecycle (leader only) ---

func (c *Coordinator) resetRetryState() {
	c.attempts = 0
	c.delays.Reset()
	c.stopTimer(&c.reconnectTimer)
	c.stopTimer(&c.pollTimer)
	c.stopTimer(&c.retryTimer)
}

func (c *Coordinator) connect() {
	if c.conn != nil {
		return
	}
	c.setStatus(StatusConnecting)
	c.connEpoch++
	epoch := c.connEpoch
	u := streamURL(c.cfg.WSBaseURL, c.topic)
	go c.dial(epoch, u)
}

func (c *Coordinator) dial(epoch int, u string) {
	ctx, cancel := context.WithTimeout(c.ctx, dialTimeout)
	defer cancel()
	conn, err := c.dialer.Dial(ctx, u)
	if err != nil {
		c.post(socketClosed{Epoch: epoch, Err: err})
		return
	}
	c.post(socketOpened{Epoch: epoch, Conn: conn})
}

func (c *Coordinator) handleSocketOpened(msg socketOpened) {
	if msg.Epoch != c.connEpoch || c.role != roleLeader || c.topic == "" {
		// Raced with unsubscribe, abdication or a topic switch.
		go msg.Conn.Close()
		return
	}
	c.conn = msg.Conn
	c.attempts = 0
	c.delays.Reset()
	c.setStatus(StatusConnected)
	go c.readPump(msg.Epoch, msg.Conn)
}

func (c *Coordinator) readPump(epoch int, conn Conn) {
	for {
		data, err := conn.Read(c.ctx)
		if err != nil {
			c.post(socketClosed{Epoch: epoch, Err: err})
			return
		}
		c.post(socketData{Epoch: epoch, Data: data})
	}
}

func (c *Coordinator) handleSocketData(msg socketData) {
	if msg.Epoch != c.connEpoch {
		return
	}

	var ev Event
	if err := sonic.Unmarshal(msg.Data, &ev); err != nil {
		c.log.Debug("dropping malformed stream frame", zap.Error(err))
		return
	}
	if ev.ID == "" {
		c.log.Debug("dropping stream event without id")
		return
	}
	if c.seen.Seen(ev.ID) {
		return
	}
	c.fanOut(ev)
	c.publish(Frame{Kind: KindEvent, Event: &ev})
}

func (c *Coordinator) handleSocketClosed(msg socketClosed) {
	if msg.Epoch != c.connEpoch {
		return
	}
	c.conn = nil
	if c.role != roleLeader || c.topic == "" {
		return
	}
	if msg.Err != nil {
		c.log.Debug("stream connection lost", zap.Error(msg.Err))
	}
	c.scheduleReconnect()
}

func (c *Coordinator) scheduleReconnect() {
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.enterPolling()
		return
	}
	delay := c.delays.NextBackOff()
	c.attempts++
	c.setStatus(StatusConnecting)
	c.stopTimer(&c.reconnectTimer)
	epoch := c.connEpoch
	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.post(reconnectFire{Epoch: epoch})
	})
}

// --- polling fallback ---

func (c *Coordinator) enterPolling() {
	c.log.Warn("reconnect attempts exhausted, falling back to polling",
		zap.Int("attempts", c.attempts))
	c.setStatus(StatusPolling)
	c.schedulePollTick()
	if c.cfg.PollRetryInterval > 0 {
		c.stopTimer(&c.retryTimer)
		epoch := c.connEpoch
		c.retryTimer = time.AfterFunc(c.cfg.PollRetryInterval, func() {
			c.post(pollRetry{Epoch: epoch})
		})
	}
}

func (c *Coordinator) schedulePollTick() {
	c.stopTimer(&c.pollTimer)
	epoch := c.connEpoch
	c.pollTimer = time.AfterFunc(c.cfg.PollInterval, func() {
		c.post(pollTick{Epoch: epoch})
	})
}

// handlePollTick emits a synthetic sync event so dependents refresh from the
// REST API while live streaming is unavailable, for this instance and every
// follower.
func (c *Coordinator) handlePollTick(msg pollTick) {
	if msg.Epoch != c.connEpoch || c.status != StatusPolling {
		return
	}
	ev := Event{ID: uuid.NewString(), Type: EventSync, Timestamp: time.Now()}
	c.seen.Seen(ev.ID)
	c.fanOut(ev)
	c.publish(Frame{Kind: KindEvent, Event: &ev})
	c.schedulePollTick()
}

func (c *Coordinator) handlePollRetry(msg pollRetry) {
	if msg.Epoch != c.connEpoch || c.status != StatusPolling {
		return
	}
	if c.role != roleLeader || c.topic == "" {
		return
	}
	c.resetRetryState()
	c.connect()
}

// --- event and status delivery ---

// deliver handles an event relayed over the bus: dedupe, then local fan-out
// only (no re-broadcast, the origin already reached everyone).
func (c *Coordinator) deliver(ev Event) {
	if ev.ID == "" {
		return
	}
	if c.seen.Seen(ev.ID) {
		return
	}
	c.fanOut(ev)
}

func (c *Coordinator) fanOut(ev Event) {
	for _, fn := range c.eventSubs {
		fn(ev)
	}
}

func (c *Coordinator) setStatus(s Status) {
	if s == c.status {
		return
	}
	c.status = s
	for _, fn := range c.statusSubs {
		fn(s)
	}
	if c.role == roleLeader {
		c.publish(Frame{Kind: KindStatus, Status: s})
	}
}

// --- plumbing ---

func (c *Coordinator) publish(f Frame) {
	f.Sender = c.peerID
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.bus.Publish(ctx, f); err != nil {
		c.log.Warn("bus publish failed", zap.String("kind", string(f.Kind)), zap.Error(err))
	}
}

// dropConn invalidates the connection epoch before the close completes, so
// no callback from the old socket reaches listeners.
func (c *Coordinator) dropConn() {
	c.connEpoch++
	if c.conn != nil {
		conn := c.conn
		c.conn = nil
		go conn.Close()
	}
}

func (c *Coordinator) stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func (c *Coordinator) teardown() {
	c.stopTimer(&c.electionTimer)
	c.stopTimer(&c.reconnectTimer)
	c.stopTimer(&c.pollTimer)
	c.stopTimer(&c.retryTimer)
	if c.role == roleLeader {
		c.publish(Frame{Kind: KindLeaderExit})
	}
	if c.busCancel != nil {
		c.busCancel()
	}
	c.dropConn()
	clear(c.eventSubs)
	clear(c.statusSubs)
}
