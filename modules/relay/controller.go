package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/example/roomrelay/domain/relay"
	"github.com/example/roomrelay/modules/history"
	"github.com/go-monolith/mono/pkg/types"
)

// WelcomeText is sent by the admin to every new connection.
const WelcomeText = "Welcome to the Chat App! Join a room to start chatting."

// State is the lifecycle state of a session.
type State int

// Session states.
const (
	StateUnjoined State = iota
	StateJoined
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateUnjoined:
		return "unjoined"
	case StateJoined:
		return "joined"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds the controller settings.
type Config struct {
	AdminName      string
	HistoryLimit   int
	PersistTimeout time.Duration
}

// MaxHistoryLimit is the largest history window the message store serves.
const MaxHistoryLimit = history.MaxRecentLimit

// DefaultConfig returns the default controller configuration.
func DefaultConfig() Config {
	return Config{
		AdminName:      "Admin",
		HistoryLimit:   50,
		PersistTimeout: 5 * time.Second,
	}
}

// Recorder is notified of relay activity after it has been delivered.
type Recorder interface {
	UserJoined(member domain.Member)
	UserLeft(member domain.Member)
	MessagePosted(msg domain.Message)
	GroupCallStarted(from domain.Member, invited int)
}

type nopRecorder struct{}

func (nopRecorder) UserJoined(domain.Member)            {}
func (nopRecorder) UserLeft(domain.Member)              {}
func (nopRecorder) MessagePosted(domain.Message)        {}
func (nopRecorder) GroupCallStarted(domain.Member, int) {}

// Controller owns connection lifecycles and dispatches client events to the
// registry, the message store, the broadcaster and the signaling router.
type Controller struct {
	registry    *Registry
	broadcaster *Broadcaster
	router      *Router
	history     historyStore
	recorder    Recorder
	logger      types.Logger
	cfg         Config
	now         func() time.Time
}

// NewController creates a Controller. A nil recorder disables activity notifications.
func NewController(store MessageStore, recorder Recorder, cfg Config, logger types.Logger) *Controller {
	defaults := DefaultConfig()
	if cfg.AdminName == "" {
		cfg.AdminName = defaults.AdminName
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaults.HistoryLimit
	}
	if cfg.HistoryLimit > MaxHistoryLimit {
		logger.Warn("History limit above the store maximum, clamping", "limit", cfg.HistoryLimit, "max", MaxHistoryLimit)
		cfg.HistoryLimit = MaxHistoryLimit
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = defaults.PersistTimeout
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}

	registry := NewRegistry()
	return &Controller{
		registry:    registry,
		broadcaster: NewBroadcaster(registry, logger),
		router:      NewRouter(registry),
		history:     historyStore{store: store, timeout: cfg.PersistTimeout, logger: logger},
		recorder:    recorder,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Registry returns the connection registry.
func (c *Controller) Registry() *Registry {
	return c.registry
}

// Router returns the signaling router.
func (c *Controller) Router() *Router {
	return c.router
}

// MembersOf returns the members currently joined to room.
func (c *Controller) MembersOf(room string) []domain.Member {
	return Members(c.registry.MembersOf(room))
}

// History returns the recent messages of room, bounded by the persistence timeout.
// A non-positive limit means the join history size.
func (c *Controller) History(ctx context.Context, room string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = c.cfg.HistoryLimit
	}
	return c.history.recent(ctx, room, limit)
}

// Open starts a session for a newly connected transport and greets it.
// The connection stays unjoined until it sends joinRoom.
func (c *Controller) Open(id string, t Transport) *Session {
	s := &Session{
		ctrl:      c,
		id:        id,
		transport: t,
		state:     StateUnjoined,
	}
	s.send(EventConnected, Connected{ConnectionID: id})
	s.send(EventMessage, c.notice("", WelcomeText))
	return s
}

func (c *Controller) notice(room, text string) domain.Message {
	return domain.Message{
		Room: room,
		Name: c.cfg.AdminName,
		Text: text,
		Kind: domain.KindSystem,
		Time: c.now(),
	}
}

// announceDeparture tells the remaining members of m.Room that m has left.
func (c *Controller) announceDeparture(m domain.Member) {
	c.broadcaster.Broadcast(m.Room, EventUserDisconnected, m)
	c.broadcaster.Broadcast(m.Room, EventActiveUsers, c.MembersOf(m.Room))
	c.recorder.UserLeft(m)
}

// Session is the per-connection state machine.
// A session is driven by one goroutine and is not safe for concurrent use.
type Session struct {
	ctrl      *Controller
	id        string
	transport Transport
	state     State
	name      string
	room      string
}

// ID returns the connection identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Room returns the joined room, or "" when unjoined.
func (s *Session) Room() string {
	if s.state != StateJoined {
		return ""
	}
	return s.room
}

// Dispatch decodes and handles one client frame. Failures the client should
// know about are reported back to it as an "error" event.
func (s *Session) Dispatch(ctx context.Context, frame []byte) error {
	ev, err := DecodeInbound(frame)
	if err == nil {
		err = s.Handle(ctx, ev)
	}
	if err != nil {
		s.Notify(err)
	}
	return err
}

// Handle applies one validated event.
func (s *Session) Handle(ctx context.Context, ev Inbound) error {
	if s.state == StateDisconnected {
		return ErrSessionClosed
	}

	switch ev := ev.(type) {
	case *JoinRoom:
		return s.join(ctx, ev)
	case *LeaveRoom:
		return s.leave()
	case *PostMessage:
		return s.post(ctx, domain.KindText, strings.TrimSpace(ev.Text))
	case *PostImage:
		return s.post(ctx, domain.KindImage, ImageBody(ev.ImageURL))
	case *StartGroupCall:
		return s.startGroupCall(ev)
	case Signaling:
		return s.relay(ev)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownEvent, ev.Event())
	}
}

// Notify reports err to the client unless it is silent by nature.
func (s *Session) Notify(err error) {
	code := ErrorCode(err)
	if code == "" {
		return
	}
	message := err.Error()
	switch code {
	case CodePersistence:
		message = ErrPersistence.Error()
	case CodeInternal:
		message = "internal error"
	}
	s.SendError(code, message)
}

// SendError sends an "error" event to this connection only.
func (s *Session) SendError(code, message string) {
	s.send(EventError, ErrorPayload{Code: code, Message: message})
}

// Disconnect ends the session. The registry entry is always removed, and the
// room the connection was in learns about the departure.
func (s *Session) Disconnect() {
	if s.state == StateDisconnected {
		return
	}
	s.state = StateDisconnected

	entry, ok := s.ctrl.registry.Unregister(s.id)
	if ok {
		s.ctrl.announceDeparture(entry.Member)
	}
}

func (s *Session) join(ctx context.Context, ev *JoinRoom) error {
	c := s.ctrl
	name := strings.TrimSpace(ev.Name)
	room := strings.TrimSpace(ev.Room)

	var previous *domain.Member
	if s.state == StateJoined && s.room != room {
		previous = &domain.Member{ConnectionID: s.id, Name: s.name, Room: s.room}
	}

	c.registry.Register(s.id, name, room, s.transport)
	s.state, s.name, s.room = StateJoined, name, room
	member := domain.Member{ConnectionID: s.id, Name: name, Room: room}

	if previous != nil {
		c.announceDeparture(*previous)
	}

	history, err := c.history.recent(ctx, room, c.cfg.HistoryLimit)
	if err != nil {
		c.logger.Warn("Serving empty history", "room", room, "connectionID", s.id, "error", err)
	}
	s.send(EventChatHistory, history)

	c.broadcaster.Broadcast(room, EventMessage, c.notice(room, name+" has joined the room."))
	c.broadcaster.Broadcast(room, EventActiveUsers, c.MembersOf(room))
	c.recorder.UserJoined(member)

	c.logger.Debug("Connection joined room", "connectionID", s.id, "room", room, "name", name)
	return nil
}

func (s *Session) leave() error {
	if s.state != StateJoined {
		return ErrNotJoined
	}
	s.state = StateUnjoined

	entry, ok := s.ctrl.registry.Unregister(s.id)
	if ok {
		s.ctrl.announceDeparture(entry.Member)
	}
	return nil
}

func (s *Session) post(ctx context.Context, kind, text string) error {
	if s.state != StateJoined {
		return ErrNotJoined
	}
	c := s.ctrl

	stored, err := c.history.append(ctx, domain.Message{
		Room: s.room,
		Name: s.name,
		Text: text,
		Kind: kind,
	})
	if err != nil {
		c.logger.Error("Message not delivered", "room", s.room, "connectionID", s.id, "error", err)
		return err
	}

	c.broadcaster.Broadcast(stored.Room, EventMessage, stored)
	c.recorder.MessagePosted(stored)
	return nil
}

func (s *Session) relay(ev Signaling) error {
	if s.state != StateJoined {
		return ErrNotJoined
	}
	err := s.ctrl.router.Relay(ev.Target(), ev.Outbound(), s.id)
	if errors.Is(err, ErrTargetUnreachable) {
		s.ctrl.logger.Debug("Dropped signaling event",
			"event", ev.Event(),
			"connectionID", s.id,
			"target", ev.Target())
	}
	return err
}

func (s *Session) startGroupCall(ev *StartGroupCall) error {
	if s.state != StateJoined {
		return ErrNotJoined
	}
	c := s.ctrl

	if room := strings.TrimSpace(ev.Room); room != "" && room != s.room {
		return fmt.Errorf("%w: not a member of room %q", ErrValidation, room)
	}

	snapshot := c.registry.MembersOf(s.room)
	others := make([]Entry, 0, len(snapshot))
	for _, entry := range snapshot {
		if entry.ConnectionID != s.id {
			others = append(others, entry)
		}
	}

	c.broadcaster.BroadcastTo(others, EventGroupCallStarted, GroupCallStarted{
		From:    s.id,
		Name:    s.name,
		Room:    s.room,
		Members: Members(others),
	})
	c.recorder.GroupCallStarted(domain.Member{ConnectionID: s.id, Name: s.name, Room: s.room}, len(others))
	return nil
}

func (s *Session) send(event string, data any) {
	frame, err := Encode(event, data)
	if err != nil {
		s.ctrl.logger.Error("Failed to encode frame", "event", event, "error", err)
		return
	}
	if err := s.transport.Send(frame); err != nil && !errors.Is(err, ErrTransportClosed) {
		s.ctrl.logger.Warn("Dropped frame", "event", event, "connectionID", s.id, "error", err)
	}
}
