package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	domain "github.com/example/roomrelay/domain/relay"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/require"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)         {}
func (m *mockLogger) Info(msg string, args ...any)          {}
func (m *mockLogger) Warn(msg string, args ...any)          {}
func (m *mockLogger) Error(msg string, args ...any)         {}
func (m *mockLogger) With(args ...any) types.Logger         { return m }
func (m *mockLogger) WithError(err error) types.Logger      { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

// fakeTransport records every frame it accepts.
type fakeTransport struct {
	mu     sync.Mutex
	frames []Envelope
	closed bool
	err    error
}

func (f *fakeTransport) Send(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrTransportClosed
	}
	if f.err != nil {
		return f.err
	}
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return err
	}
	f.frames = append(f.frames, env)
	return nil
}

func (f *fakeTransport) close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	f.frames = nil
	f.mu.Unlock()
}

func (f *fakeTransport) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.frames))
	for _, env := range f.frames {
		names = append(names, env.Event)
	}
	return names
}

// all returns the frames of one event type in arrival order.
func (f *fakeTransport) all(event string) []Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Envelope
	for _, env := range f.frames {
		if env.Event == event {
			out = append(out, env)
		}
	}
	return out
}

// last decodes the most recent frame of event into v.
func (f *fakeTransport) last(t *testing.T, event string, v any) {
	t.Helper()
	frames := f.all(event)
	require.NotEmpty(t, frames, "no %q frame received", event)
	require.NoError(t, json.Unmarshal(frames[len(frames)-1].Data, v))
}

// fakeStore is an in-memory MessageStore.
type fakeStore struct {
	mu        sync.Mutex
	msgs      []domain.Message
	appendErr error
	recentErr error
	base      time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{base: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (s *fakeStore) Append(_ context.Context, msg domain.Message) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return domain.Message{}, s.appendErr
	}
	n := len(s.msgs) + 1
	if msg.ID == "" {
		msg.ID = fmt.Sprintf("msg-%03d", n)
	}
	msg.Time = s.base.Add(time.Duration(n) * time.Second)
	s.msgs = append(s.msgs, msg)
	return msg, nil
}

func (s *fakeStore) Recent(_ context.Context, room string, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recentErr != nil {
		return nil, s.recentErr
	}
	var out []domain.Message
	for _, msg := range s.msgs {
		if msg.Room == room {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *fakeStore) Delete(_ context.Context, room, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, msg := range s.msgs {
		if msg.ID == id && msg.Room == room {
			s.msgs = append(s.msgs[:i], s.msgs[i+1:]...)
			break
		}
	}
	return nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

// slowStore holds appends, and optionally recent reads, until the caller's
// deadline passes. With commitLate set the append is stored anyway, like a
// write that lands just as the request times out.
type slowStore struct {
	*fakeStore
	entered     chan struct{}
	blockRecent bool
	commitLate  bool
}

func newSlowStore() *slowStore {
	return &slowStore{fakeStore: newFakeStore(), entered: make(chan struct{}, 1)}
}

func (s *slowStore) Append(ctx context.Context, msg domain.Message) (domain.Message, error) {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-ctx.Done()
	if s.commitLate {
		_, _ = s.fakeStore.Append(context.Background(), msg)
	}
	return domain.Message{}, ctx.Err()
}

func (s *slowStore) Recent(ctx context.Context, room string, limit int) ([]domain.Message, error) {
	if s.blockRecent {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.fakeStore.Recent(ctx, room, limit)
}

// recordingRecorder captures activity notifications.
type recordingRecorder struct {
	mu         sync.Mutex
	joined     []domain.Member
	left       []domain.Member
	posted     []domain.Message
	groupCalls []int
}

func (r *recordingRecorder) UserJoined(m domain.Member) {
	r.mu.Lock()
	r.joined = append(r.joined, m)
	r.mu.Unlock()
}

func (r *recordingRecorder) UserLeft(m domain.Member) {
	r.mu.Lock()
	r.left = append(r.left, m)
	r.mu.Unlock()
}

func (r *recordingRecorder) MessagePosted(msg domain.Message) {
	r.mu.Lock()
	r.posted = append(r.posted, msg)
	r.mu.Unlock()
}

func (r *recordingRecorder) GroupCallStarted(_ domain.Member, invited int) {
	r.mu.Lock()
	r.groupCalls = append(r.groupCalls, invited)
	r.mu.Unlock()
}

func frame(t *testing.T, event string, data any) []byte {
	t.Helper()
	b, err := Encode(event, data)
	require.NoError(t, err)
	return b
}
