package binder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/camwatch/internal/connection"
	"github.com/rickgao/camwatch/internal/endpoint"
	"github.com/rickgao/camwatch/internal/router"
)

const eventually = 2 * time.Second

// fakeTransport records calls and lets the test drive state changes.
type fakeTransport struct {
	mu         sync.Mutex
	connected  bool
	connects   int
	connectErr error
	sent       []any
	listeners  map[string][]*router.Listener
	observers  map[int]func(connection.State)
	nextObs    int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		listeners: make(map[string][]*router.Listener),
		observers: make(map[int]func(connection.State)),
	}
}

func (f *fakeTransport) Connect(context.Context) error {
	f.mu.Lock()
	f.connects++
	err := f.connectErr
	f.mu.Unlock()

	if err != nil {
		return err
	}
	f.setState(connection.StateOpen)
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) Send(payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, payload)
	return nil
}

func (f *fakeTransport) On(eventType string, l *router.Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners[eventType] = append(f.listeners[eventType], l)
}

func (f *fakeTransport) Off(eventType string, l *router.Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.listeners[eventType]
	for i, x := range list {
		if x == l {
			f.listeners[eventType] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

func (f *fakeTransport) Observe(fn func(connection.State)) func() {
	f.mu.Lock()
	id := f.nextObs
	f.nextObs++
	f.observers[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.observers, id)
		f.mu.Unlock()
	}
}

// setState changes the connected flag and notifies observers when it changes.
func (f *fakeTransport) setState(s connection.State) {
	f.mu.Lock()
	was := f.connected
	f.connected = s == connection.StateOpen
	changed := was != f.connected
	fns := make([]func(connection.State), 0, len(f.observers))
	for _, fn := range f.observers {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range fns {
		fn(s)
	}
}

func (f *fakeTransport) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func (f *fakeTransport) listenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, l := range f.listeners {
		n += len(l)
	}
	return n
}

func (f *fakeTransport) observerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.observers)
}

func (f *fakeTransport) emit(eventType string, env router.Envelope) {
	f.mu.Lock()
	list := append([]*router.Listener(nil), f.listeners[eventType]...)
	f.mu.Unlock()

	r := router.NewRegistry()
	for _, l := range list {
		r.On(eventType, l)
	}
	r.Dispatch(env)
}

func fastOptions() Options {
	return Options{ConnectDebounce: 5 * time.Millisecond}
}

func TestAttach_ConnectsOnceAfterDebounce(t *testing.T) {
	tr := newFakeTransport()

	var mu sync.Mutex
	var onConnect int
	opts := fastOptions()
	opts.OnConnect = func() {
		mu.Lock()
		onConnect++
		mu.Unlock()
	}

	s := Attach(tr, opts, nil)
	defer s.Detach()

	assert.False(t, s.Connected())
	assert.Equal(t, 0, tr.connectCount(), "connect must wait for the debounce")

	require.Eventually(t, s.Connected, eventually, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 1, tr.connectCount())
	mu.Lock()
	assert.Equal(t, 1, onConnect)
	mu.Unlock()
}

func TestAttach_AlreadyConnected(t *testing.T) {
	tr := newFakeTransport()
	tr.setState(connection.StateOpen)

	var onConnect int
	opts := fastOptions()
	opts.OnConnect = func() { onConnect++ }

	s := Attach(tr, opts, nil)
	defer s.Detach()

	assert.True(t, s.Connected())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, tr.connectCount())
	assert.Equal(t, 0, onConnect)

	// Listeners are registered even when no connect was needed.
	assert.Equal(t, len(DefaultEventTypes), tr.listenerCount())
}

func TestDetach_BeforeDebounce(t *testing.T) {
	tr := newFakeTransport()
	s := Attach(tr, Options{ConnectDebounce: 30 * time.Millisecond}, nil)

	s.Detach()
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, 0, tr.connectCount())
	assert.Equal(t, 0, tr.listenerCount())
	assert.Equal(t, 0, tr.observerCount())
}

func TestDetach_IgnoresLateConnectResult(t *testing.T) {
	tr := newFakeTransport()
	tr.connectErr = errors.New("connection refused")

	var onError int
	opts := fastOptions()
	opts.OnError = func(error) { onError++ }

	s := Attach(tr, opts, nil)
	s.Detach()
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 0, onError)
	assert.False(t, s.Connected())
}

func TestAttach_ConnectError(t *testing.T) {
	tr := newFakeTransport()
	tr.connectErr = errors.New("connection refused")

	errCh := make(chan error, 1)
	opts := fastOptions()
	opts.OnError = func(err error) { errCh <- err }

	s := Attach(tr, opts, nil)
	defer s.Detach()

	select {
	case err := <-errCh:
		assert.EqualError(t, err, "connection refused")
	case <-time.After(eventually):
		t.Fatal("OnError not called")
	}
	assert.False(t, s.Connected())
}

func TestSession_Transitions(t *testing.T) {
	tr := newFakeTransport()
	tr.setState(connection.StateOpen)

	var mu sync.Mutex
	var events []string
	opts := fastOptions()
	opts.OnConnect = func() {
		mu.Lock()
		events = append(events, "connect")
		mu.Unlock()
	}
	opts.OnDisconnect = func() {
		mu.Lock()
		events = append(events, "disconnect")
		mu.Unlock()
	}

	s := Attach(tr, opts, nil)
	defer s.Detach()

	tr.setState(connection.StateClosed)
	assert.False(t, s.Connected())
	tr.setState(connection.StateClosed)
	tr.setState(connection.StateOpen)
	assert.True(t, s.Connected())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"disconnect", "connect"}, events)
}

func TestSession_LastMessage(t *testing.T) {
	tr := newFakeTransport()
	tr.setState(connection.StateOpen)

	var seen []string
	opts := fastOptions()
	opts.OnMessage = func(env router.Envelope) { seen = append(seen, env.Type) }

	s := Attach(tr, opts, nil)
	defer s.Detach()

	_, ok := s.LastMessage()
	assert.False(t, ok)

	tr.emit(router.TypeAlert, router.Envelope{Type: router.TypeAlert})
	tr.emit(router.TypeDashboardUpdate, router.Envelope{Type: router.TypeDashboardUpdate})

	env, ok := s.LastMessage()
	require.True(t, ok)
	assert.Equal(t, router.TypeDashboardUpdate, env.Type)
	assert.Equal(t, []string{router.TypeAlert, router.TypeDashboardUpdate}, seen)
}

func TestSession_EventTypesOverride(t *testing.T) {
	tr := newFakeTransport()
	tr.setState(connection.StateOpen)

	opts := fastOptions()
	opts.EventTypes = []string{"camera_status"}
	s := Attach(tr, opts, nil)
	defer s.Detach()

	assert.Equal(t, 1, tr.listenerCount())
}

func TestSession_RepeatedEventTypesRegisteredOnce(t *testing.T) {
	tr := newFakeTransport()
	tr.setState(connection.StateOpen)

	var calls int
	opts := fastOptions()
	opts.EventTypes = []string{router.TypeAlert, router.TypeAlert, router.TypePong}
	opts.OnMessage = func(router.Envelope) { calls++ }
	s := Attach(tr, opts, nil)

	assert.Equal(t, 2, tr.listenerCount())

	tr.emit(router.TypeAlert, router.Envelope{Type: router.TypeAlert})
	assert.Equal(t, 1, calls)

	s.Detach()
	assert.Zero(t, tr.listenerCount())
}

func TestAttach_ExplicitID(t *testing.T) {
	id := uuid.New()
	opts := fastOptions()
	opts.ID = id

	s := Attach(newFakeTransport(), opts, nil)
	defer s.Detach()
	assert.Equal(t, id, s.ID())

	other := Attach(newFakeTransport(), fastOptions(), nil)
	defer other.Detach()
	assert.NotEqual(t, uuid.Nil, other.ID())
}

func TestSession_Send(t *testing.T) {
	tr := newFakeTransport()
	s := Attach(tr, Options{ConnectDebounce: time.Hour}, nil)
	defer s.Detach()

	s.Send(map[string]string{"type": "ping"})
	assert.Empty(t, tr.sent, "send while disconnected is dropped")

	tr.setState(connection.StateOpen)
	s.Send(map[string]string{"type": "ping"})
	assert.Len(t, tr.sent, 1)
}

func TestSession_SubscribeRemovedOnDetach(t *testing.T) {
	tr := newFakeTransport()
	tr.setState(connection.StateOpen)
	s := Attach(tr, fastOptions(), nil)

	kept := router.NewListener(func(router.Envelope) {})
	dropped := router.NewListener(func(router.Envelope) {})
	s.Subscribe("camera_status", kept)
	s.Subscribe("camera_status", dropped)
	s.Unsubscribe("camera_status", dropped)
	assert.Equal(t, len(DefaultEventTypes)+1, tr.listenerCount())

	s.Detach()
	assert.Equal(t, 0, tr.listenerCount())

	s.Subscribe("camera_status", kept)
	assert.Equal(t, 0, tr.listenerCount(), "subscribe after detach is ignored")
}

func TestSession_NilTransport(t *testing.T) {
	s := Attach(nil, fastOptions(), nil)

	assert.False(t, s.Connected())
	s.Send(map[string]string{"type": "ping"})
	s.Subscribe(router.TypeAlert, router.NewListener(func(router.Envelope) {}))
	s.Unsubscribe(router.TypeAlert, router.NewListener(func(router.Envelope) {}))
	_, ok := s.LastMessage()
	assert.False(t, ok)
	s.Detach()
	s.Detach()
	assert.NotEqual(t, s.ID().String(), "")
}

// --- sessions over a real connection.Manager ---

type pipeSocket struct {
	messages chan connection.TimestampedMessage
	once     sync.Once
}

func (p *pipeSocket) Messages() <-chan connection.TimestampedMessage { return p.messages }
func (p *pipeSocket) Err() error                                     { return nil }
func (p *pipeSocket) Send([]byte) error                              { return nil }
func (p *pipeSocket) Close(int, string) error {
	p.once.Do(func() { close(p.messages) })
	return nil
}

func (p *pipeSocket) deliver(raw string) {
	p.messages <- connection.TimestampedMessage{Data: []byte(raw), ReceivedAt: time.Now()}
}

func newPipeManager(t *testing.T) (*connection.Manager, func() *pipeSocket) {
	t.Helper()

	var mu sync.Mutex
	var sock *pipeSocket
	dialer := connection.DialerFunc(func(context.Context, endpoint.Target) (connection.Socket, error) {
		mu.Lock()
		defer mu.Unlock()
		sock = &pipeSocket{messages: make(chan connection.TimestampedMessage, 16)}
		return sock, nil
	})

	target := endpoint.Target{Scheme: "ws", Host: "localhost", Port: 8000, Path: "/ws/alerts/"}
	m := connection.NewManager(target, connection.ManagerConfig{}, nil, connection.WithDialer(dialer))
	t.Cleanup(m.Disconnect)

	return m, func() *pipeSocket {
		mu.Lock()
		defer mu.Unlock()
		return sock
	}
}

func TestSessions_DetachOneOtherKeepsReceiving(t *testing.T) {
	m, current := newPipeManager(t)

	a := Attach(m, fastOptions(), nil)
	b := Attach(m, fastOptions(), nil)
	defer b.Detach()

	require.Eventually(t, func() bool { return a.Connected() && b.Connected() }, eventually, time.Millisecond)

	a.Detach()
	assert.True(t, m.IsConnected(), "detach must not close the shared manager")

	current().deliver(`{"type":"alert","data":{"id":7}}`)
	require.Eventually(t, func() bool {
		_, ok := b.LastMessage()
		return ok
	}, eventually, time.Millisecond)

	_, ok := a.LastMessage()
	assert.False(t, ok, "detached session must not record")
	assert.Equal(t, len(DefaultEventTypes), m.Listeners(router.TypeAlert)+m.Listeners(router.TypeFrame)+
		m.Listeners(router.TypeDetection)+m.Listeners(router.TypeDashboardUpdate)+m.Listeners(router.TypePong))
}

func TestSessions_MalformedFrameLeavesLastMessage(t *testing.T) {
	m, current := newPipeManager(t)

	s := Attach(m, fastOptions(), nil)
	defer s.Detach()
	require.Eventually(t, s.Connected, eventually, time.Millisecond)

	current().deliver(`{"type":"pong","message":"pong"}`)
	require.Eventually(t, func() bool {
		_, ok := s.LastMessage()
		return ok
	}, eventually, time.Millisecond)

	current().deliver(`{"type":"alert","data":`)
	current().deliver(`{"type":"unwatched"}`)
	require.Eventually(t, func() bool { return m.Stats().FramesReceived == 2 }, eventually, time.Millisecond)

	env, ok := s.LastMessage()
	require.True(t, ok)
	assert.Equal(t, router.TypePong, env.Type)
	assert.Equal(t, int64(1), m.Stats().FramesDropped)
}

func TestSessions_ConcurrentAttachSingleDial(t *testing.T) {
	var dials int
	var mu sync.Mutex
	gate := make(chan struct{})
	dialer := connection.DialerFunc(func(context.Context, endpoint.Target) (connection.Socket, error) {
		mu.Lock()
		dials++
		mu.Unlock()
		<-gate
		return &pipeSocket{messages: make(chan connection.TimestampedMessage)}, nil
	})

	target := endpoint.Target{Scheme: "ws", Host: "localhost", Port: 8000, Path: "/ws/dashboard/"}
	m := connection.NewManager(target, connection.ManagerConfig{}, nil, connection.WithDialer(dialer))
	defer m.Disconnect()

	sessions := make([]*Session, 3)
	for i := range sessions {
		sessions[i] = Attach(m, fastOptions(), nil)
		defer sessions[i].Detach()
	}

	require.Eventually(t, func() bool { return m.State() == connection.StateConnecting }, eventually, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(gate)

	require.Eventually(t, func() bool {
		for _, s := range sessions {
			if !s.Connected() {
				return false
			}
		}
		return true
	}, eventually, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, dials)
}
