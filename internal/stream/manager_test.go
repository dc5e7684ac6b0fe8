package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// fakeClient is a scriptable Client for Manager tests.
type fakeClient struct {
	mu        sync.Mutex
	sent      [][]byte
	connected bool

	messages chan TimestampedMessage
	errs     chan error

	// onSend, when set, is invoked with every frame the Manager sends.
	onSend func(f *fakeClient, data []byte)
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		messages: make(chan TimestampedMessage, 100),
		errs:     make(chan error, 1),
	}
}

func (f *fakeClient) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) Send(data []byte) error {
	f.mu.Lock()
	f.sent = append(f.sent, data)
	hook := f.onSend
	f.mu.Unlock()
	if hook != nil {
		hook(f, data)
	}
	return nil
}

func (f *fakeClient) Messages() <-chan TimestampedMessage { return f.messages }
func (f *fakeClient) Errors() <-chan error                { return f.errs }

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) push(raw string) {
	f.messages <- TimestampedMessage{Data: []byte(raw), ReceivedAt: time.Now()}
}

func (f *fakeClient) sentFrames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sent))
	copy(out, f.sent)
	return out
}

// ackOnCommand acknowledges REG/REMOVE frames with the given return code.
func ackOnCommand(code int) func(*fakeClient, []byte) {
	return func(f *fakeClient, data []byte) {
		var cmd struct {
			Body struct {
				Trnm string `json:"trnm"`
			} `json:"body"`
		}
		if err := json.Unmarshal(data, &cmd); err != nil {
			return
		}
		if cmd.Body.Trnm == "REG" || cmd.Body.Trnm == "REMOVE" {
			f.push(fmt.Sprintf(`{"trnm":%q,"return_code":%d,"return_msg":"test"}`, cmd.Body.Trnm, code))
		}
	}
}

func staticApproval(key string) ApprovalFunc {
	return func(ctx context.Context) (string, error) {
		return key, nil
	}
}

func testManagerConfig() ManagerConfig {
	cfg := DefaultManagerConfig()
	cfg.SubscribeTimeout = time.Second
	cfg.ReconnectBaseDelay = 10 * time.Millisecond
	cfg.ReconnectMaxDelay = 50 * time.Millisecond
	cfg.BufferSize = 100
	return cfg
}

// newTestManager builds a Manager whose connections come from factory.
func newTestManager(t *testing.T, factory func() *fakeClient) (*manager, *fakeClient) {
	t.Helper()

	m := NewManager(testManagerConfig(), staticApproval("test-key"), slog.Default()).(*manager)

	var first *fakeClient
	m.newClient = func(cfg ClientConfig, logger *slog.Logger) Client {
		f := factory()
		if first == nil {
			first = f
		}
		return f
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return m, first
}

func TestManagerSubscribe(t *testing.T) {
	m, fake := newTestManager(t, func() *fakeClient {
		f := newFakeClient()
		f.onSend = ackOnCommand(0)
		return f
	})
	defer m.Stop(context.Background())

	err := m.Subscribe(context.Background(), []RealType{TypeTick, TypeOrderBook}, []string{"005930", "000660"})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if got := m.Stats().Subscriptions; got != 4 {
		t.Errorf("Subscriptions = %d, want 4 (2 types x 2 items)", got)
	}

	frames := fake.sentFrames()
	if len(frames) != 1 {
		t.Fatalf("sent %d frames, want 1", len(frames))
	}

	var cmd struct {
		Header header `json:"header"`
		Body   struct {
			Trnm string    `json:"trnm"`
			Data []regData `json:"data"`
		} `json:"body"`
	}
	if err := json.Unmarshal(frames[0], &cmd); err != nil {
		t.Fatalf("unmarshal command: %v", err)
	}
	if cmd.Header.ApprovalKey != "test-key" {
		t.Errorf("approval_key = %q, want test-key", cmd.Header.ApprovalKey)
	}
	if cmd.Header.TrType != "1" {
		t.Errorf("tr_type = %q, want 1", cmd.Header.TrType)
	}
	if cmd.Body.Trnm != "REG" {
		t.Errorf("trnm = %q, want REG", cmd.Body.Trnm)
	}
	if len(cmd.Body.Data) != 1 || len(cmd.Body.Data[0].Item) != 2 || len(cmd.Body.Data[0].Type) != 2 {
		t.Errorf("unexpected data block: %+v", cmd.Body.Data)
	}
}

func TestManagerSubscribeRejected(t *testing.T) {
	m, _ := newTestManager(t, func() *fakeClient {
		f := newFakeClient()
		f.onSend = ackOnCommand(1)
		return f
	})
	defer m.Stop(context.Background())

	err := m.Subscribe(context.Background(), []RealType{TypeTick}, []string{"005930"})
	if err == nil {
		t.Fatal("Subscribe = nil error, want rejection")
	}
	if got := m.Stats().Subscriptions; got != 0 {
		t.Errorf("Subscriptions = %d, want 0 after rejection", got)
	}
}

func TestManagerSubscribeTimeout(t *testing.T) {
	m, _ := newTestManager(t, func() *fakeClient {
		return newFakeClient() // never acks
	})
	defer m.Stop(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := m.Subscribe(ctx, []RealType{TypeTick}, []string{"005930"})
	if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		t.Errorf("Subscribe = %v, want timeout", err)
	}
}

func TestManagerUnsubscribe(t *testing.T) {
	m, fake := newTestManager(t, func() *fakeClient {
		f := newFakeClient()
		f.onSend = ackOnCommand(0)
		return f
	})
	defer m.Stop(context.Background())

	if err := m.Subscribe(context.Background(), []RealType{TypeTick}, []string{"005930"}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := m.Unsubscribe(context.Background(), []RealType{TypeTick}, []string{"005930"}); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}

	if got := m.Stats().Subscriptions; got != 0 {
		t.Errorf("Subscriptions = %d, want 0", got)
	}

	frames := fake.sentFrames()
	if len(frames) != 2 {
		t.Fatalf("sent %d frames, want 2", len(frames))
	}
	var cmd struct {
		Header header `json:"header"`
	}
	if err := json.Unmarshal(frames[1], &cmd); err != nil {
		t.Fatalf("unmarshal command: %v", err)
	}
	if cmd.Header.TrType != "2" {
		t.Errorf("tr_type = %q, want 2 for REMOVE", cmd.Header.TrType)
	}
}

func TestManagerPingEcho(t *testing.T) {
	m, fake := newTestManager(t, func() *fakeClient {
		return newFakeClient()
	})
	defer m.Stop(context.Background())

	ping := `{"trnm":"PING","data":"opaque"}`
	fake.push(ping)

	deadline := time.After(2 * time.Second)
	for {
		if frames := fake.sentFrames(); len(frames) == 1 {
			if string(frames[0]) != ping {
				t.Errorf("echo = %s, want verbatim %s", frames[0], ping)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for ping echo")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if got := m.Stats().PingsEchoed; got != 1 {
		t.Errorf("PingsEchoed = %d, want 1", got)
	}
}

func TestManagerForwardsRealFrames(t *testing.T) {
	m, fake := newTestManager(t, func() *fakeClient {
		return newFakeClient()
	})
	defer m.Stop(context.Background())

	real := `{"trnm":"REAL","data":[{"type":"0B","item":"005930","values":{"10":"-71200"}}]}`
	fake.push(real)

	select {
	case msg := <-m.Messages():
		if string(msg.Data) != real {
			t.Errorf("forwarded = %s, want %s", msg.Data, real)
		}
		if msg.ReceivedAt.IsZero() {
			t.Error("ReceivedAt not set")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for forwarded frame")
	}
}

func TestManagerResubscribeAfterReconnect(t *testing.T) {
	var mu sync.Mutex
	var clients []*fakeClient

	m, first := newTestManager(t, func() *fakeClient {
		f := newFakeClient()
		f.onSend = ackOnCommand(0)
		mu.Lock()
		clients = append(clients, f)
		mu.Unlock()
		return f
	})
	defer m.Stop(context.Background())

	if err := m.Subscribe(context.Background(), []RealType{TypeTick}, []string{"005930"}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	// Drop the connection.
	first.errs <- ErrStaleConnection

	deadline := time.After(3 * time.Second)
	for {
		mu.Lock()
		n := len(clients)
		mu.Unlock()
		if n >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for reconnect")
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	second := clients[1]
	mu.Unlock()

	// The fresh connection must receive a REG for the tracked subscription.
	deadline = time.After(3 * time.Second)
	for {
		if frames := second.sentFrames(); len(frames) >= 1 {
			var cmd struct {
				Body struct {
					Trnm string    `json:"trnm"`
					Data []regData `json:"data"`
				} `json:"body"`
			}
			if err := json.Unmarshal(frames[0], &cmd); err != nil {
				t.Fatalf("unmarshal resubscribe: %v", err)
			}
			if cmd.Body.Trnm != "REG" {
				t.Errorf("trnm = %q, want REG", cmd.Body.Trnm)
			}
			if len(cmd.Body.Data) != 1 || len(cmd.Body.Data[0].Item) != 1 || cmd.Body.Data[0].Item[0] != "005930" {
				t.Errorf("resubscribe data = %+v, want item 005930", cmd.Body.Data)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for resubscribe frame")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if got := m.Stats().Reconnects; got != 1 {
		t.Errorf("Reconnects = %d, want 1", got)
	}
	if got := m.Stats().Subscriptions; got != 1 {
		t.Errorf("Subscriptions = %d, want 1 (state preserved)", got)
	}
}
