package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ApprovalFunc fetches a WebSocket approval key. Called on every
// (re)connect so the key is always fresh.
type ApprovalFunc func(ctx context.Context) (string, error)

// Manager owns the WebSocket connection and its subscriptions.
type Manager interface {
	// Start connects and begins reading frames.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the connection.
	Stop(ctx context.Context) error

	// Subscribe registers the given real-time types for the given stocks.
	Subscribe(ctx context.Context, types []RealType, items []string) error

	// Unsubscribe removes registrations.
	Unsubscribe(ctx context.Context, types []RealType, items []string) error

	// Messages returns the channel of REAL data frames for the Router.
	Messages() <-chan RawMessage

	// Stats returns current connection and subscription statistics.
	Stats() ManagerStats
}

// ManagerStats provides statistics about the stream manager.
type ManagerStats struct {
	Connected     bool
	Subscriptions int
	Reconnects    int64
	FramesRead    int64
	PingsEchoed   int64
}

// manager implements the Manager interface.
type manager struct {
	cfg      ManagerConfig
	approval ApprovalFunc
	logger   *slog.Logger

	// Injectable for tests.
	newClient func(ClientConfig, *slog.Logger) Client

	client Client

	// Output to Router
	router chan RawMessage

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Command serialization: REG/REMOVE acks carry no correlation id,
	// so only one command is in flight at a time.
	cmdMu   sync.Mutex
	ackMu   sync.Mutex
	pending map[string]chan serverFrame // keyed by trnm ("REG"/"REMOVE")

	// Subscription tracking
	subsMu sync.RWMutex
	subs   map[Subscription]struct{}

	// Stats
	statsMu     sync.Mutex
	reconnects  int64
	framesRead  int64
	pingsEchoed int64
}

// NewManager creates a new stream Manager.
func NewManager(cfg ManagerConfig, approval ApprovalFunc, logger *slog.Logger) Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &manager{
		cfg:       cfg,
		approval:  approval,
		logger:    logger,
		newClient: NewClient,
		router:    make(chan RawMessage, cfg.BufferSize),
		pending:   make(map[string]chan serverFrame),
		subs:      make(map[Subscription]struct{}),
	}
}

// Start connects and begins the read loop.
func (m *manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	if err := m.connect(); err != nil {
		return fmt.Errorf("connect stream: %w", err)
	}

	m.wg.Add(1)
	go m.readLoop()

	m.logger.Info("stream manager started", "url", m.cfg.WSURL)
	return nil
}

// Stop gracefully shuts down.
func (m *manager) Stop(ctx context.Context) error {
	m.logger.Info("stopping stream manager")

	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("shutdown timeout, forcing close")
	}

	if m.client != nil {
		m.client.Close()
	}
	close(m.router)

	m.logger.Info("stream manager stopped")
	return nil
}

// Messages returns the output channel for the Router.
func (m *manager) Messages() <-chan RawMessage {
	return m.router
}

// Stats returns current statistics.
func (m *manager) Stats() ManagerStats {
	m.subsMu.RLock()
	subs := len(m.subs)
	m.subsMu.RUnlock()

	m.statsMu.Lock()
	defer m.statsMu.Unlock()

	connected := m.client != nil && m.client.IsConnected()

	return ManagerStats{
		Connected:     connected,
		Subscriptions: subs,
		Reconnects:    m.reconnects,
		FramesRead:    m.framesRead,
		PingsEchoed:   m.pingsEchoed,
	}
}

// connect dials and stores a fresh client.
func (m *manager) connect() error {
	cfg := ClientConfig{
		URL:          m.cfg.WSURL,
		PingTimeout:  m.cfg.PingTimeout,
		WriteTimeout: m.cfg.WriteTimeout,
		BufferSize:   m.cfg.BufferSize,
	}

	client := m.newClient(cfg, m.logger)
	if err := client.Connect(m.ctx); err != nil {
		return err
	}

	m.client = client
	return nil
}

// Subscribe registers real-time types for the given stocks and waits
// for the broker's acknowledgement.
func (m *manager) Subscribe(ctx context.Context, types []RealType, items []string) error {
	if err := m.sendCommand(ctx, "REG", "1", types, items); err != nil {
		return err
	}

	m.subsMu.Lock()
	for _, t := range types {
		for _, item := range items {
			m.subs[Subscription{Type: t, Item: item}] = struct{}{}
		}
	}
	m.subsMu.Unlock()

	m.logger.Debug("subscribed", "types", types, "items", items)
	return nil
}

// Unsubscribe removes registrations.
func (m *manager) Unsubscribe(ctx context.Context, types []RealType, items []string) error {
	if err := m.sendCommand(ctx, "REMOVE", "2", types, items); err != nil {
		return err
	}

	m.subsMu.Lock()
	for _, t := range types {
		for _, item := range items {
			delete(m.subs, Subscription{Type: t, Item: item})
		}
	}
	m.subsMu.Unlock()

	m.logger.Debug("unsubscribed", "types", types, "items", items)
	return nil
}

// sendCommand sends a REG/REMOVE frame and waits for its ack. Commands
// are serialized because acks carry no correlation id.
func (m *manager) sendCommand(ctx context.Context, trnm, trType string, types []RealType, items []string) error {
	m.cmdMu.Lock()
	defer m.cmdMu.Unlock()

	key, err := m.approval(ctx)
	if err != nil {
		return fmt.Errorf("get approval key: %w", err)
	}

	typeCodes := make([]string, len(types))
	for i, t := range types {
		typeCodes[i] = string(t)
	}

	cmd := frame{
		Header: header{
			ApprovalKey: key,
			TrType:      trType,
		},
		Body: regBody{
			Trnm:    trnm,
			GrpNo:   "1",
			Refresh: "1",
			Data: []regData{{
				Item: items,
				Type: typeCodes,
			}},
		},
	}

	ackCh := make(chan serverFrame, 1)
	m.ackMu.Lock()
	m.pending[trnm] = ackCh
	m.ackMu.Unlock()

	defer func() {
		m.ackMu.Lock()
		delete(m.pending, trnm)
		m.ackMu.Unlock()
	}()

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal %s command: %w", trnm, err)
	}
	if err := m.client.Send(data); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.cfg.SubscribeTimeout):
		return ErrTimeout
	case ack := <-ackCh:
		if ack.ReturnCode != 0 {
			return fmt.Errorf("%s rejected: %s (return_code %d)", trnm, ack.ReturnMsg, ack.ReturnCode)
		}
		return nil
	}
}

// readLoop reads frames, echoes pings, routes acks and data.
func (m *manager) readLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return

		case err := <-m.client.Errors():
			m.logger.Warn("stream connection error", "error", err)
			m.wg.Add(1)
			go m.reconnect()
			return

		case msg, ok := <-m.client.Messages():
			if !ok {
				return
			}
			m.handleFrame(msg)
		}
	}
}

// handleFrame dispatches one server frame by trnm.
func (m *manager) handleFrame(msg TimestampedMessage) {
	m.statsMu.Lock()
	m.framesRead++
	m.statsMu.Unlock()

	var sf serverFrame
	if err := json.Unmarshal(msg.Data, &sf); err != nil {
		m.logger.Warn("unparseable frame", "error", err)
		return
	}

	switch sf.Trnm {
	case "PING":
		// Echo the frame back verbatim; the broker drops silent clients.
		if err := m.client.Send(msg.Data); err != nil {
			m.logger.Warn("failed to echo ping", "error", err)
			return
		}
		m.statsMu.Lock()
		m.pingsEchoed++
		m.statsMu.Unlock()

	case "REG", "REMOVE":
		m.ackMu.Lock()
		ch, ok := m.pending[sf.Trnm]
		m.ackMu.Unlock()
		if ok {
			select {
			case ch <- sf:
			default:
			}
		}

	case "REAL":
		raw := RawMessage{
			Data:       msg.Data,
			ReceivedAt: msg.ReceivedAt,
		}
		select {
		case m.router <- raw:
		case <-m.ctx.Done():
		default:
			m.logger.Warn("router buffer full, dropping frame")
		}

	default:
		m.logger.Debug("skipping frame", "trnm", sf.Trnm)
	}
}

// reconnect re-establishes the connection with exponential backoff and
// re-registers every tracked subscription.
func (m *manager) reconnect() {
	defer m.wg.Done()

	wait := m.cfg.ReconnectBaseDelay

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-time.After(wait):
		}

		m.logger.Info("attempting stream reconnection")

		if m.client != nil {
			m.client.Close()
		}

		if err := m.connect(); err != nil {
			m.logger.Warn("reconnection failed", "error", err)

			wait *= 2
			if wait > m.cfg.ReconnectMaxDelay {
				wait = m.cfg.ReconnectMaxDelay
			}
			continue
		}

		m.statsMu.Lock()
		m.reconnects++
		m.statsMu.Unlock()

		m.logger.Info("stream reconnected")

		// The read loop must be running before resubscribing; REG acks
		// arrive through it.
		m.wg.Add(1)
		go m.readLoop()

		m.resubscribeAll()

		return
	}
}

// resubscribeAll re-registers every tracked subscription, grouped by type.
func (m *manager) resubscribeAll() {
	m.subsMu.RLock()
	byType := make(map[RealType][]string)
	for sub := range m.subs {
		byType[sub.Type] = append(byType[sub.Type], sub.Item)
	}
	m.subsMu.RUnlock()

	for t, items := range byType {
		ctx, cancel := context.WithTimeout(m.ctx, m.cfg.SubscribeTimeout)
		err := m.sendCommand(ctx, "REG", "1", []RealType{t}, items)
		cancel()
		if err != nil {
			m.logger.Warn("resubscribe failed",
				"type", t,
				"items", len(items),
				"error", err,
			)
		}
	}
}
