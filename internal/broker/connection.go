package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/opsmind/ticket-service/internal/config"
	"github.com/opsmind/ticket-service/internal/observability"
)

var (
	// ErrChannelUnavailable is returned when a publish is attempted while the
	// broker is not connected. Callers must not treat it as a mutation failure.
	ErrChannelUnavailable = errors.New("broker channel unavailable")
	// ErrClosed is returned once the manager has been shut down.
	ErrClosed = errors.New("broker connection manager closed")
)

// Channel is the subset of AMQP channel operations the service uses.
// *amqp091.Channel satisfies it.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Connection abstracts the transport connection so tests can substitute doubles.
type Connection interface {
	Channel() (Channel, error)
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	Close() error
}

// Dialer opens a broker connection.
type Dialer func(url string) (Connection, error)

// AMQPDial is the production dialer backed by amqp091-go.
func AMQPDial(url string) (Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return &amqpConnection{conn: conn}, nil
}

type amqpConnection struct {
	conn *amqp.Connection
}

func (c *amqpConnection) Channel() (Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (c *amqpConnection) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	return c.conn.NotifyClose(receiver)
}

func (c *amqpConnection) Close() error {
	return c.conn.Close()
}

// ConnectionManager owns the single logical broker connection and its sole
// active channel. It connects idempotently, declares the durable topic
// exchange all publishers share, and reconnects with a fixed delay after any
// failure, asked or not.
type ConnectionManager struct {
	url            string
	exchange       string
	reconnectDelay time.Duration
	dial           Dialer
	logger         *zap.Logger
	metrics        *observability.Metrics

	mu         sync.Mutex
	conn       Connection
	channel    Channel
	connecting bool
	closed     bool
}

// NewConnectionManager builds a manager; no connection is attempted yet.
func NewConnectionManager(cfg config.RabbitConfig, logger *zap.Logger, metrics *observability.Metrics) *ConnectionManager {
	return &ConnectionManager{
		url:            cfg.URL,
		exchange:       cfg.Exchange,
		reconnectDelay: cfg.ReconnectDelay(),
		dial:           AMQPDial,
		logger:         logger,
		metrics:        metrics,
	}
}

// Exchange returns the name of the durable topic exchange the manager declares.
func (m *ConnectionManager) Exchange() string {
	return m.exchange
}

// Connect establishes the connection, opens the channel and declares the
// exchange. It is a no-op when already connected. When a connect is already
// in flight the call returns immediately without starting a second attempt.
// On failure the error is returned to the caller and a reconnect is scheduled
// after the fixed delay.
func (m *ConnectionManager) Connect() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.conn != nil && m.channel != nil {
		m.mu.Unlock()
		return nil
	}
	if m.connecting {
		m.mu.Unlock()
		return nil
	}
	m.connecting = true
	m.mu.Unlock()

	conn, channel, err := m.establish()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.connecting = false
	if m.closed {
		if err == nil {
			_ = channel.Close()
			_ = conn.Close()
		}
		return ErrClosed
	}
	if err != nil {
		m.logger.Warn("broker connect failed", zap.Error(err))
		m.scheduleReconnectLocked()
		return err
	}

	m.conn = conn
	m.channel = channel
	closeCh := conn.NotifyClose(make(chan *amqp.Error, 1))
	go m.watch(conn, closeCh)
	m.logger.Info("connected to rabbitmq", zap.String("exchange", m.exchange))
	return nil
}

func (m *ConnectionManager) establish() (Connection, Channel, error) {
	conn, err := m.dial(m.url)
	if err != nil {
		return nil, nil, fmt.Errorf("broker connect: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("broker channel: %w", err)
	}
	if err := channel.ExchangeDeclare(m.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", m.exchange, err)
	}
	return conn, channel, nil
}

// watch waits for the broker-initiated close notification and drops the held
// references before scheduling a reconnect. A graceful shutdown closes the
// notification channel without sending, which ends the watcher silently.
func (m *ConnectionManager) watch(conn Connection, closeCh chan *amqp.Error) {
	reason, ok := <-closeCh
	if !ok {
		return
	}

	m.mu.Lock()
	if m.closed || m.conn != conn {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.channel = nil
	m.scheduleReconnectLocked()
	m.mu.Unlock()

	if reason != nil {
		m.logger.Warn("rabbitmq connection lost", zap.String("reason", reason.Error()))
	} else {
		m.logger.Warn("rabbitmq connection lost")
	}
}

// scheduleReconnectLocked arms a delayed reconnect. The caller holds m.mu.
// A failed attempt schedules the next one itself, so this forms the retry loop.
func (m *ConnectionManager) scheduleReconnectLocked() {
	if m.closed {
		return
	}
	m.metrics.RecordBrokerReconnect()
	delay := m.reconnectDelay
	time.AfterFunc(delay, func() {
		if err := m.Connect(); err != nil && !errors.Is(err, ErrClosed) {
			m.logger.Warn("broker reconnect failed", zap.Error(err))
		}
	})
}

// Channel returns the active channel. Callers must re-fetch on every publish
// because the channel is replaced after a reconnect.
func (m *ConnectionManager) Channel() (Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.channel == nil {
		return nil, ErrChannelUnavailable
	}
	return m.channel, nil
}

// Healthy reports whether both connection and channel are currently held.
func (m *ConnectionManager) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil && m.channel != nil
}

// State reports the connection state for readiness probes.
func (m *ConnectionManager) State() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.conn != nil && m.channel != nil:
		return "CONNECTED"
	case m.connecting:
		return "CONNECTING"
	default:
		return "DISCONNECTED"
	}
}

// Close shuts the manager down. It is idempotent, closes channel then
// connection while logging and swallowing their errors, and suppresses any
// pending reconnect.
func (m *ConnectionManager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	conn := m.conn
	channel := m.channel
	m.conn = nil
	m.channel = nil
	m.mu.Unlock()

	if channel != nil {
		if err := channel.Close(); err != nil {
			m.logger.Warn("close broker channel", zap.Error(err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			m.logger.Warn("close broker connection", zap.Error(err))
		}
	}
}
