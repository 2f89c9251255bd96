package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// NATSConfig configures the NATS connection.
type NATSConfig struct {
	// URL is the NATS server URL
	URL string

	// Subject is the base subject for notifications
	Subject string

	// ConnectTimeout is the connection timeout
	ConnectTimeout time.Duration
}

// NATSNotifier publishes notifications to NATS so companion surfaces
// (desktop notifier, chat bridge) can render them too.
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
}

// NewNATSNotifier creates a NATS-backed notifier.
func NewNATSNotifier(cfg NATSConfig) (*NATSNotifier, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Subject == "" {
		cfg.Subject = "agentdeck.notify"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Timeout(cfg.ConnectTimeout),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &NATSNotifier{
		conn:    conn,
		subject: cfg.Subject,
	}, nil
}

func (p *NATSNotifier) Success(message string) {
	p.publish(&Notification{
		Kind:    KindSuccess,
		Message: message,
	})
}

func (p *NATSNotifier) Error(message, description string) {
	p.publish(&Notification{
		Kind:        KindError,
		Message:     message,
		Description: description,
	})
}

func (p *NATSNotifier) publish(n *Notification) {
	n.ID = uuid.NewString()
	n.Timestamp = time.Now()

	subject := fmt.Sprintf("%s.%s", p.subject, n.Kind)
	// Fire-and-forget: a down bus must not break the review flow.
	_ = p.conn.Publish(subject, n.JSON())
}

// Subscribe registers a handler for notifications on the base subject.
// Used by companion processes; the inbox client itself only publishes.
func (p *NATSNotifier) Subscribe(handler func(*Notification)) (*nats.Subscription, error) {
	return p.conn.Subscribe(p.subject+".>", func(msg *nats.Msg) {
		n, err := ParseNotification(msg.Data)
		if err != nil {
			return
		}
		handler(n)
	})
}

// Close closes the NATS connection.
func (p *NATSNotifier) Close() error {
	p.conn.Close()
	return nil
}
