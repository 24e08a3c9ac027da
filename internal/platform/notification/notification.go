// Package notification renders and dispatches operational alerts. Delivery
// itself is delegated to a Sender: the log sender for development and the
// Redis sender, which hands messages to an external delivery worker.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicaleng/cmms/internal/platform/clock"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

type Status string

const (
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// Notification is a single outbound message.
type Notification struct {
	ID         string            `json:"id"`
	TenantID   string            `json:"tenant_id"`
	Channel    Channel           `json:"channel"`
	Recipient  string            `json:"recipient"`
	Subject    string            `json:"subject,omitempty"`
	Body       string            `json:"body"`
	TemplateID string            `json:"template_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Status     Status            `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	SentAt     *time.Time        `json:"sent_at,omitempty"`
	Error      string            `json:"error,omitempty"`
}

type Sender interface {
	Send(ctx context.Context, n *Notification) error
}

// LogSender writes notifications to the log instead of delivering them.
type LogSender struct {
	Logger zerolog.Logger
}

func (s LogSender) Send(_ context.Context, n *Notification) error {
	s.Logger.Info().
		Str("notification_id", n.ID).
		Str("tenant_id", n.TenantID).
		Str("channel", string(n.Channel)).
		Str("recipient", n.Recipient).
		Str("subject", n.Subject).
		Msg("notification")
	return nil
}

// DefaultRedisChannel is where RedisSender publishes by default.
const DefaultRedisChannel = "cmms:notifications"

// RedisSender publishes notifications as JSON on a Redis channel.
type RedisSender struct {
	client  *redis.Client
	channel string
}

func NewRedisSender(client *redis.Client, channel string) *RedisSender {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisSender{client: client, channel: channel}
}

func (s *RedisSender) Send(ctx context.Context, n *Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	return s.client.Publish(ctx, s.channel, payload).Err()
}

// Template is a notification with {{key}} placeholders.
type Template struct {
	ID      string  `json:"id"`
	Subject string  `json:"subject"`
	Body    string  `json:"body"`
	Channel Channel `json:"channel"`
}

const TemplateCriticalTicket = "critical-ticket-opened"

var builtIn = []Template{
	{
		ID:      TemplateCriticalTicket,
		Subject: "Chamado crítico: {{equipment}}",
		Body: "Chamado {{ticket}} aberto para {{equipment}} (criticidade {{criticality}}, urgência {{urgency}}). " +
			"Prazo de atendimento: {{deadline}}.",
		Channel: ChannelEmail,
	},
}

type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// NewTemplateEngine returns an engine with the built-in templates registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]Template)}
	for _, t := range builtIn {
		e.templates[t.ID] = t
	}
	return e
}

func (e *TemplateEngine) Register(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = t
}

// Render fills the template's placeholders from data. Placeholders without a
// value are left as is.
func (e *TemplateEngine) Render(id string, data map[string]string) (Template, error) {
	e.mu.RLock()
	t, ok := e.templates[id]
	e.mu.RUnlock()
	if !ok {
		return Template{}, fmt.Errorf("template %q not found", id)
	}
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		t.Subject = strings.ReplaceAll(t.Subject, placeholder, v)
		t.Body = strings.ReplaceAll(t.Body, placeholder, v)
	}
	return t, nil
}

// Manager renders and sends notifications and keeps per-status counters.
type Manager struct {
	sender    Sender
	templates *TemplateEngine
	clock     clock.Clock
	logger    zerolog.Logger

	mu    sync.Mutex
	stats map[Status]int
}

func NewManager(sender Sender, tpl *TemplateEngine, clk clock.Clock, logger zerolog.Logger) *Manager {
	return &Manager{
		sender:    sender,
		templates: tpl,
		clock:     clk,
		logger:    logger,
		stats:     make(map[Status]int),
	}
}

// Notify renders templateID for every recipient and sends the results. It
// attempts every recipient and returns the first failure.
func (m *Manager) Notify(ctx context.Context, tenantID, templateID string, data map[string]string, recipients ...string) ([]*Notification, error) {
	t, err := m.templates.Render(templateID, data)
	if err != nil {
		return nil, err
	}
	var (
		out      []*Notification
		firstErr error
	)
	for _, r := range recipients {
		n := &Notification{
			ID:         uuid.New().String(),
			TenantID:   tenantID,
			Channel:    t.Channel,
			Recipient:  r,
			Subject:    t.Subject,
			Body:       t.Body,
			TemplateID: templateID,
			Metadata:   data,
			CreatedAt:  m.clock.Now(),
		}
		if err := m.send(ctx, n); err != nil && firstErr == nil {
			firstErr = err
		}
		out = append(out, n)
	}
	return out, firstErr
}

func (m *Manager) send(ctx context.Context, n *Notification) error {
	err := m.sender.Send(ctx, n)
	if err != nil {
		n.Status = StatusFailed
		n.Error = err.Error()
		m.logger.Warn().Err(err).Str("notification_id", n.ID).Str("recipient", n.Recipient).Msg("notification failed")
	} else {
		n.Status = StatusSent
		at := m.clock.Now()
		n.SentAt = &at
	}
	m.mu.Lock()
	m.stats[n.Status]++
	m.mu.Unlock()
	return err
}

// Stats returns how many notifications ended in each status.
func (m *Manager) Stats() map[Status]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[Status]int, len(m.stats))
	for k, v := range m.stats {
		out[k] = v
	}
	return out
}
