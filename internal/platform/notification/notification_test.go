package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicaleng/cmms/internal/platform/clock"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []*Notification
	fail map[string]bool
}

func (s *recordingSender) Send(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[n.Recipient] {
		return errors.New("mailbox unavailable")
	}
	s.sent = append(s.sent, n)
	return nil
}

var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func TestTemplateEngine_Render(t *testing.T) {
	e := NewTemplateEngine()

	got, err := e.Render(TemplateCriticalTicket, map[string]string{
		"equipment": "Ventilador UTI 3", "criticality": "A",
	})
	require.NoError(t, err)
	assert.Equal(t, "Chamado crítico: Ventilador UTI 3", got.Subject)
	assert.Contains(t, got.Body, "criticidade A")
	assert.Contains(t, got.Body, "{{deadline}}", "missing keys stay as placeholders")

	_, err = e.Render("nope", nil)
	assert.Error(t, err)
}

func TestTemplateEngine_RenderDoesNotMutate(t *testing.T) {
	e := NewTemplateEngine()
	_, err := e.Render(TemplateCriticalTicket, map[string]string{"ticket": "123"})
	require.NoError(t, err)

	again, err := e.Render(TemplateCriticalTicket, nil)
	require.NoError(t, err)
	assert.Contains(t, again.Body, "{{ticket}}")
}

func TestTemplateEngine_Register(t *testing.T) {
	e := NewTemplateEngine()
	e.Register(Template{ID: "custom", Subject: "Olá {{name}}", Body: "b", Channel: ChannelSMS})

	got, err := e.Render("custom", map[string]string{"name": "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "Olá Ana", got.Subject)
	assert.Equal(t, ChannelSMS, got.Channel)
}

func TestManager_Notify(t *testing.T) {
	sender := &recordingSender{}
	m := NewManager(sender, NewTemplateEngine(), clock.NewFixed(now), zerolog.Nop())

	out, err := m.Notify(context.Background(), "t1", TemplateCriticalTicket,
		map[string]string{"equipment": "Tomógrafo"}, "a@x.com", "b@x.com")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Len(t, sender.sent, 2)
	for _, n := range out {
		assert.Equal(t, StatusSent, n.Status)
		assert.Equal(t, now, *n.SentAt)
		assert.Equal(t, "t1", n.TenantID)
		assert.NotEmpty(t, n.ID)
	}
	assert.Equal(t, map[Status]int{StatusSent: 2}, m.Stats())
}

func TestManager_NotifyPartialFailure(t *testing.T) {
	sender := &recordingSender{fail: map[string]bool{"a@x.com": true}}
	m := NewManager(sender, NewTemplateEngine(), clock.NewFixed(now), zerolog.Nop())

	out, err := m.Notify(context.Background(), "t1", TemplateCriticalTicket, nil, "a@x.com", "b@x.com")
	assert.Error(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, StatusFailed, out[0].Status)
	assert.Equal(t, "mailbox unavailable", out[0].Error)
	assert.Equal(t, StatusSent, out[1].Status, "later recipients are still attempted")
	assert.Equal(t, map[Status]int{StatusSent: 1, StatusFailed: 1}, m.Stats())
}

func TestManager_ConcurrentNotify(t *testing.T) {
	sender := &recordingSender{}
	m := NewManager(sender, NewTemplateEngine(), clock.NewFixed(now), zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Notify(context.Background(), "t1", TemplateCriticalTicket, nil, "a@x.com")
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, m.Stats()[StatusSent])
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, LogSender{Logger: zerolog.Nop()}.Send(context.Background(), &Notification{ID: "n1"}))
}
