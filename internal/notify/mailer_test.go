package notify

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/Faultbox/segmata/internal/config"
	"github.com/Faultbox/segmata/internal/report"
)

type fakeSender struct {
	sent []*mail.Msg
	err  error
}

func (f *fakeSender) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	f.sent = append(f.sent, messages...)
	return f.err
}

func createTestReport() *report.Report {
	r := report.New("segment_test", 100, 42)
	r.Add(report.PassResult{
		Pass:        0,
		VertexCount: 100,
		Candidates:  []int{1, 2, 3},
		Directions: []report.DirectionResult{
			{Direction: -1, Accepted: 1, Rejected: 2},
			{Direction: +1, Accepted: 1, Rejected: 2},
		},
		Moves: []report.Move{
			{Pass: 0, Vertex: 1, Direction: -1, Displacement: -2},
			{Pass: 0, Vertex: 3, Direction: +1, Displacement: 2},
		},
	})
	return r
}

func TestNewDisabledIsNop(t *testing.T) {
	n, err := New(config.NotifyConfig{})
	require.NoError(t, err)
	assert.IsType(t, Nop{}, n)
	assert.NoError(t, n.Notify(context.Background(), createTestReport(), ""))
}

func TestNewMailerValidates(t *testing.T) {
	_, err := New(config.NotifyConfig{Enabled: true, SMTPHost: "smtp.example.com"})
	assert.ErrorIs(t, err, ErrNoRecipients)

	_, err = New(config.NotifyConfig{Enabled: true, To: []string{"a@example.com"}})
	assert.Error(t, err)

	n, err := New(config.NotifyConfig{
		Enabled:  true,
		SMTPHost: "smtp.example.com",
		SMTPPort: 587,
		Username: "bot@example.com",
		Password: "secret",
		To:       []string{"a@example.com"},
	})
	require.NoError(t, err)
	assert.IsType(t, &Mailer{}, n)
}

func TestMailerNotify(t *testing.T) {
	attachment := filepath.Join(t.TempDir(), "32.jpg_ref.png")
	require.NoError(t, os.WriteFile(attachment, []byte("png"), 0644))

	fake := &fakeSender{}
	m := &Mailer{from: "bot@example.com", to: []string{"a@example.com", "b@example.com"}, client: fake}
	require.NoError(t, m.Notify(context.Background(), createTestReport(), attachment))
	require.Len(t, fake.sent, 1)

	msg := fake.sent[0]
	rcpts, err := msg.GetRecipients()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a@example.com", "b@example.com"}, rcpts)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "segmata: segment_test pass 1")
	assert.Contains(t, buf.String(), "32.jpg_ref.png")
}

func TestMailerNotifyError(t *testing.T) {
	fake := &fakeSender{err: errors.New("connection refused")}
	m := &Mailer{from: "bot@example.com", to: []string{"a@example.com"}, client: fake}
	err := m.Notify(context.Background(), createTestReport(), "")
	assert.ErrorContains(t, err, "connection refused")
}

func TestMailerInvalidAddress(t *testing.T) {
	m := &Mailer{from: "not an address", to: []string{"a@example.com"}, client: &fakeSender{}}
	assert.Error(t, m.Notify(context.Background(), createTestReport(), ""))
}

func TestBody(t *testing.T) {
	body := Body(createTestReport())
	assert.Contains(t, body, "Mesh: segment_test (100 vertices)")
	assert.Contains(t, body, "Seed: 42")
	assert.Contains(t, body, "Last pass 1: moved 2 of 100 vertices (2.00 %)")
}
