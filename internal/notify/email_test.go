package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"gopkg.in/gomail.v2"

	"github.com/alfredai/landing-leads/pkg/logging"
)

func TestNewSendGridSender_NilWithoutAPIKey(t *testing.T) {
	if sender := NewSendGridSender("", SenderConfig{FromEmail: "noreply@alfredai.bot"}, nil); sender != nil {
		t.Error("expected nil sender when API key is empty")
	}
}

func TestSendGridSender_Send_NilClient(t *testing.T) {
	var sender *SendGridSender
	err := sender.Send(context.Background(), EmailMessage{To: "a@example.com", Subject: "Test", Body: "body"})
	if err == nil {
		t.Fatal("expected error for nil sender")
	}
}

func TestSenderConfig_DisplayName(t *testing.T) {
	cfg := SenderConfig{FromEmail: "noreply@alfredai.bot"}
	if got := cfg.displayName(EmailMessage{}); got != defaultFromName {
		t.Errorf("expected default display name, got %q", got)
	}
	cfg.FromName = "Sales"
	if got := cfg.displayName(EmailMessage{}); got != "Sales" {
		t.Errorf("expected configured display name, got %q", got)
	}
	if got := cfg.displayName(EmailMessage{FromName: "AlfredAI Leads"}); got != "AlfredAI Leads" {
		t.Errorf("expected message override, got %q", got)
	}
}

func TestStubEmailSender_Send(t *testing.T) {
	sender := NewStubEmailSender(logging.Discard())
	if err := sender.Send(context.Background(), EmailMessage{To: "a@example.com"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestNewSESSender_NilClient(t *testing.T) {
	if NewSESSender(nil, SenderConfig{}, nil) != nil {
		t.Fatal("expected nil sender for nil client")
	}
}

func TestSESSender_Send(t *testing.T) {
	api := &fakeSES{}
	sender := NewSESSender(api, SenderConfig{FromEmail: "noreply@alfredai.bot"}, logging.Discard())

	err := sender.Send(context.Background(), EmailMessage{
		To:      "jane@example.com",
		Subject: "Hello",
		Body:    "plain",
		HTML:    "<p>html</p>",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := aws.ToString(api.input.FromEmailAddress); got != "AlfredAI Team <noreply@alfredai.bot>" {
		t.Errorf("unexpected from address %q", got)
	}
	if api.input.Destination.ToAddresses[0] != "jane@example.com" {
		t.Errorf("unexpected recipient %v", api.input.Destination.ToAddresses)
	}
	body := api.input.Content.Simple.Body
	if aws.ToString(body.Text.Data) != "plain" || aws.ToString(body.Html.Data) != "<p>html</p>" {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestSESSender_SendError(t *testing.T) {
	api := &fakeSES{err: errors.New("throttled")}
	sender := NewSESSender(api, SenderConfig{FromEmail: "noreply@alfredai.bot"}, logging.Discard())
	err := sender.Send(context.Background(), EmailMessage{To: "jane@example.com", Body: "x"})
	if err == nil || !strings.Contains(err.Error(), "throttled") {
		t.Fatalf("expected wrapped SES error, got %v", err)
	}
}

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	f.sent = append(f.sent, m...)
	return f.err
}

func TestNewSMTPSender_NilWithoutHost(t *testing.T) {
	if NewSMTPSender(SMTPConfig{}, SenderConfig{}, nil) != nil {
		t.Fatal("expected nil sender without host")
	}
}

func TestSMTPSender_Send(t *testing.T) {
	d := &fakeDialer{}
	sender := newSMTPSenderWithDialer(d, SenderConfig{FromEmail: "noreply@alfredai.bot"}, logging.Discard())

	err := sender.Send(context.Background(), EmailMessage{
		To:       "jane@example.com",
		ToName:   "Jane Doe",
		FromName: "AlfredAI Leads",
		Subject:  "New Lead: Jane",
		Body:     "text",
		HTML:     "<p>text</p>",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(d.sent))
	}
	m := d.sent[0]
	if got := m.GetHeader("Subject"); len(got) != 1 || got[0] != "New Lead: Jane" {
		t.Errorf("unexpected subject %v", got)
	}
	if got := m.GetHeader("From"); len(got) != 1 || !strings.Contains(got[0], "noreply@alfredai.bot") || !strings.Contains(got[0], "AlfredAI Leads") {
		t.Errorf("unexpected from %v", got)
	}
}

func TestSMTPSender_SendError(t *testing.T) {
	d := &fakeDialer{err: errors.New("connection refused")}
	sender := newSMTPSenderWithDialer(d, SenderConfig{FromEmail: "noreply@alfredai.bot"}, logging.Discard())
	if err := sender.Send(context.Background(), EmailMessage{To: "jane@example.com"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSMTPSender_CancelledContext(t *testing.T) {
	d := &fakeDialer{}
	sender := newSMTPSenderWithDialer(d, SenderConfig{}, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sender.Send(ctx, EmailMessage{To: "jane@example.com"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(d.sent) != 0 {
		t.Fatal("expected no dial after cancellation")
	}
}
