package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Alias1177/PickGate/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func hardStop() models.DecisionRecord {
	return models.DecisionRecord{
		DecisionID:        "d-1",
		RunID:             "run_7",
		TraceID:           "trace-1",
		Status:            models.StatusHardStop,
		HardStopReason:    "daily_loss_limit,bankroll_exposure_limit",
		RecommendedAction: "Stop all betting for this run",
	}
}

func TestTelegramNotifyHardStop(t *testing.T) {
	f := &fakeSender{}
	n := newTelegram(f, 42)

	if err := n.NotifyHardStop(context.Background(), hardStop()); err != nil {
		t.Fatalf("NotifyHardStop: %v", err)
	}
	if len(f.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(f.sent))
	}
	msg := f.sent[0]
	if msg.ChatID != 42 {
		t.Errorf("ChatID = %d, want 42", msg.ChatID)
	}
	if msg.ParseMode != tgbotapi.ModeMarkdown {
		t.Errorf("ParseMode = %q, want Markdown", msg.ParseMode)
	}
	for _, want := range []string{"HARD STOP", "`run_7`", "`trace-1`", `daily\_loss\_limit`} {
		if !strings.Contains(msg.Text, want) {
			t.Errorf("message %q does not contain %q", msg.Text, want)
		}
	}
}

func TestTelegramIgnoresOtherStatuses(t *testing.T) {
	f := &fakeSender{}
	n := newTelegram(f, 42)

	for _, s := range []models.DecisionStatus{models.StatusPick, models.StatusNoBet} {
		rec := hardStop()
		rec.Status = s
		if err := n.NotifyHardStop(context.Background(), rec); err != nil {
			t.Fatalf("NotifyHardStop(%s): %v", s, err)
		}
	}
	if len(f.sent) != 0 {
		t.Errorf("expected no messages, got %d", len(f.sent))
	}
}

func TestTelegramSendError(t *testing.T) {
	boom := errors.New("telegram down")
	n := newTelegram(&fakeSender{err: boom}, 42)

	if err := n.NotifyHardStop(context.Background(), hardStop()); !errors.Is(err, boom) {
		t.Errorf("expected wrapped send error, got %v", err)
	}
}

func TestNewTelegramRequiresCredentials(t *testing.T) {
	if _, err := NewTelegram("", 1); err == nil {
		t.Error("expected error for empty token")
	}
	if _, err := NewTelegram("token", 0); err == nil {
		t.Error("expected error for missing chat id")
	}
}
