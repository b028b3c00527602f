package services

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/messaging"
	"github.com/yourusername/nikah-service/internal/models"
)

type fakeSender struct {
	sent []*messaging.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, m *messaging.Message) (string, error) {
	f.sent = append(f.sent, m)
	return "projects/test/messages/1", f.err
}

func completedRoom() *models.Room {
	return &models.Room{
		ID: "r1",
		Users: map[string]models.User{
			"u1": {Name: "Ali", Gender: "male", KabulCount: 3, JoinedAt: 1},
			"u2": {Name: "Sara", Gender: "female", KabulCount: 3, JoinedAt: 2},
		},
		WitnessCount: 2,
		IsCompleted:  true,
	}
}

func TestNotifyCompletedSendsToRoomTopic(t *testing.T) {
	sender := &fakeSender{}
	svc := &NotificationService{client: sender}

	if err := svc.NotifyCompleted(context.Background(), completedRoom()); err != nil {
		t.Fatalf("NotifyCompleted: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	m := sender.sent[0]
	if m.Topic != "room-r1" {
		t.Fatalf("topic = %q", m.Topic)
	}
	if m.Data["type"] != "ceremony_completed" || m.Data["roomId"] != "r1" {
		t.Fatalf("data = %v", m.Data)
	}
	if m.Notification.Body != "The nikah of Ali and Sara is complete." {
		t.Fatalf("body = %q", m.Notification.Body)
	}
}

func TestNotifyCompletedWrapsSendError(t *testing.T) {
	boom := errors.New("unavailable")
	svc := &NotificationService{client: &fakeSender{err: boom}}

	if err := svc.NotifyCompleted(context.Background(), completedRoom()); !errors.Is(err, boom) {
		t.Fatalf("NotifyCompleted = %v, want wrapped send error", err)
	}
}

func TestNotificationServiceWithoutClient(t *testing.T) {
	svc := NewNotificationService(nil)
	if err := svc.NotifyCompleted(context.Background(), completedRoom()); err != nil {
		t.Fatalf("disabled notifier returned %v", err)
	}
}
