package services

import (
	"context"
	"fmt"
	"log"

	"firebase.google.com/go/messaging"
	"github.com/yourusername/nikah-service/internal/models"
)

// Notifier announces a completed ceremony
type Notifier interface {
	NotifyCompleted(ctx context.Context, room *models.Room) error
}

// messageSender is the part of *messaging.Client used here
type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type NotificationService struct {
	client messageSender
}

// NewNotificationService returns a notifier backed by FCM. A nil client
// disables notices.
func NewNotificationService(client *messaging.Client) *NotificationService {
	if client == nil {
		return &NotificationService{}
	}
	return &NotificationService{client: client}
}

// CompletionTopic is the FCM topic clients subscribe to for a room
func CompletionTopic(roomID string) string {
	return "room-" + roomID
}

// NotifyCompleted publishes the completion notice to the room's topic
func (s *NotificationService) NotifyCompleted(ctx context.Context, room *models.Room) error {
	if s.client == nil || room == nil {
		return nil
	}

	message := completionMessage(room)
	if _, err := s.client.Send(ctx, message); err != nil {
		return fmt.Errorf("failed to send FCM: %w", err)
	}

	log.Printf("✅ Completion notice sent to topic %s", message.Topic)
	return nil
}

func completionMessage(room *models.Room) *messaging.Message {
	body := "The nikah ceremony is complete."
	if names := participantNames(room); names != "" {
		body = fmt.Sprintf("The nikah of %s is complete.", names)
	}

	return &messaging.Message{
		Topic: CompletionTopic(room.ID),
		Notification: &messaging.Notification{
			Title: "Nikah Completed",
			Body:  body,
		},
		Data: map[string]string{
			"type":   "ceremony_completed",
			"roomId": room.ID,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "ceremony_channel",
				Priority:  messaging.PriorityHigh,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}
}

func participantNames(room *models.Room) string {
	parts := room.Participants()
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0].Name
	default:
		return parts[0].Name + " and " + parts[1].Name
	}
}
