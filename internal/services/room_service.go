package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/nikah-service/internal/ceremony"
	"github.com/yourusername/nikah-service/internal/certificate"
	"github.com/yourusername/nikah-service/internal/models"
	"github.com/yourusername/nikah-service/internal/repository"
	"github.com/yourusername/nikah-service/pkg/utils"
)

// RoomWatcher keeps a live mirror of a room running after it is created or
// joined.
type RoomWatcher interface {
	Watch(roomID string) error
}

type RoomService struct {
	roomRepo *repository.RoomRepository
	notifier Notifier
	rules    ceremony.Rules
	watcher  RoomWatcher

	now   func() time.Time
	newID func() string
}

func NewRoomService(roomRepo *repository.RoomRepository, rules ceremony.Rules, notifier Notifier) *RoomService {
	return &RoomService{
		roomRepo: roomRepo,
		notifier: notifier,
		rules:    rules,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// AttachWatcher sets the mirror started by CreateRoom and JoinRoom. The hub
// depends on the service for Observe, so it is wired after construction.
func (s *RoomService) AttachWatcher(w RoomWatcher) {
	s.watcher = w
}

// Rules returns the ceremony thresholds in force
func (s *RoomService) Rules() ceremony.Rules {
	return s.rules
}

func invalid(field string, err error) error {
	return models.NewValidationError(field, err.Error())
}

func roleOrDefault(role models.Role) (models.Role, error) {
	if role == "" {
		return models.RoleParticipant, nil
	}
	if !role.Valid() {
		return "", models.NewValidationError("role", "role must be participant or witness")
	}
	return role, nil
}

// validateParticipant checks the fields a participant must provide
func (s *RoomService) validateParticipant(name, gender, wali string, mehr *float64) error {
	if err := utils.ValidateName(name); err != nil {
		return invalid("name", err)
	}
	if err := utils.ValidateGender(gender); err != nil {
		return invalid("gender", err)
	}
	if s.rules.RequireWali || strings.TrimSpace(wali) != "" {
		if err := utils.ValidateName(wali); err != nil {
			return models.NewValidationError("wali", "wali (guardian) name is required")
		}
	}
	if err := utils.ValidateMehr(mehr); err != nil {
		return invalid("mehr", err)
	}
	return nil
}

func (s *RoomService) watch(roomID string) {
	if s.watcher == nil {
		return
	}
	if err := s.watcher.Watch(roomID); err != nil {
		log.Printf("⚠️  Failed to watch room %s: %v", roomID, err)
	}
}

// CreateRoom opens a new room with the caller as its first participant
func (s *RoomService) CreateRoom(ctx context.Context, req *models.CreateRoomRequest) (*models.CreateRoomResponse, error) {
	role, err := roleOrDefault(req.Role)
	if err != nil {
		return nil, err
	}
	if role == models.RoleWitness {
		return nil, models.NewValidationError("role", "witnesses cannot create rooms")
	}
	if err := s.validateParticipant(req.Name, req.Gender, req.Wali, req.Mehr); err != nil {
		return nil, err
	}
	if err := utils.ValidateLocation(req.Location); err != nil {
		return nil, invalid("location", err)
	}

	roomID := s.newID()
	userID := s.newID()
	now := s.now().UnixMilli()

	room := &models.Room{
		ID: roomID,
		Users: map[string]models.User{
			userID: {
				Name:       strings.TrimSpace(req.Name),
				Gender:     strings.ToLower(strings.TrimSpace(req.Gender)),
				KabulCount: 0,
				Wali:       strings.TrimSpace(req.Wali),
				Mehr:       req.Mehr,
				JoinedAt:   now,
			},
		},
		WitnessCount: 0,
		Location:     strings.TrimSpace(req.Location),
	}

	if err := s.roomRepo.CreateRoom(ctx, room); err != nil {
		return nil, err
	}

	log.Printf("✅ Room %s created by %s", roomID, userID)
	s.watch(roomID)

	return &models.CreateRoomResponse{
		RoomID: roomID,
		UserID: userID,
	}, nil
}

// JoinRoom adds a participant or a witness to an existing room
func (s *RoomService) JoinRoom(ctx context.Context, roomID string, req *models.JoinRoomRequest) (*models.JoinRoomResponse, error) {
	if err := utils.ValidateRoomID(roomID); err != nil {
		return nil, invalid("roomId", err)
	}
	role, err := roleOrDefault(req.Role)
	if err != nil {
		return nil, err
	}

	memberID := s.newID()
	now := s.now().UnixMilli()

	switch role {
	case models.RoleWitness:
		if err := utils.ValidateName(req.Name); err != nil {
			return nil, invalid("name", err)
		}
		witness := models.Witness{
			ID:        memberID,
			Name:      strings.TrimSpace(req.Name),
			Timestamp: now,
		}
		if err := s.roomRepo.AddWitness(ctx, roomID, witness); err != nil {
			return nil, err
		}
	default:
		if err := s.validateParticipant(req.Name, req.Gender, req.Wali, req.Mehr); err != nil {
			return nil, err
		}
		user := models.User{
			Name:       strings.TrimSpace(req.Name),
			Gender:     strings.ToLower(strings.TrimSpace(req.Gender)),
			KabulCount: 0,
			Wali:       strings.TrimSpace(req.Wali),
			Mehr:       req.Mehr,
			JoinedAt:   now,
		}
		if err := s.roomRepo.AddParticipant(ctx, roomID, memberID, user, s.rules.MaxParticipants); err != nil {
			return nil, err
		}
	}

	log.Printf("✅ %s %s joined room %s", role, memberID, roomID)
	s.watch(roomID)

	return &models.JoinRoomResponse{
		RoomID:   roomID,
		MemberID: memberID,
		Role:     role,
	}, nil
}

// GetRoom returns the current room document
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	if err := utils.ValidateRoomID(roomID); err != nil {
		return nil, invalid("roomId", err)
	}
	return s.roomRepo.GetRoom(ctx, roomID)
}

// GetView returns the room with its derived state
func (s *RoomService) GetView(ctx context.Context, roomID string) (*ceremony.View, error) {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	view := ceremony.NewView(roomID, room, s.rules)
	return &view, nil
}

// RecordAcceptance advances the acting participant's kabul count by one.
// Once the count reaches the required number further calls change nothing.
func (s *RoomService) RecordAcceptance(ctx context.Context, roomID, actingUserID, targetUserID string) (*models.User, error) {
	if actingUserID == "" {
		return nil, models.NewValidationError("userId", "acting user is required")
	}
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := ceremony.CanAccept(room, s.rules, actingUserID, targetUserID); err != nil {
		return nil, err
	}

	current := room.Users[targetUserID]
	if ceremony.NextKabulCount(current.KabulCount, s.rules) == current.KabulCount {
		return &current, nil
	}

	return s.roomRepo.IncrementKabul(ctx, roomID, targetUserID, s.rules.RequiredAcceptances)
}

// SendMessage appends a chat message. Blank text is ignored and returns a
// nil message.
func (s *RoomService) SendMessage(ctx context.Context, roomID string, req *models.SendMessageRequest) (*models.Message, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, nil
	}
	if err := utils.ValidateMessage(text); err != nil {
		return nil, invalid("text", err)
	}
	if req.UserID == "" {
		return nil, models.NewValidationError("userId", "sender is required")
	}

	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	userName := strings.TrimSpace(req.UserName)
	if userName == "" {
		if u, ok := room.Users[req.UserID]; ok {
			userName = u.Name
		} else if w, ok := room.Witnesses[req.UserID]; ok {
			userName = w.Name
		} else {
			return nil, models.NewValidationError("userName", "sender name is required")
		}
	}

	msg := models.Message{
		UserID:    req.UserID,
		UserName:  userName,
		Text:      text,
		Timestamp: s.now().UnixMilli(),
	}
	id, err := s.roomRepo.AppendMessage(ctx, roomID, msg)
	if err != nil {
		return nil, err
	}
	msg.ID = id
	return &msg, nil
}

// LeaveRoom removes a participant or witness. The last participant to
// leave deletes the room.
func (s *RoomService) LeaveRoom(ctx context.Context, roomID, memberID string, role models.Role) error {
	if err := utils.ValidateRoomID(roomID); err != nil {
		return invalid("roomId", err)
	}
	if memberID == "" {
		return models.NewValidationError("memberId", "member is required")
	}
	role, err := roleOrDefault(role)
	if err != nil {
		return err
	}

	if role == models.RoleWitness {
		return s.roomRepo.RemoveWitness(ctx, roomID, memberID)
	}

	deleted, err := s.roomRepo.RemoveParticipant(ctx, roomID, memberID)
	if err != nil {
		return err
	}
	if deleted {
		log.Printf("🗑️  Room %s removed after its last participant left", roomID)
	}
	return nil
}

// Observe reacts to a fresh snapshot of a room: it stamps the ceremony date
// once both parties are present and persists completion once the ceremony
// is complete. Both writes are best effort; a failed completion write is
// attempted again on the next snapshot.
func (s *RoomService) Observe(ctx context.Context, room *models.Room) {
	if room == nil {
		return
	}

	if ceremony.NeedsMarriageDate(room, s.rules) {
		if err := s.roomRepo.StampMarriageDate(ctx, room.ID, s.now().UnixMilli()); err != nil {
			log.Printf("⚠️  Failed to stamp marriage date for room %s: %v", room.ID, err)
		}
	}

	if !ceremony.NeedsCompletionWrite(room, s.rules) {
		return
	}
	marked, err := s.roomRepo.MarkCompleted(ctx, room.ID)
	if err != nil {
		log.Printf("⚠️  Failed to mark room %s completed: %v", room.ID, err)
		return
	}
	if !marked {
		return
	}
	log.Printf("💍 Room %s completed", room.ID)

	if s.notifier != nil {
		// Best effort
		if err := s.notifier.NotifyCompleted(ctx, room); err != nil {
			log.Printf("⚠️  Failed to send completion notice for room %s: %v", room.ID, err)
		}
	}
}

// Certificate builds the certificate of a completed room
func (s *RoomService) Certificate(ctx context.Context, roomID string) (*certificate.Certificate, error) {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !ceremony.EvaluateCompletion(room, s.rules) {
		return nil, models.NewValidationError("roomId", "ceremony not completed")
	}
	return certificate.New(room, s.now()), nil
}

// IsNotFound reports whether err means the room or user does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, models.ErrRoomNotFound) || errors.Is(err, models.ErrUserNotFound)
}
