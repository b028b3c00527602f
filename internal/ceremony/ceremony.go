// Package ceremony derives the state of a room from its document.
//
// Nothing here touches the store: every function is a pure computation over
// a *models.Room, so the transition rules and the monotonicity of
// completion can be tested on their own.
package ceremony

import (
	"fmt"

	"github.com/yourusername/nikah-service/internal/models"
)

// State is the stage a room is in.
type State string

const (
	StateEmpty                     State = "empty"
	StateAwaitingSecondParticipant State = "awaiting_second_participant"
	StateInCeremony                State = "in_ceremony"
	StateCompleted                 State = "completed"
)

// Rules are the thresholds of the ceremony.
type Rules struct {
	MaxParticipants     int  `yaml:"maxParticipants" json:"maxParticipants"`
	RequiredAcceptances int  `yaml:"requiredAcceptances" json:"requiredAcceptances"`
	WitnessQuorum       int  `yaml:"witnessQuorum" json:"witnessQuorum"`
	RequireWali         bool `yaml:"requireWali" json:"requireWali"`
}

// DefaultRules: two parties, three acceptances each, two witnesses, and a
// wali named for every participant.
func DefaultRules() Rules {
	return Rules{
		MaxParticipants:     2,
		RequiredAcceptances: 3,
		WitnessQuorum:       2,
		RequireWali:         true,
	}
}

// Validate rejects thresholds that make the ceremony impossible.
func (r Rules) Validate() error {
	if r.MaxParticipants < 1 {
		return fmt.Errorf("maxParticipants must be at least 1, got %d", r.MaxParticipants)
	}
	if r.RequiredAcceptances < 1 {
		return fmt.Errorf("requiredAcceptances must be at least 1, got %d", r.RequiredAcceptances)
	}
	if r.WitnessQuorum < 0 {
		return fmt.Errorf("witnessQuorum must not be negative, got %d", r.WitnessQuorum)
	}
	return nil
}

// conditionsMet evaluates the completion predicate on the current values
// only, ignoring any persisted completion flag.
func conditionsMet(room *models.Room, rules Rules) bool {
	if len(room.Users) != rules.MaxParticipants {
		return false
	}
	for _, u := range room.Users {
		if u.KabulCount < rules.RequiredAcceptances {
			return false
		}
	}
	return room.WitnessCount >= rules.WitnessQuorum
}

// EvaluateCompletion reports whether the room is complete: every party has
// accepted the required number of times and the witness quorum is present.
// Once IsCompleted has been persisted the answer stays true.
func EvaluateCompletion(room *models.Room, rules Rules) bool {
	if room == nil {
		return false
	}
	if room.IsCompleted {
		return true
	}
	return conditionsMet(room, rules)
}

// NeedsCompletionWrite reports whether IsCompleted should be persisted.
func NeedsCompletionWrite(room *models.Room, rules Rules) bool {
	return room != nil && !room.IsCompleted && conditionsMet(room, rules)
}

// NeedsMarriageDate reports whether the room just became full and has no
// ceremony date yet.
func NeedsMarriageDate(room *models.Room, rules Rules) bool {
	return room != nil && room.MarriageDate == 0 && len(room.Users) >= rules.MaxParticipants
}

// Derive computes the room's state. A nil room, or one without users, is
// Empty. Completed wins over the participant count so that a completed room
// never reverts.
func Derive(room *models.Room, rules Rules) State {
	if room == nil || len(room.Users) == 0 {
		if room != nil && room.IsCompleted {
			return StateCompleted
		}
		return StateEmpty
	}
	if EvaluateCompletion(room, rules) {
		return StateCompleted
	}
	if len(room.Users) < rules.MaxParticipants {
		return StateAwaitingSecondParticipant
	}
	return StateInCeremony
}

// CanAccept checks that actingUserID may record an acceptance for
// targetUserID: participants only advance their own count, and only once
// the ceremony has started.
func CanAccept(room *models.Room, rules Rules, actingUserID, targetUserID string) error {
	if targetUserID == "" {
		return models.NewValidationError("targetUserId", "target user is required")
	}
	if actingUserID != targetUserID {
		return models.NewValidationError("targetUserId", "participants can only record their own acceptance")
	}
	if _, ok := room.Users[targetUserID]; !ok {
		return models.ErrUserNotFound
	}
	if state := Derive(room, rules); state == StateAwaitingSecondParticipant {
		return models.NewValidationError("roomId", "ceremony has not started")
	}
	return nil
}

// NextKabulCount is the count after one more acceptance, capped at the
// required number.
func NextKabulCount(current int, rules Rules) int {
	if current >= rules.RequiredAcceptances {
		return current
	}
	return current + 1
}
