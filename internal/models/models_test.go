package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestParticipantsInJoinOrder(t *testing.T) {
	r := &Room{Users: map[string]User{
		"zed":  {Name: "Sara", JoinedAt: 20},
		"abc":  {Name: "Ali", JoinedAt: 10},
		"tie1": {Name: "Tie", JoinedAt: 20},
	}}
	got := r.Participants()
	want := []string{"abc", "tie1", "zed"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("participants = %+v, want order %v", got, want)
		}
	}
	if got[0].Name != "Ali" {
		t.Fatalf("embedded user lost: %+v", got[0])
	}
}

func TestSortedMessagesFillsIDs(t *testing.T) {
	r := &Room{Messages: map[string]Message{
		"k2": {Text: "later", Timestamp: 2},
		"k1": {ID: "k1", Text: "first", Timestamp: 1},
	}}
	got := r.SortedMessages()
	if len(got) != 2 || got[0].Text != "first" || got[1].ID != "k2" {
		t.Fatalf("messages = %+v", got)
	}
}

func TestSortedWitnesses(t *testing.T) {
	r := &Room{Witnesses: map[string]Witness{
		"w2": {Name: "Huda", Timestamp: 5},
		"w1": {Name: "Omar", Timestamp: 1},
	}}
	got := r.SortedWitnesses()
	if got[0].Name != "Omar" || got[0].ID != "w1" {
		t.Fatalf("witnesses = %+v", got)
	}
}

func TestEmptyRoomHelpers(t *testing.T) {
	r := &Room{}
	if len(r.Participants()) != 0 || len(r.SortedWitnesses()) != 0 || len(r.SortedMessages()) != 0 {
		t.Fatalf("empty room should yield empty slices")
	}
}

func TestRoomJSONShape(t *testing.T) {
	r := Room{ID: "r1", Users: map[string]User{"u1": {Name: "Ali", Gender: "male"}}}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"witnessCount":0`) || !strings.Contains(s, `"kabulCount":0`) {
		t.Fatalf("counters must always be present: %s", s)
	}
	if strings.Contains(s, "isCompleted") || strings.Contains(s, "marriageDate") || strings.Contains(s, "mehr") {
		t.Fatalf("unset optional fields were written: %s", s)
	}
}

func TestRoleValid(t *testing.T) {
	if !RoleParticipant.Valid() || !RoleWitness.Valid() || Role("imam").Valid() || Role("").Valid() {
		t.Fatalf("role validity wrong")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	v := NewValidationError("name", "name is required")
	if v.Error() != "name: name is required" {
		t.Fatalf("ValidationError = %q", v.Error())
	}
	wrapped := fmt.Errorf("create room: %w", v)
	if !IsValidation(wrapped) || !IsDomainError(wrapped) {
		t.Fatalf("wrapped validation error not recognised")
	}

	cause := errors.New("deadline exceeded")
	se := &StoreError{Op: "join room", Err: cause}
	if se.Error() != "operation failed: join room: deadline exceeded" {
		t.Fatalf("StoreError = %q", se.Error())
	}
	if !errors.Is(se, cause) || IsDomainError(se) {
		t.Fatalf("StoreError classification wrong")
	}

	for _, err := range []error{ErrRoomNotFound, ErrRoomFull, ErrUserNotFound} {
		if !IsDomainError(err) {
			t.Errorf("%v not a domain error", err)
		}
	}
}
