package repository

import (
	"context"
	"errors"
	"sort"

	"github.com/yourusername/nikah-service/internal/models"
	"github.com/yourusername/nikah-service/internal/treestore"
)

const roomsCollection = "rooms"

// RoomPath returns rooms/{roomID} followed by any sub-path segments.
func RoomPath(roomID string, sub ...string) string {
	return treestore.Join(append([]string{roomsCollection, roomID}, sub...)...)
}

type RoomRepository struct {
	store treestore.Store
}

func NewRoomRepository(store treestore.Store) *RoomRepository {
	return &RoomRepository{
		store: store,
	}
}

// storeErr wraps store failures for the caller and lets room errors raised
// inside transactions pass through unchanged.
func storeErr(op string, err error) error {
	if err == nil || models.IsDomainError(err) {
		return err
	}
	return &models.StoreError{Op: op, Err: err}
}

// DecodeRoom turns a snapshot of rooms/{id} into a Room. An absent snapshot
// yields nil without error.
func DecodeRoom(snap treestore.Snapshot) (*models.Room, error) {
	if !snap.Exists {
		return nil, nil
	}
	var room models.Room
	if err := snap.Decode(&room); err != nil {
		return nil, err
	}
	return &room, nil
}

// CreateRoom writes a new room document
func (r *RoomRepository) CreateRoom(ctx context.Context, room *models.Room) error {
	return storeErr("create room", r.store.Set(ctx, RoomPath(room.ID), room))
}

// GetRoom retrieves a room by its id
func (r *RoomRepository) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	snap, err := r.store.Get(ctx, RoomPath(roomID))
	if err != nil {
		return nil, storeErr("get room", err)
	}
	room, err := DecodeRoom(snap)
	if err != nil {
		return nil, storeErr("decode room", err)
	}
	if room == nil {
		return nil, models.ErrRoomNotFound
	}
	return room, nil
}

// ListRooms returns every stored room ordered by id
func (r *RoomRepository) ListRooms(ctx context.Context) ([]*models.Room, error) {
	snap, err := r.store.Get(ctx, roomsCollection)
	if err != nil {
		return nil, storeErr("list rooms", err)
	}
	if !snap.Exists {
		return []*models.Room{}, nil
	}

	var byID map[string]*models.Room
	if err := snap.Decode(&byID); err != nil {
		return nil, storeErr("decode rooms", err)
	}
	rooms := make([]*models.Room, 0, len(byID))
	for id, room := range byID {
		if room == nil {
			continue
		}
		if room.ID == "" {
			room.ID = id
		}
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms, nil
}

// transactRoom runs fn against the current room inside a store transaction.
// fn returns the room to write; an absent room is reported as
// ErrRoomNotFound before fn runs.
func (r *RoomRepository) transactRoom(ctx context.Context, op, roomID string, fn func(room *models.Room) (*models.Room, error)) error {
	err := r.store.Transact(ctx, RoomPath(roomID), func(current treestore.Snapshot) (any, error) {
		room, err := DecodeRoom(current)
		if err != nil {
			return nil, err
		}
		if room == nil {
			return nil, models.ErrRoomNotFound
		}
		next, err := fn(room)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, nil
		}
		return next, nil
	})
	return storeErr(op, err)
}

// AddParticipant inserts users/{userID} if the room exists and still has a
// free seat. The capacity check and the insert commit together.
func (r *RoomRepository) AddParticipant(ctx context.Context, roomID, userID string, user models.User, maxParticipants int) error {
	return r.transactRoom(ctx, "join room", roomID, func(room *models.Room) (*models.Room, error) {
		if len(room.Users) >= maxParticipants {
			return nil, models.ErrRoomFull
		}
		if room.Users == nil {
			room.Users = make(map[string]models.User)
		}
		room.Users[userID] = user
		return room, nil
	})
}

// AddWitness records a witness and bumps witnessCount in one commit
func (r *RoomRepository) AddWitness(ctx context.Context, roomID string, witness models.Witness) error {
	return r.transactRoom(ctx, "join room as witness", roomID, func(room *models.Room) (*models.Room, error) {
		if room.Witnesses == nil {
			room.Witnesses = make(map[string]models.Witness)
		}
		if _, exists := room.Witnesses[witness.ID]; !exists {
			room.WitnessCount++
		}
		room.Witnesses[witness.ID] = witness
		return room, nil
	})
}

// RemoveWitness deletes the witness entry. witnessCount only drops when the
// entry existed and never goes below zero, so repeated calls are harmless.
func (r *RoomRepository) RemoveWitness(ctx context.Context, roomID, witnessID string) error {
	err := r.transactRoom(ctx, "leave room as witness", roomID, func(room *models.Room) (*models.Room, error) {
		if _, exists := room.Witnesses[witnessID]; !exists {
			return nil, treestore.ErrNoChange
		}
		delete(room.Witnesses, witnessID)
		if room.WitnessCount > 0 {
			room.WitnessCount--
		}
		return room, nil
	})
	if errors.Is(err, models.ErrRoomNotFound) {
		return nil
	}
	return err
}

// RemoveParticipant deletes the user entry. When the last user leaves the
// whole room document is deleted. It reports whether the room was removed.
func (r *RoomRepository) RemoveParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	var deleted bool
	err := r.transactRoom(ctx, "leave room", roomID, func(room *models.Room) (*models.Room, error) {
		deleted = false
		if _, exists := room.Users[userID]; !exists {
			return nil, treestore.ErrNoChange
		}
		delete(room.Users, userID)
		if len(room.Users) == 0 {
			deleted = true
			return nil, nil
		}
		return room, nil
	})
	if errors.Is(err, models.ErrRoomNotFound) {
		return false, nil
	}
	return deleted, err
}

// IncrementKabul adds one acceptance for userID, capped at limit, and
// returns the stored user.
func (r *RoomRepository) IncrementKabul(ctx context.Context, roomID, userID string, limit int) (*models.User, error) {
	var updated models.User
	err := r.store.Transact(ctx, RoomPath(roomID, "users", userID), func(current treestore.Snapshot) (any, error) {
		if !current.Exists {
			return nil, models.ErrUserNotFound
		}
		var user models.User
		if err := current.Decode(&user); err != nil {
			return nil, err
		}
		updated = user
		if user.KabulCount >= limit {
			return nil, treestore.ErrNoChange
		}
		user.KabulCount++
		updated = user
		return user, nil
	})
	if err != nil {
		return nil, storeErr("record acceptance", err)
	}
	return &updated, nil
}

// AppendMessage stores msg under a fresh key, with the key as its id, in
// a single commit. A room that is gone yields ErrRoomNotFound and is not
// recreated.
func (r *RoomRepository) AppendMessage(ctx context.Context, roomID string, msg models.Message) (string, error) {
	key := treestore.NewKey()
	msg.ID = key
	err := r.transactRoom(ctx, "send message", roomID, func(room *models.Room) (*models.Room, error) {
		if room.Messages == nil {
			room.Messages = make(map[string]models.Message)
		}
		room.Messages[key] = msg
		return room, nil
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// MarkCompleted persists isCompleted=true. It reports whether this call
// made the change; a room already marked, or gone, is left alone.
func (r *RoomRepository) MarkCompleted(ctx context.Context, roomID string) (bool, error) {
	var changed bool
	err := r.transactRoom(ctx, "mark completed", roomID, func(room *models.Room) (*models.Room, error) {
		changed = false
		if room.IsCompleted {
			return nil, treestore.ErrNoChange
		}
		room.IsCompleted = true
		changed = true
		return room, nil
	})
	if errors.Is(err, models.ErrRoomNotFound) {
		return false, nil
	}
	return changed, err
}

// StampMarriageDate sets marriageDate to at unless one is already stored.
func (r *RoomRepository) StampMarriageDate(ctx context.Context, roomID string, at int64) error {
	err := r.transactRoom(ctx, "stamp marriage date", roomID, func(room *models.Room) (*models.Room, error) {
		if room.MarriageDate != 0 {
			return nil, treestore.ErrNoChange
		}
		room.MarriageDate = at
		return room, nil
	})
	if errors.Is(err, models.ErrRoomNotFound) {
		return nil
	}
	return err
}

// WatchRoom subscribes to the room document
func (r *RoomRepository) WatchRoom(ctx context.Context, roomID string) (*treestore.Subscription, error) {
	sub, err := r.store.Subscribe(ctx, RoomPath(roomID))
	if err != nil {
		return nil, storeErr("subscribe", err)
	}
	return sub, nil
}
