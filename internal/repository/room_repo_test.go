package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/yourusername/nikah-service/internal/models"
	"github.com/yourusername/nikah-service/internal/treestore/memstore"
)

func newRepo(t *testing.T) (*RoomRepository, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	t.Cleanup(func() { store.Close() })
	return NewRoomRepository(store), store
}

func seedRoom(t *testing.T, repo *RoomRepository, users ...string) {
	t.Helper()
	room := &models.Room{ID: "r1", Users: map[string]models.User{}}
	for i, id := range users {
		room.Users[id] = models.User{Name: id, Gender: "female", JoinedAt: int64(i + 1)}
	}
	if err := repo.CreateRoom(context.Background(), room); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
}

func TestRoomPath(t *testing.T) {
	if got := RoomPath("r1", "users", "u1"); got != "rooms/r1/users/u1" {
		t.Fatalf("RoomPath = %q", got)
	}
}

func TestGetRoomNotFound(t *testing.T) {
	repo, _ := newRepo(t)
	if _, err := repo.GetRoom(context.Background(), "nope"); !errors.Is(err, models.ErrRoomNotFound) {
		t.Fatalf("GetRoom = %v, want ErrRoomNotFound", err)
	}
}

func TestAddParticipantEnforcesCapacity(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	seedRoom(t, repo, "u1")

	if err := repo.AddParticipant(ctx, "r1", "u2", models.User{Name: "u2"}, 2); err != nil {
		t.Fatalf("AddParticipant: %v", err)
	}
	if err := repo.AddParticipant(ctx, "r1", "u3", models.User{Name: "u3"}, 2); !errors.Is(err, models.ErrRoomFull) {
		t.Fatalf("third participant = %v, want ErrRoomFull", err)
	}
	if err := repo.AddParticipant(ctx, "missing", "u4", models.User{}, 2); !errors.Is(err, models.ErrRoomNotFound) {
		t.Fatalf("join missing room = %v, want ErrRoomNotFound", err)
	}

	room, err := repo.GetRoom(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if len(room.Users) != 2 {
		t.Fatalf("users = %d, want 2", len(room.Users))
	}
}

func TestConcurrentJoinsNeverOverfill(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	seedRoom(t, repo, "u0")

	var wg sync.WaitGroup
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			results <- repo.AddParticipant(ctx, "r1", id, models.User{Name: id}, 2)
		}(i)
	}
	wg.Wait()
	close(results)

	joined := 0
	for err := range results {
		switch {
		case err == nil:
			joined++
		case errors.Is(err, models.ErrRoomFull):
		default:
			t.Fatalf("unexpected join error: %v", err)
		}
	}
	if joined != 1 {
		t.Fatalf("%d joins succeeded, want exactly 1", joined)
	}
	room, _ := repo.GetRoom(ctx, "r1")
	if len(room.Users) != 2 {
		t.Fatalf("users = %d, want 2", len(room.Users))
	}
}

func TestWitnessJoinAndLeave(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	seedRoom(t, repo, "u1")

	if err := repo.AddWitness(ctx, "r1", models.Witness{ID: "w1", Name: "Omar", Timestamp: 1}); err != nil {
		t.Fatalf("AddWitness: %v", err)
	}
	if err := repo.AddWitness(ctx, "r1", models.Witness{ID: "w2", Name: "Huda", Timestamp: 2}); err != nil {
		t.Fatalf("AddWitness: %v", err)
	}
	room, _ := repo.GetRoom(ctx, "r1")
	if room.WitnessCount != 2 || len(room.Witnesses) != 2 || len(room.Users) != 1 {
		t.Fatalf("room after witnesses = %+v", room)
	}

	for i := 0; i < 3; i++ {
		if err := repo.RemoveWitness(ctx, "r1", "w1"); err != nil {
			t.Fatalf("RemoveWitness: %v", err)
		}
	}
	room, _ = repo.GetRoom(ctx, "r1")
	if room.WitnessCount != 1 {
		t.Fatalf("witnessCount = %d after repeated leave, want 1", room.WitnessCount)
	}
}

func TestWitnessCountNeverNegative(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	room := &models.Room{
		ID:        "r1",
		Users:     map[string]models.User{"u1": {Name: "u1"}},
		Witnesses: map[string]models.Witness{"w1": {ID: "w1", Name: "w"}},
	}
	if err := repo.CreateRoom(ctx, room); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if err := repo.RemoveWitness(ctx, "r1", "w1"); err != nil {
		t.Fatalf("RemoveWitness: %v", err)
	}
	got, _ := repo.GetRoom(ctx, "r1")
	if got.WitnessCount != 0 {
		t.Fatalf("witnessCount = %d, want floor of 0", got.WitnessCount)
	}
}

func TestRemoveLastParticipantDeletesRoom(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	seedRoom(t, repo, "u1", "u2")

	deleted, err := repo.RemoveParticipant(ctx, "r1", "u1")
	if err != nil || deleted {
		t.Fatalf("first leave = %v, %v; want room kept", deleted, err)
	}
	deleted, err = repo.RemoveParticipant(ctx, "r1", "u2")
	if err != nil || !deleted {
		t.Fatalf("last leave = %v, %v; want room deleted", deleted, err)
	}
	if _, err := repo.GetRoom(ctx, "r1"); !errors.Is(err, models.ErrRoomNotFound) {
		t.Fatalf("GetRoom after last leave = %v, want ErrRoomNotFound", err)
	}
	if deleted, err := repo.RemoveParticipant(ctx, "r1", "u2"); err != nil || deleted {
		t.Fatalf("leave of deleted room = %v, %v; want no-op", deleted, err)
	}
}

func TestIncrementKabulCaps(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	seedRoom(t, repo, "u1", "u2")

	var user *models.User
	var err error
	for i := 0; i < 5; i++ {
		user, err = repo.IncrementKabul(ctx, "r1", "u1", 3)
		if err != nil {
			t.Fatalf("IncrementKabul: %v", err)
		}
	}
	if user.KabulCount != 3 {
		t.Fatalf("kabulCount = %d, want 3", user.KabulCount)
	}
	if _, err := repo.IncrementKabul(ctx, "r1", "ghost", 3); !errors.Is(err, models.ErrUserNotFound) {
		t.Fatalf("IncrementKabul for unknown user = %v, want ErrUserNotFound", err)
	}
}

func TestAppendMessageStampsID(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	seedRoom(t, repo, "u1")

	key, err := repo.AppendMessage(ctx, "r1", models.Message{UserID: "u1", UserName: "u1", Text: "salaam", Timestamp: 5})
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	room, _ := repo.GetRoom(ctx, "r1")
	if got := room.Messages[key]; got.ID != key || got.Text != "salaam" {
		t.Fatalf("stored message = %+v, want id %q", got, key)
	}
}

func TestAppendMessageFailureStoresNothing(t *testing.T) {
	repo, store := newRepo(t)
	ctx := context.Background()
	seedRoom(t, repo, "u1")

	store.FailNextWrite(errors.New("backend unavailable"))
	msg := models.Message{UserID: "u1", UserName: "u1", Text: "hi", Timestamp: 5}
	if _, err := repo.AppendMessage(ctx, "r1", msg); err == nil {
		t.Fatalf("AppendMessage succeeded during an outage")
	}
	room, _ := repo.GetRoom(ctx, "r1")
	if len(room.Messages) != 0 {
		t.Fatalf("failed append left messages behind: %+v", room.Messages)
	}

	key, err := repo.AppendMessage(ctx, "r1", msg)
	if err != nil {
		t.Fatalf("retry AppendMessage: %v", err)
	}
	room, _ = repo.GetRoom(ctx, "r1")
	if len(room.Messages) != 1 || room.Messages[key].ID != key {
		t.Fatalf("messages after retry = %+v", room.Messages)
	}
}

func TestAppendMessageToDeletedRoom(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	seedRoom(t, repo, "u1")
	if _, err := repo.RemoveParticipant(ctx, "r1", "u1"); err != nil {
		t.Fatalf("RemoveParticipant: %v", err)
	}

	_, err := repo.AppendMessage(ctx, "r1", models.Message{UserID: "u1", UserName: "u1", Text: "hi"})
	if !errors.Is(err, models.ErrRoomNotFound) {
		t.Fatalf("AppendMessage = %v, want ErrRoomNotFound", err)
	}
	if snap, _ := repo.store.Get(ctx, RoomPath("r1")); snap.Exists {
		t.Fatalf("message recreated the deleted room: %v", snap)
	}
	if err := repo.AddParticipant(ctx, "r1", "u2", models.User{Name: "u2"}, 2); !errors.Is(err, models.ErrRoomNotFound) {
		t.Fatalf("join after delete = %v, want ErrRoomNotFound", err)
	}
}

func TestMarkCompletedOnce(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	seedRoom(t, repo, "u1", "u2")

	changed, err := repo.MarkCompleted(ctx, "r1")
	if err != nil || !changed {
		t.Fatalf("first MarkCompleted = %v, %v", changed, err)
	}
	changed, err = repo.MarkCompleted(ctx, "r1")
	if err != nil || changed {
		t.Fatalf("second MarkCompleted = %v, %v; want no change", changed, err)
	}
	if changed, err := repo.MarkCompleted(ctx, "gone"); err != nil || changed {
		t.Fatalf("MarkCompleted on missing room = %v, %v; want no-op", changed, err)
	}
	if snap, _ := repo.store.Get(ctx, RoomPath("gone")); snap.Exists {
		t.Fatalf("MarkCompleted recreated a deleted room")
	}
}

func TestStampMarriageDateKeepsFirst(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	seedRoom(t, repo, "u1", "u2")

	if err := repo.StampMarriageDate(ctx, "r1", 100); err != nil {
		t.Fatalf("StampMarriageDate: %v", err)
	}
	if err := repo.StampMarriageDate(ctx, "r1", 200); err != nil {
		t.Fatalf("StampMarriageDate: %v", err)
	}
	room, _ := repo.GetRoom(ctx, "r1")
	if room.MarriageDate != 100 {
		t.Fatalf("marriageDate = %d, want the first stamp", room.MarriageDate)
	}
}

func TestStoreFailureIsWrapped(t *testing.T) {
	repo, store := newRepo(t)
	outage := errors.New("backend unavailable")
	store.FailNextWrite(outage)

	err := repo.CreateRoom(context.Background(), &models.Room{ID: "r1"})
	var storeErr *models.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("CreateRoom error = %v, want *StoreError", err)
	}
	if !errors.Is(err, outage) {
		t.Fatalf("StoreError does not carry the cause: %v", err)
	}
}

func TestListRooms(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	rooms, err := repo.ListRooms(ctx)
	if err != nil || len(rooms) != 0 {
		t.Fatalf("ListRooms on empty store = %v, %v", rooms, err)
	}

	for _, id := range []string{"r2", "r1"} {
		room := &models.Room{ID: id, Users: map[string]models.User{"u1": {Name: "Ali"}}}
		if err := repo.CreateRoom(ctx, room); err != nil {
			t.Fatalf("CreateRoom: %v", err)
		}
	}
	rooms, err = repo.ListRooms(ctx)
	if err != nil {
		t.Fatalf("ListRooms: %v", err)
	}
	if len(rooms) != 2 || rooms[0].ID != "r1" || rooms[1].ID != "r2" {
		t.Fatalf("rooms = %+v", rooms)
	}
}
