package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yourusername/nikah-service/internal/ceremony"
	"github.com/yourusername/nikah-service/internal/models"
	"github.com/yourusername/nikah-service/internal/repository"
	"github.com/yourusername/nikah-service/internal/treestore/sqlitestore"
)

func seedSQLite(t *testing.T, room *models.Room) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rooms.db")
	store, err := sqlitestore.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()
	if err := repository.NewRoomRepository(store).CreateRoom(context.Background(), room); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"STORE_BACKEND", "SQLITE_PATH", "RULES_FILE", "FCM_ENABLED", "RTDB_POLL_INTERVAL"} {
		t.Setenv(key, "")
	}
}

func completedRoom() *models.Room {
	return &models.Room{
		ID: "r1",
		Users: map[string]models.User{
			"a": {Name: "Ali", Gender: "male", KabulCount: 3, JoinedAt: 1},
			"b": {Name: "Sara", Gender: "female", KabulCount: 3, JoinedAt: 2},
		},
		WitnessCount: 2,
		Witnesses: map[string]models.Witness{
			"w1": {ID: "w1", Name: "Omar", Timestamp: 3},
			"w2": {ID: "w2", Name: "Huda", Timestamp: 4},
		},
		IsCompleted: true,
	}
}

func TestShow(t *testing.T) {
	clearEnv(t)
	path := seedSQLite(t, completedRoom())

	var out bytes.Buffer
	if err := run([]string{"--backend", "sqlite", "--sqlite-path", path, "show", "r1"}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := out.String()
	for _, want := range []string{"room r1: completed", "participant a: Ali (male), kabul 3 (0 left)", "witnesses: 2 (0 more needed)"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestList(t *testing.T) {
	clearEnv(t)
	path := seedSQLite(t, completedRoom())

	var out bytes.Buffer
	if err := run([]string{"--backend", "sqlite", "--sqlite-path", path, "list"}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := out.String(); got != "r1\tcompleted\t2 participants\t2 witnesses\n1 rooms\n" {
		t.Fatalf("list = %q", got)
	}
}

func TestCertificateCommand(t *testing.T) {
	clearEnv(t)
	path := seedSQLite(t, completedRoom())

	var out bytes.Buffer
	if err := run([]string{"--backend=sqlite", "--sqlite-path=" + path, "certificate", "r1"}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "# Marriage Certificate") {
		t.Fatalf("certificate:\n%s", out.String())
	}
}

func TestCertificateOfOpenRoom(t *testing.T) {
	clearEnv(t)
	room := completedRoom()
	room.IsCompleted = false
	room.WitnessCount = 0
	room.Witnesses = nil
	path := seedSQLite(t, room)

	var out bytes.Buffer
	if err := run([]string{"--backend", "sqlite", "--sqlite-path", path, "certificate", "r1"}, &out); err == nil {
		t.Fatalf("certificate printed for an open room")
	}
}

func TestRunUsageErrors(t *testing.T) {
	clearEnv(t)
	var out bytes.Buffer
	if err := run([]string{"show"}, &out); err == nil {
		t.Fatalf("missing room id accepted")
	}
	if err := run([]string{"list", "r1"}, &out); err == nil {
		t.Fatalf("list with a room id accepted")
	}
	if err := run([]string{"--backend", "memory", "explode", "r1"}, &out); err == nil {
		t.Fatalf("unknown command accepted")
	}
	if err := run([]string{"--backend", "memory", "show", "r1"}, &out); err == nil {
		t.Fatalf("missing room accepted")
	}
}

func TestPrintView(t *testing.T) {
	now := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)
	room := &models.Room{
		ID: "r1",
		Users: map[string]models.User{
			"a": {Name: "Ali", Gender: "male", KabulCount: 1, JoinedAt: now.Add(-3 * time.Minute).UnixMilli()},
		},
		MarriageDate: now.UnixMilli(),
	}

	var out bytes.Buffer
	if err := printView(&out, ceremony.NewView("r1", room, ceremony.DefaultRules()), false, now); err != nil {
		t.Fatalf("printView: %v", err)
	}
	got := out.String()
	for _, want := range []string{
		"room r1: awaiting_second_participant",
		"ceremony date: 2nd of March, 2025",
		"kabul 1 (2 left), joined 3 minutes ago",
		"witnesses: 0 (2 more needed)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	out.Reset()
	if err := printView(&out, ceremony.NewView("r1", nil, ceremony.DefaultRules()), false, now); err != nil {
		t.Fatalf("printView: %v", err)
	}
	if out.String() != "room r1: empty (deleted)\n" {
		t.Fatalf("deleted room = %q", out.String())
	}
}
