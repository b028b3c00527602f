package treestore

import (
	"reflect"
	"testing"
)

func TestJoinAndSplit(t *testing.T) {
	tests := []struct {
		parts []string
		want  string
	}{
		{[]string{"rooms", "r1"}, "rooms/r1"},
		{[]string{"/rooms/", "r1/users", "u1"}, "rooms/r1/users/u1"},
		{[]string{"", "rooms"}, "rooms"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := Join(tt.parts...); got != tt.want {
			t.Errorf("Join(%q) = %q, want %q", tt.parts, got, tt.want)
		}
	}
	if got := Split("//rooms//r1/"); !reflect.DeepEqual(got, []string{"rooms", "r1"}) {
		t.Errorf("Split = %q", got)
	}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"rooms/r1", "rooms/r1/users/u1", true},
		{"rooms/r1/users", "rooms/r1", true},
		{"rooms/r1", "rooms/r1", true},
		{"rooms/r1", "rooms/r10", false},
		{"rooms/r1/users", "rooms/r1/messages", false},
		{"", "rooms/r1", true},
	}
	for _, tt := range tests {
		if got := Overlaps(tt.a, tt.b); got != tt.want {
			t.Errorf("Overlaps(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestValidateKey(t *testing.T) {
	for _, key := range []string{"", "a/b", "a.b", "a#", "$x", "[0]"} {
		if err := ValidateKey(key); err == nil {
			t.Errorf("ValidateKey(%q) accepted a reserved key", key)
		}
	}
	if err := ValidateKey("0b9c6f2e-8d5a-4f67-9a52-3c1f0c2d4e11"); err != nil {
		t.Errorf("ValidateKey(uuid) = %v", err)
	}
}

func TestNormalizeDropsEmptyObjects(t *testing.T) {
	in := map[string]any{
		"id":       "r1",
		"messages": map[string]any{},
		"users":    map[string]any{"u1": map[string]any{"name": "Ali"}},
	}
	got, err := Normalize(in)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := map[string]any{
		"id":    "r1",
		"users": map[string]any{"u1": map[string]any{"name": "Ali"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Normalize = %#v, want %#v", got, want)
	}

	empty, err := Normalize(map[string]any{"a": map[string]any{}})
	if err != nil || empty != nil {
		t.Fatalf("Normalize of empty tree = %#v, %v; want nil", empty, err)
	}
}

func TestAssignAndLookup(t *testing.T) {
	var root any
	root = Assign(root, Split("rooms/r1/users/u1/name"), "Ali")
	root = Assign(root, Split("rooms/r1/id"), "r1")

	if v, ok := Lookup(root, Split("rooms/r1/users/u1/name")); !ok || v != "Ali" {
		t.Fatalf("Lookup name = %v, %v", v, ok)
	}

	root = Assign(root, Split("rooms/r1/users/u1"), nil)
	if _, ok := Lookup(root, Split("rooms/r1/users")); ok {
		t.Fatalf("empty parent not pruned after delete")
	}
	if v, ok := Lookup(root, Split("rooms/r1/id")); !ok || v != "r1" {
		t.Fatalf("sibling lost: %v, %v", v, ok)
	}

	root = Assign(root, Split("rooms/r1/id"), nil)
	if root != nil {
		t.Fatalf("root = %#v, want nil after removing last leaf", root)
	}
}

func TestCopyIsDeep(t *testing.T) {
	orig := map[string]any{"a": map[string]any{"b": 1.0}}
	dup := Copy(orig).(map[string]any)
	dup["a"].(map[string]any)["b"] = 2.0
	if orig["a"].(map[string]any)["b"] != 1.0 {
		t.Fatalf("Copy shares nested maps")
	}
}

func TestSnapshotFromRawTreatsNullAsAbsent(t *testing.T) {
	if SnapshotFromRaw("p", []byte("null")).Exists {
		t.Fatalf("null snapshot reported as existing")
	}
	raw := []byte(`{"a":1}`)
	snap := SnapshotFromRaw("p", raw)
	raw[2] = 'b'
	if string(snap.Raw) != `{"a":1}` {
		t.Fatalf("snapshot aliases caller buffer: %s", snap.Raw)
	}
}
