package models

import "sort"

// Role is how a person takes part in a room.
type Role string

const (
	RoleParticipant Role = "participant"
	RoleWitness     Role = "witness"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleParticipant || r == RoleWitness
}

// Room is the shared document stored at rooms/{id}. Maps may be nil: the
// store drops empty objects.
type Room struct {
	ID           string             `json:"id"`
	Users        map[string]User    `json:"users,omitempty"`
	WitnessCount int                `json:"witnessCount"`
	Witnesses    map[string]Witness `json:"witnesses,omitempty"`
	Messages     map[string]Message `json:"messages,omitempty"`
	IsCompleted  bool               `json:"isCompleted,omitempty"`
	MarriageDate int64              `json:"marriageDate,omitempty"` // unix millis
	Location     string             `json:"location,omitempty"`
}

// User is a ceremony participant.
type User struct {
	Name       string   `json:"name"`
	Gender     string   `json:"gender"`
	KabulCount int      `json:"kabulCount"`
	Wali       string   `json:"wali,omitempty"`
	Mehr       *float64 `json:"mehr,omitempty"`
	JoinedAt   int64    `json:"joinedAt,omitempty"` // unix millis
}

// Witness attends the ceremony and counts towards the quorum.
type Witness struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp"` // unix millis
}

// Message is a chat line. UserName is copied at send time.
type Message struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // unix millis
}

// Participant pairs a user with its key in Room.Users.
type Participant struct {
	ID string `json:"id"`
	User
}

// Participants returns the room's users in join order. Users without a
// join time sort first, ties by id.
func (r *Room) Participants() []Participant {
	out := make([]Participant, 0, len(r.Users))
	for id, u := range r.Users {
		out = append(out, Participant{ID: id, User: u})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt != out[j].JoinedAt {
			return out[i].JoinedAt < out[j].JoinedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SortedWitnesses returns witnesses by arrival time.
func (r *Room) SortedWitnesses() []Witness {
	out := make([]Witness, 0, len(r.Witnesses))
	for id, w := range r.Witnesses {
		if w.ID == "" {
			w.ID = id
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SortedMessages returns messages ordered by their own timestamps; the
// generated keys carry no ordering guarantee.
func (r *Room) SortedMessages() []Message {
	out := make([]Message, 0, len(r.Messages))
	for id, m := range r.Messages {
		if m.ID == "" {
			m.ID = id
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out
}
