package ceremony

import "github.com/yourusername/nikah-service/internal/models"

// Progress summarizes what is still missing before completion.
type Progress struct {
	Participants       int            `json:"participants"`
	ParticipantsNeeded int            `json:"participantsNeeded"`
	AcceptancesLeft    map[string]int `json:"acceptancesLeft"`
	WitnessCount       int            `json:"witnessCount"`
	WitnessesNeeded    int            `json:"witnessesNeeded"`
}

// View is what clients render: the room, its derived state and progress,
// and its messages in timestamp order.
type View struct {
	RoomID       string               `json:"roomId"`
	Room         *models.Room         `json:"room,omitempty"`
	State        State                `json:"state"`
	Completed    bool                 `json:"completed"`
	Progress     Progress             `json:"progress"`
	Participants []models.Participant `json:"participants"`
	Witnesses    []models.Witness     `json:"witnesses"`
	Messages     []models.Message     `json:"messages"`
}

// ProgressOf computes the progress of room under rules.
func ProgressOf(room *models.Room, rules Rules) Progress {
	p := Progress{AcceptancesLeft: map[string]int{}}
	if room == nil {
		p.ParticipantsNeeded = rules.MaxParticipants
		p.WitnessesNeeded = rules.WitnessQuorum
		return p
	}
	p.Participants = len(room.Users)
	if p.Participants < rules.MaxParticipants {
		p.ParticipantsNeeded = rules.MaxParticipants - p.Participants
	}
	for id, u := range room.Users {
		left := rules.RequiredAcceptances - u.KabulCount
		if left < 0 {
			left = 0
		}
		p.AcceptancesLeft[id] = left
	}
	p.WitnessCount = room.WitnessCount
	if room.WitnessCount < rules.WitnessQuorum {
		p.WitnessesNeeded = rules.WitnessQuorum - room.WitnessCount
	}
	return p
}

// NewView builds the view of room, which may be nil for a deleted room.
func NewView(roomID string, room *models.Room, rules Rules) View {
	v := View{
		RoomID:       roomID,
		Room:         room,
		State:        Derive(room, rules),
		Completed:    EvaluateCompletion(room, rules),
		Progress:     ProgressOf(room, rules),
		Participants: []models.Participant{},
		Witnesses:    []models.Witness{},
		Messages:     []models.Message{},
	}
	if room != nil {
		v.Participants = room.Participants()
		v.Witnesses = room.SortedWitnesses()
		v.Messages = room.SortedMessages()
	}
	return v
}
