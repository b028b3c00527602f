package models

// CreateRoomRequest is the body of POST /api/rooms.
type CreateRoomRequest struct {
	Name     string   `json:"name"`
	Gender   string   `json:"gender"`
	Role     Role     `json:"role"`
	Wali     string   `json:"wali,omitempty"`
	Mehr     *float64 `json:"mehr,omitempty"`
	Location string   `json:"location,omitempty"`
}

// CreateRoomResponse carries the generated room code and the creator's id.
type CreateRoomResponse struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// JoinRoomRequest is the body of POST /api/rooms/:roomId/join.
type JoinRoomRequest struct {
	Name   string   `json:"name"`
	Gender string   `json:"gender"`
	Role   Role     `json:"role"`
	Wali   string   `json:"wali,omitempty"`
	Mehr   *float64 `json:"mehr,omitempty"`
}

// JoinRoomResponse identifies the new member. MemberID is a user id for
// participants and a witness id for witnesses.
type JoinRoomResponse struct {
	RoomID   string `json:"roomId"`
	MemberID string `json:"memberId"`
	Role     Role   `json:"role"`
}

// AcceptanceRequest is the body of POST /api/rooms/:roomId/acceptance.
// The acting user comes from the X-User-ID header.
type AcceptanceRequest struct {
	TargetUserID string `json:"targetUserId" binding:"required"`
}

// SendMessageRequest is the body of POST /api/rooms/:roomId/messages.
type SendMessageRequest struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Text     string `json:"text"`
}

// LeaveRoomRequest is the body of POST /api/rooms/:roomId/leave.
type LeaveRoomRequest struct {
	MemberID string `json:"memberId" binding:"required"`
	Role     Role   `json:"role"`
}
