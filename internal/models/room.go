package models

import "time"

// Room status values.
const (
	RoomStatusActive = "active"
	RoomStatusClosed = "closed"
)

// Kind distinguishes the well-known lobby room from ordinary chat rooms.
type Kind int

const (
	KindStandard Kind = iota
	KindLobby
)

// ClassifyRoom resolves the room kind for an identifier given the configured
// lobby room id.
func ClassifyRoom(roomID, lobbyID string) Kind {
	if roomID == lobbyID {
		return KindLobby
	}
	return KindStandard
}

// Member is one entry of a room's membership set, unique by UserID.
type Member struct {
	UserID   string `db:"user_id" json:"userId"`
	UserName string `db:"user_name" json:"userName"`
}

// ChatRoom is a durable chat room with its membership set.
type ChatRoom struct {
	ID         string    `db:"id" json:"chatRoomId"`
	Name       string    `db:"name" json:"chatRoomName"`
	OwnerID    string    `db:"owner_id" json:"ownerId"`
	OwnerName  string    `db:"owner_name" json:"ownerName"`
	Status     string    `db:"status" json:"chatRoomStatus"`
	CreatedAt  time.Time `db:"created_at" json:"createdOn"`
	ModifiedAt time.Time `db:"modified_at" json:"modifiedOn"`
	Members    []Member  `db:"-" json:"chatRoomMembers"`
}

// HasMember reports whether userID is in the membership set.
func (r ChatRoom) HasMember(userID string) bool {
	for _, m := range r.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
