package models

import "time"

// ChatMessage is a persisted chat room message.
type ChatMessage struct {
	ID         string    `db:"id" json:"chatId"`
	RoomID     string    `db:"room_id" json:"chatRoomId"`
	SenderID   string    `db:"sender_id" json:"senderId"`
	SenderName string    `db:"sender_name" json:"senderName"`
	Content    string    `db:"content" json:"message"`
	CreatedAt  time.Time `db:"created_at" json:"createdOn"`
}
