package models

// Wire event names exchanged with clients. Names are part of the client
// contract and mirror the events the frontends already listen for.
const (
	EventVerifyUser       = "verifyUser"
	EventAuthError        = "authError"
	EventSetUser          = "set-user"
	EventStartChatRoom    = "startChatRoom"
	EventJoinChatRoom     = "joinChatRoom"
	EventOnlineUserList   = "online-user-list"
	EventNotification     = "notification"
	EventChatRoomMsg      = "chatRoomMsg"
	EventChatMsgGlobal    = "chatMsgGlobal"
	EventMessageReceived  = "messageReceivedInChatRoom"
	EventTyping           = "typing"
	EventCreateChatRoom   = "createChatRoom"
	EventEditChatRoom     = "editChatRoom"
	EventChatRoomStatus   = "chatRoomStatus"
	EventLeaveChatRoom    = "leaveChatRoom"
	EventDeleteChatRoom   = "deleteChatRoom"
	EventRoomCreated      = "chatRoomCreated"
	EventRoomCreatedGlob  = "chatRoomCreatedGlobal"
	EventRoomEdited       = "chatRoomEdited"
	EventRoomEditedGlob   = "chatRoomEditedGlobal"
	EventAddRoomMember    = "addChatRoomMember"
	EventRoomMemberLeft   = "chatRoomMemberLeft"
	EventMemberLeftGlob   = "chatRoomMemberLeftGlobal"
	EventRoomDeletedGlob  = "chatRoomDeletedGlobal"
	EventRedirectOnDelete = "redirOnDelete"
)

// Frame is the outbound wire envelope.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// AuthError is sent to a single connection on failed authentication.
type AuthError struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
}

// CreateRoomRequest is the payload of a createChatRoom client event.
type CreateRoomRequest struct {
	Name      string `json:"chatRoomName"`
	OwnerID   string `json:"ownerId"`
	OwnerName string `json:"ownerName"`
}

// EditRoomRequest is the payload of an editChatRoom client event.
type EditRoomRequest struct {
	RoomID string `json:"chatRoomId"`
	Name   string `json:"chatRoomName"`
}

// RoomStatusRequest toggles a room between active and closed.
type RoomStatusRequest struct {
	RoomID string `json:"chatRoomId"`
	Status string `json:"chatRoomStatus"`
}

// MembershipChange identifies the room and the exact member pair affected by
// a join or leave.
type MembershipChange struct {
	RoomID   string `json:"chatRoomId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// Member converts the change into a membership-set entry.
func (m MembershipChange) Member() Member {
	return Member{UserID: m.UserID, UserName: m.UserName}
}

// InboundMessage is the payload of a chatRoomMsg client event, before the
// pipeline assigns the id and server timestamp.
type InboundMessage struct {
	SenderName string `json:"senderName"`
	SenderID   string `json:"senderId"`
	Content    string `json:"message"`
	RoomID     string `json:"chatRoomId"`
}

// TypingNotice is relayed between room occupants without persistence.
type TypingNotice struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}
