package bus

// Event names routed through the bus. Producers are the connection gateway;
// consumers are the room lifecycle manager and the messaging pipeline.
const (
	TopicRoomSave        = "room.save"
	TopicRoomEdit        = "room.edit"
	TopicRoomStatus      = "room.status"
	TopicRoomMemberAdd   = "room.member.add"
	TopicRoomMemberLeave = "room.member.leave"
	TopicRoomDelete      = "room.delete"
	TopicMessageSave     = "message.save"
	TopicMessagePurge    = "message.purge"
)
