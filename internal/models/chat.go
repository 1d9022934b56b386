package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AdminParticipant is the conversation id used for the admin side of a chat
const AdminParticipant = "admin"

// ChatMessage is a row of the chat_messages collection. Conversations are
// always between one leader and the admin team.
type ChatMessage struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CedulaLider string             `bson:"cedula_lider" json:"cedula_lider"`
	From        string             `bson:"from" json:"from"`
	Body        string             `bson:"body" json:"body"`
	Read        bool               `bson:"read" json:"read"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}

// ChatSendRequest is the payload to post a message
type ChatSendRequest struct {
	Body string `json:"body" binding:"required"`
	// CedulaLider selects the conversation when an admin writes
	CedulaLider string `json:"cedula_lider,omitempty"`
}

// UnreadResponse is the unread badge count
type UnreadResponse struct {
	Unread int64 `json:"unread"`
}
