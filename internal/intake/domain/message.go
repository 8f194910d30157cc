package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/carelink/platform/internal/shared/types"
)

// MessageRole identifies who produced a chat message.
type MessageRole string

const (
	MessageRoleUser   MessageRole = "user"
	MessageRoleModel  MessageRole = "model"
	MessageRoleDoctor MessageRole = "doctor"
)

// ChatMessage is one turn of the intake conversation, persisted in
// order. User messages carry a content hash used for duplicate
// suppression.
type ChatMessage struct {
	ID          types.ID    `json:"id"`
	SessionID   types.ID    `json:"session_id"`
	Role        MessageRole `json:"role"`
	Content     string      `json:"content"`
	ContentHash string      `json:"-"`
	CreatedAt   time.Time   `json:"created_at"`
}

// NewChatMessage builds a message with its dedup hash computed.
func NewChatMessage(sessionID types.ID, role MessageRole, content string) *ChatMessage {
	return &ChatMessage{
		ID:          types.NewID(),
		SessionID:   sessionID,
		Role:        role,
		Content:     content,
		ContentHash: HashContent(sessionID, content),
		CreatedAt:   time.Now(),
	}
}

// HashContent computes the dedup hash over the session identity and the
// exact message content. Scoping the hash to the session keeps identical
// text in different sessions distinct.
func HashContent(sessionID types.ID, content string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s", sessionID, content)))
	return hex.EncodeToString(sum[:])
}
