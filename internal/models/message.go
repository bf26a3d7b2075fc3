package models

import (
	"fmt"
	"strings"
)

// Kind classifies a chat message.
type Kind string

const (
	KindMessage     Kind = "message"
	KindCommand     Kind = "command"
	KindBotResponse Kind = "bot_response"
	KindSystem      Kind = "system"
)

// ParseKind validates a kind string. An empty string means KindMessage.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.TrimSpace(s)); k {
	case "":
		return KindMessage, nil
	case KindMessage, KindCommand, KindBotResponse, KindSystem:
		return k, nil
	default:
		return "", fmt.Errorf("unknown message kind %q", s)
	}
}

// UserWritable reports whether end users may post messages of this kind.
func (k Kind) UserWritable() bool {
	return k == KindMessage || k == KindCommand
}

// Message represents a chat message in a collection's group log.
type Message struct {
	ID                int64  `json:"id"` // Assigned by the relay, strictly increasing per group
	GroupID           string `json:"group_id"`
	CollectionAddress string `json:"collection_address"`
	Sender            string `json:"sender"`
	Content           string `json:"content"`
	Kind              Kind   `json:"kind"`
	Timestamp         int64  `json:"ts"` // Unix ms
	IsBot             bool   `json:"is_bot"`
	Ref               string `json:"ref,omitempty"` // ULID, dedupes retried appends
}

// DefaultGroupID returns the id of a collection's community channel.
func DefaultGroupID(collection string) string {
	return NormalizeAddress(collection)
}
