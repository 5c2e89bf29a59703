package models

import (
	"fmt"
	"strings"
	"time"
)

// Sender identifies who authored a history entry.
type Sender string

const (
	SenderUser Sender = "USER"
	SenderBot  Sender = "BOT"
)

// TimestampLayout is fixed width so that lexical order matches time order.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Message is one persisted turn half. Field names follow the stored record
// layout {UserID, Timestamp, Sender, Message}.
type Message struct {
	UserID    string `json:"UserID"`
	Timestamp string `json:"Timestamp"`
	Sender    Sender `json:"Sender"`
	Text      string `json:"Message"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// Valid reports whether both fields are present.
func (r ChatRequest) Valid() bool {
	return r.UserID != "" && r.Message != ""
}

// ParseSender accepts the stored sender spelling in any case.
func ParseSender(s string) (Sender, error) {
	switch Sender(strings.ToUpper(strings.TrimSpace(s))) {
	case SenderUser:
		return SenderUser, nil
	case SenderBot:
		return SenderBot, nil
	default:
		return "", fmt.Errorf("unknown sender %q", s)
	}
}

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
