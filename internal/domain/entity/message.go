package entity

import "time"

const (
	MessageTypeText         = "text"
	MessageTypeSystem       = "system"
	MessageTypeNotification = "notification"
)

const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

type Message struct {
	ID          string       `json:"id" firestore:"id" bson:"_id"`
	From        string       `json:"from" firestore:"from" bson:"from"`
	To          string       `json:"to" firestore:"to" bson:"to"`
	Content     string       `json:"content" firestore:"content" bson:"content"`
	Subject     string       `json:"subject,omitempty" firestore:"subject,omitempty" bson:"subject,omitempty"`
	Attachments []Attachment `json:"attachments" firestore:"attachments" bson:"attachments"`
	MessageType string       `json:"messageType" firestore:"messageType" bson:"messageType"`
	Priority    string       `json:"priority" firestore:"priority" bson:"priority"`
	ThreadID    string       `json:"threadId,omitempty" firestore:"threadId" bson:"threadId,omitempty"`
	ReplyTo     string       `json:"replyTo,omitempty" firestore:"replyTo,omitempty" bson:"replyTo,omitempty"`
	Read        bool         `json:"read" firestore:"read" bson:"read"`
	ReadAt      *time.Time   `json:"readAt,omitempty" firestore:"readAt" bson:"readAt,omitempty"`
	Archived    bool         `json:"archived" firestore:"archived" bson:"archived"`
	Starred     bool         `json:"starred" firestore:"starred" bson:"starred"`
	CreatedAt   time.Time    `json:"createdAt" firestore:"createdAt" bson:"createdAt"`
}

// Attachment metadata. The bytes live in external storage under Filename.
type Attachment struct {
	Filename     string `json:"filename" firestore:"filename" bson:"filename"`
	OriginalName string `json:"originalName" firestore:"originalName" bson:"originalName"`
	MimeType     string `json:"mimeType" firestore:"mimeType" bson:"mimeType"`
	Size         int64  `json:"size" firestore:"size" bson:"size"`
	URL          string `json:"url" firestore:"url" bson:"url"`
}

// ThreadKey is the id every message of the same thread shares: the
// explicit thread id, or the message's own id for a root.
func (m *Message) ThreadKey() string {
	if m.ThreadID != "" {
		return m.ThreadID
	}
	return m.ID
}

func (m *Message) IsParticipant(userID string) bool {
	return m.From == userID || m.To == userID
}

// Correspondent returns the participant that is not userID.
func (m *Message) Correspondent(userID string) string {
	if m.From == userID {
		return m.To
	}
	return m.From
}

// MarkRead flips the message to read. readAt is only ever set once.
func (m *Message) MarkRead(at time.Time) bool {
	if m.Read {
		return false
	}
	m.Read = true
	if m.ReadAt == nil {
		t := at
		m.ReadAt = &t
	}
	return true
}

func IsValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

func IsValidMessageType(t string) bool {
	switch t {
	case MessageTypeText, MessageTypeSystem, MessageTypeNotification:
		return true
	}
	return false
}

// Before orders messages by creation time, ties broken by id. Ids are
// UUIDv7 so the tie-break follows insertion order.
func Before(a, b *Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
