package client

import "time"

type Attachment struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	MimeType     string `json:"mimeType"`
	Size         int64  `json:"size"`
	URL          string `json:"url"`
}

type Message struct {
	ID          string       `json:"id"`
	From        string       `json:"from"`
	To          string       `json:"to"`
	Content     string       `json:"content"`
	Subject     string       `json:"subject,omitempty"`
	Attachments []Attachment `json:"attachments"`
	MessageType string       `json:"messageType"`
	Priority    string       `json:"priority"`
	ThreadID    string       `json:"threadId,omitempty"`
	ReplyTo     string       `json:"replyTo,omitempty"`
	Read        bool         `json:"read"`
	ReadAt      *time.Time   `json:"readAt,omitempty"`
	Archived    bool         `json:"archived"`
	Starred     bool         `json:"starred"`
	CreatedAt   time.Time    `json:"createdAt"`
}

type User struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

type Conversation struct {
	User            *User     `json:"user"`
	LastMessage     string    `json:"lastMessage"`
	LastMessageDate time.Time `json:"lastMessageDate"`
	UnreadCount     int       `json:"unreadCount"`
}

type SendRequest struct {
	To          string `json:"to"`
	Content     string `json:"content"`
	Subject     string `json:"subject,omitempty"`
	Priority    string `json:"priority,omitempty"`
	MessageType string `json:"messageType,omitempty"`
	ThreadID    string `json:"threadId,omitempty"`
	ReplyTo     string `json:"replyTo,omitempty"`
}
