package entity

import (
	"sort"
	"time"
)

// ConversationSummary is the store level view of one correspondent.
type ConversationSummary struct {
	CorrespondentID string    `json:"correspondentId" bson:"_id"`
	LastMessageID   string    `json:"lastMessageId" bson:"lastMessageId"`
	LastMessage     string    `json:"lastMessage" bson:"lastMessage"`
	LastMessageDate time.Time `json:"lastMessageDate" bson:"lastMessageDate"`
	UnreadCount     int       `json:"unreadCount" bson:"unreadCount"`
}

type Conversation struct {
	User            *UserSummary `json:"user"`
	LastMessage     string       `json:"lastMessage"`
	LastMessageDate time.Time    `json:"lastMessageDate"`
	UnreadCount     int          `json:"unreadCount"`
}

// AggregateConversations groups messages of userID by correspondent.
// Messages not involving userID are ignored.
func AggregateConversations(userID string, messages []*Message) []*ConversationSummary {
	groups := make(map[string]*ConversationSummary)
	latest := make(map[string]*Message)

	for _, m := range messages {
		if !m.IsParticipant(userID) || m.From == m.To {
			continue
		}
		other := m.Correspondent(userID)

		summary, ok := groups[other]
		if !ok {
			summary = &ConversationSummary{CorrespondentID: other}
			groups[other] = summary
		}

		if cur, ok := latest[other]; !ok || Before(cur, m) {
			latest[other] = m
			summary.LastMessageID = m.ID
			summary.LastMessage = m.Content
			summary.LastMessageDate = m.CreatedAt
		}

		if m.To == userID && !m.Read {
			summary.UnreadCount++
		}
	}

	out := make([]*ConversationSummary, 0, len(groups))
	for _, s := range groups {
		out = append(out, s)
	}
	SortSummaries(out)
	return out
}

// SortSummaries orders newest conversation first.
func SortSummaries(summaries []*ConversationSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if !a.LastMessageDate.Equal(b.LastMessageDate) {
			return a.LastMessageDate.After(b.LastMessageDate)
		}
		return a.LastMessageID > b.LastMessageID
	})
}
