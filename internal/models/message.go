package models

import (
	"fmt"
	"time"
)

type Message struct {
	ID              int64         `json:"id,string"`
	WorkspaceID     int64         `json:"workspace_id,string"`
	MemberID        int64         `json:"member_id,string"`
	ChannelID       *int64        `json:"channel_id,string,omitempty"`
	ConversationID  *int64        `json:"conversation_id,string,omitempty"`
	ParentMessageID *int64        `json:"parent_message_id,string,omitempty"`
	Body            string        `json:"body"`
	Image           *string       `json:"image,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       *time.Time    `json:"updated_at,omitempty"`
	Thread          ThreadSummary `json:"thread"`
}

// ThreadSummary is maintained by the store whenever replies are added or removed.
type ThreadSummary struct {
	Count           int        `json:"count"`
	LastReplyAt     *time.Time `json:"last_reply_at,omitempty"`
	LastAuthorName  *string    `json:"last_author_name,omitempty"`
	LastAuthorImage *string    `json:"last_author_image,omitempty"`
}

// Scope returns the scope the message is listed under: the thread of its
// parent for replies, otherwise its channel or conversation.
func (m *Message) Scope() Scope {
	if m.ParentMessageID != nil {
		return Scope{ParentMessageID: *m.ParentMessageID}
	}
	var s Scope
	if m.ChannelID != nil {
		s.ChannelID = *m.ChannelID
	}
	if m.ConversationID != nil {
		s.ConversationID = *m.ConversationID
	}
	return s
}

// ContainerScope is the channel or conversation the message lives in,
// ignoring any parent.
func (m *Message) ContainerScope() Scope {
	var s Scope
	if m.ChannelID != nil {
		s.ChannelID = *m.ChannelID
	}
	if m.ConversationID != nil {
		s.ConversationID = *m.ConversationID
	}
	return s
}

// MessageView is a message populated with everything a reader renders.
type MessageView struct {
	Message
	AuthorName  string          `json:"author_name"`
	AuthorImage *string         `json:"author_image,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
	Reactions   []ReactionGroup `json:"reactions"`
}

// MessagePage is one page of a reverse-chronological scope listing. Limit
// is the page size the server applied; Exhausted holds iff the page is
// shorter than it.
type MessagePage struct {
	Page       []MessageView `json:"page"`
	NextCursor string        `json:"next_cursor"`
	Exhausted  bool          `json:"exhausted"`
	Limit      int           `json:"limit"`
}

func (p *MessagePage) String() string {
	return fmt.Sprintf("page(%d items, exhausted=%v)", len(p.Page), p.Exhausted)
}
