package models

import (
	"errors"
	"strconv"
)

var (
	ErrScopeMissing   = errors.New("one of channel_id, conversation_id or parent_message_id is required")
	ErrScopeAmbiguous = errors.New("channel_id and conversation_id are mutually exclusive")
)

// Scope selects the messages of a channel, a conversation or a thread.
// Zero means the field is absent. A thread scope may also carry the
// channel or conversation of its parent.
type Scope struct {
	ChannelID       int64
	ConversationID  int64
	ParentMessageID int64
}

func (s Scope) Validate() error {
	if s.ChannelID != 0 && s.ConversationID != 0 {
		return ErrScopeAmbiguous
	}
	if s.ChannelID == 0 && s.ConversationID == 0 && s.ParentMessageID == 0 {
		return ErrScopeMissing
	}
	return nil
}

func (s Scope) IsThread() bool { return s.ParentMessageID != 0 }

// Key identifies the scope for subscriptions. Threads are keyed by their
// parent alone.
func (s Scope) Key() string {
	switch {
	case s.ParentMessageID != 0:
		return "thread:" + strconv.FormatInt(s.ParentMessageID, 10)
	case s.ChannelID != 0:
		return "channel:" + strconv.FormatInt(s.ChannelID, 10)
	case s.ConversationID != 0:
		return "conversation:" + strconv.FormatInt(s.ConversationID, 10)
	}
	return ""
}
