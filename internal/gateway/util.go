package gateway

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/harryheman/slack-clone/internal/models"
)

// mustMarshal marshals v to json.RawMessage, panicking on error.
// Only for statically-known types that cannot fail.
func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic("gateway: mustMarshal: " + err.Error())
	}
	return data
}

// decodeScope parses the scope named by a SUBSCRIBE or UNSUBSCRIBE payload.
func decodeScope(data json.RawMessage) (models.Scope, error) {
	var sd SubscribeData
	if err := json.Unmarshal(data, &sd); err != nil {
		return models.Scope{}, fmt.Errorf("malformed scope payload")
	}

	var (
		s   models.Scope
		err error
	)
	if s.ChannelID, err = parseSnowflake(sd.ChannelID); err != nil {
		return s, fmt.Errorf("invalid channel_id")
	}
	if s.ConversationID, err = parseSnowflake(sd.ConversationID); err != nil {
		return s, fmt.Errorf("invalid conversation_id")
	}
	if s.ParentMessageID, err = parseSnowflake(sd.ParentMessageID); err != nil {
		return s, fmt.Errorf("invalid parent_message_id")
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// parseSnowflake parses a string snowflake ID. Empty means absent.
func parseSnowflake(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
