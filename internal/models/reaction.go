package models

import (
	"encoding/json"
	"strconv"
	"time"
)

type Reaction struct {
	ID          int64     `json:"id,string"`
	MessageID   int64     `json:"message_id,string"`
	MemberID    int64     `json:"member_id,string"`
	WorkspaceID int64     `json:"workspace_id,string"`
	Value       string    `json:"value"`
	CreatedAt   time.Time `json:"created_at"`
}

// ReactionGroup aggregates the reactions of one value on a message.
type ReactionGroup struct {
	Value     string  `json:"value"`
	Count     int     `json:"count"`
	MemberIDs IDList `json:"member_ids"`
}

// IDList is a list of snowflake ids encoded as JSON strings, like every
// other id field.
type IDList []int64

func (l IDList) MarshalJSON() ([]byte, error) {
	out := make([]string, len(l))
	for i, id := range l {
		out[i] = strconv.FormatInt(id, 10)
	}
	return json.Marshal(out)
}

func (l *IDList) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*l = nil
		return nil
	}
	ids := make(IDList, len(raw))
	for i, s := range raw {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		ids[i] = id
	}
	*l = ids
	return nil
}

// ToggleResult reports what a toggle did. ReactionID is the deleted
// reaction's id when Added is false, otherwise the new one.
type ToggleResult struct {
	ReactionID int64 `json:"id,string"`
	Added      bool  `json:"added"`
}
