package models

import "time"

// Conversation is a direct conversation between two members of a workspace.
// MemberOneID is always the smaller id of the pair.
type Conversation struct {
	ID          int64     `json:"id,string"`
	WorkspaceID int64     `json:"workspace_id,string"`
	MemberOneID int64     `json:"member_one_id,string"`
	MemberTwoID int64     `json:"member_two_id,string"`
	CreatedAt   time.Time `json:"created_at"`
}

// Normalize orders the member pair so that each pair has one row.
func (c *Conversation) Normalize() {
	if c.MemberOneID > c.MemberTwoID {
		c.MemberOneID, c.MemberTwoID = c.MemberTwoID, c.MemberOneID
	}
}
