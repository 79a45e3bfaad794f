package service

import (
	"context"

	"github.com/harryheman/slack-clone/internal/database"
	"github.com/harryheman/slack-clone/internal/models"
)

// MemberGate resolves a caller to their membership in a workspace.
type MemberGate struct {
	members database.MemberRepository
}

func NewMemberGate(members database.MemberRepository) *MemberGate {
	return &MemberGate{members: members}
}

// Require returns the caller's member record, or a Forbidden error when the
// caller does not belong to the workspace.
func (g *MemberGate) Require(ctx context.Context, workspaceID, userID int64) (*models.Member, error) {
	member, err := g.members.GetByWorkspaceAndUser(ctx, workspaceID, userID)
	if err != nil {
		return nil, storeFailure("members.get", err, "workspaceID", workspaceID, "userID", userID)
	}
	if member == nil {
		return nil, Forbidden("NOT_A_MEMBER", "you are not a member of this workspace")
	}
	return member, nil
}
