package service

import (
	"fmt"

	apperrors "github.com/ideahub/session-server-go/internal/errors"
	"github.com/ideahub/session-server-go/internal/model"
)

// Authorization rules for session actions. All pure: a decision is a
// function of the principal and the ownership facts on the record it is
// handed, nothing else. Callers evaluate them against the same snapshot
// the mutation commits against.

// CanCreateSession permits the idea's author or an elevated principal.
func CanCreateSession(user *model.User, idea *model.Idea) error {
	if user.Role.Elevated() || idea.AuthorID == user.ID {
		return nil
	}
	return apperrors.NotAuthorized(
		fmt.Sprintf("User %s is not authorized to create sessions for this idea", user.ID))
}

// CanManageSession permits the session's host or an elevated principal.
// Covers update, cancel and end.
func CanManageSession(user *model.User, session *model.Session) error {
	if user.Role.Elevated() || session.HostID == user.ID {
		return nil
	}
	return apperrors.NotAuthorized(
		fmt.Sprintf("User %s is not authorized to manage this session", user.ID))
}

// CanDeleteSession permits elevated principals only. Deletion is an
// administrative action, not part of the host's lifecycle controls.
func CanDeleteSession(user *model.User) error {
	if user.Role.Elevated() {
		return nil
	}
	return apperrors.NotAuthorized(
		fmt.Sprintf("User %s is not authorized to delete sessions", user.ID))
}

// CanChat permits the host and current participants.
func CanChat(user *model.User, session *model.Session) error {
	if session.HostID == user.ID || session.HasParticipant(user.ID) {
		return nil
	}
	return apperrors.NotAuthorized(
		fmt.Sprintf("User %s is not authorized to chat in this session", user.ID))
}
