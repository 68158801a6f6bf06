package service

import (
	"fmt"
	"strings"

	apperrors "github.com/ideahub/session-server-go/internal/errors"
	"github.com/ideahub/session-server-go/internal/model"
)

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return apperrors.MissingRequired("title")
	}
	if len(title) > model.TitleMaxLength {
		return apperrors.InvalidInput("title",
			fmt.Sprintf("cannot be more than %d characters", model.TitleMaxLength))
	}
	return nil
}

func validateDuration(minutes int) error {
	if minutes < model.DurationMinutesMin || minutes > model.DurationMinutesMax {
		return apperrors.InvalidInput("duration",
			fmt.Sprintf("must be between %d and %d minutes",
				model.DurationMinutesMin, model.DurationMinutesMax))
	}
	return nil
}

func validateMaxParticipants(n int) error {
	if n < model.MaxParticipantsFloor {
		return apperrors.InvalidInput("maxParticipants",
			fmt.Sprintf("minimum %d participant required", model.MaxParticipantsFloor))
	}
	return nil
}

func validateCreateParams(params *model.CreateSessionParams) error {
	if err := validateTitle(params.Title); err != nil {
		return err
	}
	if strings.TrimSpace(params.Description) == "" {
		return apperrors.MissingRequired("description")
	}
	if params.IdeaID == "" {
		return apperrors.MissingRequired("idea")
	}
	if params.ScheduledTime.IsZero() {
		return apperrors.MissingRequired("scheduledTime")
	}

	if params.DurationMinutes == 0 {
		params.DurationMinutes = model.DefaultDurationMinutes
	}
	if err := validateDuration(params.DurationMinutes); err != nil {
		return err
	}

	if params.MaxParticipants == 0 {
		params.MaxParticipants = model.DefaultMaxParticipants
	}
	return validateMaxParticipants(params.MaxParticipants)
}

func validateUpdateParams(params model.UpdateSessionParams) error {
	if params.Title != nil {
		if err := validateTitle(*params.Title); err != nil {
			return err
		}
	}
	if params.Description != nil && strings.TrimSpace(*params.Description) == "" {
		return apperrors.InvalidInput("description", "cannot be empty")
	}
	if params.ScheduledTime != nil && params.ScheduledTime.IsZero() {
		return apperrors.InvalidInput("scheduledTime", "must be a valid timestamp")
	}
	if params.DurationMinutes != nil {
		if err := validateDuration(*params.DurationMinutes); err != nil {
			return err
		}
	}
	if params.MaxParticipants != nil {
		if err := validateMaxParticipants(*params.MaxParticipants); err != nil {
			return err
		}
	}
	return nil
}

func validateChatMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return apperrors.MissingRequired("message")
	}
	if len(message) > model.ChatMessageMaxLength {
		return apperrors.InvalidInput("message",
			fmt.Sprintf("cannot be more than %d characters", model.ChatMessageMaxLength))
	}
	return nil
}
