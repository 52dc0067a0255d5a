package validators

import (
	"strings"
	"unicode"

	"millionx-backend/pkg/errors"
)

// TopicValidator checks topic strings before they become node titles
type TopicValidator struct {
	maxLength int
}

// NewTopicValidator creates a validator with the given length bound
func NewTopicValidator(maxLength int) *TopicValidator {
	if maxLength <= 0 {
		maxLength = 200
	}
	return &TopicValidator{maxLength: maxLength}
}

// Validate rejects empty, oversized, or control-character topics
func (v *TopicValidator) Validate(topic string) error {
	trimmed := strings.TrimSpace(topic)
	if trimmed == "" {
		return errors.NewValidationError("topic cannot be empty")
	}
	if len([]rune(trimmed)) > v.maxLength {
		return errors.NewValidationError("topic is too long")
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) && r != '\t' {
			return errors.NewValidationError("topic contains control characters")
		}
	}
	return nil
}

// Normalize returns the canonical form used for display and matching
func (v *TopicValidator) Normalize(topic string) string {
	return strings.Join(strings.Fields(topic), " ")
}
