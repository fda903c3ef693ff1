package credit

import (
	"fmt"

	"github.com/audithero/apostle-video-platform-sub004/internal/domain/shared"
)

// Type is a kind of AI generation credit tracked in its own ledger
type Type string

const (
	// TypeAICourse is spent when a full course outline is generated
	TypeAICourse Type = "ai_course"

	// TypeAIRewrite is spent when a lesson is rewritten
	TypeAIRewrite Type = "ai_rewrite"

	// TypeAIImage is spent per generated image
	TypeAIImage Type = "ai_image"

	// TypeAIQuiz is spent per generated quiz
	TypeAIQuiz Type = "ai_quiz"
)

// ErrInvalidType is returned when a credit type outside the closed set is used
var ErrInvalidType = shared.NewDomainError("INVALID_CREDIT_TYPE", "Unknown credit type")

// AllTypes returns every credit type in a stable order
func AllTypes() []Type {
	return []Type{TypeAICourse, TypeAIRewrite, TypeAIImage, TypeAIQuiz}
}

// String returns the string representation of Type
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the credit type is one of the known types
func (t Type) IsValid() bool {
	switch t {
	case TypeAICourse, TypeAIRewrite, TypeAIImage, TypeAIQuiz:
		return true
	}
	return false
}

// DisplayName returns a human-readable name
func (t Type) DisplayName() string {
	switch t {
	case TypeAICourse:
		return "AI Course Generation"
	case TypeAIRewrite:
		return "AI Lesson Rewrite"
	case TypeAIImage:
		return "AI Image Generation"
	case TypeAIQuiz:
		return "AI Quiz Generation"
	default:
		return string(t)
	}
}

// ParseType parses a string into a credit Type
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.IsValid() {
		return "", ErrInvalidType.WithMessage(fmt.Sprintf("unknown credit type: %q", s))
	}
	return t, nil
}
