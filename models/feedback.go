package models

import (
	"fmt"
	"strings"
)

// FeedbackValue is a user's verdict on one provider's answer
type FeedbackValue string

const (
	FeedbackPositive FeedbackValue = "positive"
	FeedbackNegative FeedbackValue = "negative"
)

// ParseFeedbackValue accepts positive/negative and the thumbs aliases used by the UI
func ParseFeedbackValue(s string) (FeedbackValue, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive", "up", "thumbs_up", "+1":
		return FeedbackPositive, nil
	case "negative", "down", "thumbs_down", "-1":
		return FeedbackNegative, nil
	}
	return "", fmt.Errorf("invalid feedback value %q", s)
}
