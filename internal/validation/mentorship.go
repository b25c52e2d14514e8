package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxChatMessageLength caps a single chat message, counted in runes.
	MaxChatMessageLength = 5000
	// MaxCloseReasonLength caps the reason a mentor gives for closing a chat.
	MaxCloseReasonLength = 1000
	// MaxReviewCommentLength caps a review comment.
	MaxReviewCommentLength = 2000
	maxFieldOfInterest     = 200
	maxRequestText         = 4000
)

var linkedinRegex = regexp.MustCompile(`^https?://(www\.)?linkedin\.com/.+$`)

// NormalizeChatText trims a chat message and checks it is non-empty and within bounds.
func NormalizeChatText(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", fmt.Errorf("message text is required")
	}
	if utf8.RuneCountInString(trimmed) > MaxChatMessageLength {
		return "", fmt.Errorf("message must not exceed %d characters", MaxChatMessageLength)
	}
	return trimmed, nil
}

// NormalizeCloseReason trims a chat close reason and checks it is non-empty.
func NormalizeCloseReason(reason string) (string, error) {
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		return "", fmt.Errorf("reason is required")
	}
	if utf8.RuneCountInString(trimmed) > MaxCloseReasonLength {
		return "", fmt.Errorf("reason must not exceed %d characters", MaxCloseReasonLength)
	}
	return trimmed, nil
}

// ValidateRating checks a review rating is an integer from 1 to 5.
func ValidateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("rating must be an integer between 1 and 5")
	}
	return nil
}

// NormalizeReviewComment trims an optional review comment.
func NormalizeReviewComment(comment string) (string, error) {
	trimmed := strings.TrimSpace(comment)
	if utf8.RuneCountInString(trimmed) > MaxReviewCommentLength {
		return "", fmt.Errorf("comment must not exceed %d characters", MaxReviewCommentLength)
	}
	return trimmed, nil
}

// ValidateRequestText checks the free-text fields of a new mentorship request.
func ValidateRequestText(fieldOfInterest, description, goals string) error {
	field := strings.TrimSpace(fieldOfInterest)
	if field == "" {
		return fmt.Errorf("field of interest is required")
	}
	if utf8.RuneCountInString(field) > maxFieldOfInterest {
		return fmt.Errorf("field of interest must not exceed %d characters", maxFieldOfInterest)
	}
	if utf8.RuneCountInString(description) > maxRequestText || utf8.RuneCountInString(goals) > maxRequestText {
		return fmt.Errorf("description and goals must not exceed %d characters", maxRequestText)
	}
	return nil
}

// ValidateLinkedinURL accepts an empty value or a linkedin.com URL.
func ValidateLinkedinURL(url string) error {
	url = strings.TrimSpace(url)
	if url == "" || linkedinRegex.MatchString(url) {
		return nil
	}
	return fmt.Errorf("invalid LinkedIn URL format")
}

// ValidateGraduationYear accepts zero (unset) or a plausible year.
func ValidateGraduationYear(year int) error {
	if year == 0 || (year >= 1950 && year <= 2100) {
		return nil
	}
	return fmt.Errorf("graduation year must be between 1950 and 2100")
}
