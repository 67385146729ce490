package repository

import (
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/wyzar/wyzar_messaging/apperrors"
)

const (
	DefaultMaxBodyLength  = 2000
	DefaultMaxAttachments = 10
)

var validate = validator.New()

type ContentLimits struct {
	MaxBodyLength  int
	MaxAttachments int
}

func DefaultLimits() ContentLimits {
	return ContentLimits{MaxBodyLength: DefaultMaxBodyLength, MaxAttachments: DefaultMaxAttachments}
}

func (l ContentLimits) withDefaults() ContentLimits {
	if l.MaxBodyLength <= 0 {
		l.MaxBodyLength = DefaultMaxBodyLength
	}
	if l.MaxAttachments <= 0 {
		l.MaxAttachments = DefaultMaxAttachments
	}
	return l
}

// NormalizeContent trims the body and attachment list and enforces the
// content rules. Length is counted in code points.
func NormalizeContent(body string, attachments []string, limits ContentLimits) (string, []string, error) {
	limits = limits.withDefaults()
	body = strings.TrimSpace(body)

	cleaned := make([]string, 0, len(attachments))
	for _, a := range attachments {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if err := validate.Var(a, "http_url"); err != nil {
			return "", nil, apperrors.ErrInvalidAttachment
		}
		cleaned = append(cleaned, a)
	}

	if body == "" && len(cleaned) == 0 {
		return "", nil, apperrors.ErrEmptyMessage
	}
	if utf8.RuneCountInString(body) > limits.MaxBodyLength {
		return "", nil, apperrors.ErrMessageTooLong
	}
	if len(cleaned) > limits.MaxAttachments {
		return "", nil, apperrors.ErrTooManyAttachments
	}
	return body, cleaned, nil
}
