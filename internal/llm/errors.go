package llm

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go/v3"
)

// ErrorKind is the coarse taxonomy surfaced to users when a run fails.
type ErrorKind string

const (
	// KindUsageLimit covers rate and quota exhaustion upstream.
	KindUsageLimit ErrorKind = "usage-limit"
	// KindUnauthorized covers missing or rejected credentials.
	KindUnauthorized ErrorKind = "unauthorized"
	// KindCancelled covers user-initiated stops; never reported as an error.
	KindCancelled ErrorKind = "cancelled"
	// KindUpstream covers every other upstream or transport failure.
	KindUpstream ErrorKind = "upstream"
)

var usageLimitHintRe = regexp.MustCompile(`(?i)rate limit|too many requests|quota|credits? (?:exhausted|depleted|remaining)|insufficient[ _](?:credit|quota|balance)|payment required|billing|exceeded your`)

// Classify maps an upstream error into the user-facing taxonomy. Status
// codes win over body text; quota-like wording in the body still counts as a
// usage limit when the status is missing or generic.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUpstream
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	if errors.Is(err, ErrMissingCredential) {
		return KindUnauthorized
	}

	if status, ok := statusCode(err); ok {
		switch status {
		case http.StatusTooManyRequests, http.StatusPaymentRequired:
			return KindUsageLimit
		case http.StatusUnauthorized, http.StatusForbidden:
			return KindUnauthorized
		}
	}
	if IsUsageLimitText(err.Error()) {
		return KindUsageLimit
	}
	return KindUpstream
}

func statusCode(err error) (int, bool) {
	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		return oaErr.StatusCode, true
	}
	var anErr *anthropic.Error
	if errors.As(err, &anErr) {
		return anErr.StatusCode, true
	}
	return 0, false
}

// IsUsageLimitText reports whether an error body reads like rate/quota
// exhaustion.
func IsUsageLimitText(errorMessage string) bool {
	text := strings.TrimSpace(errorMessage)
	if text == "" {
		return false
	}
	return usageLimitHintRe.MatchString(text)
}

// UserMessage renders the taxonomy into the message placed on the in-band
// error event. Usage limits get wording distinct from generic failure so the
// client can tell the user to retry later rather than report a bug.
func UserMessage(kind ErrorKind) string {
	switch kind {
	case KindUsageLimit:
		return "The model provider reported a rate or quota limit. Please wait a moment and try again."
	case KindUnauthorized:
		return "The model provider rejected the configured credential."
	default:
		return "The model provider returned an error. Please try again."
	}
}
