package debate

import "strings"

const (
	sentinelOpen  = "<think>"
	sentinelClose = "</think>"
)

type sentinelState int

const (
	// sentinelProbe buffers leading text until it can tell whether the turn
	// opens with the reasoning sentinel.
	sentinelProbe sentinelState = iota
	sentinelReasoning
	sentinelContent
)

// sentinelScanner extracts <think>...</think> reasoning from a content
// stream whose model has no structured reasoning channel. It is stateful so
// the tags survive arbitrary chunk splits. The sentinel is only honored at
// the very start of a turn; once ordinary content has begun, the tags pass
// through verbatim.
type sentinelScanner struct {
	state sentinelState
	carry string
}

// Disable flushes any buffered probe text as plain content and routes all
// further input straight through. Used when a structured reasoning delta
// arrives, which takes precedence over the sentinel.
func (s *sentinelScanner) Disable() (content string) {
	if s.state == sentinelProbe {
		content = s.carry
		s.carry = ""
	}
	s.state = sentinelContent
	return content
}

func (s *sentinelScanner) Scan(delta string) (reasoning, content string) {
	switch s.state {
	case sentinelContent:
		return "", delta
	case sentinelProbe:
		s.carry += delta
		trimmed := strings.TrimLeft(s.carry, " \t\r\n")
		switch {
		case trimmed == "":
			return "", ""
		case strings.HasPrefix(trimmed, sentinelOpen):
			s.state = sentinelReasoning
			rest := trimmed[len(sentinelOpen):]
			s.carry = ""
			return s.scanReasoning(rest)
		case strings.HasPrefix(sentinelOpen, trimmed):
			// Could still become the sentinel; wait for more bytes.
			return "", ""
		default:
			s.state = sentinelContent
			content = s.carry
			s.carry = ""
			return "", content
		}
	default:
		return s.scanReasoning(delta)
	}
}

func (s *sentinelScanner) scanReasoning(delta string) (reasoning, content string) {
	text := s.carry + delta
	s.carry = ""
	if idx := strings.Index(text, sentinelClose); idx >= 0 {
		s.state = sentinelContent
		return text[:idx], text[idx+len(sentinelClose):]
	}
	// Hold back any trailing bytes that might be the start of the close tag.
	keep := partialTagSuffix(text, sentinelClose)
	s.carry = text[len(text)-keep:]
	return text[:len(text)-keep], ""
}

// Flush drains whatever the scanner is still holding at end of stream.
// An unclosed sentinel counts as reasoning; an unresolved probe as content.
func (s *sentinelScanner) Flush() (reasoning, content string) {
	carried := s.carry
	s.carry = ""
	switch s.state {
	case sentinelReasoning:
		reasoning = carried
	default:
		content = carried
	}
	s.state = sentinelContent
	return reasoning, content
}

// partialTagSuffix reports the length of the longest proper prefix of tag
// that ends text.
func partialTagSuffix(text, tag string) int {
	max := len(tag) - 1
	if len(text) < max {
		max = len(text)
	}
	for l := max; l > 0; l-- {
		if text[len(text)-l:] == tag[:l] {
			return l
		}
	}
	return 0
}
