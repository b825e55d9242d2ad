package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsUsageLimitText(t *testing.T) {
	cases := []struct {
		name string
		msg  string
		want bool
	}{
		{
			name: "quota_exceeded",
			msg:  "429 Too Many Requests: quota exceeded for this billing period",
			want: true,
		},
		{
			name: "rate_limit",
			msg:  "request reached organization rate limit, retry after 20s",
			want: true,
		},
		{
			name: "insufficient_credits",
			msg:  "insufficient_quota: you have run out of credits",
			want: true,
		},
		{
			name: "payment_required",
			msg:  "402 Payment Required",
			want: true,
		},
		{
			name: "generic_server_error",
			msg:  "500 Internal Server Error: upstream timed out",
			want: false,
		},
		{
			name: "empty",
			msg:  "   ",
			want: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsUsageLimitText(tc.msg); got != tc.want {
				t.Fatalf("IsUsageLimitText() = %v, want %v; msg=%q", got, tc.want, tc.msg)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "cancelled", err: context.Canceled, want: KindCancelled},
		{name: "wrapped_cancelled", err: fmt.Errorf("turn failed: %w", context.Canceled), want: KindCancelled},
		{name: "missing_credential", err: ErrMissingCredential, want: KindUnauthorized},
		{name: "quota_text", err: errors.New("openai api error: quota exceeded"), want: KindUsageLimit},
		{name: "generic", err: errors.New("connection reset by peer"), want: KindUpstream},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Fatalf("Classify(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}

func TestNewClientRequiresCredential(t *testing.T) {
	if _, err := NewClient(Options{Model: "gpt-4o-mini"}); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if _, err := NewClient(Options{APIKey: "sk-test"}); err == nil {
		t.Fatal("expected error for missing model")
	}
	client, err := NewClient(Options{APIKey: "sk-test", Model: "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := client.CheckCredential(); err != nil {
		t.Fatalf("CheckCredential: %v", err)
	}
}

func TestParseProvider(t *testing.T) {
	cases := []struct {
		raw     string
		want    Provider
		wantErr bool
	}{
		{raw: "", want: ProviderOpenAI},
		{raw: "openai", want: ProviderOpenAI},
		{raw: "openrouter", want: ProviderOpenAI},
		{raw: "Anthropic", want: ProviderAnthropic},
		{raw: "anthropics", want: ProviderAnthropic},
		{raw: "bedrock", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseProvider(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseProvider(%q): expected error", tc.raw)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("ParseProvider(%q) = %q, %v; want %q", tc.raw, got, err, tc.want)
		}
	}
}
