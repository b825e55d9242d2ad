// Package debate runs the ordered multi-agent pipeline for one question:
// building each turn's context from prior finished turns, streaming each
// turn's completion, and emitting the multiplexed wire events.
package debate

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleBlue      Role = "blue"
	RoleRed       Role = "red"
	RoleModerator Role = "moderator"
	RoleAssistant Role = "assistant"
)

type Mode string

const (
	// ModeDebate runs blue/red for N rounds followed by a moderator verdict.
	ModeDebate Mode = "debate"
	// ModeChat runs a single assistant turn.
	ModeChat Mode = "chat"
)

func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(ModeDebate):
		return ModeDebate, nil
	case string(ModeChat):
		return ModeChat, nil
	default:
		return "", fmt.Errorf("unsupported mode %q (supported: %q, %q)", raw, ModeDebate, ModeChat)
	}
}

type TurnStatus string

const (
	TurnPending TurnStatus = "pending"
	TurnActive  TurnStatus = "active"
	TurnDone    TurnStatus = "done"
	TurnErrored TurnStatus = "errored"
)

// Turn is one agent's contribution to one run. It is created when the
// scheduler begins it and finalized exactly once.
type Turn struct {
	Role      Role       `json:"role"`
	Round     int        `json:"round,omitempty"`
	IsVerdict bool       `json:"isVerdict,omitempty"`
	Reasoning string     `json:"reasoning,omitempty"`
	Content   string     `json:"content,omitempty"`
	Status    TurnStatus `json:"status"`
}

// TurnSpec identifies a planned turn before it runs.
type TurnSpec struct {
	Role      Role
	Round     int
	IsVerdict bool
}

// Sides returns the adversarial roles in speaking order.
func Sides() []Role {
	return []Role{RoleBlue, RoleRed}
}

// Plan expands a mode and round count into the fixed turn order.
// Debate mode yields 2*rounds adversarial turns plus one verdict turn.
func Plan(mode Mode, rounds int) []TurnSpec {
	if mode == ModeChat {
		return []TurnSpec{{Role: RoleAssistant}}
	}
	if rounds < 1 {
		rounds = 1
	}
	specs := make([]TurnSpec, 0, 2*rounds+1)
	for round := 1; round <= rounds; round++ {
		for _, side := range Sides() {
			specs = append(specs, TurnSpec{Role: side, Round: round})
		}
	}
	specs = append(specs, TurnSpec{Role: RoleModerator, IsVerdict: true})
	return specs
}

// ExpectedTurns is the deterministic total turn count for a run; the client
// derives its loading progress from it.
func ExpectedTurns(mode Mode, rounds int) int {
	return len(Plan(mode, rounds))
}
