package debate

import (
	"fmt"
	"strings"

	"debate_arena/internal/llm"
)

// visibleRoles maps each speaking role to the prior-turn roles it may read.
// The moderator sees the full exchange; neither debater sees the verdict,
// and the chat assistant carries no debate history.
var visibleRoles = map[Role][]Role{
	RoleBlue:      {RoleBlue, RoleRed},
	RoleRed:       {RoleBlue, RoleRed},
	RoleModerator: {RoleBlue, RoleRed},
	RoleAssistant: {},
}

var rolePrompts = map[Role]string{
	RoleBlue: "You are the blue debater. Argue in favor of the position in the question. " +
		"Be concrete and persuasive, rebut the red debater's latest points when there are any, " +
		"and never concede the debate.",
	RoleRed: "You are the red debater. Argue against the position in the question. " +
		"Be concrete and persuasive, rebut the blue debater's latest points, " +
		"and never concede the debate.",
	RoleModerator: "You are the moderator. Read the full exchange between the blue and red debaters, " +
		"weigh the strength of their arguments, and deliver a clear final verdict with a short rationale. " +
		"Do not introduce new arguments of your own.",
	RoleAssistant: "You are a helpful assistant. Answer the user's question directly and accurately.",
}

// ContextBuilder assembles the message list for one turn from the question,
// the per-side research sources, and the turns finished so far.
type ContextBuilder struct {
	Question string
	Sources  map[Role][]string
}

func (b *ContextBuilder) Messages(spec TurnSpec, finished []Turn) []llm.Message {
	var body strings.Builder
	fmt.Fprintf(&body, "Question: %s\n", b.Question)

	if sources := b.Sources[spec.Role]; len(sources) > 0 {
		body.WriteString("\nBackground sources for your side:\n")
		for _, src := range sources {
			fmt.Fprintf(&body, "- %s\n", src)
		}
	}

	visible := visibleRoles[spec.Role]
	for _, turn := range finished {
		if turn.Status != TurnDone || !roleVisible(visible, turn.Role) {
			continue
		}
		if turn.Round > 0 {
			fmt.Fprintf(&body, "\n[%s, round %d]\n%s\n", turn.Role, turn.Round, turn.Content)
		} else {
			fmt.Fprintf(&body, "\n[%s]\n%s\n", turn.Role, turn.Content)
		}
	}

	switch spec.Role {
	case RoleModerator:
		body.WriteString("\nDeliver your verdict now.\n")
	case RoleBlue, RoleRed:
		fmt.Fprintf(&body, "\nIt is your turn to speak for round %d.\n", spec.Round)
	}

	return []llm.Message{
		{Role: "system", Content: rolePrompts[spec.Role]},
		{Role: "user", Content: body.String()},
	}
}

func roleVisible(visible []Role, role Role) bool {
	for _, candidate := range visible {
		if candidate == role {
			return true
		}
	}
	return false
}
