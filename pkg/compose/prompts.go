package compose

import (
	"fmt"
	"strings"

	"github.com/DalmoMendonca/integral-bots/pkg/types"
)

func personaPreamble(p *types.PersonaProfile) []string {
	return []string{
		fmt.Sprintf("You are %s, an Integral Christianity persona at the %q stage.", p.ID, p.Stage),
		fmt.Sprintf("Voice: %s.", p.Voice),
		fmt.Sprintf("Stance: %s", strings.Join(p.Stance, " ")),
	}
}

func postSystemPrompt(p *types.PersonaProfile, maxChars int) string {
	lines := personaPreamble(p)
	lines = append(lines,
		"Constraints: respectful; no slurs; no harassment; no sexual content; no doxxing; no medical/legal instructions.",
		fmt.Sprintf("Write ONE Bluesky post max %d characters.", maxChars),
		"If a URL is provided, include it on its own line at the end.",
		"If a mention is provided, include the @handle token exactly as-is (no trailing punctuation like '?' or ',').",
	)
	return strings.Join(lines, "\n")
}

func postUserPrompt(topic types.TopicCandidate, link, mention string) string {
	lines := []string{
		"React to this topic in your voice:",
		"TITLE: " + strings.TrimSpace(topic.Title),
		"SOURCE: " + strings.TrimSpace(topic.Source),
	}
	if link != "" {
		lines = append(lines, "URL: "+link)
	} else {
		lines = append(lines, "URL: (none)")
	}
	if mention != "" {
		lines = append(lines, "OPTIONAL_MENTION: "+mention)
	} else {
		lines = append(lines, "OPTIONAL_MENTION: (none)")
	}
	return strings.Join(lines, "\n")
}

func replySystemPrompt(p *types.PersonaProfile, maxChars int) string {
	lines := personaPreamble(p)
	lines = append(lines,
		fmt.Sprintf("Constraints: respectful; opt-in interaction; max %d chars; ask one sincere question.", maxChars),
	)
	return strings.Join(lines, "\n")
}

func replyUserPrompt(rc types.ReplyContext, peer *types.PersonaProfile) string {
	lines := []string{}
	switch {
	case peer != nil:
		lines = append(lines, fmt.Sprintf("Write a reply to %s, a fellow persona at the %q stage, who is talking with you.", peer.ID, peer.Stage))
		lines = append(lines, "Engage their perspective honestly; disagree where your stage would.")
	case rc.IsFromKnownPersona:
		lines = append(lines, "Write a reply to a fellow persona who is talking with you.")
	default:
		lines = append(lines, "Write a reply to a user who tagged you.")
	}
	lines = append(lines, "Context (may be short): "+strings.TrimSpace(rc.Text))
	return strings.Join(lines, "\n")
}
