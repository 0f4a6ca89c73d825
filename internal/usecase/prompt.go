package usecase

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"pitchcraft/internal/conversation"
	"pitchcraft/internal/domain"
)

const landingImage = "https://picsum.photos/seed/startup/800/400"

var pitchSections = []string{
	"# Startup Name",
	"## Tagline",
	"### Elevator Pitch",
	"#### Problem",
	"#### Solution",
	"#### Target Audience",
	"#### Key Features",
	"#### Monetization",
	"### Landing Page Content",
}

// buildPitchPrompt selects the prompt for the cycle: the full pitch for a
// first turn or a replayed edit, the follow-up prompt otherwise.
func buildPitchPrompt(c conversation.Cycle, historyBudget int) string {
	if c.Kind == conversation.PromptFollowUp && !c.Replay {
		return buildFollowUpPrompt(c.History, c.Request, c.Tone, historyBudget)
	}
	return buildFullPitchPrompt(c.Request, c.Tone)
}

func buildFullPitchPrompt(idea string, tone domain.Tone) string {
	return strings.Join([]string{
		"Startup Idea: " + strings.TrimSpace(idea),
		"Tone: " + string(tone),
		"",
		"Return a well-structured startup pitch in clean **Markdown** format with these sections:",
		strings.Join(pitchSections, "\n"),
		"Make sure headings are bold and formatted with proper markdown syntax.",
	}, "\n")
}

func buildFollowUpPrompt(history []domain.Turn, request string, tone domain.Tone, budget int) string {
	return strings.Join([]string{
		"You are refining a startup pitch in an ongoing conversation.",
		"Preserve the context of the conversation below and apply the new request to the most recent pitch.",
		"Tone: " + string(tone),
		"Answer in clean **Markdown** format.",
		"",
		"Conversation so far:",
		serializeHistory(history, budget),
		"",
		"New request:",
		strings.TrimSpace(request),
	}, "\n")
}

// serializeHistory renders turns as role-prefixed lines. When the result
// would exceed budget runes the oldest lines are dropped; the newest line is
// always kept.
func serializeHistory(history []domain.Turn, budget int) string {
	lines := make([]string, 0, len(history))
	used := 0
	for i := len(history) - 1; i >= 0; i-- {
		line := historyLine(history[i])
		if line == "" {
			continue
		}
		n := utf8.RuneCountInString(line) + 1
		if budget > 0 && len(lines) > 0 && used+n > budget {
			break
		}
		used += n
		lines = append(lines, line)
	}
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return strings.Join(lines, "\n")
}

func historyLine(t domain.Turn) string {
	text := strings.TrimSpace(t.Text)
	if text == "" {
		return ""
	}
	if t.Role == domain.RoleUser {
		return "User: " + text
	}
	return "Assistant: " + text
}

func buildLandingPrompt(idea string) string {
	return strings.Join([]string{
		"Based on this startup idea:",
		strings.TrimSpace(idea),
		"",
		"Generate a modern, responsive **landing page** using **HTML + CSS only** (no frameworks).",
		"Sections: Hero, About, Problem, Solution, Features, CTA.",
		fmt.Sprintf("Include placeholder images using %q.", landingImage),
		"Use a clean layout, nice font, button hover effects, and soft color palette.",
		"Return full code wrapped in <html>, <style>, and <body> tags.",
	}, "\n")
}
