package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// Tone is the voice requested from the generator.
type Tone string

const (
	ToneFormal Tone = "Formal"
	ToneFun    Tone = "Fun"
)

var ErrUnknownTone = errors.New("domain: unknown tone")

// ParseTone accepts the tone names case-insensitively. An empty value
// selects ToneFormal.
func ParseTone(s string) (Tone, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "formal":
		return ToneFormal, nil
	case "fun":
		return ToneFun, nil
	default:
		return "", ErrUnknownTone
	}
}

// Turn is one message in a conversation.
type Turn struct {
	ID             string    `json:"id"`
	Role           Role      `json:"role"`
	Text           string    `json:"text"`
	LandingMarkup  *string   `json:"landingMarkup,omitempty"`
	IsLatestAnswer bool      `json:"isLatestAnswer"`
	CreatedAt      time.Time `json:"createdAt"`
}

// HasLanding reports whether the turn carries landing page markup.
func (t Turn) HasLanding() bool {
	return t.LandingMarkup != nil && *t.LandingMarkup != ""
}

// Session is one saved conversation.
type Session struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Turns       []Turn    `json:"turns"`
	DisplayName string    `json:"displayName,omitempty"`
	Tone        Tone      `json:"tone"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	// Version is the stored write count the turns were read at.
	Version int64 `json:"version"`
}

const titleRunes = 40

// Title returns the user-assigned name or a truncation of the first user turn.
func (s Session) Title() string {
	if name := strings.TrimSpace(s.DisplayName); name != "" {
		return name
	}
	idea := strings.Join(strings.Fields(s.Idea()), " ")
	if idea == "" {
		return "Untitled pitch"
	}
	if utf8.RuneCountInString(idea) <= titleRunes {
		return idea
	}
	r := []rune(idea)
	return strings.TrimSpace(string(r[:titleRunes])) + "…"
}

// Idea returns the text of the first user turn.
func (s Session) Idea() string {
	for _, t := range s.Turns {
		if t.Role == RoleUser {
			return t.Text
		}
	}
	return ""
}

// LatestAnswer returns the turn currently marked as the latest answer.
func (s Session) LatestAnswer() (Turn, bool) {
	return LatestAnswer(s.Turns)
}

// LatestAnswer scans turns from the end for the latest-answer marker.
func LatestAnswer(turns []Turn) (Turn, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].IsLatestAnswer {
			return turns[i], true
		}
	}
	return Turn{}, false
}

// CloneTurns deep-copies a turn slice, including landing markup pointers.
func CloneTurns(turns []Turn) []Turn {
	if turns == nil {
		return nil
	}
	out := make([]Turn, len(turns))
	for i, t := range turns {
		if t.LandingMarkup != nil {
			m := *t.LandingMarkup
			t.LandingMarkup = &m
		}
		out[i] = t
	}
	return out
}
