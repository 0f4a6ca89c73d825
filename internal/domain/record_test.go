package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestDecode_LegacyRecordNormalizesToTwoTurns(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	doc := PitchDocument{ID: "p1", UID: "u1", Idea: "X", Response: "Y", LandingCode: "Z", CreatedAt: created}

	rec := Decode(doc)
	require.IsType(t, LegacyRecord{}, rec)

	s := doc.Session()
	require.Len(t, s.Turns, 2)
	require.Equal(t, RoleUser, s.Turns[0].Role)
	require.Equal(t, "X", s.Turns[0].Text)
	require.False(t, s.Turns[0].IsLatestAnswer)
	require.Nil(t, s.Turns[0].LandingMarkup)

	require.Equal(t, RoleAssistant, s.Turns[1].Role)
	require.Equal(t, "Y", s.Turns[1].Text)
	require.NotNil(t, s.Turns[1].LandingMarkup)
	require.Equal(t, "Z", *s.Turns[1].LandingMarkup)
	require.True(t, s.Turns[1].IsLatestAnswer)
	require.Equal(t, created, s.Turns[1].CreatedAt)
}

func TestNormalize_LegacyIDsAreStable(t *testing.T) {
	rec := LegacyRecord{Idea: "X", Response: "Y"}
	first := Normalize(rec, "p1", time.Time{})
	second := Normalize(rec, "p1", time.Time{})
	require.Equal(t, first[0].ID, second[0].ID)
	require.Equal(t, first[1].ID, second[1].ID)
	require.Equal(t, "p1-0", first[0].ID)
	require.Equal(t, "p1-1", first[1].ID)
	require.Nil(t, first[1].LandingMarkup, "empty landing code must not produce markup")
}

func TestDecode_TurnsWinOverDerivedFields(t *testing.T) {
	turns := []Turn{
		{ID: "a", Role: RoleUser, Text: "idea"},
		{ID: "b", Role: RoleAssistant, Text: "pitch", IsLatestAnswer: true},
	}
	doc := NewDocument("u1", turns, ToneFun, time.Now())
	require.Equal(t, "pitch", doc.Response)

	rec := Decode(doc)
	require.IsType(t, TurnsRecord{}, rec)
	require.Equal(t, turns, Normalize(rec, "ignored", time.Time{}))
}

func TestDecode_EmptyDocument(t *testing.T) {
	s := PitchDocument{ID: "p1"}.Session()
	require.Empty(t, s.Turns)
	require.Equal(t, ToneFormal, s.Tone)
}

func TestNormalize_ClonesLandingMarkup(t *testing.T) {
	turns := []Turn{{ID: "a", Role: RoleAssistant, LandingMarkup: strPtr("<html></html>")}}
	out := Normalize(TurnsRecord{Turns: turns}, "p1", time.Time{})
	*out[0].LandingMarkup = "changed"
	require.Equal(t, "<html></html>", *turns[0].LandingMarkup)
}

func TestSessionTitle(t *testing.T) {
	s := Session{Turns: []Turn{{Role: RoleUser, Text: "A fitness app for seniors"}}}
	require.Equal(t, "A fitness app for seniors", s.Title())

	s.DisplayName = "  My pitch "
	require.Equal(t, "My pitch", s.Title())

	long := Session{Turns: []Turn{{Role: RoleUser, Text: strings.Repeat("word ", 20)}}}
	title := long.Title()
	require.True(t, strings.HasSuffix(title, "…"))
	require.LessOrEqual(t, len([]rune(title)), titleRunes+1)

	require.Equal(t, "Untitled pitch", Session{}.Title())
}

func TestParseTone(t *testing.T) {
	tone, err := ParseTone("")
	require.NoError(t, err)
	require.Equal(t, ToneFormal, tone)

	tone, err = ParseTone("fun")
	require.NoError(t, err)
	require.Equal(t, ToneFun, tone)

	_, err = ParseTone("sarcastic")
	require.ErrorIs(t, err, ErrUnknownTone)
}
