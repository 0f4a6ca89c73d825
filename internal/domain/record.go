package domain

import "time"

// PitchDocument is the stored shape of one record in the "pitches"
// collection. Older records carry Idea/Response/LandingCode instead of Turns.
type PitchDocument struct {
	ID          string    `json:"id,omitempty"`
	UID         string    `json:"uid"`
	Idea        string    `json:"idea,omitempty"`
	Turns       []Turn    `json:"turns,omitempty"`
	Tone        Tone      `json:"tone,omitempty"`
	Response    string    `json:"response,omitempty"`
	LandingCode string    `json:"landingCode,omitempty"`
	CustomName  string    `json:"customName,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	// Version counts committed writes. Records written before versioning
	// read as 0.
	Version int64 `json:"version,omitempty"`
}

// InitialVersion is the version of a freshly created document. Every update
// increments it.
const InitialVersion int64 = 1

// Record is the decoded body of a PitchDocument: either a TurnsRecord or a
// LegacyRecord.
type Record interface {
	isRecord()
}

// TurnsRecord is the current shape: an ordered turn sequence.
type TurnsRecord struct {
	Turns []Turn
}

// LegacyRecord is the single-shot shape written before conversations existed.
type LegacyRecord struct {
	Idea        string
	Response    string
	LandingCode string
}

func (TurnsRecord) isRecord()  {}
func (LegacyRecord) isRecord() {}

// Decode classifies a stored document. A document with turns is a
// TurnsRecord even when the derived legacy fields are also present.
func Decode(doc PitchDocument) Record {
	if len(doc.Turns) > 0 {
		return TurnsRecord{Turns: doc.Turns}
	}
	if doc.Idea != "" || doc.Response != "" {
		return LegacyRecord{Idea: doc.Idea, Response: doc.Response, LandingCode: doc.LandingCode}
	}
	return TurnsRecord{}
}

// Normalize turns any record into a turn sequence. Legacy records become a
// user turn followed by an assistant turn marked as the latest answer; their
// ids derive from recordID so repeated loads agree.
func Normalize(rec Record, recordID string, createdAt time.Time) []Turn {
	switch r := rec.(type) {
	case TurnsRecord:
		return CloneTurns(r.Turns)
	case LegacyRecord:
		var markup *string
		if r.LandingCode != "" {
			code := r.LandingCode
			markup = &code
		}
		return []Turn{
			{ID: recordID + "-0", Role: RoleUser, Text: r.Idea, CreatedAt: createdAt},
			{ID: recordID + "-1", Role: RoleAssistant, Text: r.Response, LandingMarkup: markup, IsLatestAnswer: true, CreatedAt: createdAt},
		}
	default:
		return nil
	}
}

// Session decodes and normalizes the document into a Session.
func (doc PitchDocument) Session() Session {
	tone := doc.Tone
	if tone == "" {
		tone = ToneFormal
	}
	return Session{
		ID:          doc.ID,
		OwnerID:     doc.UID,
		Turns:       Normalize(Decode(doc), doc.ID, doc.CreatedAt),
		DisplayName: doc.CustomName,
		Tone:        tone,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
		Version:     doc.Version,
	}
}

// NewDocument builds the stored shape for a turn sequence. Response and
// LandingCode mirror the latest answer so single-shot readers keep working.
func NewDocument(ownerID string, turns []Turn, tone Tone, now time.Time) PitchDocument {
	doc := PitchDocument{
		UID:       ownerID,
		Turns:     CloneTurns(turns),
		Tone:      tone,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   InitialVersion,
	}
	doc.Response, doc.LandingCode = DerivedFields(turns)
	return doc
}

// DerivedFields returns the latest answer's text and landing markup, the
// values mirrored into the legacy response/landingCode fields.
func DerivedFields(turns []Turn) (response, landing string) {
	latest, ok := LatestAnswer(turns)
	if !ok {
		return "", ""
	}
	if latest.LandingMarkup != nil {
		landing = *latest.LandingMarkup
	}
	return latest.Text, landing
}
