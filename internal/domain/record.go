package domain

import (
	"strings"
	"time"
)

// DocumentType is the kind of identity document a record was submitted with.
type DocumentType string

const (
	DocumentDPI      DocumentType = "DPI"
	DocumentPassport DocumentType = "PASAPORTE"
)

func ParseDocumentType(s string) (DocumentType, bool) {
	switch DocumentType(strings.ToUpper(strings.TrimSpace(s))) {
	case DocumentDPI, "":
		return DocumentDPI, true
	case DocumentPassport, "PASSPORT":
		return DocumentPassport, true
	default:
		return "", false
	}
}

// Role classifies a membership card holder. Parking records carry no role.
type Role string

const (
	RoleAthlete      Role = "ATHLETE"
	RoleCoach        Role = "COACH"
	RoleDirector     Role = "DIRECTOR"
	RoleCollaborator Role = "COLLABORATOR"
	RoleReferee      Role = "REFEREE"
)

var Roles = []Role{RoleAthlete, RoleCoach, RoleDirector, RoleCollaborator, RoleReferee}

// ParseRole accepts the canonical values and the Spanish labels printed on cards.
func ParseRole(s string) (Role, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ATHLETE", "ATLETA":
		return RoleAthlete, true
	case "COACH", "ENTRENADOR":
		return RoleCoach, true
	case "DIRECTOR", "DIRECTIVO":
		return RoleDirector, true
	case "COLLABORATOR", "COLABORADOR":
		return RoleCollaborator, true
	case "REFEREE", "ARBITRO", "ÁRBITRO":
		return RoleReferee, true
	default:
		return "", false
	}
}

// ApplicantRecord is an application for a membership card or a parking pass.
type ApplicantRecord struct {
	ID   RecordID
	Kind RecordKind

	FirstNames     string
	LastNames      string
	DocumentType   DocumentType
	DocumentNumber string
	BirthDate      time.Time // date-only semantics
	Phone          string
	Department     string
	// Email is optional for membership submissions; nil means unset.
	Email *string

	// PhotoURL is the originally uploaded image.
	PhotoURL string
	// PhotoURLFinal is the cropped print-ready image; nil until the first crop.
	PhotoURLFinal *string

	State State
	// Role is set for membership records only.
	Role *Role
	// CardNumber is assigned on approval.
	CardNumber *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r ApplicantRecord) FullName() string {
	return NormalizeHumanName(r.FirstNames + " " + r.LastNames)
}

// PrintPhotoURL is the image that goes on the card: the cropped artifact when
// one exists, the original upload otherwise.
func (r ApplicantRecord) PrintPhotoURL() string {
	if r.PhotoURLFinal != nil && *r.PhotoURLFinal != "" {
		return *r.PhotoURLFinal
	}
	return r.PhotoURL
}

// EmailAddress returns the email or "" when unset.
func (r ApplicantRecord) EmailAddress() string {
	if r.Email == nil {
		return ""
	}
	return strings.TrimSpace(*r.Email)
}

// Clone returns a deep copy so callers never share pointer fields with a store.
func (r ApplicantRecord) Clone() ApplicantRecord {
	out := r
	out.Email = cloneStringPtr(r.Email)
	out.PhotoURLFinal = cloneStringPtr(r.PhotoURLFinal)
	out.CardNumber = cloneStringPtr(r.CardNumber)
	if r.Role != nil {
		v := *r.Role
		out.Role = &v
	}
	return out
}

// MatchesSearch is the operator text search: every whitespace separated term
// must appear (case-insensitive) in the names, the document number or the email.
func (r ApplicantRecord) MatchesSearch(query string) bool {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return true
	}
	hay := strings.ToLower(strings.Join([]string{
		r.FirstNames, r.LastNames, r.DocumentNumber, r.EmailAddress(),
	}, " "))
	for _, t := range terms {
		if !strings.Contains(hay, t) {
			return false
		}
	}
	return true
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
