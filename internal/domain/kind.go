package domain

import (
	"fmt"
	"strings"
)

// RecordKind selects which active collection a record lives in. The two kinds
// share one shape; the kind decides the collection name, the card-number
// sequence, the photo naming prefix and whether a role is carried.
type RecordKind string

const (
	KindMembership RecordKind = "MEMBERSHIP"
	KindParking    RecordKind = "PARKING"
)

// RejectionCollection is the archive collection shared by both kinds.
const RejectionCollection = "rejected_archive"

// Kinds lists every record kind in a stable order.
var Kinds = []RecordKind{KindMembership, KindParking}

// ParseRecordKind accepts the canonical value, the URL slug, or the legacy
// Spanish mode names (MIEMBRO, PARQUEO).
func ParseRecordKind(s string) (RecordKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MEMBERSHIP", "MIEMBRO", "MIEMBROS":
		return KindMembership, nil
	case "PARKING", "PARQUEO", "PARQUEOS":
		return KindParking, nil
	default:
		return "", fmt.Errorf("unknown record kind %q", s)
	}
}

func (k RecordKind) Valid() bool {
	return k == KindMembership || k == KindParking
}

// Slug is the lower-case form used in URLs and CLI arguments.
func (k RecordKind) Slug() string {
	return strings.ToLower(string(k))
}

// Collection is the storage collection (table) holding active records of this kind.
func (k RecordKind) Collection() string {
	switch k {
	case KindParking:
		return "parking_records"
	default:
		return "membership_records"
	}
}

// SequenceName names the card-number counter consumed on approval.
func (k RecordKind) SequenceName() string {
	switch k {
	case KindParking:
		return "parking_card_seq"
	default:
		return "membership_card_seq"
	}
}

// HasRole reports whether records of this kind carry a Role.
func (k RecordKind) HasRole() bool {
	return k == KindMembership
}

// CardPrefix is prepended to formatted card numbers.
func (k RecordKind) CardPrefix() string {
	if k == KindParking {
		return "P"
	}
	return "M"
}

// PhotoPrefix is prepended to blob names so both kinds can share one bucket.
func (k RecordKind) PhotoPrefix() string {
	if k == KindParking {
		return "P_"
	}
	return ""
}

// FormatCardNumber renders a sequence value as a printable card number, e.g. M-000042.
func FormatCardNumber(k RecordKind, n int64) string {
	return fmt.Sprintf("%s-%06d", k.CardPrefix(), n)
}
