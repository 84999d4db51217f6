package httpapi

import (
	"time"

	"github.com/oapi-codegen/nullable"

	"github.com/Voupi/sistema-gestion-addag/internal/app/applicants"
	"github.com/Voupi/sistema-gestion-addag/internal/app/batch"
	"github.com/Voupi/sistema-gestion-addag/internal/app/lifecycle"
	"github.com/Voupi/sistema-gestion-addag/internal/domain"
)

const dateLayout = "2006-01-02"

type ErrorResponse struct {
	Error struct {
		Code      string                            `json:"code"`
		Message   string                            `json:"message"`
		Details   nullable.Nullable[map[string]any] `json:"details,omitempty"`
		RequestId nullable.Nullable[string]         `json:"requestId,omitempty"`
	} `json:"error"`
}

type Record struct {
	ID             string                    `json:"id"`
	Kind           string                    `json:"kind"`
	FirstNames     string                    `json:"firstNames"`
	LastNames      string                    `json:"lastNames"`
	DocumentType   string                    `json:"documentType"`
	DocumentNumber string                    `json:"documentNumber"`
	BirthDate      string                    `json:"birthDate"`
	Phone          string                    `json:"phone"`
	Department     string                    `json:"department"`
	Email          nullable.Nullable[string] `json:"email"`
	PhotoURL       string                    `json:"photoUrl"`
	PhotoURLFinal  nullable.Nullable[string] `json:"photoUrlFinal"`
	PrintPhotoURL  string                    `json:"printPhotoUrl"`
	State          string                    `json:"state"`
	Role           nullable.Nullable[string] `json:"role,omitempty"`
	CardNumber     nullable.Nullable[string] `json:"cardNumber"`
	CreatedAt      time.Time                 `json:"createdAt"`
	UpdatedAt      time.Time                 `json:"updatedAt"`
}

type RecordResponse struct {
	Record Record `json:"record"`
}

type RecordListResponse struct {
	Records []Record `json:"records"`
	Count   int      `json:"count"`
}

type StatsResponse struct {
	Kind    string         `json:"kind"`
	Counts  map[string]int `json:"counts"`
	InQueue int            `json:"inQueue"`
	Total   int            `json:"total"`
}

// UpdateRecordRequest is a partial update: omitted fields are kept and only
// email may be null.
type UpdateRecordRequest struct {
	FirstNames     nullable.Nullable[string] `json:"firstNames,omitempty"`
	LastNames      nullable.Nullable[string] `json:"lastNames,omitempty"`
	DocumentType   nullable.Nullable[string] `json:"documentType,omitempty"`
	DocumentNumber nullable.Nullable[string] `json:"documentNumber,omitempty"`
	Phone          nullable.Nullable[string] `json:"phone,omitempty"`
	Department     nullable.Nullable[string] `json:"department,omitempty"`
	Email          nullable.Nullable[string] `json:"email,omitempty"`
	Role           nullable.Nullable[string] `json:"role,omitempty"`
}

type TransitionResponse struct {
	Record      Record                    `json:"record"`
	From        string                    `json:"from"`
	Changed     bool                      `json:"changed"`
	Notified    bool                      `json:"notified"`
	NotifyError nullable.Nullable[string] `json:"notifyError,omitempty"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type Rejection struct {
	ID             string                    `json:"id"`
	RecordID       string                    `json:"recordId"`
	Origin         string                    `json:"origin"`
	Reason         string                    `json:"reason"`
	FirstNames     string                    `json:"firstNames"`
	LastNames      string                    `json:"lastNames"`
	DocumentType   string                    `json:"documentType"`
	DocumentNumber string                    `json:"documentNumber"`
	Email          nullable.Nullable[string] `json:"email"`
	Phone          string                    `json:"phone"`
	Department     string                    `json:"department"`
	PhotoURL       string                    `json:"photoUrl"`
	SubmittedAt    time.Time                 `json:"submittedAt"`
	RejectedAt     time.Time                 `json:"rejectedAt"`
}

type RejectionResponse struct {
	Rejection Rejection `json:"rejection"`
}

type RejectionListResponse struct {
	Rejections []Rejection `json:"rejections"`
}

type CropRequest struct {
	X        int `json:"x"`
	Y        int `json:"y"`
	Width    int `json:"width"`
	Height   int `json:"height"`
	Rotation int `json:"rotation"`
}

type BatchRequest struct {
	Op     string   `json:"op"`
	States []string `json:"states,omitempty"`
	Q      string   `json:"q,omitempty"`
	Notify *bool    `json:"notify,omitempty"`
}

type BatchFailure struct {
	RecordID string `json:"recordId"`
	Error    string `json:"error"`
}

type BatchResponse struct {
	Operation     string         `json:"operation"`
	NoOp          bool           `json:"noOp"`
	Matched       int            `json:"matched"`
	Affected      int            `json:"affected"`
	Skipped       int            `json:"skipped"`
	Notified      int            `json:"notified"`
	NotifyFailed  int            `json:"notifyFailed"`
	NotifySkipped int            `json:"notifySkipped"`
	AffectedIDs   []string       `json:"affectedIds"`
	Failures      []BatchFailure `json:"failures"`
}

func nullableString(p *string) nullable.Nullable[string] {
	if p == nil {
		return nullable.NewNullNullable[string]()
	}
	return nullable.NewNullableWithValue(*p)
}

func optionalStringFromNullable(n nullable.Nullable[string]) applicants.Optional[string] {
	if !n.IsSpecified() {
		return applicants.Unspecified[string]()
	}
	if n.IsNull() {
		return applicants.Null[string]()
	}
	v, _ := n.Get()
	return applicants.Some(v)
}

func recordFromDomain(r domain.ApplicantRecord) Record {
	out := Record{
		ID:             string(r.ID),
		Kind:           r.Kind.Slug(),
		FirstNames:     r.FirstNames,
		LastNames:      r.LastNames,
		DocumentType:   string(r.DocumentType),
		DocumentNumber: r.DocumentNumber,
		Phone:          r.Phone,
		Department:     r.Department,
		Email:          nullableString(r.Email),
		PhotoURL:       r.PhotoURL,
		PhotoURLFinal:  nullableString(r.PhotoURLFinal),
		PrintPhotoURL:  r.PrintPhotoURL(),
		State:          string(r.State),
		CardNumber:     nullableString(r.CardNumber),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if !r.BirthDate.IsZero() {
		out.BirthDate = r.BirthDate.Format(dateLayout)
	}
	if r.Role != nil {
		out.Role = nullable.NewNullableWithValue(string(*r.Role))
	}
	return out
}

func recordsFromDomain(rs []domain.ApplicantRecord) []Record {
	out := make([]Record, 0, len(rs))
	for _, r := range rs {
		out = append(out, recordFromDomain(r))
	}
	return out
}

func rejectionFromDomain(r domain.RejectionRecord) Rejection {
	return Rejection{
		ID:             string(r.ID),
		RecordID:       string(r.RecordID),
		Origin:         r.Origin.Slug(),
		Reason:         r.Reason,
		FirstNames:     r.FirstNames,
		LastNames:      r.LastNames,
		DocumentType:   string(r.DocumentType),
		DocumentNumber: r.DocumentNumber,
		Email:          nullableString(r.Email),
		Phone:          r.Phone,
		Department:     r.Department,
		PhotoURL:       r.PhotoURL,
		SubmittedAt:    r.SubmittedAt,
		RejectedAt:     r.RejectedAt,
	}
}

func statsFromApp(s applicants.Stats) StatsResponse {
	counts := make(map[string]int, len(domain.States)+1)
	for _, st := range domain.States {
		counts[string(st)] = s.Counts[st]
	}
	counts[domain.FilterInQueue] = s.InQueue
	return StatsResponse{Kind: s.Kind.Slug(), Counts: counts, InQueue: s.InQueue, Total: s.Total}
}

func transitionFromApp(res lifecycle.Result) TransitionResponse {
	out := TransitionResponse{
		Record:   recordFromDomain(res.Record),
		From:     string(res.From),
		Changed:  res.Changed,
		Notified: res.Notified,
	}
	if res.NotifyErr != nil {
		out.NotifyError = nullable.NewNullableWithValue(res.NotifyErr.Error())
	}
	return out
}

func batchFromApp(res batch.Result) BatchResponse {
	out := BatchResponse{
		Operation:     string(res.Operation),
		NoOp:          res.NoOp,
		Matched:       res.Matched,
		Affected:      res.Affected,
		Skipped:       res.Skipped,
		Notified:      res.Notified,
		NotifyFailed:  res.NotifyFailed,
		NotifySkipped: res.NotifySkipped,
		AffectedIDs:   make([]string, 0, len(res.AffectedIDs)),
		Failures:      make([]BatchFailure, 0, len(res.Failures)),
	}
	for _, id := range res.AffectedIDs {
		out.AffectedIDs = append(out.AffectedIDs, string(id))
	}
	for _, f := range res.Failures {
		out.Failures = append(out.Failures, BatchFailure{RecordID: string(f.RecordID), Error: f.Err.Error()})
	}
	return out
}
