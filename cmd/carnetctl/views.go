package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Voupi/sistema-gestion-addag/internal/app/batch"
	"github.com/Voupi/sistema-gestion-addag/internal/app/lifecycle"
	"github.com/Voupi/sistema-gestion-addag/internal/domain"
)

type recordView struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"`
	Name           string    `json:"name"`
	DocumentType   string    `json:"documentType"`
	DocumentNumber string    `json:"documentNumber"`
	Email          string    `json:"email,omitempty"`
	Phone          string    `json:"phone"`
	Department     string    `json:"department"`
	Role           string    `json:"role,omitempty"`
	State          string    `json:"state"`
	CardNumber     string    `json:"cardNumber,omitempty"`
	PhotoURL       string    `json:"photoUrl"`
	PrintPhotoURL  string    `json:"printPhotoUrl"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func newRecordView(r domain.ApplicantRecord) recordView {
	v := recordView{
		ID:             string(r.ID),
		Kind:           r.Kind.Slug(),
		Name:           r.FullName(),
		DocumentType:   string(r.DocumentType),
		DocumentNumber: r.DocumentNumber,
		Email:          r.EmailAddress(),
		Phone:          r.Phone,
		Department:     r.Department,
		State:          string(r.State),
		PhotoURL:       r.PhotoURL,
		PrintPhotoURL:  r.PrintPhotoURL(),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.Role != nil {
		v.Role = string(*r.Role)
	}
	if r.CardNumber != nil {
		v.CardNumber = *r.CardNumber
	}
	return v
}

func recordRows(recs []domain.ApplicantRecord) [][]string {
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		v := newRecordView(r)
		rows = append(rows, []string{v.ID, v.Name, v.DocumentNumber, v.State, dash(v.CardNumber), v.CreatedAt.Format("2006-01-02 15:04")})
	}
	return rows
}

var recordHeaders = []string{"ID", "Name", "Document", "State", "Card", "Submitted"}

type transitionView struct {
	Record      recordView `json:"record"`
	From        string     `json:"from"`
	Changed     bool       `json:"changed"`
	Notified    bool       `json:"notified"`
	NotifyError string     `json:"notifyError,omitempty"`
}

func newTransitionView(res lifecycle.Result) transitionView {
	v := transitionView{
		Record:   newRecordView(res.Record),
		From:     string(res.From),
		Changed:  res.Changed,
		Notified: res.Notified,
	}
	if res.NotifyErr != nil {
		v.NotifyError = res.NotifyErr.Error()
	}
	return v
}

type batchView struct {
	Operation     string   `json:"operation"`
	NoOp          bool     `json:"noOp"`
	Matched       int      `json:"matched"`
	Affected      int      `json:"affected"`
	Skipped       int      `json:"skipped"`
	Notified      int      `json:"notified"`
	NotifyFailed  int      `json:"notifyFailed"`
	NotifySkipped int      `json:"notifySkipped"`
	Failures      []string `json:"failures,omitempty"`
}

func newBatchView(res batch.Result) batchView {
	v := batchView{
		Operation:     string(res.Operation),
		NoOp:          res.NoOp,
		Matched:       res.Matched,
		Affected:      res.Affected,
		Skipped:       res.Skipped,
		Notified:      res.Notified,
		NotifyFailed:  res.NotifyFailed,
		NotifySkipped: res.NotifySkipped,
	}
	for _, f := range res.Failures {
		v.Failures = append(v.Failures, f.Error())
	}
	return v
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func itoa(n int) string { return strconv.Itoa(n) }

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func describeTransition(v transitionView) string {
	if !v.Changed {
		return fmt.Sprintf("%s: already %s, nothing to do", v.Record.ID, v.Record.State)
	}
	line := fmt.Sprintf("%s: %s -> %s", v.Record.ID, v.From, v.Record.State)
	if v.Record.CardNumber != "" {
		line += " card " + v.Record.CardNumber
	}
	if v.Notified {
		line += " (notified)"
	}
	if v.NotifyError != "" {
		line += " (notification failed: " + v.NotifyError + ")"
	}
	return line
}
