package contracttest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Voupi/sistema-gestion-addag/internal/domain"
	blobstoreport "github.com/Voupi/sistema-gestion-addag/internal/ports/out/blobstore"
	idempotencyport "github.com/Voupi/sistema-gestion-addag/internal/ports/out/idempotency"
	recordstoreport "github.com/Voupi/sistema-gestion-addag/internal/ports/out/recordstore"
	sequenceport "github.com/Voupi/sistema-gestion-addag/internal/ports/out/sequence"
)

type CleanupFunc = func()

type RecordStoreFactory func(t *testing.T) (recordstoreport.Store, CleanupFunc)
type SequenceFactory func(t *testing.T) (sequenceport.Sequence, CleanupFunc)
type BlobStoreFactory func(t *testing.T) (blobstoreport.Store, CleanupFunc)
type IdemStoreFactory func(t *testing.T) (idempotencyport.Store, CleanupFunc)

// NewRecord builds a valid record with a fresh UUID. Document numbers are
// derived from seq so callers control uniqueness.
func NewRecord(kind domain.RecordKind, seq int, state domain.State, createdAt time.Time) domain.ApplicantRecord {
	email := fmt.Sprintf("applicant%d@example.com", seq)
	rec := domain.ApplicantRecord{
		ID:             domain.RecordID(uuid.NewString()),
		Kind:           kind,
		FirstNames:     fmt.Sprintf("Nombre%d", seq),
		LastNames:      fmt.Sprintf("Apellido%d", seq),
		DocumentType:   domain.DocumentDPI,
		DocumentNumber: fmt.Sprintf("%013d", 1000000000000+seq),
		BirthDate:      time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC),
		Phone:          "55550000",
		Department:     "Guatemala",
		Email:          &email,
		PhotoURL:       fmt.Sprintf("https://cdn.test/photos/%d.jpg", seq),
		State:          state,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
	if kind.HasRole() {
		role := domain.RoleAthlete
		rec.Role = &role
	}
	return rec
}

func RunRecordStore(t *testing.T, newStore RecordStoreFactory) {
	t.Helper()

	for _, kind := range domain.Kinds {
		kind := kind
		t.Run(kind.Slug(), func(t *testing.T) {
			runRecordStoreKind(t, newStore, kind)
		})
	}
}

func runRecordStoreKind(t *testing.T, newStore RecordStoreFactory, kind domain.RecordKind) {
	ctx := context.Background()
	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(10_000, 0).UTC()
	a := NewRecord(kind, 1, domain.StatePending, now)
	b := NewRecord(kind, 2, domain.StateApproved, now.Add(time.Minute))
	c := NewRecord(kind, 3, domain.StateReprint, now.Add(2*time.Minute))
	b.LastNames = "Zeta"
	c.LastNames = "Alfa"
	for _, r := range []domain.ApplicantRecord{a, b, c} {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert %s: %v", r.ID, err)
		}
	}

	got, err := store.Get(ctx, kind, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != a.ID || got.Kind != kind || got.State != domain.StatePending || got.DocumentNumber != a.DocumentNumber {
		t.Fatalf("unexpected record: %#v", got)
	}
	if got.EmailAddress() != a.EmailAddress() || got.PhotoURLFinal != nil || got.CardNumber != nil {
		t.Fatalf("optional fields not round-tripped: %#v", got)
	}
	if kind.HasRole() && (got.Role == nil || *got.Role != domain.RoleAthlete) {
		t.Fatalf("role not round-tripped: %#v", got.Role)
	}
	if !kind.HasRole() && got.Role != nil {
		t.Fatalf("parking record carries a role: %v", *got.Role)
	}
	if !got.CreatedAt.Equal(a.CreatedAt) {
		t.Fatalf("CreatedAt=%v, want %v", got.CreatedAt, a.CreatedAt)
	}

	if _, err := store.Get(ctx, kind, domain.RecordID(uuid.NewString())); !errors.Is(err, recordstoreport.ErrNotFound) {
		t.Fatalf("Get missing err=%v, want ErrNotFound", err)
	}

	// Document uniqueness within the collection.
	dup := NewRecord(kind, 1, domain.StatePending, now)
	if err := store.Insert(ctx, dup); !errors.Is(err, recordstoreport.ErrDuplicateDocument) {
		t.Fatalf("Insert duplicate err=%v, want ErrDuplicateDocument", err)
	}

	// Find: state filter, newest first.
	queue, err := store.Find(ctx, kind, recordstoreport.Filter{States: domain.QueueStates()}, recordstoreport.OrderNewestFirst)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(queue) != 2 || queue[0].ID != c.ID || queue[1].ID != b.ID {
		t.Fatalf("unexpected queue: %#v", ids(queue))
	}
	byName, err := store.Find(ctx, kind, recordstoreport.Filter{States: domain.QueueStates()}, recordstoreport.OrderLastName)
	if err != nil {
		t.Fatalf("Find by last name: %v", err)
	}
	if len(byName) != 2 || byName[0].ID != c.ID {
		t.Fatalf("unexpected last-name order: %#v", ids(byName))
	}
	all, err := store.Find(ctx, kind, recordstoreport.Filter{}, recordstoreport.OrderNewestFirst)
	if err != nil || len(all) != 3 {
		t.Fatalf("Find all: n=%d err=%v", len(all), err)
	}
	subset, err := store.Find(ctx, kind, recordstoreport.Filter{IDs: []domain.RecordID{a.ID, c.ID}}, recordstoreport.OrderNewestFirst)
	if err != nil || len(subset) != 2 {
		t.Fatalf("Find by IDs: n=%d err=%v", len(subset), err)
	}

	n, err := store.Count(ctx, kind, recordstoreport.Filter{States: domain.StateSet{domain.StatePending}})
	if err != nil || n != 1 {
		t.Fatalf("Count pending: n=%d err=%v", n, err)
	}
	counts, err := store.CountByState(ctx, kind)
	if err != nil {
		t.Fatalf("CountByState: %v", err)
	}
	if counts[domain.StatePending] != 1 || counts.InQueue() != 2 || counts.Total() != 3 {
		t.Fatalf("unexpected counts: %#v", counts)
	}

	// Conditional bulk write: only records whose current state is a key of Moves change.
	at := now.Add(time.Hour)
	changed, err := store.ApplyTransition(ctx, kind, recordstoreport.TransitionWrite{
		IDs: []domain.RecordID{a.ID, b.ID, c.ID},
		Moves: map[domain.State]domain.State{
			domain.StateApproved: domain.StatePrinted,
			domain.StateReprint:  domain.StatePrinted,
		},
		At: at,
	})
	if err != nil {
		t.Fatalf("ApplyTransition: %v", err)
	}
	if len(changed) != 2 {
		t.Fatalf("ApplyTransition changed=%d, want 2", len(changed))
	}
	for _, r := range changed {
		if r.State != domain.StatePrinted {
			t.Fatalf("changed record state=%s, want IMPRESO", r.State)
		}
	}
	if got, _ := store.Get(ctx, kind, a.ID); got.State != domain.StatePending {
		t.Fatalf("untargeted record moved to %s", got.State)
	}
	none, err := store.ApplyTransition(ctx, kind, recordstoreport.TransitionWrite{
		IDs:   []domain.RecordID{b.ID},
		Moves: map[domain.State]domain.State{domain.StateApproved: domain.StatePrinted},
		At:    at,
	})
	if err != nil || len(none) != 0 {
		t.Fatalf("stale ApplyTransition changed=%d err=%v, want 0", len(none), err)
	}

	// Approval is conditional on PENDIENTE.
	card := domain.FormatCardNumber(kind, 7)
	approved, err := store.ApplyApproval(ctx, kind, a.ID, card, at)
	if err != nil {
		t.Fatalf("ApplyApproval: %v", err)
	}
	if approved.State != domain.StateApproved || approved.CardNumber == nil || *approved.CardNumber != card {
		t.Fatalf("unexpected approval: %#v", approved)
	}
	if _, err := store.ApplyApproval(ctx, kind, a.ID, card, at); !errors.Is(err, recordstoreport.ErrStateConflict) {
		t.Fatalf("second ApplyApproval err=%v, want ErrStateConflict", err)
	}

	// Details patch, including the derived photo and a document clash.
	final := "https://cdn.test/photos/final.jpg"
	newPhone := "44443333"
	patched, err := store.UpdateDetails(ctx, kind, a.ID, recordstoreport.DetailsPatch{
		Phone:         &newPhone,
		PhotoURLFinal: &final,
		ClearEmail:    true,
		UpdatedAt:     &at,
	})
	if err != nil {
		t.Fatalf("UpdateDetails: %v", err)
	}
	if patched.Phone != newPhone || patched.PhotoURLFinal == nil || *patched.PhotoURLFinal != final || patched.Email != nil {
		t.Fatalf("unexpected patch result: %#v", patched)
	}
	if patched.State != domain.StateApproved {
		t.Fatalf("UpdateDetails touched state: %s", patched.State)
	}
	clash := b.DocumentNumber
	if _, err := store.UpdateDetails(ctx, kind, a.ID, recordstoreport.DetailsPatch{DocumentNumber: &clash}); !errors.Is(err, recordstoreport.ErrDuplicateDocument) {
		t.Fatalf("UpdateDetails clash err=%v, want ErrDuplicateDocument", err)
	}
	if _, err := store.UpdateDetails(ctx, kind, domain.RecordID(uuid.NewString()), recordstoreport.DetailsPatch{Phone: &newPhone}); !errors.Is(err, recordstoreport.ErrNotFound) {
		t.Fatalf("UpdateDetails missing err=%v, want ErrNotFound", err)
	}

	// Reject moves the record into the archive and frees the document number.
	reason := "  Foto borrosa; favor de repetir.  "
	rj := domain.NewRejection(domain.RejectionID(uuid.NewString()), patched, reason, at)
	if err := store.Reject(ctx, kind, a.ID, rj); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if _, err := store.Get(ctx, kind, a.ID); !errors.Is(err, recordstoreport.ErrNotFound) {
		t.Fatalf("rejected record still active: err=%v", err)
	}
	archived, err := store.ListRejections(ctx, kind)
	if err != nil {
		t.Fatalf("ListRejections: %v", err)
	}
	if len(archived) != 1 || archived[0].Origin != kind || archived[0].Reason != reason || archived[0].RecordID != a.ID {
		t.Fatalf("unexpected archive: %#v", archived)
	}
	if archived[0].DocumentNumber != a.DocumentNumber {
		t.Fatalf("archive document=%q, want %q", archived[0].DocumentNumber, a.DocumentNumber)
	}
	if err := store.Reject(ctx, kind, a.ID, rj); !errors.Is(err, recordstoreport.ErrNotFound) {
		t.Fatalf("second Reject err=%v, want ErrNotFound", err)
	}
	resubmit := NewRecord(kind, 1, domain.StatePending, at)
	if err := store.Insert(ctx, resubmit); err != nil {
		t.Fatalf("resubmission after reject: %v", err)
	}

	if err := store.Delete(ctx, kind, resubmit.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, kind, resubmit.ID); !errors.Is(err, recordstoreport.ErrNotFound) {
		t.Fatalf("second Delete err=%v, want ErrNotFound", err)
	}
}

func RunSequence(t *testing.T, newSeq SequenceFactory) {
	t.Helper()
	ctx := context.Background()
	seq, cleanup := newSeq(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	first, err := seq.Next(ctx, domain.KindMembership)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	second, err := seq.Next(ctx, domain.KindMembership)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if second <= first {
		t.Fatalf("sequence not increasing: %d then %d", first, second)
	}
	// Kinds count independently.
	p1, err := seq.Next(ctx, domain.KindParking)
	if err != nil {
		t.Fatalf("Next parking: %v", err)
	}
	p2, err := seq.Next(ctx, domain.KindParking)
	if err != nil || p2 != p1+1 {
		t.Fatalf("parking sequence: %d then %d err=%v", p1, p2, err)
	}

	r, ok := seq.(sequenceport.Reader)
	if !ok {
		return
	}
	cur, err := r.Current(ctx, domain.KindMembership)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if cur != second {
		t.Fatalf("Current = %d, want last issued %d", cur, second)
	}
	again, err := r.Current(ctx, domain.KindMembership)
	if err != nil || again != cur {
		t.Fatalf("Current consumed a value: %d then %d err=%v", cur, again, err)
	}
}

func RunBlobStore(t *testing.T, newStore BlobStoreFactory) {
	t.Helper()
	ctx := context.Background()
	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	url, err := store.Upload(ctx, "photos/P_procesada_123_1.jpg", []byte("jpeg-bytes"), "image/jpeg")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != store.PublicURL("photos/P_procesada_123_1.jpg") {
		t.Fatalf("Upload url=%q, PublicURL=%q", url, store.PublicURL("photos/P_procesada_123_1.jpg"))
	}
	path, ok := store.PathFromURL(url)
	if !ok || path != "photos/P_procesada_123_1.jpg" {
		t.Fatalf("PathFromURL=%q ok=%v", path, ok)
	}
	data, err := store.Fetch(ctx, url)
	if err != nil || string(data) != "jpeg-bytes" {
		t.Fatalf("Fetch=%q err=%v", data, err)
	}
	if err := store.Delete(ctx, path); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Fetch(ctx, url); !errors.Is(err, blobstoreport.ErrNotFound) {
		t.Fatalf("Fetch after delete err=%v, want ErrNotFound", err)
	}
}

func ids(rs []domain.ApplicantRecord) []domain.RecordID {
	out := make([]domain.RecordID, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	fp := idempotencyport.Fingerprint{
		Key:      "k-1",
		Subject:  domain.SubjectID("staff-1"),
		Method:   "POST",
		Route:    "/v1/membership/batches",
		BodyHash: "",
	}
	if _, ok, err := store.Get(ctx, fp); err != nil || ok {
		t.Fatalf("Get on empty store: ok=%v err=%v", ok, err)
	}

	rec := idempotencyport.Record{
		StatusCode:  0,
		ContentType: "text/plain",
		Body:        []byte("hash-abc"),
		CreatedAt:   time.Unix(123, 0).UTC(),
	}
	if err := store.Put(ctx, fp, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if string(got.Body) != "hash-abc" || got.ContentType != "text/plain" || got.StatusCode != 0 || !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Fatalf("unexpected record: %+v", got)
	}

	// Overwrite semantics.
	rec2 := rec
	rec2.Body = []byte("hash-def")
	if err := store.Put(ctx, fp, rec2); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err = store.Get(ctx, fp)
	if err != nil || !ok || string(got.Body) != "hash-def" {
		t.Fatalf("expected overwritten record, got ok=%v err=%v body=%q", ok, err, string(got.Body))
	}

	// Every fingerprint field participates in the lookup.
	other := fp
	other.Subject = "staff-2"
	if _, ok, err := store.Get(ctx, other); err != nil || ok {
		t.Fatalf("subject must scope the key: ok=%v err=%v", ok, err)
	}
	other = fp
	other.BodyHash = "hash-abc"
	if _, ok, err := store.Get(ctx, other); err != nil || ok {
		t.Fatalf("body hash must scope the key: ok=%v err=%v", ok, err)
	}
}
