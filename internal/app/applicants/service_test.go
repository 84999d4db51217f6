package applicants

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memblob "github.com/Voupi/sistema-gestion-addag/internal/adapters/memory/blobstore"
	memclock "github.com/Voupi/sistema-gestion-addag/internal/adapters/memory/clock"
	memstore "github.com/Voupi/sistema-gestion-addag/internal/adapters/memory/recordstore"
	memsender "github.com/Voupi/sistema-gestion-addag/internal/adapters/notify/memory"
	"github.com/Voupi/sistema-gestion-addag/internal/app/apperr"
	"github.com/Voupi/sistema-gestion-addag/internal/domain"
	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/notifier"
	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/recordstore"
)

type fixture struct {
	store  *memstore.Store
	blobs  *memblob.Store
	sender *memsender.Sender
	clk    *memclock.ManualClock
	svc    *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  memstore.NewStore(),
		blobs:  memblob.NewStore(""),
		sender: memsender.NewSender(),
		clk:    memclock.NewManualClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)),
	}
	f.svc = NewService(f.store, f.blobs, f.sender, f.clk, nil, nil)
	return f
}

func jpegPhoto(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(60, 72, color.White), imaging.JPEG))
	return buf.Bytes()
}

func validInput(t *testing.T, kind domain.RecordKind) SubmitInput {
	return SubmitInput{
		Kind:           kind,
		FirstNames:     "  Ana   Lucía ",
		LastNames:      "Pérez  López",
		DocumentType:   "DPI",
		DocumentNumber: "1234 56789 0123",
		BirthDate:      time.Date(1995, 4, 12, 0, 0, 0, 0, time.UTC),
		Phone:          "5555 1234",
		Department:     "Sacatepéquez",
		Email:          "ana@example.com",
		Photo:          jpegPhoto(t),
		PhotoFilename:  "foto.JPG",
	}
}

func TestSubmit_Membership(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	rec, err := f.svc.Submit(ctx, validInput(t, domain.KindMembership))
	require.NoError(t, err)

	assert.Equal(t, "Ana Lucía", rec.FirstNames)
	assert.Equal(t, "1234567890123", rec.DocumentNumber)
	assert.Equal(t, domain.StatePending, rec.State)
	require.NotNil(t, rec.Role)
	assert.Equal(t, domain.RoleAthlete, *rec.Role)
	assert.Equal(t, "memory://photos/1234567890123-1709283600000.jpg", rec.PhotoURL)
	assert.Nil(t, rec.PhotoURLFinal)

	stored, err := f.store.Get(ctx, rec.Kind, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.DocumentNumber, stored.DocumentNumber)

	sent := f.sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, notifier.KindConfirmation, sent[0].Kind)
	assert.Equal(t, "Ana Lucía Pérez López", sent[0].Data.Name)
}

func TestSubmit_ParkingRules(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		rec, err := f.svc.Submit(ctx, validInput(t, domain.KindParking))
		require.NoError(t, err)
		assert.Nil(t, rec.Role)
		assert.Contains(t, rec.PhotoURL, "/P_1234567890123-")
	})

	t.Run("email required", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		in := validInput(t, domain.KindParking)
		in.Email = ""
		_, err := f.svc.Submit(ctx, in)
		var ae *apperr.Error
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, apperr.CodeValidation, ae.Code)
		assert.Contains(t, ae.Details, "email")
	})

	t.Run("role refused", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		in := validInput(t, domain.KindParking)
		in.Role = "COACH"
		_, err := f.svc.Submit(ctx, in)
		var ae *apperr.Error
		require.ErrorAs(t, err, &ae)
		assert.Contains(t, ae.Details, "role")
	})
}

func TestSubmit_Validation(t *testing.T) {
	t.Parallel()

	cases := map[string]func(*SubmitInput){
		"firstNames":     func(in *SubmitInput) { in.FirstNames = "   " },
		"documentNumber": func(in *SubmitInput) { in.DocumentNumber = "12345" },
		"documentType":   func(in *SubmitInput) { in.DocumentType = "LICENCIA" },
		"birthDate":      func(in *SubmitInput) { in.BirthDate = time.Time{} },
		"email":          func(in *SubmitInput) { in.Email = "Ana <ana@example.com>" },
		"role":           func(in *SubmitInput) { in.Role = "MASCOT" },
		"photo":          func(in *SubmitInput) { in.Photo = []byte("not an image") },
	}
	for field, mutate := range cases {
		field, mutate := field, mutate
		t.Run(field, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			in := validInput(t, domain.KindMembership)
			mutate(&in)

			_, err := f.svc.Submit(context.Background(), in)
			var ae *apperr.Error
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, 422, ae.Status)
			assert.Contains(t, ae.Details, field)
			assert.Empty(t, f.blobs.Paths())
			assert.Equal(t, 0, f.sender.Calls())
		})
	}
}

func TestSubmit_PassportAndPhotoLimit(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	in := validInput(t, domain.KindMembership)
	in.DocumentType = "pasaporte"
	in.DocumentNumber = "gt 12345a"

	rec, err := f.svc.Submit(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "GT12345A", rec.DocumentNumber)

	f.svc.MaxPhotoBytes = 10
	in.DocumentNumber = "X999999"
	_, err = f.svc.Submit(context.Background(), in)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

func TestSubmit_DuplicateDocumentRemovesUpload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Submit(ctx, validInput(t, domain.KindMembership))
	require.NoError(t, err)
	f.clk.Advance(time.Second)

	_, err = f.svc.Submit(ctx, validInput(t, domain.KindMembership))
	assert.Equal(t, apperr.CodeDuplicateDocument, apperr.CodeOf(err))
	assert.ErrorIs(t, err, recordstore.ErrDuplicateDocument)
	assert.Len(t, f.blobs.Paths(), 1)

	// The same document is free in the other collection.
	_, err = f.svc.Submit(ctx, validInput(t, domain.KindParking))
	assert.NoError(t, err)
}

func TestSubmit_ConfirmationFailureIsIgnored(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.sender.FailAll(errors.New("smtp timeout"))

	rec, err := f.svc.Submit(context.Background(), validInput(t, domain.KindMembership))
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, 1, f.sender.Calls())
}

func seedRecords(t *testing.T, f *fixture) map[string]domain.ApplicantRecord {
	t.Helper()
	ctx := context.Background()
	out := map[string]domain.ApplicantRecord{}
	for i, spec := range []struct {
		last  string
		doc   string
		state domain.State
	}{
		{"Zamora", "1000000000001", domain.StateApproved},
		{"Alvarez", "1000000000002", domain.StateReprint},
		{"Morales", "1000000000003", domain.StatePending},
		{"Barrios", "1000000000004", domain.StateDelivered},
	} {
		email := spec.last + "@example.com"
		rec := domain.ApplicantRecord{
			ID:             domain.RecordID(spec.doc),
			Kind:           domain.KindMembership,
			FirstNames:     "Luis",
			LastNames:      spec.last,
			DocumentType:   domain.DocumentDPI,
			DocumentNumber: spec.doc,
			Email:          &email,
			State:          spec.state,
			CreatedAt:      f.clk.Now().Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, f.store.Insert(ctx, rec))
		out[spec.last] = rec
	}
	return out
}

func TestList_QueueSearchAndStats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	recs := seedRecords(t, f)

	all, err := f.svc.List(ctx, domain.KindMembership, Query{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, recs["Barrios"].ID, all[0].ID, "newest first")

	queue, err := f.svc.PrintQueue(ctx, domain.KindMembership)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, "Alvarez", queue[0].LastNames)
	assert.Equal(t, "Zamora", queue[1].LastNames)

	found, err := f.svc.List(ctx, domain.KindMembership, Query{Search: "morales"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, recs["Morales"].ID, found[0].ID)

	states, err := domain.ParseStateFilter("EN_COLA")
	require.NoError(t, err)
	queued, err := f.svc.List(ctx, domain.KindMembership, Query{States: states, Search: "luis"})
	require.NoError(t, err)
	assert.Len(t, queued, 2)

	stats, err := f.svc.Stats(ctx, domain.KindMembership)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.InQueue)
	assert.Equal(t, 1, stats.Counts[domain.StatePending])
}

func TestUpdateDetails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	recs := seedRecords(t, f)
	id := recs["Zamora"].ID

	updated, err := f.svc.UpdateDetails(ctx, domain.KindMembership, id, UpdateDetailsInput{
		FirstNames: Some("  Luis   Fernando "),
		Email:      Null[string](),
		Role:       Some("entrenador"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Luis Fernando", updated.FirstNames)
	assert.Nil(t, updated.Email)
	require.NotNil(t, updated.Role)
	assert.Equal(t, domain.RoleCoach, *updated.Role)
	assert.Equal(t, domain.StateApproved, updated.State)

	_, err = f.svc.UpdateDetails(ctx, domain.KindMembership, id, UpdateDetailsInput{
		DocumentNumber: Some(recs["Morales"].DocumentNumber),
	})
	assert.Equal(t, apperr.CodeDuplicateDocument, apperr.CodeOf(err))

	_, err = f.svc.UpdateDetails(ctx, domain.KindMembership, id, UpdateDetailsInput{
		LastNames: Null[string](),
		Phone:     Some("  "),
	})
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Details, "lastNames")
	assert.Contains(t, ae.Details, "phone")

	_, err = f.svc.UpdateDetails(ctx, domain.KindMembership, "missing", UpdateDetailsInput{})
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestUpdateDetails_SwitchToPassportRevalidatesNumber(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	id := seedRecords(t, f)["Zamora"].ID

	updated, err := f.svc.UpdateDetails(ctx, domain.KindMembership, id, UpdateDetailsInput{
		DocumentType:   Some("PASAPORTE"),
		DocumentNumber: Some("a1b2c3"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentPassport, updated.DocumentType)
	assert.Equal(t, "A1B2C3", updated.DocumentNumber)
}
