package recordstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/Voupi/sistema-gestion-addag/internal/adapters/postgres"
	"github.com/Voupi/sistema-gestion-addag/internal/domain"
	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/recordstore"
)

const recordColumns = `
	id::text,
	first_names,
	last_names,
	document_type,
	document_number,
	birth_date,
	phone,
	department,
	email,
	photo_url,
	photo_url_final,
	state,
	role,
	card_number,
	created_at,
	updated_at`

const rejectionColumns = `
	id::text,
	record_id::text,
	origin,
	reason,
	first_names,
	last_names,
	document_type,
	document_number,
	email,
	phone,
	department,
	photo_url,
	submitted_at,
	rejected_at`

// Store is a Postgres implementation of recordstore.Store.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func table(kind domain.RecordKind) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("invalid record kind %q", kind)
	}
	return kind.Collection(), nil
}

func (s *Store) Insert(ctx context.Context, rec domain.ApplicantRecord) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}
	tbl, err := table(rec.Kind)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(string(rec.ID))
	if err != nil {
		return fmt.Errorf("invalid record id: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO `+tbl+` (
			id,
			first_names,
			last_names,
			document_type,
			document_number,
			birth_date,
			phone,
			department,
			email,
			photo_url,
			photo_url_final,
			state,
			role,
			card_number,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		id,
		rec.FirstNames,
		rec.LastNames,
		string(rec.DocumentType),
		rec.DocumentNumber,
		rec.BirthDate,
		rec.Phone,
		rec.Department,
		rec.Email,
		rec.PhotoURL,
		rec.PhotoURLFinal,
		string(rec.State),
		roleParam(rec.Kind, rec.Role),
		rec.CardNumber,
		rec.CreatedAt.UTC(),
		rec.UpdatedAt.UTC(),
	)
	return postgres.MapError(err)
}

func (s *Store) Get(ctx context.Context, kind domain.RecordKind, id domain.RecordID) (domain.ApplicantRecord, error) {
	if s.pool == nil {
		return domain.ApplicantRecord{}, errors.New("nil postgres pool")
	}
	return getRecord(ctx, s.pool, kind, id)
}

func (s *Store) Find(ctx context.Context, kind domain.RecordKind, f recordstore.Filter, order recordstore.Order) ([]domain.ApplicantRecord, error) {
	if s.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	tbl, err := table(kind)
	if err != nil {
		return nil, err
	}
	where, args := filterClause(f)

	orderBy := "created_at DESC, id ASC"
	if order == recordstore.OrderLastName {
		orderBy = "lower(last_names) ASC, lower(first_names) ASC, id ASC"
	}

	rows, err := s.pool.Query(ctx, `SELECT `+recordColumns+` FROM `+tbl+where+` ORDER BY `+orderBy, args...)
	if err != nil {
		return nil, postgres.MapError(err)
	}
	defer rows.Close()
	return collectRecords(kind, rows)
}

func (s *Store) Count(ctx context.Context, kind domain.RecordKind, f recordstore.Filter) (int, error) {
	if s.pool == nil {
		return 0, errors.New("nil postgres pool")
	}
	tbl, err := table(kind)
	if err != nil {
		return 0, err
	}
	where, args := filterClause(f)
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM `+tbl+where, args...).Scan(&n); err != nil {
		return 0, postgres.MapError(err)
	}
	return n, nil
}

func (s *Store) CountByState(ctx context.Context, kind domain.RecordKind) (domain.StateCounts, error) {
	if s.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	tbl, err := table(kind)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `SELECT state, count(*) FROM `+tbl+` GROUP BY state`)
	if err != nil {
		return nil, postgres.MapError(err)
	}
	defer rows.Close()

	out := make(domain.StateCounts)
	for rows.Next() {
		var (
			state string
			n     int
		)
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		out[domain.State(state)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.MapError(err)
	}
	return out, nil
}

func (s *Store) UpdateDetails(ctx context.Context, kind domain.RecordKind, id domain.RecordID, p recordstore.DetailsPatch) (domain.ApplicantRecord, error) {
	if s.pool == nil {
		return domain.ApplicantRecord{}, errors.New("nil postgres pool")
	}
	tbl, err := table(kind)
	if err != nil {
		return domain.ApplicantRecord{}, err
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.ApplicantRecord{}, recordstore.ErrNotFound
	}

	sets := make([]string, 0, 12)
	args := []any{uid}
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if p.FirstNames != nil {
		set("first_names", *p.FirstNames)
	}
	if p.LastNames != nil {
		set("last_names", *p.LastNames)
	}
	if p.DocumentType != nil {
		set("document_type", string(*p.DocumentType))
	}
	if p.DocumentNumber != nil {
		set("document_number", *p.DocumentNumber)
	}
	if p.Phone != nil {
		set("phone", *p.Phone)
	}
	if p.Department != nil {
		set("department", *p.Department)
	}
	if p.ClearEmail {
		sets = append(sets, "email = NULL")
	} else if p.Email != nil {
		set("email", *p.Email)
	}
	if p.Role != nil && kind.HasRole() {
		set("role", string(*p.Role))
	}
	if p.PhotoURL != nil {
		set("photo_url", *p.PhotoURL)
	}
	if p.PhotoURLFinal != nil {
		set("photo_url_final", *p.PhotoURLFinal)
	}
	if p.UpdatedAt != nil {
		set("updated_at", p.UpdatedAt.UTC())
	}
	if len(sets) == 0 {
		return getRecord(ctx, s.pool, kind, id)
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE `+tbl+`
		SET `+strings.Join(sets, ", ")+`
		WHERE id = $1
		RETURNING `+recordColumns, args...)
	rec, err := scanRecord(kind, row)
	if err != nil {
		return domain.ApplicantRecord{}, postgres.MapError(err)
	}
	return rec, nil
}

// ApplyTransition issues one UPDATE with a CASE over the current state, so the
// whole batch commits or fails together and records that moved concurrently are
// skipped rather than overwritten.
func (s *Store) ApplyTransition(ctx context.Context, kind domain.RecordKind, w recordstore.TransitionWrite) ([]domain.ApplicantRecord, error) {
	if s.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	tbl, err := table(kind)
	if err != nil {
		return nil, err
	}
	if len(w.IDs) == 0 || len(w.Moves) == 0 {
		return []domain.ApplicantRecord{}, nil
	}

	from := w.FromStates()
	args := []any{recordIDStrings(w.IDs), from.Strings()}
	var cases strings.Builder
	cases.WriteString("CASE state")
	for _, st := range from {
		args = append(args, string(st), string(w.Moves[st]))
		fmt.Fprintf(&cases, " WHEN $%d THEN $%d", len(args)-1, len(args))
	}
	cases.WriteString(" END")

	at := w.At
	if at.IsZero() {
		at = time.Now()
	}
	args = append(args, at.UTC())

	rows, err := s.pool.Query(ctx, `
		UPDATE `+tbl+`
		SET state = `+cases.String()+`,
		    updated_at = $`+fmt.Sprint(len(args))+`
		WHERE id = ANY($1::text[]::uuid[])
		  AND state = ANY($2::text[])
		RETURNING `+recordColumns, args...)
	if err != nil {
		return nil, postgres.MapError(err)
	}
	defer rows.Close()
	return collectRecords(kind, rows)
}

func (s *Store) ApplyApproval(ctx context.Context, kind domain.RecordKind, id domain.RecordID, cardNumber string, at time.Time) (domain.ApplicantRecord, error) {
	if s.pool == nil {
		return domain.ApplicantRecord{}, errors.New("nil postgres pool")
	}
	tbl, err := table(kind)
	if err != nil {
		return domain.ApplicantRecord{}, err
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.ApplicantRecord{}, recordstore.ErrNotFound
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE `+tbl+`
		SET state = $2,
		    card_number = $3,
		    updated_at = $4
		WHERE id = $1 AND state = $5
		RETURNING `+recordColumns,
		uid, string(domain.StateApproved), cardNumber, at.UTC(), string(domain.StatePending))
	rec, err := scanRecord(kind, row)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, recordstore.ErrNotFound) {
		return domain.ApplicantRecord{}, postgres.MapError(err)
	}
	// Distinguish a missing record from one that already left PENDIENTE.
	if _, getErr := getRecord(ctx, s.pool, kind, id); getErr != nil {
		return domain.ApplicantRecord{}, getErr
	}
	return domain.ApplicantRecord{}, recordstore.ErrStateConflict
}

func (s *Store) Reject(ctx context.Context, kind domain.RecordKind, id domain.RecordID, rj domain.RejectionRecord) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}
	tbl, err := table(kind)
	if err != nil {
		return err
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return recordstore.ErrNotFound
	}
	rjID, err := uuid.Parse(string(rj.ID))
	if err != nil {
		return fmt.Errorf("invalid rejection id: %w", err)
	}

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, `DELETE FROM `+tbl+` WHERE id = $1`, uid)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return recordstore.ErrNotFound
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO rejected_archive (
				id,
				record_id,
				origin,
				reason,
				first_names,
				last_names,
				document_type,
				document_number,
				email,
				phone,
				department,
				photo_url,
				submitted_at,
				rejected_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`,
			rjID,
			uid,
			string(kind),
			rj.Reason,
			rj.FirstNames,
			rj.LastNames,
			string(rj.DocumentType),
			rj.DocumentNumber,
			rj.Email,
			rj.Phone,
			rj.Department,
			rj.PhotoURL,
			rj.SubmittedAt.UTC(),
			rj.RejectedAt.UTC(),
		)
		return err
	})
	if errors.Is(err, recordstore.ErrNotFound) {
		return err
	}
	return postgres.MapError(err)
}

func (s *Store) ListRejections(ctx context.Context, origin domain.RecordKind) ([]domain.RejectionRecord, error) {
	if s.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	where := ""
	args := []any{}
	if origin != "" {
		where = " WHERE origin = $1"
		args = append(args, string(origin))
	}
	rows, err := s.pool.Query(ctx, `SELECT `+rejectionColumns+` FROM rejected_archive`+where+` ORDER BY rejected_at DESC, id ASC`, args...)
	if err != nil {
		return nil, postgres.MapError(err)
	}
	defer rows.Close()

	out := make([]domain.RejectionRecord, 0)
	for rows.Next() {
		var (
			rj            domain.RejectionRecord
			id, recordID  string
			originStr     string
			docType       string
			submitted, at time.Time
		)
		if err := rows.Scan(
			&id,
			&recordID,
			&originStr,
			&rj.Reason,
			&rj.FirstNames,
			&rj.LastNames,
			&docType,
			&rj.DocumentNumber,
			&rj.Email,
			&rj.Phone,
			&rj.Department,
			&rj.PhotoURL,
			&submitted,
			&at,
		); err != nil {
			return nil, err
		}
		rj.ID = domain.RejectionID(id)
		rj.RecordID = domain.RecordID(recordID)
		rj.Origin = domain.RecordKind(originStr)
		rj.DocumentType = domain.DocumentType(docType)
		rj.SubmittedAt = submitted.UTC()
		rj.RejectedAt = at.UTC()
		out = append(out, rj)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.MapError(err)
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, kind domain.RecordKind, id domain.RecordID) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}
	tbl, err := table(kind)
	if err != nil {
		return err
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return recordstore.ErrNotFound
	}
	ct, err := s.pool.Exec(ctx, `DELETE FROM `+tbl+` WHERE id = $1`, uid)
	if err != nil {
		return postgres.MapError(err)
	}
	if ct.RowsAffected() == 0 {
		return recordstore.ErrNotFound
	}
	return nil
}

// --- helpers ---

func filterClause(f recordstore.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if len(f.States) > 0 {
		args = append(args, f.States.Strings())
		conds = append(conds, fmt.Sprintf("state = ANY($%d::text[])", len(args)))
	}
	if len(f.IDs) > 0 {
		args = append(args, recordIDStrings(f.IDs))
		conds = append(conds, fmt.Sprintf("id = ANY($%d::text[]::uuid[])", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func recordIDStrings(ids []domain.RecordID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		// Malformed IDs cannot match a uuid column and would fail the cast.
		if _, err := uuid.Parse(string(id)); err != nil {
			continue
		}
		out = append(out, string(id))
	}
	return out
}

func roleParam(kind domain.RecordKind, role *domain.Role) *string {
	if !kind.HasRole() || role == nil {
		return nil
	}
	v := string(*role)
	return &v
}

func getRecord(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, kind domain.RecordKind, id domain.RecordID) (domain.ApplicantRecord, error) {
	tbl, err := table(kind)
	if err != nil {
		return domain.ApplicantRecord{}, err
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.ApplicantRecord{}, recordstore.ErrNotFound
	}
	rec, err := scanRecord(kind, q.QueryRow(ctx, `SELECT `+recordColumns+` FROM `+tbl+` WHERE id = $1`, uid))
	if err != nil && !errors.Is(err, recordstore.ErrNotFound) {
		return domain.ApplicantRecord{}, postgres.MapError(err)
	}
	return rec, err
}

func collectRecords(kind domain.RecordKind, rows pgx.Rows) ([]domain.ApplicantRecord, error) {
	out := make([]domain.ApplicantRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(kind, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.MapError(err)
	}
	return out, nil
}

func scanRecord(kind domain.RecordKind, row interface {
	Scan(dest ...any) error
}) (domain.ApplicantRecord, error) {
	var (
		id        string
		docType   string
		state     string
		role      *string
		birthDate time.Time
		createdAt time.Time
		updatedAt time.Time
		rec       = domain.ApplicantRecord{Kind: kind}
	)
	if err := row.Scan(
		&id,
		&rec.FirstNames,
		&rec.LastNames,
		&docType,
		&rec.DocumentNumber,
		&birthDate,
		&rec.Phone,
		&rec.Department,
		&rec.Email,
		&rec.PhotoURL,
		&rec.PhotoURLFinal,
		&state,
		&role,
		&rec.CardNumber,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ApplicantRecord{}, recordstore.ErrNotFound
		}
		return domain.ApplicantRecord{}, err
	}
	rec.ID = domain.RecordID(id)
	rec.DocumentType = domain.DocumentType(docType)
	rec.State = domain.State(state)
	rec.BirthDate = birthDate.UTC()
	rec.CreatedAt = createdAt.UTC()
	rec.UpdatedAt = updatedAt.UTC()
	if role != nil && kind.HasRole() {
		r := domain.Role(*role)
		rec.Role = &r
	}
	return rec, nil
}
