package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Voupi/sistema-gestion-addag/internal/domain"
	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/recordstore"
)

const recordColumns = "id, first_names, last_names, document_type, document_number, birth_date, phone, department, email, photo_url, photo_url_final, state, role, card_number, created_at, updated_at"

const rejectionColumns = "id, record_id, origin, reason, first_names, last_names, document_type, document_number, email, phone, department, photo_url, submitted_at, rejected_at"

const birthDateLayout = "2006-01-02"

// Store implements recordstore.Store on SQLite.
type Store struct {
	db *sql.DB
}

func NewStore(d *DB) *Store {
	return &Store{db: d.db}
}

func table(kind domain.RecordKind) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("invalid record kind %q", kind)
	}
	return kind.Collection(), nil
}

func (s *Store) Insert(ctx context.Context, rec domain.ApplicantRecord) error {
	tbl, err := table(rec.Kind)
	if err != nil {
		return err
	}
	var role any
	if rec.Kind.HasRole() && rec.Role != nil {
		role = string(*rec.Role)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO `+tbl+` (`+recordColumns+`) VALUES (`+placeholders(16)+`)`,
		string(rec.ID),
		rec.FirstNames,
		rec.LastNames,
		string(rec.DocumentType),
		rec.DocumentNumber,
		rec.BirthDate.UTC().Format(birthDateLayout),
		rec.Phone,
		rec.Department,
		nullableString(rec.Email),
		rec.PhotoURL,
		nullableString(rec.PhotoURLFinal),
		string(rec.State),
		role,
		nullableString(rec.CardNumber),
		formatTime(rec.CreatedAt),
		formatTime(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", mapError(err))
	}
	return nil
}

func (s *Store) Get(ctx context.Context, kind domain.RecordKind, id domain.RecordID) (domain.ApplicantRecord, error) {
	tbl, err := table(kind)
	if err != nil {
		return domain.ApplicantRecord{}, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM `+tbl+` WHERE id = ?`, string(id))
	rec, err := scanRecord(kind, row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ApplicantRecord{}, recordstore.ErrNotFound
		}
		return domain.ApplicantRecord{}, mapError(err)
	}
	return rec, nil
}

func (s *Store) Find(ctx context.Context, kind domain.RecordKind, f recordstore.Filter, order recordstore.Order) ([]domain.ApplicantRecord, error) {
	tbl, err := table(kind)
	if err != nil {
		return nil, err
	}
	where, args := filterClause(f)
	orderBy := "created_at DESC, id ASC"
	if order == recordstore.OrderLastName {
		orderBy = "last_names COLLATE NOCASE ASC, first_names COLLATE NOCASE ASC, id ASC"
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM `+tbl+where+` ORDER BY `+orderBy, args...)
	if err != nil {
		return nil, fmt.Errorf("find records: %w", mapError(err))
	}
	defer rows.Close()
	return collectRecords(kind, rows)
}

func (s *Store) Count(ctx context.Context, kind domain.RecordKind, f recordstore.Filter) (int, error) {
	tbl, err := table(kind)
	if err != nil {
		return 0, err
	}
	where, args := filterClause(f)
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM `+tbl+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", mapError(err))
	}
	return n, nil
}

func (s *Store) CountByState(ctx context.Context, kind domain.RecordKind) (domain.StateCounts, error) {
	tbl, err := table(kind)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM `+tbl+` GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("count by state: %w", mapError(err))
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
	return out, rows.Err()
}

func (s *Store) UpdateDetails(ctx context.Context, kind domain.RecordKind, id domain.RecordID, p recordstore.DetailsPatch) (domain.ApplicantRecord, error) {
	tbl, err := table(kind)
	if err != nil {
		return domain.ApplicantRecord{}, err
	}

	var (
		sets []string
		args []any
	)
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
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
		set("updated_at", formatTime(*p.UpdatedAt))
	}
	if len(sets) == 0 {
		return s.Get(ctx, kind, id)
	}
	args = append(args, string(id))

	row := s.db.QueryRowContext(ctx,
		`UPDATE `+tbl+` SET `+strings.Join(sets, ", ")+` WHERE id = ? RETURNING `+recordColumns, args...)
	rec, err := scanRecord(kind, row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ApplicantRecord{}, recordstore.ErrNotFound
		}
		return domain.ApplicantRecord{}, fmt.Errorf("update details: %w", mapError(err))
	}
	return rec, nil
}

// ApplyTransition is a single UPDATE with a CASE over the current state.
func (s *Store) ApplyTransition(ctx context.Context, kind domain.RecordKind, w recordstore.TransitionWrite) ([]domain.ApplicantRecord, error) {
	tbl, err := table(kind)
	if err != nil {
		return nil, err
	}
	if len(w.IDs) == 0 || len(w.Moves) == 0 {
		return []domain.ApplicantRecord{}, nil
	}

	from := w.FromStates()
	var (
		cases strings.Builder
		args  []any
	)
	cases.WriteString("CASE state")
	for _, st := range from {
		cases.WriteString(" WHEN ? THEN ?")
		args = append(args, string(st), string(w.Moves[st]))
	}
	cases.WriteString(" ELSE state END")

	at := w.At
	if at.IsZero() {
		at = time.Now()
	}
	args = append(args, formatTime(at))
	for _, id := range w.IDs {
		args = append(args, string(id))
	}
	for _, st := range from {
		args = append(args, string(st))
	}

	rows, err := s.db.QueryContext(ctx,
		`UPDATE `+tbl+`
         SET state = `+cases.String()+`, updated_at = ?
         WHERE id IN (`+placeholders(len(w.IDs))+`) AND state IN (`+placeholders(len(from))+`)
         RETURNING `+recordColumns,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("apply transition: %w", mapError(err))
	}
	defer rows.Close()
	return collectRecords(kind, rows)
}

func (s *Store) ApplyApproval(ctx context.Context, kind domain.RecordKind, id domain.RecordID, cardNumber string, at time.Time) (domain.ApplicantRecord, error) {
	tbl, err := table(kind)
	if err != nil {
		return domain.ApplicantRecord{}, err
	}
	row := s.db.QueryRowContext(ctx,
		`UPDATE `+tbl+`
         SET state = ?, card_number = ?, updated_at = ?
         WHERE id = ? AND state = ?
         RETURNING `+recordColumns,
		string(domain.StateApproved), cardNumber, formatTime(at), string(id), string(domain.StatePending),
	)
	rec, err := scanRecord(kind, row)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.ApplicantRecord{}, fmt.Errorf("apply approval: %w", mapError(err))
	}
	if _, getErr := s.Get(ctx, kind, id); getErr != nil {
		return domain.ApplicantRecord{}, getErr
	}
	return domain.ApplicantRecord{}, recordstore.ErrStateConflict
}

func (s *Store) Reject(ctx context.Context, kind domain.RecordKind, id domain.RecordID, rj domain.RejectionRecord) error {
	tbl, err := table(kind)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reject: %w", mapError(err))
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM `+tbl+` WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("delete rejected record: %w", mapError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return recordstore.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO rejected_archive (`+rejectionColumns+`) VALUES (`+placeholders(14)+`)`,
		string(rj.ID),
		string(id),
		string(kind),
		rj.Reason,
		rj.FirstNames,
		rj.LastNames,
		string(rj.DocumentType),
		rj.DocumentNumber,
		nullableString(rj.Email),
		rj.Phone,
		rj.Department,
		rj.PhotoURL,
		formatTime(rj.SubmittedAt),
		formatTime(rj.RejectedAt),
	); err != nil {
		return fmt.Errorf("archive rejection: %w", mapError(err))
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reject: %w", mapError(err))
	}
	return nil
}

func (s *Store) ListRejections(ctx context.Context, origin domain.RecordKind) ([]domain.RejectionRecord, error) {
	query := `SELECT ` + rejectionColumns + ` FROM rejected_archive`
	var args []any
	if origin != "" {
		query += ` WHERE origin = ?`
		args = append(args, string(origin))
	}
	query += ` ORDER BY rejected_at DESC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rejections: %w", mapError(err))
	}
	defer rows.Close()

	out := make([]domain.RejectionRecord, 0)
	for rows.Next() {
		var (
			rj                    domain.RejectionRecord
			id, recordID, originS string
			docType               string
			email                 sql.NullString
			submittedRaw, atRaw   string
		)
		if err := rows.Scan(
			&id,
			&recordID,
			&originS,
			&rj.Reason,
			&rj.FirstNames,
			&rj.LastNames,
			&docType,
			&rj.DocumentNumber,
			&email,
			&rj.Phone,
			&rj.Department,
			&rj.PhotoURL,
			&submittedRaw,
			&atRaw,
		); err != nil {
			return nil, err
		}
		rj.ID = domain.RejectionID(id)
		rj.RecordID = domain.RecordID(recordID)
		rj.Origin = domain.RecordKind(originS)
		rj.DocumentType = domain.DocumentType(docType)
		if email.Valid {
			v := email.String
			rj.Email = &v
		}
		if t, err := parseTimeString(submittedRaw); err == nil {
			rj.SubmittedAt = t
		}
		if t, err := parseTimeString(atRaw); err == nil {
			rj.RejectedAt = t
		}
		out = append(out, rj)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, kind domain.RecordKind, id domain.RecordID) error {
	tbl, err := table(kind)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+tbl+` WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("delete record: %w", mapError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return recordstore.ErrNotFound
	}
	return nil
}

func filterClause(f recordstore.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if len(f.States) > 0 {
		conds = append(conds, "state IN ("+placeholders(len(f.States))+")")
		for _, st := range f.States {
			args = append(args, string(st))
		}
	}
	if len(f.IDs) > 0 {
		conds = append(conds, "id IN ("+placeholders(len(f.IDs))+")")
		for _, id := range f.IDs {
			args = append(args, string(id))
		}
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func collectRecords(kind domain.RecordKind, rows *sql.Rows) ([]domain.ApplicantRecord, error) {
	out := make([]domain.ApplicantRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(kind, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

func scanRecord(kind domain.RecordKind, scanner interface{ Scan(dest ...any) error }) (domain.ApplicantRecord, error) {
	var (
		rec        = domain.ApplicantRecord{Kind: kind}
		id         string
		docType    string
		birthRaw   string
		email      sql.NullString
		photoFinal sql.NullString
		state      string
		role       sql.NullString
		cardNumber sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(
		&id,
		&rec.FirstNames,
		&rec.LastNames,
		&docType,
		&rec.DocumentNumber,
		&birthRaw,
		&rec.Phone,
		&rec.Department,
		&email,
		&rec.PhotoURL,
		&photoFinal,
		&state,
		&role,
		&cardNumber,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return domain.ApplicantRecord{}, err
	}
	rec.ID = domain.RecordID(id)
	rec.DocumentType = domain.DocumentType(docType)
	rec.State = domain.State(state)
	if t, err := time.Parse(birthDateLayout, birthRaw); err == nil {
		rec.BirthDate = t
	}
	rec.Email = fromNull(email)
	rec.PhotoURLFinal = fromNull(photoFinal)
	rec.CardNumber = fromNull(cardNumber)
	if role.Valid && kind.HasRole() {
		r := domain.Role(role.String)
		rec.Role = &r
	}
	if t, err := parseTimeString(createdRaw); err == nil {
		rec.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw); err == nil {
		rec.UpdatedAt = t
	}
	return rec, nil
}

func fromNull(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
