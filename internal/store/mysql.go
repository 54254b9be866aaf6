package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// MySQL keeps every collection in a single `documents` table with a JSON
// body column (see database.Migrate). Filters are evaluated with MySQL's
// JSON functions. createdAt is mirrored into an indexed column so the
// retention sweep does not scan the JSON bodies.
type MySQL struct {
	db *sqlx.DB
}

// NewMySQL wraps an open connection pool.
func NewMySQL(db *sqlx.DB) *MySQL { return &MySQL{db: db} }

type docRow struct {
	Collection string     `db:"collection"`
	ID         string     `db:"id"`
	Data       []byte     `db:"data"`
	CreatedAt  *time.Time `db:"created_at"`
}

const upsertDoc = `INSERT INTO documents (collection, id, data, created_at)
VALUES (:collection, :id, :data, :created_at)
ON DUPLICATE KEY UPDATE data = VALUES(data), created_at = VALUES(created_at)`

func (s *MySQL) Get(ctx context.Context, collection, id string, out any) error {
	var data []byte
	err := s.db.GetContext(ctx, &data,
		"SELECT data FROM documents WHERE collection = ? AND id = ? LIMIT 1", collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(collection, id)
	}
	if err != nil {
		return errors.Wrapf(err, "get %s/%s", collection, id)
	}
	return json.Unmarshal(data, out)
}

func (s *MySQL) Create(ctx context.Context, collection string, doc any) (string, error) {
	id := NewID()
	return id, s.Set(ctx, collection, id, doc)
}

func (s *MySQL) Set(ctx context.Context, collection, id string, doc any) error {
	row, err := toRow(collection, id, doc)
	if err != nil {
		return err
	}
	if _, err := s.db.NamedExecContext(ctx, upsertDoc, row); err != nil {
		return errors.Wrapf(err, "set %s/%s", collection, id)
	}
	return nil
}

func (s *MySQL) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	return update(ctx, s.db, collection, id, patch)
}

func (s *MySQL) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	where := []string{"collection = ?"}
	args := []any{collection}
	for _, f := range filters {
		clause, fargs, err := filterSQL(f)
		if err != nil {
			return nil, err
		}
		where = append(where, clause)
		args = append(args, fargs...)
	}
	q := "SELECT id, data FROM documents WHERE " + strings.Join(where, " AND ") + " ORDER BY id"

	var rows []docRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrapf(err, "query %s", collection)
	}
	out := make([]Document, 0, len(rows))
	for _, r := range rows {
		out = append(out, Document{ID: r.ID, Data: r.Data})
	}
	return out, nil
}

func (s *MySQL) BatchWrite(ctx context.Context, ops []BatchOp) error {
	if len(ops) > MaxBatchSize {
		return ErrBatchTooLarge
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin batch")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	deletes := map[string][]string{}
	for i := range ops {
		op := &ops[i]
		switch op.Kind {
		case OpCreate, OpSet:
			if op.ID == "" {
				op.ID = NewID()
			}
			row, err := toRow(op.Collection, op.ID, op.Data)
			if err != nil {
				return err
			}
			if _, err := tx.NamedExecContext(ctx, upsertDoc, row); err != nil {
				return errors.Wrapf(err, "batch set %s/%s", op.Collection, op.ID)
			}
		case OpUpdate:
			patch, _ := op.Data.(map[string]any)
			if err := update(ctx, tx, op.Collection, op.ID, patch); err != nil {
				return err
			}
		case OpDelete:
			deletes[op.Collection] = append(deletes[op.Collection], op.ID)
		}
	}
	for collection, ids := range deletes {
		q, args, err := sqlx.In("DELETE FROM documents WHERE collection = ? AND id IN (?)", collection, ids)
		if err != nil {
			return errors.Wrap(err, "build batch delete")
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(q), args...); err != nil {
			return errors.Wrapf(err, "batch delete %s", collection)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit batch")
	}
	committed = true
	return nil
}

func update(ctx context.Context, ext sqlx.ExtContext, collection, id string, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}
	sets := make([]string, 0, len(patch))
	args := make([]any, 0, len(patch)*2+2)
	for field, v := range patch {
		path, err := jsonPath(field)
		if err != nil {
			return err
		}
		if inc, ok := v.(Increment); ok {
			sets = append(sets, "?, COALESCE(JSON_EXTRACT(data, ?), 0) + ?")
			args = append(args, path, path, inc.N)
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return errors.Wrapf(err, "marshal patch field %s", field)
		}
		sets = append(sets, "?, CAST(? AS JSON)")
		args = append(args, path, string(raw))
	}
	args = append(args, collection, id)
	q := "UPDATE documents SET data = JSON_SET(data, " + strings.Join(sets, ", ") + ") WHERE collection = ? AND id = ?"
	res, err := ext.ExecContext(ctx, q, args...)
	if err != nil {
		return errors.Wrapf(err, "update %s/%s", collection, id)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(collection, id)
	}
	return nil
}

func filterSQL(f Filter) (string, []any, error) {
	path, err := jsonPath(f.Field)
	if err != nil {
		return "", nil, err
	}
	if t, ok := f.Value.(time.Time); ok {
		op := map[Op]string{OpLt: "<", OpGt: ">", OpEq: "="}[f.Op]
		if op == "" {
			return "", nil, fmt.Errorf("operator %s not supported for time values", f.Op)
		}
		if f.Field == "createdAt" {
			return "created_at " + op + " ?", []any{t.UTC()}, nil
		}
		// RFC 3339 strings in UTC sort chronologically at equal precision
		return "JSON_UNQUOTE(JSON_EXTRACT(data, ?)) " + op + " ?", []any{path, t.UTC().Format(time.RFC3339Nano)}, nil
	}
	raw, err := json.Marshal(f.Value)
	if err != nil {
		return "", nil, errors.Wrapf(err, "marshal filter value for %s", f.Field)
	}
	switch f.Op {
	case OpEq:
		return "JSON_EXTRACT(data, ?) = CAST(? AS JSON)", []any{path, string(raw)}, nil
	case OpLt:
		return "JSON_EXTRACT(data, ?) < CAST(? AS JSON)", []any{path, string(raw)}, nil
	case OpGt:
		return "JSON_EXTRACT(data, ?) > CAST(? AS JSON)", []any{path, string(raw)}, nil
	case OpIn:
		return "JSON_CONTAINS(CAST(? AS JSON), JSON_EXTRACT(data, ?))", []any{string(raw), path}, nil
	case OpContains:
		return "JSON_CONTAINS(JSON_EXTRACT(data, ?), CAST(? AS JSON))", []any{path, string(raw)}, nil
	}
	return "", nil, fmt.Errorf("unsupported operator %q", f.Op)
}

// jsonPath only accepts plain identifiers so field names can never change
// the shape of the generated SQL.
func jsonPath(field string) (string, error) {
	if field == "" {
		return "", fmt.Errorf("empty field name")
	}
	for _, r := range field {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return "", fmt.Errorf("invalid field name %q", field)
		}
	}
	return "$." + field, nil
}

func toRow(collection, id string, doc any) (docRow, error) {
	enc, err := encode(doc, id)
	if err != nil {
		return docRow{}, err
	}
	data, err := json.Marshal(enc)
	if err != nil {
		return docRow{}, errors.Wrap(err, "marshal document")
	}
	row := docRow{Collection: collection, ID: id, Data: data}
	if s, ok := enc["createdAt"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			t = t.UTC()
			row.CreatedAt = &t
		}
	}
	return row, nil
}
