// Package store defines the document store the platform reads and writes
// through, together with an in-memory and a MySQL implementation. Every
// collection is a flat set of JSON documents keyed by id. Writes are
// last-write-wins; only BatchWrite is atomic, and only within one batch.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/iliyamo/venture-platform/internal/apperr"
)

// Collection names used by the platform.
const (
	Users               = "users"
	BusinessIdeas       = "businessIdeas"
	InvestmentProposals = "investmentProposals"
	Queries             = "queries"
	Responses           = "responses"
	AdvisorSuggestions  = "advisorSuggestions"
	LoanSchemes         = "loanSchemes"
	Notifications       = "notifications"
	Portfolios          = "portfolios"
	RiskAssessments     = "riskAssessments"
	Logs                = "logs"
	RefreshTokens       = "refreshTokens"
)

// MaxBatchSize is the largest number of operations accepted by a single
// BatchWrite call. Callers with more operations must chunk.
const MaxBatchSize = 500

// ErrBatchTooLarge is returned when BatchWrite receives more than
// MaxBatchSize operations.
var ErrBatchTooLarge = fmt.Errorf("batch exceeds %d operations", MaxBatchSize)

// Op is a filter comparison operator.
type Op string

const (
	OpEq       Op = "=="
	OpLt       Op = "<"
	OpGt       Op = ">"
	OpIn       Op = "in"
	OpContains Op = "array-contains"
)

// Filter restricts a query to documents whose top-level Field satisfies
// Op against Value. Time values are compared chronologically.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Where builds a Filter.
func Where(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// Document is a raw query result.
type Document struct {
	ID   string
	Data json.RawMessage
}

// Decode unmarshals the document body into out.
func (d Document) Decode(out any) error {
	return json.Unmarshal(d.Data, out)
}

// OpKind identifies the type of a batched operation.
type OpKind int

const (
	OpCreate OpKind = iota
	OpSet
	OpUpdate
	OpDelete
)

// BatchOp is one write inside a BatchWrite call. Data holds the document
// for OpCreate/OpSet and a map[string]any patch for OpUpdate. OpCreate
// generates an id when ID is empty.
type BatchOp struct {
	Kind       OpKind
	Collection string
	ID         string
	Data       any
}

// Increment is a patch value that adds N to a numeric field instead of
// overwriting it.
type Increment struct{ N float64 }

// DocumentStore is the contract the platform needs from the managed
// document database.
type DocumentStore interface {
	// Get decodes the document into out or returns apperr.ErrNotFound.
	Get(ctx context.Context, collection, id string, out any) error
	// Create stores doc under a generated id and returns it.
	Create(ctx context.Context, collection string, doc any) (string, error)
	// Set stores doc under id, replacing any existing document.
	Set(ctx context.Context, collection, id string, doc any) error
	// Update merges patch into the top level of an existing document.
	Update(ctx context.Context, collection, id string, patch map[string]any) error
	// Query returns every document matching all filters.
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	// BatchWrite applies ops atomically. At most MaxBatchSize ops.
	BatchWrite(ctx context.Context, ops []BatchOp) error
}

// NewID returns a fresh document id.
func NewID() string { return uuid.NewString() }

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 || size > MaxBatchSize {
		size = MaxBatchSize
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}

// encode marshals doc into a JSON object and forces its "id" field.
func encode(doc any, id string) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "marshal document")
	}
	m := map[string]any{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errors.Wrap(err, "document must be a JSON object")
	}
	m["id"] = id
	return m, nil
}

func notFound(collection, id string) error {
	return errors.Wrapf(apperr.ErrNotFound, "%s/%s", collection, id)
}
