package store

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Memory is an in-process DocumentStore. It backs tests and local
// development. BatchHook, when set, runs before every batch is applied and
// can fail it, which lets tests simulate partial fan-out.
type Memory struct {
	mu        sync.RWMutex
	data      map[string]map[string]map[string]any
	BatchHook func(ops []BatchOp) error
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: map[string]map[string]map[string]any{}}
}

func (m *Memory) coll(name string) map[string]map[string]any {
	c, ok := m.data[name]
	if !ok {
		c = map[string]map[string]any{}
		m.data[name] = c
	}
	return c
}

func (m *Memory) Get(_ context.Context, collection, id string, out any) error {
	m.mu.RLock()
	doc, ok := m.data[collection][id]
	var raw []byte
	var err error
	if ok {
		raw, err = json.Marshal(doc)
	}
	m.mu.RUnlock()
	if !ok {
		return notFound(collection, id)
	}
	if err != nil {
		return errors.Wrap(err, "marshal stored document")
	}
	return json.Unmarshal(raw, out)
}

func (m *Memory) Create(ctx context.Context, collection string, doc any) (string, error) {
	id := NewID()
	return id, m.Set(ctx, collection, id, doc)
}

func (m *Memory) Set(_ context.Context, collection, id string, doc any) error {
	enc, err := encode(doc, id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.coll(collection)[id] = enc
	m.mu.Unlock()
	return nil
}

func (m *Memory) Update(_ context.Context, collection, id string, patch map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyUpdate(collection, id, patch)
}

func (m *Memory) applyUpdate(collection, id string, patch map[string]any) error {
	doc, ok := m.data[collection][id]
	if !ok {
		return notFound(collection, id)
	}
	for k, v := range patch {
		if inc, ok := v.(Increment); ok {
			cur, _ := doc[k].(float64)
			doc[k] = cur + inc.N
			continue
		}
		nv, err := normalize(v)
		if err != nil {
			return err
		}
		doc[k] = nv
	}
	return nil
}

func (m *Memory) Query(_ context.Context, collection string, filters ...Filter) ([]Document, error) {
	norm := make([]Filter, len(filters))
	for i, f := range filters {
		if _, isTime := f.Value.(time.Time); isTime {
			norm[i] = f
			continue
		}
		v, err := normalize(f.Value)
		if err != nil {
			return nil, err
		}
		norm[i] = Filter{Field: f.Field, Op: f.Op, Value: v}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Document
	for id, doc := range m.data[collection] {
		if !matchesAll(doc, norm) {
			continue
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, errors.Wrap(err, "marshal stored document")
		}
		out = append(out, Document{ID: id, Data: raw})
	}
	// map iteration is random; keep results stable for callers and tests
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) BatchWrite(_ context.Context, ops []BatchOp) error {
	if len(ops) > MaxBatchSize {
		return ErrBatchTooLarge
	}
	if m.BatchHook != nil {
		if err := m.BatchHook(ops); err != nil {
			return err
		}
	}
	// encode everything first so a bad op leaves the store untouched
	encoded := make([]map[string]any, len(ops))
	for i := range ops {
		if ops[i].Kind == OpCreate && ops[i].ID == "" {
			ops[i].ID = NewID()
		}
		if ops[i].Kind == OpCreate || ops[i].Kind == OpSet {
			enc, err := encode(ops[i].Data, ops[i].ID)
			if err != nil {
				return err
			}
			encoded[i] = enc
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range ops {
		if op.Kind == OpUpdate {
			if _, ok := m.data[op.Collection][op.ID]; !ok {
				return notFound(op.Collection, op.ID)
			}
		}
	}
	for i, op := range ops {
		switch op.Kind {
		case OpCreate, OpSet:
			m.coll(op.Collection)[op.ID] = encoded[i]
		case OpUpdate:
			patch, _ := op.Data.(map[string]any)
			if err := m.applyUpdate(op.Collection, op.ID, patch); err != nil {
				return err
			}
		case OpDelete:
			delete(m.coll(op.Collection), op.ID)
		}
	}
	return nil
}

// Count returns the number of documents in a collection.
func (m *Memory) Count(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data[collection])
}

func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshal value")
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrap(err, "unmarshal value")
	}
	return out, nil
}

func matchesAll(doc map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if !matches(doc[f.Field], f) {
			return false
		}
	}
	return true
}

func matches(v any, f Filter) bool {
	switch f.Op {
	case OpEq:
		return reflect.DeepEqual(v, f.Value)
	case OpLt:
		c, ok := compare(v, f.Value)
		return ok && c < 0
	case OpGt:
		c, ok := compare(v, f.Value)
		return ok && c > 0
	case OpIn:
		list, _ := f.Value.([]any)
		for _, item := range list {
			if reflect.DeepEqual(v, item) {
				return true
			}
		}
	case OpContains:
		list, _ := v.([]any)
		for _, item := range list {
			if reflect.DeepEqual(item, f.Value) {
				return true
			}
		}
	}
	return false
}

func compare(a, b any) (int, bool) {
	switch bv := b.(type) {
	case time.Time:
		s, ok := a.(string)
		if !ok {
			return 0, false
		}
		at, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return 0, false
		}
		return at.Compare(bv), true
	case float64:
		av, ok := a.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case string:
		av, ok := a.(string)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
