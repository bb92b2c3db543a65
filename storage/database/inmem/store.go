package inmemdb

import (
	"context"
	"database/sql/driver"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/learnmate/learnmate/core"
)

// UniqueKeys lists, per table, the column sets that must be unique. It mirrors the SQL migrations.
var UniqueKeys = map[string][][]string{
	"schools":        {{"id"}, {"school_name"}},
	"profiles":       {{"id"}, {"email"}},
	"credentials":    {{"user_id"}, {"email"}},
	"sessions":       {{"token_hash"}},
	"classes":        {{"id"}},
	"class_students": {{"class_id", "student_id"}},
	"attendance":     {{"id"}, {"class_id", "student_id", "date"}},
	"assignments":    {{"id"}},
	"submissions":    {{"id"}, {"assignment_id", "student_id"}},
	"grades":         {{"id"}, {"submission_id"}},
	"activity_logs":  {{"id"}},
}

// Store is a core.TableStore kept in memory. Rows keep their insertion order.
type Store struct {
	mu     sync.RWMutex
	tables map[string][]core.Record
}

var _ core.TableStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{tables: make(map[string][]core.Record)}
}

// Reset drops every row of every table.
func (s *Store) Reset() {
	s.mu.Lock()
	s.tables = make(map[string][]core.Record)
	s.mu.Unlock()
}

func (s *Store) Select(ctx context.Context, table string, filter core.Filter, opts ...core.QueryOption) ([]core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "selecting")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]core.Record, 0)
	for _, row := range s.tables[table] {
		if matches(row, filter) {
			res = append(res, copyRecord(row))
		}
	}

	o := core.ApplyQueryOptions(opts)
	if len(o.Orderings) > 0 {
		sort.SliceStable(res, func(i, j int) bool {
			for _, ord := range o.Orderings {
				c := compare(res[i][ord.Field], res[j][ord.Field])
				if c == 0 {
					continue
				}
				if ord.Ascending {
					return c < 0
				}
				return c > 0
			}
			return false
		})
	}
	if o.Limit > 0 && len(res) > o.Limit {
		res = res[:o.Limit]
	}
	return res, nil
}

func (s *Store) Insert(ctx context.Context, table string, rec core.Record) (core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "inserting")
	}
	row := normalizeRecord(rec)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUnique(table, row, -1); err != nil {
		return nil, err
	}
	s.tables[table] = append(s.tables[table], row)
	return copyRecord(row), nil
}

func (s *Store) Update(ctx context.Context, table string, filter core.Filter, partial core.Record) ([]core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "updating")
	}
	changes := normalizeRecord(partial)

	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]core.Record, 0)
	rows := s.tables[table]
	for i, row := range rows {
		if !matches(row, filter) {
			continue
		}
		updated := copyRecord(row)
		for k, v := range changes {
			updated[k] = v
		}
		if err := s.checkUnique(table, updated, i); err != nil {
			return nil, err
		}
		rows[i] = updated
		res = append(res, copyRecord(updated))
	}
	return res, nil
}

func (s *Store) Delete(ctx context.Context, table string, filter core.Filter) ([]core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "deleting")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]core.Record, 0)
	kept := make([]core.Record, 0, len(s.tables[table]))
	for _, row := range s.tables[table] {
		if matches(row, filter) {
			res = append(res, row)
		} else {
			kept = append(kept, row)
		}
	}
	s.tables[table] = kept
	return res, nil
}

func (s *Store) Count(ctx context.Context, table string, filter core.Filter) (int, error) {
	recs, err := s.Select(ctx, table, filter)
	return len(recs), err
}

func (s *Store) checkUnique(table string, row core.Record, skip int) error {
	for _, cols := range UniqueKeys[table] {
		for i, other := range s.tables[table] {
			if i == skip {
				continue
			}
			same := true
			for _, col := range cols {
				if compare(row[col], other[col]) != 0 || row[col] == nil {
					same = false
					break
				}
			}
			if same {
				return core.NewConflictError(fmt.Sprintf("duplicate %s (%s)", table, strings.Join(cols, ", ")))
			}
		}
	}
	return nil
}

func matches(row core.Record, filter core.Filter) bool {
	for col, want := range filter {
		got := row[col]
		if in, ok := want.(core.In); ok {
			found := false
			for _, v := range in {
				if compare(got, normalize(v)) == 0 {
					found = true
					break
				}
			}
			if !found {
				return false
			}
			continue
		}
		want = normalize(want)
		if want == nil {
			if got != nil {
				return false
			}
			continue
		}
		if got == nil || compare(got, want) != 0 {
			return false
		}
	}
	return true
}

// normalize turns driver.Valuers (null.String, null.Time...) into their plain values, like a SQL driver would.
func normalize(v interface{}) interface{} {
	if valuer, ok := v.(driver.Valuer); ok {
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr && rv.IsNil() {
			return nil
		}
		val, err := valuer.Value()
		if err != nil {
			return nil
		}
		v = val
	}
	if t, ok := v.(time.Time); ok {
		return t.UTC()
	}
	return v
}

func normalizeRecord(rec core.Record) core.Record {
	out := make(core.Record, len(rec))
	for k, v := range rec {
		out[k] = normalize(v)
	}
	return out
}

func copyRecord(rec core.Record) core.Record {
	out := make(core.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

// compare orders nil first, then times, numbers and strings; anything else compares by its printed form.
func compare(a, b interface{}) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			switch {
			case ta.Before(tb):
				return -1
			case ta.After(tb):
				return 1
			}
			return 0
		}
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
