package sqlxrepos

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/learnmate/learnmate/core"
)

const uniqueViolation = "23505"

var identRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Store is a core.TableStore over any sqlx database whose driver supports RETURNING.
type Store struct {
	db *sqlx.DB
}

var _ core.TableStore = (*Store)(nil)

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func checkIdent(names ...string) error {
	for _, n := range names {
		if !identRegex.MatchString(n) {
			return errors.Errorf("invalid identifier %q", n)
		}
	}
	return nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// where builds the WHERE clause (with ? placeholders) for filter.
func where(filter core.Filter) (string, []interface{}, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}
	conds := make([]string, 0, len(filter))
	args := make([]interface{}, 0, len(filter))
	for _, col := range sortedKeys(filter) {
		if err := checkIdent(col); err != nil {
			return "", nil, err
		}
		switch v := filter[col].(type) {
		case core.In:
			if len(v) == 0 {
				conds = append(conds, "1 = 0")
				continue
			}
			conds = append(conds, col+" IN (?)")
			args = append(args, []interface{}(v))
		case nil:
			conds = append(conds, col+" IS NULL")
		default:
			conds = append(conds, col+" = ?")
			args = append(args, v)
		}
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// prepare expands IN clauses and rebinds placeholders for the driver.
func (s *Store) prepare(query string, args []interface{}) (string, []interface{}, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, errors.Wrap(err, "expanding query")
	}
	return s.db.Rebind(query), args, nil
}

func (s *Store) query(ctx context.Context, op, query string, args []interface{}) ([]core.Record, error) {
	query, args, err := s.prepare(query, args)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer func() { _ = rows.Close() }()

	res := make([]core.Record, 0)
	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return nil, classify(op, err)
		}
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		res = append(res, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return res, nil
}

func (s *Store) Select(ctx context.Context, table string, filter core.Filter, opts ...core.QueryOption) ([]core.Record, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	cond, args, err := where(filter)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT * FROM " + table + cond)

	o := core.ApplyQueryOptions(opts)
	if len(o.Orderings) > 0 {
		ords := make([]string, 0, len(o.Orderings))
		for _, ord := range o.Orderings {
			if err := checkIdent(ord.Field); err != nil {
				return nil, err
			}
			ords = append(ords, ord.String())
		}
		sb.WriteString(" ORDER BY " + strings.Join(ords, ", "))
	}
	if o.Limit > 0 {
		sb.WriteString(" LIMIT " + strconv.Itoa(o.Limit))
	}
	return s.query(ctx, "select "+table, sb.String(), args)
}

func (s *Store) Insert(ctx context.Context, table string, rec core.Record) (core.Record, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	cols := sortedKeys(rec)
	if err := checkIdent(cols...); err != nil {
		return nil, err
	}
	args := make([]interface{}, 0, len(cols))
	for _, c := range cols {
		args = append(args, rec[c])
	}
	q := "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES (" +
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ") RETURNING *"

	res, err := s.query(ctx, "insert "+table, q, args)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, errors.Errorf("insert into %s returned no row", table)
	}
	return res[0], nil
}

func (s *Store) Update(ctx context.Context, table string, filter core.Filter, partial core.Record) ([]core.Record, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	if len(partial) == 0 {
		return s.Select(ctx, table, filter)
	}
	cols := sortedKeys(partial)
	if err := checkIdent(cols...); err != nil {
		return nil, err
	}
	sets := make([]string, 0, len(cols))
	args := make([]interface{}, 0, len(cols)+len(filter))
	for _, c := range cols {
		sets = append(sets, c+" = ?")
		args = append(args, partial[c])
	}
	cond, condArgs, err := where(filter)
	if err != nil {
		return nil, err
	}
	args = append(args, condArgs...)
	q := "UPDATE " + table + " SET " + strings.Join(sets, ", ") + cond + " RETURNING *"
	return s.query(ctx, "update "+table, q, args)
}

func (s *Store) Delete(ctx context.Context, table string, filter core.Filter) ([]core.Record, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	cond, args, err := where(filter)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, "delete "+table, "DELETE FROM "+table+cond+" RETURNING *", args)
}

func (s *Store) Count(ctx context.Context, table string, filter core.Filter) (int, error) {
	if err := checkIdent(table); err != nil {
		return 0, err
	}
	cond, args, err := where(filter)
	if err != nil {
		return 0, err
	}
	q, args, err := s.prepare("SELECT COUNT(*) FROM "+table+cond, args)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.GetContext(ctx, &n, q, args...); err != nil {
		return 0, classify("count "+table, err)
	}
	return n, nil
}

// classify maps driver errors onto the core taxonomy: unique violations are conflicts,
// everything else means the store could not serve the request.
func classify(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return core.NewConflictError("duplicate " + pqErr.Constraint)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return core.NewConflictError("duplicate " + pgErr.ConstraintName)
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") { // sqlite
		return core.NewConflictError("duplicate record")
	}
	return core.NewUpstreamError(op, err)
}
