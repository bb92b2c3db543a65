package core

import (
	"context"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

type (
	// Record is a table row: column name -> value.
	Record map[string]interface{}

	// Filter is an AND of equality predicates: column name -> value.
	// A value of type In turns the predicate into a set membership test.
	Filter map[string]interface{}

	// In is a set of accepted values for a Filter column. An empty In matches nothing.
	In []interface{}

	// TableStore is the generic keyed table-query service every entity is persisted through.
	TableStore interface {
		Select(ctx context.Context, table string, filter Filter, opts ...QueryOption) ([]Record, error)
		Insert(ctx context.Context, table string, rec Record) (Record, error)
		Update(ctx context.Context, table string, filter Filter, partial Record) ([]Record, error)
		Delete(ctx context.Context, table string, filter Filter) ([]Record, error)
		Count(ctx context.Context, table string, filter Filter) (int, error)
	}

	QueryOptions struct {
		Orderings []DBOrdering
		Limit     int
	}

	QueryOption func(*QueryOptions)
)

func InStrings(values []string) In {
	in := make(In, 0, len(values))
	for _, v := range values {
		in = append(in, v)
	}
	return in
}

func OrderBy(orderings ...DBOrdering) QueryOption {
	return func(o *QueryOptions) { o.Orderings = append(o.Orderings, orderings...) }
}

func Limit(n int) QueryOption {
	return func(o *QueryOptions) { o.Limit = n }
}

func ApplyQueryOptions(opts []QueryOption) QueryOptions {
	var o QueryOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// DecodeRecord decodes a table row into out (a pointer to a struct tagged with `db`).
func DecodeRecord(rec Record, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "db",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			bytesToStringHook,
			nullStringHook,
			nullTimeHook,
			timeToDateStringHook,
			stringToTimeHook,
		),
	})
	if err != nil {
		return errors.Wrap(err, "creating record decoder")
	}
	return errors.Wrap(dec.Decode(map[string]interface{}(rec)), "decoding record")
}

// DecodeRecords decodes rows into a slice pointed to by out.
func DecodeRecords(recs []Record, out interface{}) error {
	raw := make([]map[string]interface{}, 0, len(recs))
	for _, r := range recs {
		raw = append(raw, r)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "db",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			bytesToStringHook,
			nullStringHook,
			nullTimeHook,
			timeToDateStringHook,
			stringToTimeHook,
		),
	})
	if err != nil {
		return errors.Wrap(err, "creating record decoder")
	}
	return errors.Wrap(dec.Decode(raw), "decoding records")
}

var (
	timeType       = reflect.TypeOf(time.Time{})
	nullStringType = reflect.TypeOf(null.String{})
	nullTimeType   = reflect.TypeOf(null.Time{})
)

func bytesToStringHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if b, ok := data.([]byte); ok && to.Kind() != reflect.Slice {
		return string(b), nil
	}
	return data, nil
}

func nullStringHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != nullStringType {
		return data, nil
	}
	switch v := data.(type) {
	case null.String:
		return v, nil
	case string:
		return null.StringFrom(v), nil
	case time.Time:
		return null.StringFrom(v.UTC().Format(DateLayout)), nil
	}
	return data, nil
}

func nullTimeHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != nullTimeType {
		return data, nil
	}
	switch v := data.(type) {
	case null.Time:
		return v, nil
	case time.Time:
		return null.TimeFrom(v.UTC()), nil
	case string:
		t, err := parseTime(v)
		if err != nil {
			return nil, err
		}
		return null.TimeFrom(t), nil
	}
	return data, nil
}

// date columns come back as time.Time from postgres (and sqlite), models keep them as strings
func timeToDateStringHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if t, ok := data.(time.Time); ok && to.Kind() == reflect.String {
		return t.UTC().Format(DateLayout), nil
	}
	return data, nil
}

func stringToTimeHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if s, ok := data.(string); ok && to == timeType {
		return parseTime(s)
	}
	if t, ok := data.(time.Time); ok && to == timeType {
		return t.UTC(), nil
	}
	return data, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05.999999999", DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Errorf("unsupported time format %q", s)
}

// SelectOne decodes the first row matching filter into out and reports whether there was one.
func SelectOne(ctx context.Context, store TableStore, table string, filter Filter, out interface{}) (bool, error) {
	recs, err := store.Select(ctx, table, filter, Limit(1))
	if err != nil {
		return false, errors.Wrapf(err, "selecting from %s", table)
	}
	if len(recs) == 0 {
		return false, nil
	}
	return true, DecodeRecord(recs[0], out)
}

// AllowedOrderings drops the orderings on fields that are not in allowed.
func AllowedOrderings(orderings []DBOrdering, allowed ...string) []DBOrdering {
	res := make([]DBOrdering, 0, len(orderings))
	for _, ord := range orderings {
		for _, field := range allowed {
			if ord.Field == field {
				res = append(res, ord)
				break
			}
		}
	}
	return res
}
