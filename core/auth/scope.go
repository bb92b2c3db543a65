package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/learnmate/learnmate/core"
)

// Scoped returns a copy of filter restricted to u's school.
// Every list, read or mutation of a tenant-scoped table goes through it.
func Scoped(u User, filter core.Filter) core.Filter {
	scoped := make(core.Filter, len(filter)+1)
	for k, v := range filter {
		scoped[k] = v
	}
	scoped["school_id"] = u.SchoolID.String
	return scoped
}

// Stamp sets u's school on a record about to be inserted, overriding whatever the client sent.
func Stamp(u User, rec core.Record) core.Record {
	rec["school_id"] = u.SchoolID.String
	return rec
}

// FetchScoped loads the row of table with the given id, within u's school, into out.
// A missing row and a row of another school both fail with core.ErrForbidden.
func FetchScoped(ctx context.Context, store core.TableStore, u User, table, id string, out interface{}) error {
	if err := RequireTenant(u); err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return core.ErrForbidden
	}
	found, err := core.SelectOne(ctx, store, table, Scoped(u, core.Filter{"id": id}), out)
	if err != nil {
		return err
	}
	if !found {
		return core.ErrForbidden
	}
	return nil
}
