package auth

import (
	"context"

	"github.com/pkg/errors"

	"github.com/learnmate/learnmate/core"
)

// EnrollmentLookup reports whether a student is on a class roster.
type EnrollmentLookup interface {
	IsEnrolled(ctx context.Context, classID, studentID string) (bool, error)
}

// RequireRole fails with core.ErrForbidden unless u has exactly role.
func RequireRole(u User, role Role) error {
	if u.Role != role {
		return core.ErrForbidden
	}
	return nil
}

// RequireAnyRole fails with core.ErrForbidden unless u has one of roles.
func RequireAnyRole(u User, roles ...Role) error {
	if !u.Is(roles...) {
		return core.ErrForbidden
	}
	return nil
}

// RequireTenant fails when u belongs to no school.
func RequireTenant(u User) error {
	if !u.HasTenant() {
		return core.ErrForbidden
	}
	return nil
}

// RequireSameTenant fails unless u belongs to schoolID. A user without a school never passes.
func RequireSameTenant(u User, schoolID string) error {
	if !u.HasTenant() || u.SchoolID.String != schoolID {
		return core.ErrForbidden
	}
	return nil
}

// RequireOwnerOrRole passes when u owns the resource or has one of the privileged roles.
func RequireOwnerOrRole(u User, ownerID string, privileged ...Role) error {
	if (ownerID != "" && u.ID == ownerID) || u.Is(privileged...) {
		return nil
	}
	return core.ErrForbidden
}

// RequireEnrollment passes only for a student enrolled in classID.
// Non-student roles are authorized through ownership or role guards instead, so they fail here.
func RequireEnrollment(ctx context.Context, u User, classID string, lookup EnrollmentLookup) error {
	if u.Role != RoleStudent {
		return core.ErrForbidden
	}
	ok, err := lookup.IsEnrolled(ctx, classID, u.ID)
	if err != nil {
		return errors.Wrap(err, "checking enrollment")
	}
	if !ok {
		return core.ErrForbidden
	}
	return nil
}

// Check is a deferred guard evaluation.
type Check func(ctx context.Context) error

func HasRole(u User, roles ...Role) Check {
	return func(context.Context) error { return RequireAnyRole(u, roles...) }
}

func Tenant(u User) Check {
	return func(context.Context) error { return RequireTenant(u) }
}

func SameTenant(u User, schoolID string) Check {
	return func(context.Context) error { return RequireSameTenant(u, schoolID) }
}

func OwnerOrRole(u User, ownerID string, privileged ...Role) Check {
	return func(context.Context) error { return RequireOwnerOrRole(u, ownerID, privileged...) }
}

func Enrolled(u User, classID string, lookup EnrollmentLookup) Check {
	return func(ctx context.Context) error { return RequireEnrollment(ctx, u, classID, lookup) }
}

// All evaluates checks in order and stops at the first failure.
func All(ctx context.Context, checks ...Check) error {
	for _, check := range checks {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "authorizing")
		}
		if err := check(ctx); err != nil {
			return err
		}
	}
	return nil
}

// AnyOf passes as soon as one check passes. Failures other than core.ErrForbidden
// (an unreachable store, a cancelled context) are returned immediately rather than masked as forbidden.
func AnyOf(checks ...Check) Check {
	return func(ctx context.Context) error {
		for _, check := range checks {
			err := check(ctx)
			if err == nil {
				return nil
			}
			if errors.Cause(err) != core.ErrForbidden {
				return err
			}
		}
		return core.ErrForbidden
	}
}
