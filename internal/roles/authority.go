package roles

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/iliyamo/venture-platform/internal/apperr"
	"github.com/iliyamo/venture-platform/internal/audit"
	"github.com/iliyamo/venture-platform/internal/identity"
	"github.com/iliyamo/venture-platform/internal/model"
	"github.com/iliyamo/venture-platform/internal/store"
)

var tracer = otel.Tracer("roles")

// RoleChange is the result of a successful transition. ClaimUpdated is
// false when the stored role changed but the claim write failed; the next
// ReconcileClaim call repairs it.
type RoleChange struct {
	PreviousRole Role `json:"previousRole"`
	NewRole      Role `json:"newRole"`
	ClaimUpdated bool `json:"claimUpdated"`
}

// RoleOption is one entry of AvailableRoles.
type RoleOption struct {
	Role             Role   `json:"role"`
	Description      string `json:"description"`
	RequiresApproval bool   `json:"requiresApproval"`
}

// AvailableRoles is the read-only projection returned to clients.
type AvailableRoles struct {
	CurrentRole            Role         `json:"currentRole"`
	CurrentRoleDescription string       `json:"currentRoleDescription"`
	AvailableRoles         []RoleOption `json:"availableRoles"`
}

// RoleStatus compares the stored role with the claimed one.
type RoleStatus struct {
	Stored     Role `json:"storedRole"`
	Claimed    Role `json:"claimedRole"`
	ClaimStale bool `json:"claimStale"`
}

// Authority validates and executes role changes. The user document is the
// single source of truth; the claim, the notification and the audit entry
// are written after it, independently, and are not rolled back. Two
// concurrent changes for one user are last-write-wins on the whole
// document patch, so the history may not match the final role.
type Authority struct {
	reg    *Registry
	docs   store.DocumentStore
	claims identity.ClaimStore
	audit  *audit.Writer
	log    *zap.Logger
	now    func() time.Time
}

func NewAuthority(reg *Registry, docs store.DocumentStore, claims identity.ClaimStore, auditor *audit.Writer, log *zap.Logger) *Authority {
	if log == nil {
		log = zap.NewNop()
	}
	return &Authority{
		reg:    reg,
		docs:   docs,
		claims: claims,
		audit:  auditor,
		log:    log.Named("roles"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ChangeRole moves the caller to requested if the registry allows it.
func (a *Authority) ChangeRole(ctx context.Context, callerID string, requested Role) (RoleChange, error) {
	ctx, span := tracer.Start(ctx, "Roles.Authority.ChangeRole")
	defer span.End()

	if callerID == "" {
		return RoleChange{}, apperr.ErrUnauthenticated
	}
	change, err := a.changeRole(ctx, callerID, requested)
	if err != nil {
		span.RecordError(err)
		_ = a.audit.Failure(ctx, callerID, audit.RoleChangeFailed, err, map[string]any{
			"requestedRole": string(requested),
		})
		return RoleChange{}, err
	}
	return change, nil
}

func (a *Authority) changeRole(ctx context.Context, callerID string, requested Role) (RoleChange, error) {
	if !a.reg.Known(requested) {
		return RoleChange{}, fmt.Errorf("%w: %q", apperr.ErrInvalidRole, requested)
	}
	var u model.User
	if err := a.docs.Get(ctx, store.Users, callerID, &u); err != nil {
		return RoleChange{}, err
	}
	current := Role(u.Role)
	// restricted roles are rejected before the transition check so the
	// client always gets the same answer regardless of its current role
	if a.reg.RequiresApproval(requested) {
		return RoleChange{}, fmt.Errorf("%w: %s", apperr.ErrRestrictedRole, requested)
	}
	if !a.reg.CanTransition(current, requested) {
		allowed := a.reg.AllowedTransitions(current)
		names := make([]string, len(allowed))
		for i, r := range allowed {
			names[i] = string(r)
		}
		return RoleChange{}, &apperr.TransitionError{From: string(current), To: string(requested), Allowed: names}
	}
	return a.apply(ctx, &u, requested, callerID, audit.RoleChange)
}

// GrantRole is the administrative path. It bypasses the transition table
// and is the only way to reach a restricted role.
func (a *Authority) GrantRole(ctx context.Context, adminID, userID string, role Role) (RoleChange, error) {
	ctx, span := tracer.Start(ctx, "Roles.Authority.GrantRole")
	defer span.End()

	if adminID == "" {
		return RoleChange{}, apperr.ErrUnauthenticated
	}
	change, err := a.grantRole(ctx, adminID, userID, role)
	if err != nil {
		span.RecordError(err)
		_ = a.audit.Failure(ctx, adminID, audit.RoleGrantFailed, err, map[string]any{
			"userId": userID,
			"role":   string(role),
		})
		return RoleChange{}, err
	}
	return change, nil
}

func (a *Authority) grantRole(ctx context.Context, adminID, userID string, role Role) (RoleChange, error) {
	var caller model.User
	if err := a.docs.Get(ctx, store.Users, adminID, &caller); err != nil {
		return RoleChange{}, err
	}
	if Role(caller.Role) != Admin {
		return RoleChange{}, fmt.Errorf("%w: only admins can grant roles", apperr.ErrForbidden)
	}
	if !a.reg.Known(role) {
		return RoleChange{}, fmt.Errorf("%w: %q", apperr.ErrInvalidRole, role)
	}
	var u model.User
	if err := a.docs.Get(ctx, store.Users, userID, &u); err != nil {
		return RoleChange{}, err
	}
	return a.apply(ctx, &u, role, adminID, audit.RoleGrant)
}

func (a *Authority) apply(ctx context.Context, u *model.User, to Role, actorID, action string) (RoleChange, error) {
	now := a.now()
	from := Role(u.Role)
	history := append(slices.Clone(u.RoleHistory), model.RoleHistoryEntry{
		PreviousRole: string(from),
		NewRole:      string(to),
		ChangedBy:    actorID,
		ChangedAt:    now,
	})
	if err := a.docs.Update(ctx, store.Users, u.ID, map[string]any{
		"role":        string(to),
		"roleHistory": history,
		"updatedAt":   now,
	}); err != nil {
		return RoleChange{}, err
	}

	change := RoleChange{PreviousRole: from, NewRole: to, ClaimUpdated: true}
	var claimErr error
	if claimErr = a.claims.SetClaims(ctx, u.ID, identity.Claims{Role: string(to), UpdatedAt: now}); claimErr != nil {
		change.ClaimUpdated = false
		a.log.Warn("role stored but claim update failed",
			zap.String("user", u.ID), zap.String("role", string(to)), zap.Error(claimErr))
	}

	note := model.Notification{
		UserID:    u.ID,
		Title:     "Role Updated",
		Body:      fmt.Sprintf("Your role has been changed from %s to %s", from, to),
		Type:      "role_change",
		Data:      map[string]string{"previousRole": string(from), "newRole": string(to)},
		CreatedAt: now,
	}
	if _, err := a.docs.Create(ctx, store.Notifications, note); err != nil {
		a.log.Warn("role change notification failed", zap.String("user", u.ID), zap.Error(err))
	}

	// one entry per change; a diverged claim is recorded on it
	data := map[string]any{
		"userId":       u.ID,
		"previousRole": string(from),
		"newRole":      string(to),
		"claimUpdated": change.ClaimUpdated,
	}
	if claimErr != nil {
		data["claimError"] = claimErr.Error()
	}
	_ = a.audit.Record(ctx, actorID, action, data)
	a.log.Info("role changed",
		zap.String("user", u.ID), zap.String("from", string(from)), zap.String("to", string(to)))
	return change, nil
}

// ListAvailableRoles projects the registry onto the caller's stored role.
func (a *Authority) ListAvailableRoles(ctx context.Context, callerID string) (AvailableRoles, error) {
	if callerID == "" {
		return AvailableRoles{}, apperr.ErrUnauthenticated
	}
	var u model.User
	if err := a.docs.Get(ctx, store.Users, callerID, &u); err != nil {
		return AvailableRoles{}, err
	}
	current := Role(u.Role)
	out := AvailableRoles{
		CurrentRole:            current,
		CurrentRoleDescription: a.reg.Describe(current),
		AvailableRoles:         []RoleOption{},
	}
	for _, r := range a.reg.AllowedTransitions(current) {
		out.AvailableRoles = append(out.AvailableRoles, RoleOption{
			Role:             r,
			Description:      a.reg.Describe(r),
			RequiresApproval: a.reg.RequiresApproval(r),
		})
	}
	return out, nil
}

// Status reports the stored and claimed role for userID.
func (a *Authority) Status(ctx context.Context, userID string) (RoleStatus, error) {
	var u model.User
	if err := a.docs.Get(ctx, store.Users, userID, &u); err != nil {
		return RoleStatus{}, err
	}
	c, err := a.claims.Claims(ctx, userID)
	if err != nil {
		return RoleStatus{}, err
	}
	return RoleStatus{Stored: Role(u.Role), Claimed: Role(c.Role), ClaimStale: c.Role != u.Role}, nil
}

// ReconcileClaim rewrites the claim from the stored role when they differ.
// It is safe to call repeatedly.
func (a *Authority) ReconcileClaim(ctx context.Context, userID string) (Role, bool, error) {
	ctx, span := tracer.Start(ctx, "Roles.Authority.ReconcileClaim")
	defer span.End()

	st, err := a.Status(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return "", false, err
	}
	if !st.ClaimStale {
		return st.Stored, false, nil
	}
	if err := a.claims.SetClaims(ctx, userID, identity.Claims{Role: string(st.Stored), UpdatedAt: a.now()}); err != nil {
		span.RecordError(err)
		return st.Stored, false, err
	}
	_ = a.audit.Record(ctx, userID, audit.RoleClaimReconciled, map[string]any{
		"storedRole":  string(st.Stored),
		"claimedRole": string(st.Claimed),
	})
	return st.Stored, true, nil
}
