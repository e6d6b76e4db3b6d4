package auth

import (
	"context"
	"net/http"
	"slices"
)

const (
	GroupManager      = "Manager"
	GroupDeliveryCrew = "Delivery crew"
)

// Identity is the authenticated caller together with its group names.
type Identity struct {
	UserID      int64
	Username    string
	IsStaff     bool
	IsSuperuser bool
	Groups      []string
}

func (id Identity) InGroup(name string) bool { return slices.Contains(id.Groups, name) }

func IsManager(id Identity) bool {
	return id.IsStaff || id.IsSuperuser || id.InGroup(GroupManager)
}

func IsDeliveryCrew(id Identity) bool {
	return id.IsStaff || id.IsSuperuser || id.InGroup(GroupDeliveryCrew)
}

// ManagerUnlessRead reports whether id may issue method against a catalog
// resource: safe methods are open to every authenticated caller.
func ManagerUnlessRead(id Identity, method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return IsManager(id)
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
