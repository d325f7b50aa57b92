package types

import "context"

type ContextKey string

const (
	CtxRequestID ContextKey = "ctx_request_id"
	CtxTenantID  ContextKey = "ctx_tenant_id"
	CtxUserID    ContextKey = "ctx_user_id"
	CtxUserRole  ContextKey = "ctx_user_role"
)

// UserRole is the role carried by the bearer token.
type UserRole string

const (
	UserRoleMember UserRole = "member"
	UserRoleAdmin  UserRole = "admin"
)

func GetRequestID(ctx context.Context) string {
	return getString(ctx, CtxRequestID)
}

func GetTenantID(ctx context.Context) string {
	return getString(ctx, CtxTenantID)
}

func GetUserID(ctx context.Context) string {
	return getString(ctx, CtxUserID)
}

func GetUserRole(ctx context.Context) UserRole {
	if v, ok := ctx.Value(CtxUserRole).(UserRole); ok {
		return v
	}
	return UserRole(getString(ctx, CtxUserRole))
}

func IsAdmin(ctx context.Context) bool {
	return GetUserRole(ctx) == UserRoleAdmin
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, CtxRequestID, requestID)
}

func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, CtxTenantID, tenantID)
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, CtxUserID, userID)
}

func WithUserRole(ctx context.Context, role UserRole) context.Context {
	return context.WithValue(ctx, CtxUserRole, role)
}

func getString(ctx context.Context, key ContextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
