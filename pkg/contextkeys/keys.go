// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application are defined here so their
// producers and consumers stay discoverable.
//
// USAGE PATTERN:
//
//	ctx = contextkeys.WithUser(ctx, user)
//	user := contextkeys.User(ctx)
package contextkeys

import (
	"context"

	"github.com/platinummonkey/evalhub/pkg/auth"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// UserKey contains *auth.User
	// Set by: the authentication layer in front of the core
	// Required by: rbac.Middleware
	UserKey Key = "user"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, admin responses
	RequestIDKey Key = "request_id"

	// LoggerKey contains logrus.FieldLogger
	// Set by: observability.WithLogger
	// Used by: Handlers and jobs that log with request or run context
	LoggerKey Key = "logger"
)

// WithUser adds the resolved user to the context
func WithUser(ctx context.Context, user *auth.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// User retrieves the resolved user from context, or nil
func User(ctx context.Context) *auth.User {
	if user, ok := ctx.Value(UserKey).(*auth.User); ok {
		return user
	}
	return nil
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
