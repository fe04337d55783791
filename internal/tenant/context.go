package tenant

import (
	"context"
	"errors"
)

// Key for owner ID in context
type contextKey string

const (
	ownerIDKey   contextKey = "ownerID"
	requestIDKey contextKey = "requestID"
)

// ErrOwnerIDNotFound is returned when no owner ID is found in context
var ErrOwnerIDNotFound = errors.New("owner ID not found in context")

// WithOwnerID adds an owner (tenant) ID to the context. Every persistence
// operation is scoped by this ID; there is no cross-owner visibility.
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerIDKey, ownerID)
}

// FromContext extracts the owner ID from the context
func FromContext(ctx context.Context) (string, error) {
	ownerID, ok := ctx.Value(ownerIDKey).(string)
	if !ok || ownerID == "" {
		return "", ErrOwnerIDNotFound
	}
	return ownerID, nil
}

// MustFromContext extracts the owner ID from the context or panics
func MustFromContext(ctx context.Context) string {
	ownerID, err := FromContext(ctx)
	if err != nil {
		panic(err)
	}
	return ownerID
}

// ErrNoRequestIDInContext is returned when no request ID is found in context
var ErrNoRequestIDInContext = errors.New("no request ID found in context")

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// FromRequestIDContext extracts the request ID from the context
func FromRequestIDContext(ctx context.Context) (string, error) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	if !ok || requestID == "" {
		return "", ErrNoRequestIDInContext
	}
	return requestID, nil
}
