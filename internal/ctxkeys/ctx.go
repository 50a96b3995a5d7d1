package ctxkeys

import (
	"context"

	"github.com/rushroster/rushroster-cloud/internal/model"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const (
	UserKey   contextKey = "user"
	DeviceKey contextKey = "device"
)

// User returns the authenticated dashboard user, or nil.
func User(ctx context.Context) *model.User {
	user, _ := ctx.Value(UserKey).(*model.User)
	return user
}

func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// Device returns the device resolved from the request's API key, or nil.
func Device(ctx context.Context) *model.Device {
	device, _ := ctx.Value(DeviceKey).(*model.Device)
	return device
}

func WithDevice(ctx context.Context, device *model.Device) context.Context {
	return context.WithValue(ctx, DeviceKey, device)
}
