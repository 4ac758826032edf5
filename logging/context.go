package logging

import (
	"context"

	"go.viam.com/utils"
)

type debugLogKeyType int

const debugLogKeyID = debugLogKeyType(iota)

// EnableDebugMode returns a new context that forces debug logs through any
// logger it is passed to, regardless of the logger's level. An empty key
// generates a random one so separate planning runs can be told apart.
func EnableDebugMode(ctx context.Context, debugLogKey string) context.Context {
	if debugLogKey == "" {
		debugLogKey = utils.RandomAlphaString(6)
	}
	return context.WithValue(ctx, debugLogKeyID, debugLogKey)
}

// IsDebugMode returns whether the input context has debug logging enabled.
func IsDebugMode(ctx context.Context) bool {
	return GetName(ctx) != ""
}

// GetName returns the key that was attached by EnableDebugMode.
func GetName(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if val, ok := ctx.Value(debugLogKeyID).(string); ok {
		return val
	}
	return ""
}
