/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package remote

import "context"

type ctxKey int

const ctxKeySubmissionID ctxKey = iota

// NewContextWithSubmissionID creates a new context with the submission ID.
// RequestIDRoundTripper sends it in the X-Request-ID header.
func NewContextWithSubmissionID(ctx context.Context, submissionID string) context.Context {
	return context.WithValue(ctx, ctxKeySubmissionID, submissionID)
}

// GetSubmissionIDFromContext extracts the submission ID from the context.
func GetSubmissionIDFromContext(ctx context.Context) string {
	if value, ok := ctx.Value(ctxKeySubmissionID).(string); ok {
		return value
	}
	return ""
}
