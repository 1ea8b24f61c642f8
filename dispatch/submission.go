/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package dispatch

import (
	"fmt"
	"time"

	"github.com/rs/xid"
)

// Document is a value to be signed and sent to the remote API.
type Document struct {
	Value string
}

// Submission is a single unit of work: a document with the caller-supplied signature.
// It's passed by value and is never modified after creation.
type Submission struct {
	ID        string
	Document  Document
	Signature string
	CreatedAt time.Time
}

// NewSubmission creates a new Submission with a unique ID.
func NewSubmission(doc Document, signature string) Submission {
	return Submission{ID: xid.New().String(), Document: doc, Signature: signature, CreatedAt: time.Now()}
}

// SigningError describes a failure of signing the submission's document.
type SigningError struct {
	SubmissionID string
	Err          error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("signing of submission %s failed: %s", e.SubmissionID, e.Err.Error())
}

// Unwrap returns the next error in the error chain.
func (e *SigningError) Unwrap() error {
	return e.Err
}
