/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package signing defines the document signing collaborator of the submission pipeline.
package signing

import (
	"errors"

	"github.com/acronis/go-docsubmit/log"
)

// ErrEmptySignature is returned by LoggingSigner when the signature is empty.
var ErrEmptySignature = errors.New("signature is empty")

// Signer signs a document value with the caller-supplied signature.
// Sign is called synchronously from a dispatcher worker and should be fast.
type Signer interface {
	Sign(documentValue string, signature string) error
}

// SignerFunc is an adapter to allow the use of ordinary functions as Signer.
type SignerFunc func(documentValue string, signature string) error

// Sign implements Signer.
func (f SignerFunc) Sign(documentValue string, signature string) error {
	return f(documentValue, signature)
}

// LoggingSigner only records the fact of signing in the log.
// It rejects empty signatures and is intended for demos and tests.
type LoggingSigner struct {
	logger log.FieldLogger
}

// NewLoggingSigner creates a new LoggingSigner.
func NewLoggingSigner(logger log.FieldLogger) *LoggingSigner {
	return &LoggingSigner{logger: logger}
}

// Sign implements Signer.
func (s *LoggingSigner) Sign(documentValue string, signature string) error {
	if signature == "" {
		return ErrEmptySignature
	}
	s.logger.Info("document signed", log.String("document_value", documentValue), log.String("signature", signature))
	return nil
}
