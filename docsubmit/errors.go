/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package docsubmit

import (
	"github.com/acronis/go-docsubmit/admission"
	"github.com/acronis/go-docsubmit/dispatch"
	"github.com/acronis/go-docsubmit/remote"
)

// Errors that may be returned by Client or reported to observers.
var (
	ErrAdmissionRejected   = admission.ErrAdmissionRejected
	ErrShutdownInProgress  = admission.ErrShutdownInProgress
	ErrDispatcherSaturated = dispatch.ErrDispatcherSaturated
	ErrCallTimeout         = remote.ErrCallTimeout
)

// SigningError describes a failure of signing a document.
type SigningError = dispatch.SigningError

// TransportError describes a failed remote API call.
type TransportError = remote.TransportError

// Document is a value to be signed and sent to the remote API.
type Document = dispatch.Document
