package conversation

import (
	"errors"

	errx "github.com/Chative-core-poc-v1/sqlchat/internal/core/error"
)

// Validation rejections. They are returned before any mutation or network call.
var (
	ErrBlankQuery               = errx.Validation(errors.New("query text is blank"))
	ErrInvalidEnrichmentRequest = errx.Validation(errors.New("enrichment needs a known kind, user input and result rows"))
	ErrNotEnrichable            = errx.Validation(errors.New("no successful response at position"))
)

var (
	ErrUnknownPosition    = errors.New("no query at position")
	ErrAlreadyAnswered    = errors.New("position already has a response")
	ErrOutOfOrder         = errors.New("earlier position is still unanswered")
	ErrDispatchInFlight   = errors.New("a query dispatch is already in flight")
	ErrNotPending         = errors.New("response at position is not pending")
	ErrDispatchBusy       = errors.New("dispatcher is busy")
	ErrEnrichmentInFlight = errors.New("enrichment already in flight")
	ErrAlreadyEnriched    = errors.New("enrichment already succeeded")
	// ErrStaleTicket rejects outcomes issued before the conversation was cleared.
	ErrStaleTicket   = errors.New("ticket predates the last clear")
	ErrSessionClosed = errors.New("session is closed")
)
