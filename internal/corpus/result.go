package corpus

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/model"
)

// Outcome classifies the result of Add or Update.
type Outcome int

const (
	Created Outcome = iota + 1
	Updated
	AlreadyExists
	ProcessingFailed
	StorageFailed
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case AlreadyExists:
		return "already_exists"
	case ProcessingFailed:
		return "processing_failed"
	case StorageFailed:
		return "storage_failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result is the outcome of Add or Update. Document is set whenever a
// document was found or stored; Err carries the cause of a failure.
type Result struct {
	Outcome  Outcome
	Document *model.Document
	Err      error
}

// OK reports whether the call succeeded, counting a no-op add as success.
func (r Result) OK() bool {
	switch r.Outcome {
	case Created, Updated, AlreadyExists:
		return true
	default:
		return false
	}
}

func failed(outcome Outcome, doc *model.Document, err error) Result {
	return Result{Outcome: outcome, Document: doc, Err: err}
}
