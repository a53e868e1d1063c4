package loader

import (
	"time"

	"github.com/gurkanfikretgunak/bio/internal/fetcher"
	"github.com/gurkanfikretgunak/bio/internal/models"
)

type Phase int

const (
	PhaseLoading Phase = iota
	PhaseError
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseError:
		return "error"
	case PhaseReady:
		return "ready"
	default:
		return "unknown"
	}
}

const (
	StatusConnecting = "Connecting…"
	StatusLoading    = "Loading your profile…"
)

// State is a snapshot of the load state. Only the fields of the current
// phase are meaningful: StatusText while loading, Message and Kind on
// error, Document when ready. Document must be treated as read-only.
type State struct {
	Phase      Phase
	StatusText string
	Message    string
	Kind       fetcher.Kind
	Document   *models.BioDocument
	Generation uint64
	UpdatedAt  time.Time
}

// Code is the error code of an Error state, empty otherwise.
func (s State) Code() string {
	if s.Phase != PhaseError {
		return ""
	}
	return s.Kind.Code()
}

// Title is the heading shown above an error message.
func Title(kind fetcher.Kind) string {
	switch kind {
	case fetcher.KindTimeout, fetcher.KindNetwork:
		return "Connection Error"
	default:
		return "Content Error"
	}
}

// Message is the visitor-facing explanation for a failure kind.
func Message(kind fetcher.Kind) string {
	switch kind {
	case fetcher.KindTimeout:
		return "The server took too long to respond. Please check your internet connection and try again."
	case fetcher.KindNetwork:
		return "Unable to connect to the server. Please check your internet connection and try again."
	case fetcher.KindConfiguration:
		return "This profile has not been published yet. Please try again later."
	case fetcher.KindParse:
		return "This profile could not be read. Please try again later."
	default:
		return "Something went wrong while loading this profile. Please try again."
	}
}
