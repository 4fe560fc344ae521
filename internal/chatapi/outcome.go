package chatapi

import (
	"fmt"
	"net/http"

	"github.com/studiowebux/chatload/internal/loadtest"
	"github.com/studiowebux/chatload/internal/types"
)

// OutcomeKind classifies a single chat API call
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	// OutcomeTransport is any non-200 status, a connection failure (status 0)
	// or a 200 whose body could not be read
	OutcomeTransport
	// OutcomeApplication is a 200 whose body lacks success:true
	OutcomeApplication
	// OutcomeCancelled means the run ended mid-request; nothing is reported
	OutcomeCancelled
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeTransport:
		return "transport"
	case OutcomeApplication:
		return "application"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of one call
type Outcome struct {
	Kind       OutcomeKind
	StatusCode int
	Message    string
	Envelope   *types.Envelope
}

// OK reports whether the call succeeded
func (o Outcome) OK() bool {
	return o.Kind == OutcomeSuccess
}

// Reason is the failure text handed to the aggregator
func (o Outcome) Reason() string {
	switch o.Kind {
	case OutcomeTransport:
		// A 200 lands here only when the body could not be read
		if o.StatusCode == 0 || o.StatusCode == http.StatusOK {
			return fmt.Sprintf("connection error: %s", o.Message)
		}
		return fmt.Sprintf("HTTP error: %d", o.StatusCode)
	case OutcomeApplication:
		return fmt.Sprintf("API error: %s", o.Message)
	default:
		return ""
	}
}

// Classify applies the success rule: HTTP 200 and body success flag true
func Classify(resp *loadtest.Response) Outcome {
	if resp.Cancelled() {
		return Outcome{Kind: OutcomeCancelled, StatusCode: resp.StatusCode}
	}

	if resp.StatusCode != http.StatusOK {
		out := Outcome{Kind: OutcomeTransport, StatusCode: resp.StatusCode}
		if resp.Err != nil {
			out.Message = resp.Err.Error()
		}
		return out
	}
	if resp.Err != nil {
		return Outcome{Kind: OutcomeTransport, StatusCode: resp.StatusCode, Message: resp.Err.Error()}
	}

	var envelope types.Envelope
	if err := resp.DecodeJSON(&envelope); err != nil {
		return Outcome{
			Kind:       OutcomeApplication,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("invalid JSON response: %v", err),
		}
	}
	if !envelope.IsSuccess() {
		msg := envelope.ErrorMessage()
		if msg == "" {
			msg = "Unknown error"
		}
		return Outcome{Kind: OutcomeApplication, StatusCode: resp.StatusCode, Message: msg, Envelope: &envelope}
	}
	return Outcome{Kind: OutcomeSuccess, StatusCode: resp.StatusCode, Envelope: &envelope}
}

// report classifies and reports the response exactly once
func report(resp *loadtest.Response) Outcome {
	return reportOutcome(resp, Classify(resp))
}

func reportOutcome(resp *loadtest.Response, out Outcome) Outcome {
	switch out.Kind {
	case OutcomeSuccess:
		resp.Success()
	case OutcomeTransport, OutcomeApplication:
		resp.Failure(out.Reason())
	}
	return out
}
