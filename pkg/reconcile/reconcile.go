// Package reconcile classifies a proof-of-payment amount against an order's
// registered amount. It is a pure decision layer: callers persist whatever
// state it yields.
package reconcile

import (
	"fmt"
	"math"
)

// Tolerance below which two amounts are considered equal, absorbing
// rounding noise from OCR or manual entry.
const Tolerance = 0.05

// State is the tri-state validation verdict for an amount pair. It is
// derived, never stored on its own: recompute whenever either amount moves.
type State int

const (
	Pending State = iota // no candidate amount yet
	Matched
	Mismatched
)

func (s State) String() string {
	switch s {
	case Matched:
		return "Coincide"
	case Mismatched:
		return "Difiere"
	default:
		return "Pendiente"
	}
}

// Classify compares a candidate amount against the registered amount.
// A zero or absent candidate is Pending; within Tolerance is Matched;
// anything else is Mismatched. Total over its domain, no error path.
func Classify(registered, candidate float64) State {
	if candidate == 0 {
		return Pending
	}
	if math.Abs(candidate-registered) < Tolerance {
		return Matched
	}
	return Mismatched
}

// SuggestCandidate returns the candidate amount to pre-fill for a given
// payment type. Cash and online payments skip the OCR pipeline entirely:
// the registered amount is auto-suggested and the operator may still edit
// it before classification. Photo validation suggests nothing.
func SuggestCandidate(tipoPago string, registered float64) float64 {
	switch tipoPago {
	case "EFECTIVO", "ONLINE":
		return registered
	}
	return 0
}

// FormatAmount renders an amount for the UI: two decimal places, or the
// empty string when no amount was found.
func FormatAmount(v float64, found bool) string {
	if !found {
		return ""
	}
	return fmt.Sprintf("%.2f", v)
}
