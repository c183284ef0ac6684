package models

import "fmt"

// Status is a loan lifecycle state.
type Status string

const (
	StatusNewApplication Status = "new_application"
	StatusUnderReview    Status = "under_review"
	StatusApproved       Status = "approved"
	StatusForRelease     Status = "for_release"
	StatusDisbursed      Status = "disbursed"
	StatusClosed         Status = "closed"
	StatusRejected       Status = "rejected"
	StatusCancelled      Status = "cancelled"
	StatusRestructured   Status = "restructured"
)

var transitions = map[Status][]Status{
	StatusNewApplication: {StatusUnderReview, StatusRejected, StatusCancelled},
	StatusUnderReview:    {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved:       {StatusForRelease, StatusRejected, StatusRestructured},
	StatusForRelease:     {StatusDisbursed, StatusRejected, StatusRestructured},
	StatusDisbursed:      {StatusClosed, StatusRestructured},
	StatusRestructured:   {StatusDisbursed, StatusClosed},
}

// ActiveStatuses are the states in which a loan blocks a new application
// from the same borrower.
var ActiveStatuses = []Status{
	StatusNewApplication,
	StatusUnderReview,
	StatusApproved,
	StatusForRelease,
	StatusDisbursed,
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown loan status %q", s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusNewApplication, StatusUnderReview, StatusApproved, StatusForRelease,
		StatusDisbursed, StatusClosed, StatusRejected, StatusCancelled, StatusRestructured:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusRejected || s == StatusCancelled
}

func (s Status) Active() bool {
	for _, a := range ActiveStatuses {
		if s == a {
			return true
		}
	}
	return false
}

// Cancellable reports whether the borrower may still withdraw the application.
func (s Status) Cancellable() bool {
	return s == StatusNewApplication || s == StatusUnderReview
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// NextStatuses lists the states reachable from s in one step.
func (s Status) NextStatuses() []Status {
	return append([]Status(nil), transitions[s]...)
}
