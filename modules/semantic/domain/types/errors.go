package types

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorKind string

const (
	KindNotFound         ErrorKind = "not_found"
	KindAmbiguity        ErrorKind = "ambiguity"
	KindPolicyDenied     ErrorKind = "policy_denied"
	KindValidation       ErrorKind = "validation"
	KindExecutionFailure ErrorKind = "execution_failure"
	KindInternal         ErrorKind = "internal"
)

// Candidate is one option listed by an ambiguity error. Score is set for
// object matches, Priority for version ties.
type Candidate struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Domain   string `json:"domain,omitempty"`
	Score    int    `json:"score,omitempty"`
	Priority *int   `json:"priority,omitempty"`
}

type SemanticError struct {
	Kind       ErrorKind
	Message    string
	Candidates []Candidate
	Missing    []string
}

func (e *SemanticError) Error() string { return e.Message }

func NewNotFound(format string, args ...any) error {
	return &SemanticError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewAmbiguity(message string, candidates []Candidate) error {
	return &SemanticError{Kind: KindAmbiguity, Message: message, Candidates: candidates}
}

func NewPolicyDenied(reason string) error {
	return &SemanticError{Kind: KindPolicyDenied, Message: reason}
}

func NewValidation(format string, args ...any) error {
	return &SemanticError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewMissingParameters(missing []string) error {
	return &SemanticError{
		Kind:    KindValidation,
		Message: "missing required parameters: " + strings.Join(missing, ", "),
		Missing: append([]string(nil), missing...),
	}
}

func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if se, ok := errors.AsType[*SemanticError](err); ok {
		return se.Kind
	}
	return KindInternal
}

func CandidatesOf(err error) []Candidate {
	if se, ok := errors.AsType[*SemanticError](err); ok {
		return se.Candidates
	}
	return nil
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
