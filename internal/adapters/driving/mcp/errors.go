// Package mcp exposes the policy retrieval service to AI assistants over
// the Model Context Protocol.
package mcp

import (
	"errors"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
)

// ErrMissingRAGService is returned when the retrieval service is not provided.
var ErrMissingRAGService = errors.New("mcp: rag service is required")

// toolError is the error handed back to the assistant. Only the public
// message of err crosses the protocol boundary.
type toolError struct {
	msg   string
	cause error
}

func (e *toolError) Error() string { return e.msg }

func (e *toolError) Unwrap() error { return e.cause }

func publicError(err error) error {
	if err == nil {
		return nil
	}
	return &toolError{msg: domain.PublicMessage(err), cause: err}
}
