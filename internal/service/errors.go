// Package service implements the product search use cases on top of retrieval and reranking.
package service

import "errors"

var (
	// ErrInvalidRequest is returned for rejected request parameters. The
	// service never clamps out-of-range values.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrExplanationUnavailable is returned when the language model cannot produce an explanation.
	ErrExplanationUnavailable = errors.New("explanation unavailable")
)
