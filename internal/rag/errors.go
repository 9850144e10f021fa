package rag

import (
	"errors"
	"net/http"
)

// Sentinel errors returned by Engine operations. Handlers map them to
// stable machine codes and HTTP statuses; everything else is internal.
var (
	ErrBadRequest        = errors.New("bad request")
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrEmptyDocument     = errors.New("document contains no extractable text")
	ErrInvalidMetadata   = errors.New("invalid metadata")
	ErrStoreUnavailable  = errors.New("vector store unavailable")
	ErrRetrieval         = errors.New("retrieval failed")
	ErrGeneration        = errors.New("answer generation failed")
	ErrNotInitialized    = errors.New("service component not initialized")
	ErrUnknownSession    = errors.New("unknown session")
)

// Code returns the stable machine-readable code for err.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrBadRequest):
		return "bad_request"
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, ErrEmptyDocument):
		return "empty_document"
	case errors.Is(err, ErrInvalidMetadata):
		return "invalid_metadata"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrRetrieval):
		return "retrieval_failure"
	case errors.Is(err, ErrGeneration):
		return "generation_failure"
	case errors.Is(err, ErrNotInitialized):
		return "not_initialized"
	case errors.Is(err, ErrUnknownSession):
		return "unknown_session"
	default:
		return "internal"
	}
}

// HTTPStatus maps err to the response status its code implies.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, ErrUnsupportedFormat),
		errors.Is(err, ErrEmptyDocument),
		errors.Is(err, ErrInvalidMetadata):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnknownSession):
		return http.StatusNotFound
	case errors.Is(err, ErrNotInitialized),
		errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrRetrieval), errors.Is(err, ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
