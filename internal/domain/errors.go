package domain

import (
	"errors"
	"fmt"
)

// Pipeline errors. Stages wrap these with %w so callers can match on them.
var (
	// ErrInvalidURL indicates the input is not a recognised video URL.
	ErrInvalidURL = errors.New("invalid video URL")

	// ErrSourceUnavailable indicates no text could be obtained from the source.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrCaptionsDisabled indicates the video has captions turned off.
	ErrCaptionsDisabled = fmt.Errorf("captions disabled: %w", ErrSourceUnavailable)

	// ErrNoTranscriptFound indicates no transcript exists in an accepted language.
	ErrNoTranscriptFound = fmt.Errorf("no transcript found: %w", ErrSourceUnavailable)

	// ErrSourceNotFound indicates the video is private, removed or never existed.
	ErrSourceNotFound = fmt.Errorf("source not found: %w", ErrSourceUnavailable)

	// ErrUnparsableFile indicates the uploaded file could not be read as a document.
	ErrUnparsableFile = fmt.Errorf("unparsable file: %w", ErrSourceUnavailable)

	// ErrEmbeddingService indicates the embedding API call failed.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrEmptyIndex indicates a search was requested before any index was built.
	ErrEmptyIndex = errors.New("index is empty")

	// ErrGeneration indicates the language model call failed.
	ErrGeneration = errors.New("generation failed")

	// ErrContentBlocked indicates the model's safety policy refused the request.
	ErrContentBlocked = errors.New("content blocked by safety policy")

	// ErrEmptyQuery indicates a blank question.
	ErrEmptyQuery = errors.New("empty query")

	// ErrInvalidConfig indicates unusable configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ErrorKind classifies pipeline errors for user-facing reporting.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindInvalidURL
	KindCaptionsDisabled
	KindNoTranscriptFound
	KindSourceNotFound
	KindUnparsableFile
	KindSourceUnavailable
	KindEmbeddingService
	KindEmptyIndex
	KindGeneration
	KindContentBlocked
	KindEmptyQuery
	KindInvalidConfig
)

var kindNames = map[ErrorKind]string{
	KindUnknown:           "unknown",
	KindInvalidURL:        "invalid_url",
	KindCaptionsDisabled:  "captions_disabled",
	KindNoTranscriptFound: "no_transcript_found",
	KindSourceNotFound:    "source_not_found",
	KindUnparsableFile:    "unparsable_file",
	KindSourceUnavailable: "source_unavailable",
	KindEmbeddingService:  "embedding_service",
	KindEmptyIndex:        "empty_index",
	KindGeneration:        "generation",
	KindContentBlocked:    "content_blocked",
	KindEmptyQuery:        "empty_query",
	KindInvalidConfig:     "invalid_config",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Subtypes are checked before ErrSourceUnavailable, which they all wrap.
var kindOrder = []struct {
	err  error
	kind ErrorKind
}{
	{ErrInvalidURL, KindInvalidURL},
	{ErrCaptionsDisabled, KindCaptionsDisabled},
	{ErrNoTranscriptFound, KindNoTranscriptFound},
	{ErrSourceNotFound, KindSourceNotFound},
	{ErrUnparsableFile, KindUnparsableFile},
	{ErrSourceUnavailable, KindSourceUnavailable},
	{ErrEmbeddingService, KindEmbeddingService},
	{ErrEmptyIndex, KindEmptyIndex},
	{ErrContentBlocked, KindContentBlocked},
	{ErrGeneration, KindGeneration},
	{ErrEmptyQuery, KindEmptyQuery},
	{ErrInvalidConfig, KindInvalidConfig},
}

// KindOf reports the most specific kind err matches.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	for _, k := range kindOrder {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}
