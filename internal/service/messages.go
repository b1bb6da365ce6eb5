package service

import (
	"errors"
	"fmt"
	"strings"

	"ragchat/internal/domain"
)

// UserMessage turns a pipeline error into an actionable message for the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch domain.KindOf(err) {
	case domain.KindInvalidURL:
		return `Invalid YouTube URL.

Please enter a valid YouTube video URL. It should look like:
- https://www.youtube.com/watch?v=VIDEO_ID
- https://youtu.be/VIDEO_ID`
	case domain.KindCaptionsDisabled:
		return `This video has captions disabled.

Please try a different video that has captions enabled. You can check if a video has captions by:
1. Looking for the CC (Closed Captions) button in YouTube
2. Checking if the video has auto-generated captions`
	case domain.KindNoTranscriptFound:
		return `No captions found for this video.

Please try a different video that has captions available. You can:
1. Try a different video
2. Check if the video has captions enabled
3. Look for videos with auto-generated captions`
	case domain.KindSourceNotFound, domain.KindSourceUnavailable:
		return fmt.Sprintf(`Error: %s

This might be because:
1. The video is private or restricted
2. The video doesn't exist
3. There's an issue with the YouTube API

Please try a different video URL.`, cause(err))
	case domain.KindUnparsableFile:
		return fmt.Sprintf(`Could not read this file: %s

Please upload a text-based PDF. Scanned documents without a text layer cannot be indexed.`, cause(err))
	case domain.KindEmbeddingService:
		return fmt.Sprintf(`Could not create embeddings: %s

Please check your Gemini API key and your internet connection.`, cause(err))
	case domain.KindEmptyIndex:
		return "Nothing is loaded yet. Load a video or a PDF first, then ask your question."
	case domain.KindContentBlocked:
		return "The answer was blocked by the model's safety settings. Try rephrasing your question."
	case domain.KindGeneration:
		return fmt.Sprintf(`The model could not answer: %s

Please try:
1. Checking your Gemini API key
2. Checking your internet connection
3. Asking again`, cause(err))
	case domain.KindEmptyQuery:
		return "Please type a question."
	case domain.KindInvalidConfig:
		return fmt.Sprintf("Configuration problem: %s", cause(err))
	}
	return fmt.Sprintf(`An unexpected error occurred: %v

Please try:
1. Using a different source
2. Checking your internet connection
3. Restarting the app`, err)
}

// cause strips the sentinel text from err, leaving the context added by the stage.
func cause(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{
		domain.ErrCaptionsDisabled, domain.ErrNoTranscriptFound, domain.ErrSourceNotFound,
		domain.ErrUnparsableFile, domain.ErrSourceUnavailable, domain.ErrEmbeddingService,
		domain.ErrGeneration, domain.ErrInvalidConfig,
	} {
		if !errors.Is(err, sentinel) {
			continue
		}
		s := sentinel.Error()
		msg = strings.TrimSuffix(msg, ": "+s)
		msg = strings.TrimPrefix(msg, s+": ")
	}
	if msg == "" {
		return err.Error()
	}
	return msg
}
