package youtube

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
)

const (
	DefaultBaseURL   = "https://www.youtube.com"
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Config controls where transcripts are fetched from and which languages are accepted.
type Config struct {
	BaseURL           string
	Languages         []string
	FallbackLanguages []string
	Timeout           time.Duration
	HTTPClient        *http.Client
}

// Fetcher extracts video transcripts through YouTube's Innertube API.
type Fetcher struct {
	baseURL   string
	languages [][]string
	client    *http.Client
	userAgent string
	log       *logger.Logger
}

func NewFetcher(cfg Config, log *logger.Logger) *Fetcher {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	primary := cfg.Languages
	if len(primary) == 0 {
		primary = []string{"en"}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Fetcher{
		baseURL:   baseURL,
		languages: [][]string{primary, cfg.FallbackLanguages},
		client:    client,
		userAgent: defaultUserAgent,
		log:       log,
	}
}

// Extract resolves ref.Locator to a video and returns its transcript.
func (f *Fetcher) Extract(ctx context.Context, ref domain.SourceRef) (*domain.Document, error) {
	videoID, ok := ExtractVideoID(strings.TrimSpace(ref.Locator))
	if !ok {
		return nil, fmt.Errorf("%q: %w", ref.Locator, domain.ErrInvalidURL)
	}
	return f.Transcript(ctx, videoID)
}

// Transcript fetches the transcript of videoID in the first accepted language.
func (f *Fetcher) Transcript(ctx context.Context, videoID string) (*domain.Document, error) {
	key, err := f.apiKey(ctx, videoID)
	if err != nil {
		return nil, err
	}
	player, err := f.player(ctx, videoID, key)
	if err != nil {
		return nil, err
	}
	if err := playability(videoID, player); err != nil {
		return nil, err
	}
	tracks := player.tracks()
	if len(tracks) == 0 {
		return nil, fmt.Errorf("video %s: %w", videoID, domain.ErrCaptionsDisabled)
	}
	track, ok := f.selectTrack(tracks)
	if !ok {
		return nil, fmt.Errorf("video %s: requested %s, available %s: %w",
			videoID, strings.Join(f.requested(), ","), strings.Join(available(tracks), ","), domain.ErrNoTranscriptFound)
	}
	f.log.Debug("caption track selected", "video_id", videoID, "language", track.LanguageCode, "generated", track.generated())

	text, err := f.timedText(ctx, track)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("video %s: transcript %s is empty: %w", videoID, track.LanguageCode, domain.ErrNoTranscriptFound)
	}
	return &domain.Document{
		ID:       videoID,
		Kind:     domain.SourceVideo,
		Title:    player.VideoDetails.Title,
		Content:  text,
		Language: track.LanguageCode,
	}, nil
}

func playability(videoID string, p *playerResponse) error {
	status := p.PlayabilityStatus.Status
	switch status {
	case "", "OK":
		return nil
	case "ERROR", "LOGIN_REQUIRED", "UNPLAYABLE":
		return fmt.Errorf("video %s: %s: %w", videoID, reasonOr(p, status), domain.ErrSourceNotFound)
	default:
		return fmt.Errorf("video %s: %s: %w", videoID, reasonOr(p, status), domain.ErrSourceUnavailable)
	}
}

func reasonOr(p *playerResponse, status string) string {
	if p.PlayabilityStatus.Reason != "" {
		return p.PlayabilityStatus.Reason
	}
	return strings.ToLower(status)
}

// selectTrack walks the primary then fallback language lists. For each
// language a manually created track wins over a generated one.
func (f *Fetcher) selectTrack(tracks []captionTrack) (captionTrack, bool) {
	for _, langs := range f.languages {
		for _, lang := range langs {
			var generated *captionTrack
			for i := range tracks {
				if tracks[i].LanguageCode != lang {
					continue
				}
				if !tracks[i].generated() {
					return tracks[i], true
				}
				if generated == nil {
					generated = &tracks[i]
				}
			}
			if generated != nil {
				return *generated, true
			}
		}
	}
	return captionTrack{}, false
}

func (f *Fetcher) requested() []string {
	var out []string
	for _, langs := range f.languages {
		out = append(out, langs...)
	}
	return out
}

func available(tracks []captionTrack) []string {
	seen := make(map[string]struct{}, len(tracks))
	var out []string
	for _, t := range tracks {
		if _, ok := seen[t.LanguageCode]; ok {
			continue
		}
		seen[t.LanguageCode] = struct{}{}
		out = append(out, t.LanguageCode)
	}
	sort.Strings(out)
	return out
}
