package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

const watchPage = `<html><script>ytcfg.set({"INNERTUBE_API_KEY": "AIzaTestKey_123"});</script></html>`

type fakeVideo struct {
	status     string
	reason     string
	tracks     []captionTrack
	noCaption  bool
	transcript map[string]string
}

// newYouTube serves the three Innertube endpoints for one video.
func newYouTube(t *testing.T, v fakeVideo) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, watchPage)
	})
	mux.HandleFunc("/youtubei/v1/player", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "AIzaTestKey_123", r.URL.Query().Get("key"))
		var req playerRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ANDROID", req.Context.Client.ClientName)

		status := v.status
		if status == "" {
			status = "OK"
		}
		resp := map[string]any{
			"playabilityStatus": map[string]any{"status": status, "reason": v.reason},
			"videoDetails":      map[string]any{"title": "Test video"},
		}
		if !v.noCaption {
			var tracks []map[string]any
			for _, tr := range v.tracks {
				tracks = append(tracks, map[string]any{
					"baseUrl":      fmt.Sprintf("http://%s/api/timedtext?lang=%s&kind=%s&fmt=srv3", r.Host, tr.LanguageCode, tr.Kind),
					"languageCode": tr.LanguageCode,
					"kind":         tr.Kind,
				})
			}
			resp["captions"] = map[string]any{
				"playerCaptionsTracklistRenderer": map[string]any{"captionTracks": tracks},
			}
		}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/api/timedtext", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("fmt"))
		key := r.URL.Query().Get("lang") + "/" + r.URL.Query().Get("kind")
		io.WriteString(w, v.transcript[key])
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestFetcher(srv *httptest.Server) *Fetcher {
	return NewFetcher(Config{
		BaseURL:           srv.URL,
		Languages:         []string{"en"},
		FallbackLanguages: []string{"en-US", "en-GB", "en-CA", "en-AU"},
	}, nil)
}

func TestExtractPrimaryLanguage(t *testing.T) {
	srv := newYouTube(t, fakeVideo{
		tracks: []captionTrack{{LanguageCode: "en", Kind: "asr"}, {LanguageCode: "en"}},
		transcript: map[string]string{
			"en/":    `<transcript><text start="0" dur="1">Hello &amp;amp; welcome</text><text start="1" dur="1">it&amp;#39;s a test</text></transcript>`,
			"en/asr": `<transcript><text start="0" dur="1">auto</text></transcript>`,
		},
	})
	doc, err := newTestFetcher(srv).Extract(context.Background(), domain.SourceRef{
		Kind:    domain.SourceVideo,
		Locator: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	})
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", doc.ID)
	assert.Equal(t, domain.SourceVideo, doc.Kind)
	assert.Equal(t, "Test video", doc.Title)
	assert.Equal(t, "en", doc.Language)
	assert.Equal(t, "Hello & welcome\nit's a test", doc.Content)
}

func TestExtractFallsBackToRegionalVariant(t *testing.T) {
	srv := newYouTube(t, fakeVideo{
		tracks: []captionTrack{{LanguageCode: "de"}, {LanguageCode: "en-GB"}},
		transcript: map[string]string{
			"en-GB/": `<transcript><text start="0" dur="1">Cheerio</text></transcript>`,
		},
	})
	doc, err := newTestFetcher(srv).Transcript(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "en-GB", doc.Language)
	assert.Equal(t, "Cheerio", doc.Content)
}

func TestExtractErrors(t *testing.T) {
	tests := []struct {
		name  string
		video fakeVideo
		want  error
	}{
		{"captions disabled", fakeVideo{noCaption: true}, domain.ErrCaptionsDisabled},
		{"no tracks", fakeVideo{}, domain.ErrCaptionsDisabled},
		{"no accepted language", fakeVideo{tracks: []captionTrack{{LanguageCode: "fr"}}}, domain.ErrNoTranscriptFound},
		{"private", fakeVideo{status: "LOGIN_REQUIRED", reason: "This video is private"}, domain.ErrSourceNotFound},
		{"removed", fakeVideo{status: "ERROR", reason: "Video unavailable"}, domain.ErrSourceNotFound},
		{"empty transcript", fakeVideo{
			tracks:     []captionTrack{{LanguageCode: "en"}},
			transcript: map[string]string{"en/": `<transcript></transcript>`},
		}, domain.ErrNoTranscriptFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newYouTube(t, tt.video)
			_, err := newTestFetcher(srv).Transcript(context.Background(), "dQw4w9WgXcQ")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
		})
	}
}

func TestExtractInvalidURLMakesNoRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	_, err := newTestFetcher(srv).Extract(context.Background(), domain.SourceRef{Locator: "https://example.com/video"})
	assert.ErrorIs(t, err, domain.ErrInvalidURL)
	assert.False(t, called)
}

func TestExtractWatchPageNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := newTestFetcher(srv).Transcript(context.Background(), "dQw4w9WgXcQ")
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
}

func TestExtractTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f := NewFetcher(Config{BaseURL: url}, nil)
	_, err := f.Transcript(context.Background(), "dQw4w9WgXcQ")
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Equal(t, domain.KindSourceUnavailable, domain.KindOf(err))
}

func TestSelectTrackPrefersManual(t *testing.T) {
	f := NewFetcher(Config{Languages: []string{"en"}}, nil)
	tr, ok := f.selectTrack([]captionTrack{{LanguageCode: "en", Kind: "asr", BaseURL: "a"}, {LanguageCode: "en", BaseURL: "m"}})
	require.True(t, ok)
	assert.Equal(t, "m", tr.BaseURL)
}
