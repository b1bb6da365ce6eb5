package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"

	"ragchat/internal/domain"
)

const (
	innertubeClientName    = "ANDROID"
	innertubeClientVersion = "20.10.38"
	maxPageBytes           = 8 << 20
)

var apiKeyPattern = regexp.MustCompile(`"INNERTUBE_API_KEY":\s*"([a-zA-Z0-9_-]+)"`)

type playerRequest struct {
	Context struct {
		Client struct {
			ClientName    string `json:"clientName"`
			ClientVersion string `json:"clientVersion"`
		} `json:"client"`
	} `json:"context"`
	VideoID string `json:"videoId"`
}

type playerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	VideoDetails struct {
		Title string `json:"title"`
	} `json:"videoDetails"`
	Captions *struct {
		Renderer *struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

// generated reports whether the track is an automatic speech recognition track.
func (t captionTrack) generated() bool { return t.Kind == "asr" }

func (p *playerResponse) tracks() []captionTrack {
	if p.Captions == nil || p.Captions.Renderer == nil {
		return nil
	}
	return p.Captions.Renderer.CaptionTracks
}

type timedText struct {
	Texts []struct {
		Body string `xml:",chardata"`
	} `xml:"text"`
}

// apiKey reads the Innertube API key from the watch page.
func (f *Fetcher) apiKey(ctx context.Context, videoID string) (string, error) {
	body, status, err := f.get(ctx, f.baseURL+"/watch?v="+videoID)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return "", fmt.Errorf("video %s: %w", videoID, domain.ErrSourceNotFound)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("video %s: watch page returned %d: %w", videoID, status, domain.ErrSourceUnavailable)
	}
	page := string(body)
	if strings.Contains(page, `class="g-recaptcha"`) {
		return "", fmt.Errorf("video %s: too many requests, blocked by captcha: %w", videoID, domain.ErrSourceUnavailable)
	}
	m := apiKeyPattern.FindStringSubmatch(page)
	if m == nil {
		return "", fmt.Errorf("video %s: innertube key not found in watch page: %w", videoID, domain.ErrSourceUnavailable)
	}
	return m[1], nil
}

func (f *Fetcher) player(ctx context.Context, videoID, key string) (*playerResponse, error) {
	var reqBody playerRequest
	reqBody.Context.Client.ClientName = innertubeClientName
	reqBody.Context.Client.ClientVersion = innertubeClientVersion
	reqBody.VideoID = videoID
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/youtubei/v1/player?key="+key, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	body, status, err := f.do(req)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("video %s: %w", videoID, domain.ErrSourceNotFound)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("video %s: player returned %d: %w", videoID, status, domain.ErrSourceUnavailable)
	}
	var resp playerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("video %s: decode player response: %v: %w", videoID, err, domain.ErrSourceUnavailable)
	}
	return &resp, nil
}

// timedText downloads a caption track and joins its lines with newlines.
func (f *Fetcher) timedText(ctx context.Context, track captionTrack) (string, error) {
	url := strings.Replace(track.BaseURL, "&fmt=srv3", "", 1)
	body, status, err := f.get(ctx, url)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("caption track %s returned %d: %w", track.LanguageCode, status, domain.ErrSourceUnavailable)
	}
	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return "", fmt.Errorf("caption track %s: %v: %w", track.LanguageCode, err, domain.ErrSourceUnavailable)
	}
	lines := make([]string, 0, len(tt.Texts))
	for _, t := range tt.Texts {
		line := strings.TrimSpace(html.UnescapeString(t.Body))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	return f.do(req)
}

func (f *Fetcher) do(req *http.Request) ([]byte, int, error) {
	req.Header.Set("Accept-Language", "en-US")
	req.Header.Set("User-Agent", f.userAgent)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %v: %w", req.Method, req.URL.Path, err, domain.ErrSourceUnavailable)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%s %s: read body: %v: %w", req.Method, req.URL.Path, err, domain.ErrSourceUnavailable)
	}
	return body, resp.StatusCode, nil
}
