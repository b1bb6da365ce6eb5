package youtube

import "regexp"

// Video IDs are 11 characters from [0-9A-Za-z_-], followed by the end of
// the string or a character that cannot be part of an ID.
var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/watch\?(?:[^#]*&)?v=([0-9A-Za-z_-]{11})(?:[^0-9A-Za-z_-]|$)`),
	regexp.MustCompile(`youtu\.be/([0-9A-Za-z_-]{11})(?:[^0-9A-Za-z_-]|$)`),
	regexp.MustCompile(`/embed/([0-9A-Za-z_-]{11})(?:[^0-9A-Za-z_-]|$)`),
}

// ExtractVideoID returns the video ID from a watch, short or embed URL.
func ExtractVideoID(rawURL string) (string, bool) {
	if rawURL == "" {
		return "", false
	}
	for _, re := range videoIDPatterns {
		if m := re.FindStringSubmatch(rawURL); m != nil {
			return m[1], true
		}
	}
	return "", false
}
