package gemini

import (
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// SafetySetting is one category/threshold pair as written in configuration,
// e.g. HARM_CATEGORY_HARASSMENT / BLOCK_MEDIUM_AND_ABOVE.
type SafetySetting struct {
	Category  string `yaml:"category"`
	Threshold string `yaml:"threshold"`
}

var categories = map[string]genai.HarmCategory{
	string(genai.HarmCategoryHarassment):       genai.HarmCategoryHarassment,
	string(genai.HarmCategoryHateSpeech):       genai.HarmCategoryHateSpeech,
	string(genai.HarmCategorySexuallyExplicit): genai.HarmCategorySexuallyExplicit,
	string(genai.HarmCategoryDangerousContent): genai.HarmCategoryDangerousContent,
}

var thresholds = map[string]genai.HarmBlockThreshold{
	string(genai.HarmBlockThresholdBlockLowAndAbove):    genai.HarmBlockThresholdBlockLowAndAbove,
	string(genai.HarmBlockThresholdBlockMediumAndAbove): genai.HarmBlockThresholdBlockMediumAndAbove,
	string(genai.HarmBlockThresholdBlockOnlyHigh):       genai.HarmBlockThresholdBlockOnlyHigh,
	string(genai.HarmBlockThresholdBlockNone):           genai.HarmBlockThresholdBlockNone,
	string(genai.HarmBlockThresholdOff):                 genai.HarmBlockThresholdOff,
}

// DefaultSafety blocks medium and above for the four standard categories.
func DefaultSafety() []SafetySetting {
	out := make([]SafetySetting, 0, 4)
	for _, c := range []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	} {
		out = append(out, SafetySetting{Category: string(c), Threshold: string(genai.HarmBlockThresholdBlockMediumAndAbove)})
	}
	return out
}

// ValidateSafety reports the first unknown category or threshold.
func ValidateSafety(settings []SafetySetting) error {
	_, err := toGenai(settings)
	return err
}

func toGenai(settings []SafetySetting) ([]*genai.SafetySetting, error) {
	out := make([]*genai.SafetySetting, 0, len(settings))
	for _, s := range settings {
		c, ok := categories[strings.ToUpper(strings.TrimSpace(s.Category))]
		if !ok {
			return nil, fmt.Errorf("unknown safety category %q", s.Category)
		}
		t, ok := thresholds[strings.ToUpper(strings.TrimSpace(s.Threshold))]
		if !ok {
			return nil, fmt.Errorf("unknown safety threshold %q", s.Threshold)
		}
		out = append(out, &genai.SafetySetting{Category: c, Threshold: t})
	}
	return out, nil
}
