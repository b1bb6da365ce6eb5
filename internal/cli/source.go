package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ragchat/internal/domain"
)

// ResolveSource turns what the user typed into a source reference. For files
// the bytes are read here, standing in for an upload.
func ResolveSource(kind domain.SourceKind, input string) (domain.SourceRef, error) {
	input = strings.Trim(strings.TrimSpace(input), `"'`)
	if kind != domain.SourceFile {
		return domain.SourceRef{Kind: domain.SourceVideo, Locator: input}, nil
	}
	path, err := expandHome(input)
	if err != nil {
		return domain.SourceRef{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.SourceRef{}, fmt.Errorf("%v: %w", err, domain.ErrUnparsableFile)
	}
	return domain.SourceRef{Kind: domain.SourceFile, Locator: filepath.Base(path), Data: data}, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
