package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"ragchat/internal/app"
	"ragchat/internal/domain"
	"ragchat/internal/logger"
	"ragchat/internal/service"
)

func newAskCommand(a App, opts *rootOptions) *cobra.Command {
	source := "video URL"
	if a.Kind == domain.SourceFile {
		source = "PDF path"
	}
	return &cobra.Command{
		Use:   "ask <source> <question>",
		Short: "Load one source and answer one question",
		Long: fmt.Sprintf(`Loads the %s given as <source>, answers <question> from it and exits.
Stage progress is shown on stderr when it is a terminal.`, source),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, a, opts, args[0], args[1])
		},
	}
}

func runAsk(cmd *cobra.Command, a App, opts *rootOptions, input, question string) error {
	stderr := cmd.ErrOrStderr()
	apiKey := APIKeyFromEnv()
	if apiKey == "" {
		return errors.New("no API key: set GEMINI_API_KEY or GOOGLE_API_KEY")
	}
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.New(logger.Options{Mode: cfg.Log.Mode, Level: cfg.Log.Level, Path: cfg.Log.Path})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	progress := newStageProgress(stderr, progressEnabled(stderr))
	ctx := contextOf(cmd)
	s, err := app.NewSession(ctx, app.Options{
		Config:   cfg,
		APIKey:   apiKey,
		Logger:   log,
		TopK:     opts.topK,
		Progress: progress.Stage,
	})
	if err != nil {
		return errors.New(service.UserMessage(err))
	}
	defer s.Close()

	ref, err := ResolveSource(a.Kind, input)
	if err != nil {
		return errors.New(service.UserMessage(err))
	}
	res, err := s.Load(ctx, ref)
	progress.Finish()
	if err != nil {
		return errors.New(service.UserMessage(err))
	}
	if res.Summary != "" {
		fmt.Fprintf(stderr, "Preview: %s\n\n", res.Summary)
	}

	answer, err := s.Ask(ctx, question)
	if err != nil {
		return errors.New(service.UserMessage(err))
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, answer.Text)
	if len(answer.Sources) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Sources:")
		for i, r := range answer.Sources {
			fmt.Fprintf(out, "  [%d] chunk %d (%.3f) %s\n", i+1, r.Chunk.Index, r.Score, snippet(r.Chunk.Text, 80))
		}
	}
	return nil
}

// stageProgress advances a bar once per pipeline stage.
type stageProgress struct {
	bar *progressbar.ProgressBar
}

func newStageProgress(w io.Writer, enabled bool) *stageProgress {
	if !enabled {
		return &stageProgress{}
	}
	return &stageProgress{bar: progressbar.NewOptions(len(service.Stages),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("loading"),
		progressbar.OptionSetWidth(32),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)}
}

func (p *stageProgress) Stage(stage service.Stage) {
	if p.bar == nil {
		return
	}
	p.bar.Describe(string(stage))
	_ = p.bar.Add(1)
}

func (p *stageProgress) Finish() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
}

func progressEnabled(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}
