// Package cli holds the cobra commands shared by ytchat and pdfchat.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"ragchat/internal/app"
	"ragchat/internal/config"
	"ragchat/internal/domain"
	"ragchat/internal/logger"
	"ragchat/internal/tui"
)

// App describes one of the chat binaries.
type App struct {
	Name  string
	Short string
	Kind  domain.SourceKind
	// Screen holds the TUI texts; session and resolver are filled in at run time.
	Screen tui.Config
}

var YTChat = App{
	Name:  "ytchat",
	Short: "Chat with a YouTube video using Gemini",
	Kind:  domain.SourceVideo,
	Screen: tui.Config{
		Title:             "Chat With YouTube Video",
		Subtitle:          "Chat with any YouTube video using Gemini AI!",
		SourcePrompt:      "Paste a YouTube video URL.",
		SourcePlaceholder: "https://www.youtube.com/watch?v=...",
		LoadingText:       "Checking video and fetching transcript...",
		HowTo: []string{
			"Enter your Gemini API key",
			"Paste a YouTube video URL",
			"Wait for the transcript to load",
			"Ask questions about the video",
		},
		About: "This app uses Gemini AI to chat about YouTube videos.\nMake sure the video has captions enabled.",
	},
}

var PDFChat = App{
	Name:  "pdfchat",
	Short: "Chat with a PDF document using Gemini",
	Kind:  domain.SourceFile,
	Screen: tui.Config{
		Title:             "Chat with PDF using Gemini",
		Subtitle:          "Ask questions about any text-based PDF.",
		SourcePrompt:      "Enter the path of a PDF file.",
		SourcePlaceholder: "~/Documents/paper.pdf",
		LoadingText:       "Reading PDF and generating embeddings...",
		HowTo: []string{
			"Enter your Gemini API key",
			"Type the path of a PDF file",
			"Wait for the embeddings to be generated",
			"Ask questions about the document",
		},
		About: "This app uses Gemini AI to answer questions about PDF documents.\nScanned PDFs without a text layer cannot be read.",
	},
}

type rootOptions struct {
	configPath string
	topK       int
}

// NewRootCommand builds the command tree for a.
func NewRootCommand(a App) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   a.Name,
		Short: a.Short,
		Long: a.Short + `.

Without arguments an interactive terminal UI starts. The Gemini API key is
read from GEMINI_API_KEY or GOOGLE_API_KEY (a .env file is honoured) or can be
typed into the sidebar.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, a, opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to YAML config file (optional; uses ~/.config/ragchat/config.yaml if not provided)")
	root.PersistentFlags().IntVar(&opts.topK, "top-k", 0, "number of chunks retrieved per question (overrides retrieval.top_k)")
	root.AddCommand(newAskCommand(a, opts))
	return root
}

// Execute runs the command tree for a and exits non-zero on failure.
func Execute(a App) {
	_ = godotenv.Load()
	if err := NewRootCommand(a).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.AppConfig, error) {
	if path == "" {
		cfg, _, err := config.LoadDefault()
		return cfg, err
	}
	return config.Load(path)
}

// APIKeyFromEnv returns the first non-empty of GEMINI_API_KEY and GOOGLE_API_KEY.
func APIKeyFromEnv() string {
	for _, name := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

func runTUI(cmd *cobra.Command, a App, opts *rootOptions) (err error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("%s needs an interactive terminal; use '%s ask <source> <question>' instead", a.Name, a.Name)
	}
	defer recoverTUI(os.Stderr, &err)

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logPath := cfg.Log.Path
	if logPath == "" {
		if logPath, err = logger.FilePath(a.Name); err != nil {
			return err
		}
	}
	log, err := logger.New(logger.Options{Mode: cfg.Log.Mode, Level: cfg.Log.Level, Path: logPath})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	screen := a.Screen
	screen.APIKey = APIKeyFromEnv()
	screen.NewSession = func(apiKey string) (tui.Session, error) {
		s, err := app.NewSession(contextOf(cmd), app.Options{Config: cfg, APIKey: apiKey, Logger: log, TopK: opts.topK})
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	screen.Resolve = func(input string) (domain.SourceRef, error) {
		return ResolveSource(a.Kind, input)
	}

	log.Info("starting", "app", a.Name, "log_path", logPath)
	if _, err := tea.NewProgram(tui.New(screen), tea.WithAltScreen()).Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// recoverTUI turns a panic into an error so the process exits non-zero.
// It must be deferred directly.
func recoverTUI(w io.Writer, err *error) {
	if r := recover(); r != nil {
		fmt.Fprintf(w, "Panic in TUI: %v\n", r)
		fmt.Fprintf(w, "Stack trace:\n%s\n", debug.Stack())
		*err = fmt.Errorf("TUI panic: %v", r)
	}
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
