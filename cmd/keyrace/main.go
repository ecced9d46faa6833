// Package main provides the CLI entrypoint for keyrace.
package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/keyrace/internal/auth"
	"github.com/verte-zerg/keyrace/internal/config"
	"github.com/verte-zerg/keyrace/internal/corpus"
	"github.com/verte-zerg/keyrace/internal/generator"
	"github.com/verte-zerg/keyrace/internal/leaderboard"
	"github.com/verte-zerg/keyrace/internal/logger"
	"github.com/verte-zerg/keyrace/internal/model"
	"github.com/verte-zerg/keyrace/internal/tui"
	"github.com/verte-zerg/keyrace/internal/wordlist"
)

const (
	defaultMode   = "time"
	defaultTime   = 30
	defaultWords  = generator.DefaultWordCount
	defaultCaps   = 0.0
	defaultPunct  = 0.0
	defaultServer = "http://localhost:8080"
)

const defaultPunctSet = ".,!?;:"

var (
	practiceMode     string
	practiceTime     int
	practiceWords    int
	practiceQuote    int
	practiceWordlist string
	practiceLang     string
	practiceQuotes   string
	practiceCaps     float64
	practicePunct    float64
	practicePunctSet string

	serverURL string
	logLevel  string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "keyrace",
		Short:         "Typing speed test with an online leaderboard",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPracticeCmd,
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "leaderboard server URL (default "+defaultServer+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")

	rootCmd.Flags().StringVar(&practiceMode, "mode", defaultMode, "test mode: time, words or quote")
	rootCmd.Flags().IntVar(&practiceTime, "time", defaultTime, "test length in seconds (time mode)")
	rootCmd.Flags().IntVar(&practiceWords, "words", defaultWords, "number of words (words mode)")
	rootCmd.Flags().IntVar(&practiceQuote, "quote", 0, "quote id, 0 for a random quote (quote mode)")
	rootCmd.Flags().StringVar(&practiceWordlist, "wordlist", "", "word list file replacing the built-in vocabulary")
	rootCmd.Flags().StringVar(&practiceLang, "lang", "", "word list filter: en keeps lowercase ASCII words, empty keeps any typeable word")
	rootCmd.Flags().StringVar(&practiceQuotes, "quotes", "", "TOML quote file replacing the built-in quotes")
	rootCmd.Flags().Float64Var(&practiceCaps, "caps", defaultCaps, "probability of capitalized first letter (0-1)")
	rootCmd.Flags().Float64Var(&practicePunct, "punct", defaultPunct, "punctuation probability per word (0-1)")
	rootCmd.Flags().StringVar(&practicePunctSet, "punct-set", defaultPunctSet, "punctuation set")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newLeaderboardCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newRegisterCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newWhoamiCmd())
	rootCmd.AddCommand(newServeCmd())

	return rootCmd
}

func runPracticeCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	p := fileCfg.Practice
	applyStringConfig(cmd, "mode", &practiceMode, p.Mode)
	applyIntConfig(cmd, "time", &practiceTime, p.Time)
	applyIntConfig(cmd, "words", &practiceWords, p.Words)
	applyIntConfig(cmd, "quote", &practiceQuote, p.Quote)
	applyStringConfig(cmd, "wordlist", &practiceWordlist, p.Wordlist)
	applyStringConfig(cmd, "lang", &practiceLang, p.Lang)
	applyStringConfig(cmd, "quotes", &practiceQuotes, p.Quotes)
	applyFloatConfig(cmd, "caps", &practiceCaps, p.CapsPct)
	applyFloatConfig(cmd, "punct", &practicePunct, p.PunctPct)
	applyStringConfig(cmd, "punct-set", &practicePunctSet, p.PunctSet)

	testCfg, err := buildTestConfig()
	if err != nil {
		return err
	}
	if err := validateGeneratorFlags(); err != nil {
		return err
	}

	c, err := loadCorpus(practiceWordlist, practiceLang, practiceQuotes)
	if err != nil {
		return err
	}
	gen, err := generator.New(c,
		generator.WithCaps(practiceCaps),
		generator.WithPunct(practicePunct, []rune(practicePunctSet)),
	)
	if err != nil {
		return err
	}

	log, closeLog := fileLogger()
	defer closeLog()

	saver, identity, err := leaderboardSaver(fileCfg)
	if err != nil {
		return err
	}

	m, err := tui.NewModel(tui.Options{
		Config:   testCfg,
		Source:   gen,
		Saver:    saver,
		Identity: identity,
		Log:      log,
	})
	if err != nil {
		return err
	}
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func buildTestConfig() (model.TestConfig, error) {
	mode, err := model.ParseMode(practiceMode)
	if err != nil {
		return model.TestConfig{}, fmt.Errorf("--mode: %w", err)
	}
	cfg := model.TestConfig{
		Mode:    mode,
		Time:    practiceTime,
		Words:   practiceWords,
		QuoteID: practiceQuote,
	}
	if err := cfg.Validate(); err != nil {
		return model.TestConfig{}, err
	}
	return cfg, nil
}

func validateGeneratorFlags() error {
	if practiceCaps < 0 || practiceCaps > 1 {
		return fmt.Errorf("--caps must be between 0 and 1")
	}
	if practicePunct < 0 || practicePunct > 1 {
		return fmt.Errorf("--punct must be between 0 and 1")
	}
	if practicePunct > 0 && practicePunctSet == "" {
		return fmt.Errorf("--punct-set must not be empty")
	}
	if strings.IndexFunc(practicePunctSet, unicode.IsSpace) >= 0 {
		return fmt.Errorf("--punct-set must not contain whitespace")
	}
	return nil
}

// loadCorpus starts from the built-in corpus and swaps in user files.
func loadCorpus(wordsPath, lang, quotesPath string) (corpus.Corpus, error) {
	c, err := corpus.Default()
	if err != nil {
		return corpus.Corpus{}, err
	}
	if wordsPath != "" {
		words, err := wordlist.LoadWords(expandHome(wordsPath), wordlist.FilterForLang(lang))
		if err != nil {
			return corpus.Corpus{}, fmt.Errorf("failed to load word list %s: %w", wordsPath, err)
		}
		c.Words = words
	}
	if quotesPath != "" {
		quotes, err := corpus.LoadQuotes(expandHome(quotesPath))
		if err != nil {
			return corpus.Corpus{}, fmt.Errorf("failed to load quotes %s: %w", quotesPath, err)
		}
		c.Quotes = quotes
	}
	if err := c.Validate(); err != nil {
		return corpus.Corpus{}, err
	}
	return c, nil
}

// leaderboardSaver returns a saver for the configured server and the stored
// identity. Without credentials the identity is anonymous and saving reports
// that a login is needed.
func leaderboardSaver(fileCfg config.FileConfig) (tui.Saver, auth.Identity, error) {
	creds, ok, err := config.LoadCredentials(config.DefaultCredentialsPath())
	if err != nil {
		return nil, auth.Anonymous, fmt.Errorf("failed to load credentials: %w", err)
	}
	server := resolveServer(fileCfg, creds)
	if server == "" {
		return nil, auth.Anonymous, nil
	}
	if !ok || creds.Token == "" {
		return leaderboard.NewService(leaderboard.NewClient(server, ""), nil), auth.Anonymous, nil
	}
	id := auth.Identity{
		IsAuthenticated: true,
		UserID:          creds.UserID,
		Username:        creds.Username,
	}
	return leaderboard.NewService(leaderboard.NewClient(server, creds.Token), nil), id, nil
}

// resolveServer picks the server URL: --server, KEYRACE_SERVER, the config
// file, the server used at login, then the default. An explicit empty url in
// the config file disables the leaderboard.
func resolveServer(fileCfg config.FileConfig, creds config.Credentials) string {
	if serverURL != "" {
		return serverURL
	}
	if env := strings.TrimSpace(os.Getenv("KEYRACE_SERVER")); env != "" {
		return env
	}
	if fileCfg.Leaderboard.URL != nil {
		return strings.TrimSpace(*fileCfg.Leaderboard.URL)
	}
	if creds.Server != "" {
		return creds.Server
	}
	return defaultServer
}

// fileLogger logs to a file so output does not corrupt the TUI.
func fileLogger() (zerolog.Logger, func()) {
	path := config.DefaultLogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return zerolog.Nop(), func() {}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return zerolog.Nop(), func() {}
	}
	return logger.New(f, logLevel, "json"), func() { _ = f.Close() }
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil || cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil || cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil || cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# keyrace configuration
# Uncomment a value to enable it. CLI flags override config values.

[practice]
# mode = %q           # time, words or quote
# time = %d              # Seconds per test in time mode
# words = %d             # Words per test in words mode
# quote = 0               # Quote id in quote mode, 0 for random
# wordlist = ""           # Word list file, one word per line
# lang = ""               # Word list filter, "en" keeps lowercase ASCII words
# quotes = ""             # TOML file with [[quote]] tables (id, text, author)
# caps = %.2f           # Probability of capitalized first letter (0-1)
# punct = %.2f          # Punctuation probability per word (0-1)
# punct-set = %q    # Punctuation set

[leaderboard]
# url = %q   # Leaderboard server, "" to disable saving
`,
		defaultMode,
		defaultTime,
		defaultWords,
		defaultCaps,
		defaultPunct,
		defaultPunctSet,
		defaultServer,
	)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func printf(w io.Writer, format string, args ...any) error {
	if _, err := fmt.Fprintf(w, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
