package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/channel-scout/internal/agent/scanner"
	"github.com/channel-scout/internal/config"
	"github.com/channel-scout/internal/models"
	"github.com/channel-scout/internal/platform/gateway"
	"github.com/channel-scout/internal/storage"
	"github.com/channel-scout/internal/storage/sqlite"
	"github.com/channel-scout/pkg/logger"
	"github.com/channel-scout/pkg/ratelimit"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
	repo    storage.Repository
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "scout",
		Short: "Messaging platform channel scout",
		Long: `Discovers public channels matching operator keywords, extracts
contact details and tracks word frequencies across their recent posts.`,
		PersistentPreRunE:  initializeApp,
		PersistentPostRunE: closeApp,
		SilenceUsage:       true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(keywordsCmd())
	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(channelsCmd())
	rootCmd.AddCommand(wordsCmd())
	rootCmd.AddCommand(logsCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(sessionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initializeApp(cmd *cobra.Command, args []string) error {
	var err error

	// Load config
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	repo, err = sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Run migrations
	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func closeApp(cmd *cobra.Command, args []string) error {
	if repo != nil {
		return repo.Close()
	}
	return nil
}

// signalContext is cancelled on Ctrl-C so long scans stop between requests
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newLimiter() *ratelimit.MultiLimiter {
	limiter := ratelimit.NewDefaultLimiter()
	limiter.AddLimiter(ratelimit.LimiterPlatform, cfg.Platform.RequestsPerSecond, cfg.Platform.Burst)
	return limiter
}

func newRunner() (*scanner.Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	connector := gateway.NewConnector(cfg.Platform, newLimiter(), log)
	agent := scanner.NewAgent(connector, repo, scanner.Options{
		SearchLimit:  cfg.Scanner.SearchLimit,
		MessageLimit: cfg.Scanner.MessageLimit,
	}, log)
	return scanner.NewRunner(repo, agent, log), nil
}

func parseID(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return uint(id), nil
}

func optionalID(id uint) *uint {
	if id == 0 {
		return nil
	}
	return &id
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

// ============ KEYWORD COMMANDS ============

func keywordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keywords",
		Short: "Manage search keywords",
	}

	cmd.AddCommand(keywordsAddCmd())
	cmd.AddCommand(keywordsListCmd())
	cmd.AddCommand(keywordsStatusCmd("activate", models.KeywordStatusActive))
	cmd.AddCommand(keywordsStatusCmd("deactivate", models.KeywordStatusInactive))
	cmd.AddCommand(keywordsDeleteCmd())
	return cmd
}

func keywordsAddCmd() *cobra.Command {
	var inactive bool

	cmd := &cobra.Command{
		Use:   "add <keyword>",
		Short: "Add a keyword",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kw := &models.Keyword{
				Text:   strings.TrimSpace(strings.Join(args, " ")),
				Status: models.KeywordStatusActive,
			}
			if kw.Text == "" {
				return errors.New("keyword must not be empty")
			}
			if inactive {
				kw.Status = models.KeywordStatusInactive
			}

			if err := repo.CreateKeyword(context.Background(), kw); err != nil {
				if errors.Is(err, storage.ErrDuplicateKeyword) {
					return fmt.Errorf("keyword %q already exists", kw.Text)
				}
				return err
			}

			fmt.Printf("Keyword #%d %q added (%s)\n", kw.ID, kw.Text, kw.Status)
			return nil
		},
	}

	cmd.Flags().BoolVar(&inactive, "inactive", false, "Create the keyword without scanning it")
	return cmd
}

func keywordsListCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List keywords",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter storage.KeywordFilter
			if status != "" {
				s := models.KeywordStatus(status)
				if !s.Valid() {
					return fmt.Errorf("unknown status %q", status)
				}
				filter.Status = &s
			}

			keywords, err := repo.ListKeywords(context.Background(), filter)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Keywords (%d) ===\n\n", len(keywords))
			for _, kw := range keywords {
				fmt.Printf("[%d] %-8s | %s\n", kw.ID, kw.Status, kw.Text)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (active, inactive)")
	return cmd
}

func keywordsStatusCmd(use string, status models.KeywordStatus) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: fmt.Sprintf("Mark a keyword %s", status),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := repo.UpdateKeywordStatus(context.Background(), id, status); err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return fmt.Errorf("keyword #%d not found", id)
				}
				return err
			}
			fmt.Printf("Keyword #%d is now %s\n", id, status)
			return nil
		},
	}
}

func keywordsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a keyword with its channels, messages and word counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := repo.DeleteKeyword(context.Background(), id); err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return fmt.Errorf("keyword #%d not found", id)
				}
				return err
			}
			fmt.Printf("Keyword #%d deleted\n", id)
			return nil
		},
	}
}

// ============ SCAN COMMANDS ============

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Channel scanning commands",
	}

	cmd.AddCommand(scanRunCmd())
	return cmd
}

func scanRunCmd() *cobra.Command {
	var keywordID uint

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scan pass over all active keywords in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			runner, err := newRunner()
			if err != nil {
				return err
			}

			if keywordID != 0 {
				res, err := runner.RunKeyword(ctx, keywordID)
				if err != nil {
					return err
				}
				printScanResult(res)
				return nil
			}

			result, err := runner.RunPass(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Scan Pass Results ===\n")
			fmt.Printf("Keywords Scanned: %d\n", result.KeywordsScanned)
			fmt.Printf("Succeeded:        %d\n", result.Succeeded)
			fmt.Printf("Failed:           %d\n", result.Failed)
			fmt.Printf("New Channels:     %d\n", result.NewChannels)
			fmt.Printf("Duration:         %s\n", result.Duration)

			for _, res := range result.Results {
				if res.Err != nil {
					fmt.Printf("  - keyword #%d: %s\n", res.KeywordID, res.Err)
				}
			}
			return nil
		},
	}

	cmd.Flags().UintVar(&keywordID, "keyword-id", 0, "Scan only this keyword, regardless of status")
	return cmd
}

func printScanResult(res *scanner.ScanResult) {
	fmt.Printf("\n=== Scan Result (keyword #%d) ===\n", res.KeywordID)
	fmt.Printf("Status:          %s\n", res.Status)
	fmt.Printf("New Channels:    %d\n", res.NewChannels)
	fmt.Printf("Channels Seen:   %d\n", res.ChannelsSeen)
	fmt.Printf("Messages Stored: %d\n", res.MessagesStored)
	fmt.Printf("Failed Channels: %d\n", res.FailedChannels)
	fmt.Printf("Duration:        %s\n", res.Duration)
	if res.Err != nil {
		fmt.Printf("Error:           %s\n", res.Err)
	}
}

// ============ CHANNEL COMMANDS ============

func channelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "Browse discovered channels",
	}

	cmd.AddCommand(channelsListCmd())
	return cmd
}

func channelsListCmd() *cobra.Command {
	var (
		keywordID   uint
		query       string
		hasPhone    bool
		hasLocation bool
		limit       int
		offset      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			channels, err := repo.ListChannels(context.Background(), storage.ChannelFilter{
				KeywordID:   optionalID(keywordID),
				Query:       query,
				HasPhone:    hasPhone,
				HasLocation: hasLocation,
				Limit:       limit,
				Offset:      offset,
			})
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Channels (%d) ===\n\n", len(channels))
			for _, ch := range channels {
				fmt.Printf("[%d] %s | %d subscribers\n", ch.ID, ch.Name, ch.SubscribersCount)
				fmt.Printf("    URL: %s | Keyword: #%d\n", ch.URL, ch.KeywordID)
				fmt.Printf("    Phone: %s | Location: %s\n", deref(ch.PhoneNumber), deref(ch.Location))
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().UintVar(&keywordID, "keyword-id", 0, "Only channels discovered by this keyword")
	cmd.Flags().StringVar(&query, "query", "", "Substring of name or description")
	cmd.Flags().BoolVar(&hasPhone, "has-phone", false, "Only channels with a phone number")
	cmd.Flags().BoolVar(&hasLocation, "has-location", false, "Only channels with a location")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum channels to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "Channels to skip")
	return cmd
}

// ============ WORD COMMANDS ============

func wordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "words",
		Short: "Word frequency statistics",
	}

	cmd.AddCommand(wordsTopCmd())
	return cmd
}

func wordsTopCmd() *cobra.Command {
	var keywordID uint
	var limit int

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Show the most frequent words",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := storage.DefaultWordFilter()
			filter.KeywordID = optionalID(keywordID)
			if limit > 0 {
				filter.Limit = limit
			}

			words, err := repo.TopWords(context.Background(), filter)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Top Words (%d) ===\n\n", len(words))
			for i, w := range words {
				fmt.Printf("%3d. %-24s %6d  (keyword #%d)\n", i+1, w.Word, w.Count, w.KeywordID)
			}
			return nil
		},
	}

	cmd.Flags().UintVar(&keywordID, "keyword-id", 0, "Only words counted for this keyword")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum words to show")
	return cmd
}

// ============ LOG COMMANDS ============

func logsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Scan audit log",
	}

	cmd.AddCommand(logsListCmd())
	return cmd
}

func logsListCmd() *cobra.Command {
	var keywordID uint
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent scan logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := storage.DefaultScanLogFilter()
			filter.KeywordID = optionalID(keywordID)
			if limit > 0 {
				filter.Limit = limit
			}
			if status != "" {
				s := models.ScanStatus(status)
				filter.Status = &s
			}

			logs, err := repo.ListScanLogs(context.Background(), filter)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Scan Logs (%d) ===\n\n", len(logs))
			for _, l := range logs {
				kw := "-"
				if l.KeywordID != nil {
					kw = fmt.Sprintf("#%d", *l.KeywordID)
				}
				fmt.Printf("[%d] %s | %-7s | keyword %s | %s\n",
					l.ID, l.CreatedAt.Format("2006-01-02 15:04:05"), l.Status, kw, l.Message)
			}
			return nil
		},
	}

	cmd.Flags().UintVar(&keywordID, "keyword-id", 0, "Only logs for this keyword")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (success, error)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum logs to show")
	return cmd
}

// ============ DASHBOARD COMMANDS ============

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			stats, err := repo.Stats(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Dashboard ===\n")
			fmt.Printf("Keywords:               %d\n", stats.TotalKeywords)
			fmt.Printf("Channels:               %d\n", stats.TotalChannels)
			fmt.Printf("Channels with phone:    %d\n", stats.ChannelsWithPhone)
			fmt.Printf("Channels with location: %d\n", stats.ChannelsWithLocation)
			fmt.Printf("Messages:               %d\n", stats.TotalMessages)

			logs, err := repo.ListScanLogs(ctx, storage.ScanLogFilter{Limit: 5})
			if err != nil {
				return err
			}
			if len(logs) > 0 {
				fmt.Printf("\nRecent scans:\n")
				for _, l := range logs {
					fmt.Printf("  %s %-7s %s\n", l.CreatedAt.Format("2006-01-02 15:04"), l.Status, l.Message)
				}
			}

			words, err := repo.TopWords(ctx, storage.WordFilter{Limit: 10})
			if err != nil {
				return err
			}
			if len(words) > 0 {
				fmt.Printf("\nTop words:\n")
				for _, w := range words {
					fmt.Printf("  %-24s %d\n", w.Word, w.Count)
				}
			}
			return nil
		},
	}
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <text>",
		Short: "Search stored messages and channels",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			q := strings.Join(args, " ")

			messages, err := repo.SearchMessages(ctx, q, 50)
			if err != nil {
				return err
			}
			channels, err := repo.ListChannels(ctx, storage.ChannelFilter{Query: q, Limit: 20})
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Channels (%d) ===\n\n", len(channels))
			for _, ch := range channels {
				fmt.Printf("[%d] %s | %s\n", ch.ID, ch.Name, ch.URL)
			}

			fmt.Printf("\n=== Messages (%d) ===\n\n", len(messages))
			for _, m := range messages {
				fmt.Printf("[channel %d] %s\n    %s\n", m.ChannelID, m.Date.Format("2006-01-02"), truncate(m.Text, 160))
			}
			return nil
		},
	}
}

func truncate(s string, n int) string {
	r := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}

// ============ SESSION COMMANDS ============

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Platform session commands",
	}

	cmd.AddCommand(sessionStatusCmd())
	return cmd
}

func sessionStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check whether the platform session is authorized",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			connector := gateway.NewConnector(cfg.Platform, newLimiter(), log)
			session, err := connector.Connect(ctx)
			if err != nil {
				return err
			}
			defer session.Close()

			authorized, err := session.IsAuthorized(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Session: %s\n", cfg.Platform.Session)
			fmt.Printf("Bridge:  %s\n", cfg.Platform.BaseURL)
			if !authorized {
				fmt.Println("Status:  NOT AUTHORIZED (log in through the bridge before scanning)")
				return scanner.ErrNotAuthorized
			}
			fmt.Println("Status:  authorized")
			return nil
		},
	}
}
