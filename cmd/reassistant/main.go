package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nkch1k/REAssistant/internal/assistant"
	"github.com/nkch1k/REAssistant/internal/config"
	"github.com/nkch1k/REAssistant/internal/dispatch"
	"github.com/nkch1k/REAssistant/internal/httpapi"
	"github.com/nkch1k/REAssistant/internal/ledger"
	"github.com/nkch1k/REAssistant/internal/llm"
	"github.com/nkch1k/REAssistant/internal/metrics"
	"github.com/nkch1k/REAssistant/internal/query"
	"github.com/nkch1k/REAssistant/internal/resolve"
)

const (
	appName = "reassistant"
	version = "v1.2.0"
)

var (
	configPath string
	logLevel   string
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Natural-language Q&A over a real estate financial ledger",
		Version: version,
		Long: `REAssistant answers questions about a portfolio ledger: total P&L,
property performance, tenant revenue, rankings, and comparisons.

Run with no arguments in a terminal to open the interactive chat.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if level, err := zerolog.ParseLevel(logLevel); err == nil {
				zerolog.SetGlobalLevel(level)
			}
		},
		Run: runDefault,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace|debug|info|warn|error)")

	askCmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat session",
		RunE:  runChat,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query API over HTTP",
		RunE:  runServe,
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print portfolio statistics",
		RunE:  runStats,
	}

	rootCmd.AddCommand(askCmd, chatCmd, serveCmd, statsCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func runDefault(cmd *cobra.Command, args []string) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		if err := runChat(cmd, args); err != nil {
			log.Error().Err(err).Msg("chat session failed")
			os.Exit(1)
		}
		return
	}
	_ = cmd.Help()
}

// buildAssistant loads config and the dataset, failing fast when the ledger
// cannot be loaded: no query can proceed without it.
func buildAssistant(ctx context.Context) (*assistant.Assistant, *ledger.Store, *metrics.Registry, config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, config.Config{}, err
	}

	source, err := cfg.Source()
	if err != nil {
		return nil, nil, nil, config.Config{}, err
	}

	store := ledger.NewStore(source)
	if err := store.Load(ctx); err != nil {
		return nil, nil, nil, config.Config{}, fmt.Errorf("loading ledger dataset: %w", err)
	}

	reg := metrics.NewRegistry(prometheus.DefaultRegisterer)
	if ds, err := store.Current(); err == nil {
		reg.DatasetRows.Set(float64(ds.Len()))
	}

	client := llm.NewClient(cfg.LLM)
	classifier := llm.NewClassifier(client, llm.NewClassificationCache(cfg.Cache)).WithMetrics(reg)
	responder := llm.NewResponder(client).WithMetrics(reg)
	resolver := resolve.New(cfg.Resolver.Threshold)
	dispatcher := dispatch.New(store, resolver, cfg.Dispatch).WithMetrics(reg)

	a := assistant.New(classifier, dispatcher, responder, store, reg)
	return a, store, reg, cfg, nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, _, _, _, err := buildAssistant(ctx)
	if err != nil {
		return err
	}

	answer := a.Answer(ctx, strings.Join(args, " "))
	fmt.Println(answer.ResponseText)
	return nil
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, store, _, _, err := buildAssistant(ctx)
	if err != nil {
		return err
	}

	ds, _ := store.Current()
	fmt.Printf("%s %s: %d ledger rows loaded. Ask about P&L, properties, or tenants. Ctrl-D to exit.\n",
		appName, version, ds.Len())

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		answer := a.Answer(ctx, line)
		fmt.Println(answer.ResponseText)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, store, _, cfg, err := buildAssistant(ctx)
	if err != nil {
		return err
	}

	server := httpapi.New(cfg.Server, a, store, prometheus.DefaultGatherer)

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func runStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	_, store, _, _, err := buildAssistant(ctx)
	if err != nil {
		return err
	}

	ds, err := store.Current()
	if err != nil {
		return err
	}
	stats := query.NewEngine(ds).PortfolioStats()

	fmt.Printf("Properties (%d): %s\n", stats.PropertyCount, strings.Join(stats.Properties, ", "))
	fmt.Printf("Tenants (%d): %s\n", stats.TenantCount, strings.Join(stats.Tenants, ", "))
	fmt.Printf("Years covered: %s\n", strings.Join(stats.YearsCovered, ", "))
	fmt.Printf("Total revenue:  %s\n", stats.TotalRevenue.StringFixed(2))
	fmt.Printf("Total expenses: %s\n", stats.TotalExpenses.StringFixed(2))
	fmt.Printf("Net P&L:        %s\n", stats.NetPnL.StringFixed(2))
	return nil
}
