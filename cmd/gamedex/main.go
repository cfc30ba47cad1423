package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/liliang-cn/gamedex"
	"github.com/liliang-cn/gamedex/internal/api"
	"github.com/liliang-cn/gamedex/internal/config"
	"github.com/liliang-cn/gamedex/pkg/core"
	"github.com/liliang-cn/gamedex/pkg/ingest"
)

var (
	configPath string
	dbPath     string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "gamedex",
	Short: "Query and analytics engine for a games catalog",
	Long:  `gamedex ingests games catalog CSV data into SQLite and serves filtered queries, statistics and text similarity search over it.`,
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// openEngine opens the catalog. One-shot commands stay quiet unless -v is
// given; serve always logs at the configured level.
func openEngine(ctx context.Context, cfg *config.Config, serving bool) (*gamedex.Engine, error) {
	logger := core.NopLogger()
	if verbose || serving {
		logger = core.NewStdLogger(core.ParseLogLevel(cfg.LogLevel))
	}
	return gamedex.Open(ctx, gamedex.Options{
		Path:           cfg.DBPath,
		MaxPageSize:    cfg.MaxPageSize,
		DefaultLimit:   cfg.DefaultLimit,
		EnableMoments:  cfg.EnableMoments,
		MaxImportBytes: cfg.MaxImportMB << 20,
		Logger:         logger,
	})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the catalog over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Addr = addr
		}

		engine, err := openEngine(cmd.Context(), cfg, true)
		if err != nil {
			return fmt.Errorf("failed to open engine: %w", err)
		}
		defer engine.Close()

		fmt.Printf("Serving catalog from %s on %s\n", cfg.DBPath, cfg.Addr)
		return api.New(engine, cfg).Run()
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file-or-url>",
	Short: "Load a catalog CSV source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		engine, err := openEngine(cmd.Context(), cfg, false)
		if err != nil {
			return fmt.Errorf("failed to open engine: %w", err)
		}
		defer engine.Close()

		source := args[0]
		var res *ingest.Result
		if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
			res, err = engine.ImportURL(cmd.Context(), source)
		} else {
			res, err = engine.ImportFile(cmd.Context(), source)
		}
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		fmt.Printf("Imported %d rows (%d rejected), event %s\n", res.Accepted, res.Rejected, res.EventID)
		for _, rej := range res.Rejections {
			fmt.Printf("  row %d: %s\n", rej.Row, rej.Reason)
		}
		return nil
	},
}

var queryCmd = &cobra.Command{
	Use:   "query [field=value ...]",
	Short: "Run a filtered query",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		engine, err := openEngine(cmd.Context(), cfg, false)
		if err != nil {
			return fmt.Errorf("failed to open engine: %w", err)
		}
		defer engine.Close()

		params, err := parseFilters(args)
		if err != nil {
			return err
		}
		cursor, _ := cmd.Flags().GetInt64("cursor")
		limit, _ := cmd.Flags().GetInt("limit")

		page, err := engine.Query(cmd.Context(), params, cursor, limit)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}

		fmt.Printf("%d found\n", page.Total)
		for _, rec := range page.Records {
			fmt.Printf("  %d  %s  (%s)\n", rec.AppID, rec.Name, rec.ReleaseDate)
		}
		if page.Next != nil {
			fmt.Printf("next cursor: %d\n", *page.Next)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats [field=value ...]",
	Short: "Compute statistics over aggregable columns",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		engine, err := openEngine(cmd.Context(), cfg, false)
		if err != nil {
			return fmt.Errorf("failed to open engine: %w", err)
		}
		defer engine.Close()

		params, err := parseFilters(args)
		if err != nil {
			return err
		}
		fn, _ := cmd.Flags().GetString("aggregate")
		column, _ := cmd.Flags().GetString("column")

		result, err := engine.Aggregate(cmd.Context(), fn, column, params)
		if err != nil {
			return fmt.Errorf("stats failed: %w", err)
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var similarCmd = &cobra.Command{
	Use:   "similar",
	Short: "Find records with similar text",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		engine, err := openEngine(cmd.Context(), cfg, false)
		if err != nil {
			return fmt.Errorf("failed to open engine: %w", err)
		}
		defer engine.Close()

		id, _ := cmd.Flags().GetInt64("id")
		text, _ := cmd.Flags().GetString("text")
		k, _ := cmd.Flags().GetInt("top-k")
		excludeSelf, _ := cmd.Flags().GetBool("exclude-self")

		var matches []gamedex.ScoredRecord
		switch {
		case id > 0 && text != "":
			return fmt.Errorf("pass either --id or --text, not both")
		case id > 0:
			matches, err = engine.SimilarByID(cmd.Context(), id, k, excludeSelf)
		case text != "":
			matches, err = engine.SimilarByText(cmd.Context(), text, k)
		default:
			return fmt.Errorf("--id or --text is required")
		}
		if err != nil {
			return fmt.Errorf("similarity search failed: %w", err)
		}

		for _, m := range matches {
			fmt.Printf("  %.4f  %d  %s\n", m.Score, m.Record.AppID, m.Record.Name)
		}
		return nil
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List past import operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		engine, err := openEngine(cmd.Context(), cfg, false)
		if err != nil {
			return fmt.Errorf("failed to open engine: %w", err)
		}
		defer engine.Close()

		events, err := engine.Events(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}
		for _, evt := range events {
			fmt.Printf("%s  %s  %s  accepted=%d rejected=%d  %s\n",
				evt.CreatedAt.Format("2006-01-02 15:04:05"), evt.ID, evt.Mode,
				evt.Accepted, evt.Rejected, evt.Source)
		}
		return nil
	},
}

// parseFilters turns "field=value" arguments into a parameter map.
func parseFilters(args []string) (map[string]string, error) {
	params := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("filter %q must be field=value", arg)
		}
		params[key] = value
	}
	return params, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	serveCmd.Flags().String("addr", "", "Listen address (overrides config)")

	queryCmd.Flags().Int64("cursor", 0, "Page cursor")
	queryCmd.Flags().Int("limit", 0, "Page size")

	statsCmd.Flags().String("aggregate", "mean", "Aggregate function (or \"all\")")
	statsCmd.Flags().String("column", "all", "Aggregable column (or \"all\")")

	similarCmd.Flags().Int64("id", 0, "Seed record identifier")
	similarCmd.Flags().String("text", "", "Free query text")
	similarCmd.Flags().Int("top-k", 10, "Number of results")
	similarCmd.Flags().Bool("exclude-self", true, "Drop the seed record from results")

	rootCmd.AddCommand(
		serveCmd,
		ingestCmd,
		queryCmd,
		statsCmd,
		similarCmd,
		eventsCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
