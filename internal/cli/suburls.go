package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/crawlkit/crawld/internal/orchestrator"
	"github.com/crawlkit/crawld/internal/ui"
	"github.com/crawlkit/crawld/pkg/models"
)

var (
	suburlsDepth       int
	suburlsMaxPages    int
	suburlsStrategy    string
	suburlsExclude     []string
	suburlsKeywords    []string
	suburlsScoreScript string
	suburlsCrossSite   bool
	suburlsNoJS        bool
	suburlsOutput      string
	suburlsJSON        bool
)

var suburlsCmd = &cobra.Command{
	Use:   "suburls <url>",
	Short: "Deep-crawl a site and list discovered sub-URLs",
	Long: `Crawls from the seed URL following the chosen frontier strategy and
prints every accepted sub-URL. Depth, page budget, and exclusion patterns
bound the crawl.`,
	Example: `  # BFS crawl two levels deep
  crawld suburls https://example.com --strategy bfs --depth 2

  # Best-first crawl steered by keywords
  crawld suburls https://example.com --keywords docs,api

  # Skip PDF links and write results to a file
  crawld suburls https://example.com --exclude '.*\.pdf$' -o urls.json --json`,
	Args: cobra.ExactArgs(1),
	RunE: runSubURLs,
}

func init() {
	rootCmd.AddCommand(suburlsCmd)

	suburlsCmd.Flags().IntVarP(&suburlsDepth, "depth", "d", 0, "Maximum crawl depth (default from config)")
	suburlsCmd.Flags().IntVarP(&suburlsMaxPages, "max-pages", "p", 0, "Maximum pages to fetch (default from config)")
	suburlsCmd.Flags().StringVarP(&suburlsStrategy, "strategy", "s", "", "Frontier strategy: bfs, dfs, or best_first")
	suburlsCmd.Flags().StringArrayVarP(&suburlsExclude, "exclude", "e", nil, "Regex patterns excluding URLs (repeatable)")
	suburlsCmd.Flags().StringSliceVar(&suburlsKeywords, "keywords", nil, "Keywords steering best-first scoring")
	suburlsCmd.Flags().StringVar(&suburlsScoreScript, "score-script", "", "Path to a JavaScript file defining score(url, depth)")
	suburlsCmd.Flags().BoolVar(&suburlsCrossSite, "cross-site", false, "Follow links to other registrable domains")
	suburlsCmd.Flags().BoolVar(&suburlsNoJS, "no-js", false, "Skip JavaScript rendering, fetch statically")
	suburlsCmd.Flags().StringVarP(&suburlsOutput, "output", "o", "", "File path to save results")
	suburlsCmd.Flags().BoolVar(&suburlsJSON, "json-output", false, "Print results as JSON")
}

func runSubURLs(cmd *cobra.Command, args []string) error {
	application := GetApp()
	cfg := application.Config
	seed := args[0]

	depth := cfg.MaxDepth
	if suburlsDepth > 0 {
		depth = suburlsDepth
	}
	maxPages := cfg.MaxPages
	if suburlsMaxPages > 0 {
		maxPages = suburlsMaxPages
	}
	strategyName := cfg.Strategy
	if suburlsStrategy != "" {
		strategyName = suburlsStrategy
	}
	strategy, err := models.ParseStrategy(strategyName)
	if err != nil {
		return err
	}

	waitForJS := cfg.WaitForJS && !suburlsNoJS
	if waitForJS {
		if err := application.EnsureBrowserPool(cmd.Context()); err != nil {
			log.Warn().Err(err).Msg("Browser pool unavailable, falling back to static fetches")
			waitForJS = false
		}
	}

	var scorer orchestrator.Scorer
	if suburlsScoreScript != "" {
		src, err := os.ReadFile(suburlsScoreScript)
		if err != nil {
			return fmt.Errorf("read score script: %w", err)
		}
		script, err := orchestrator.NewScriptScorer(string(src))
		if err != nil {
			return err
		}
		scorer = script.Score
	} else if len(suburlsKeywords) > 0 {
		scorer = orchestrator.KeywordScorer(suburlsKeywords)
	}

	bar := progressbar.NewOptions(maxPages,
		progressbar.OptionSetDescription("crawling"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionShowCount(),
	)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	result, err := application.Engine.Run(ctx, orchestrator.Config{
		Seed:            seed,
		MaxDepth:        depth,
		MaxPages:        maxPages,
		Workers:         cfg.Workers,
		Strategy:        strategy,
		ExcludePatterns: suburlsExclude,
		CrossDomain:     suburlsCrossSite,
		CrawlDelay:      cfg.CrawlDelay,
		CrawlTimeout:    cfg.CrawlTimeout,
		Scorer:          scorer,
		Render: models.RenderConfig{
			WaitUntil:     models.WaitDOMReady,
			JSTimeout:     cfg.JSTimeout,
			OutputFormat:  models.OutputFormat(cfg.OutputFormat),
			ExtractLinks:  true,
			ExtractImages: false,
			CacheMode:     models.CacheEnabled,
			RespectRobots: cfg.RespectRobots,
			WaitForJS:     waitForJS,
			UserAgent:     cfg.UserAgent,
		},
		OnOutcome: func(*models.FetchOutcome) { _ = bar.Add(1) },
	})
	_ = bar.Finish()
	if err != nil {
		return err
	}

	if result.Aborted {
		reason := "seed fetch failed"
		if seedOutcome := result.SeedOutcome(); seedOutcome != nil && seedOutcome.Error != "" {
			reason = seedOutcome.Error
		}
		fmt.Fprintf(os.Stderr, "%s %s\n", ui.Error("Crawl aborted:"), reason)
		os.Exit(1)
	}

	if suburlsJSON || suburlsOutput != "" {
		payload, err := json.MarshalIndent(map[string]any{
			"url":                    result.SeedURL,
			"sub_urls":               result.DiscoveredURLs,
			"urls_found":             len(result.DiscoveredURLs),
			"pages_fetched":          result.PagesFetched,
			"strategy":               string(strategy),
			"execution_time_seconds": models.RoundSeconds(result.Elapsed),
			"truncated":              result.Truncated,
		}, "", "  ")
		if err != nil {
			return err
		}
		if suburlsOutput != "" {
			if err := os.WriteFile(suburlsOutput, append(payload, '\n'), 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(os.Stderr, "%s %s\n", ui.Success("Saved"), suburlsOutput)
		}
		if suburlsJSON {
			fmt.Println(string(payload))
		}
		return nil
	}

	fmt.Printf("\n%s %s\n", ui.Header("Sub-URLs of"), result.SeedURL)
	for _, u := range result.DiscoveredURLs {
		fmt.Printf("  %s\n", u)
	}
	fmt.Printf("\n%s found in %s (%d pages fetched, %s)\n",
		ui.Count(len(result.DiscoveredURLs), "urls"),
		result.Elapsed.Round(10*time.Millisecond),
		result.PagesFetched,
		string(result.Reason))
	return nil
}
