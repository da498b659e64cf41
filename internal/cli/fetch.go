package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/crawlkit/crawld/internal/orchestrator"
	"github.com/crawlkit/crawld/internal/ui"
	"github.com/crawlkit/crawld/pkg/models"
)

var (
	fetchFormat      string
	fetchContentType string
	fetchHeaders     []string
	fetchNoJS        bool
	fetchOutput      string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url> [url...]",
	Short: "Fetch content from one or more URLs",
	Long: `Fetches each URL and extracts its content in the requested format.
Failures on individual URLs never stop the rest of the batch.`,
	Example: `  # Fetch one page as markdown
  crawld fetch https://example.com

  # Fetch several pages as plain text
  crawld fetch https://example.com https://example.org --format text

  # All formats, saved to a file, with a custom header
  crawld fetch https://example.com --content-type all -o pages.json -H "Accept-Language: en"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVarP(&fetchFormat, "format", "f", "", "Output format: markdown, html, or text")
	fetchCmd.Flags().StringVar(&fetchContentType, "content-type", "", "Content returned per URL: markdown, html, text, or all")
	fetchCmd.Flags().StringArrayVarP(&fetchHeaders, "header", "H", nil, "Custom headers (e.g. -H \"Accept-Language: en\")")
	fetchCmd.Flags().BoolVar(&fetchNoJS, "no-js", false, "Skip JavaScript rendering, fetch statically")
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "File path to save results as JSON")
}

func runFetch(cmd *cobra.Command, args []string) error {
	application := GetApp()
	cfg := application.Config

	formatName := cfg.OutputFormat
	if fetchFormat != "" {
		formatName = fetchFormat
	}
	format, err := models.ParseOutputFormat(formatName)
	if err != nil {
		return err
	}

	contentType := models.ContentType(format)
	if fetchContentType != "" {
		if contentType, err = models.ParseContentType(fetchContentType); err != nil {
			return err
		}
	}
	if contentType == models.ContentAll {
		format = models.FormatMarkdown
	}

	waitForJS := cfg.WaitForJS && !fetchNoJS
	if waitForJS {
		if err := application.EnsureBrowserPool(cmd.Context()); err != nil {
			log.Warn().Err(err).Msg("Browser pool unavailable, falling back to static fetches")
			waitForJS = false
		}
	}

	bar := progressbar.NewOptions(len(args),
		progressbar.OptionSetDescription("fetching"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionShowCount(),
	)

	batch, err := application.Engine.RunBatch(cmd.Context(), orchestrator.BatchConfig{
		URLs:       args,
		Workers:    cfg.Workers,
		CrawlDelay: cfg.CrawlDelay,
		Render: models.RenderConfig{
			WaitUntil:     models.WaitDOMReady,
			JSTimeout:     cfg.JSTimeout,
			OutputFormat:  format,
			ExtractLinks:  true,
			ExtractImages: true,
			CacheMode:     models.CacheEnabled,
			RespectRobots: cfg.RespectRobots,
			WaitForJS:     waitForJS,
			Headers:       parseHeaders(fetchHeaders),
			UserAgent:     cfg.UserAgent,
		},
		OnOutcome: func(*models.FetchOutcome) { _ = bar.Add(1) },
	})
	_ = bar.Finish()
	if err != nil {
		return err
	}

	type fetchEntry struct {
		URL                  string            `json:"url"`
		Metadata             map[string]string `json:"metadata"`
		Content              any               `json:"content"`
		Success              bool              `json:"success"`
		ExecutionTimeSeconds float64           `json:"execution_time_seconds"`
		Error                string            `json:"error,omitempty"`
	}

	entries := make([]fetchEntry, len(batch.Outcomes))
	for i, o := range batch.Outcomes {
		entries[i] = fetchEntry{
			URL:                  o.URL,
			Metadata:             o.Metadata,
			Content:              o.ContentFor(contentType),
			Success:              o.Success,
			ExecutionTimeSeconds: models.RoundSeconds(o.Elapsed),
			Error:                o.Error,
		}
		if entries[i].Metadata == nil {
			entries[i].Metadata = map[string]string{}
		}
	}

	if fetchOutput != "" {
		payload, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(fetchOutput, append(payload, '\n'), 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Fprintf(os.Stderr, "%s %s\n", ui.Success("Saved"), fetchOutput)
		return nil
	}

	for _, entry := range entries {
		if !entry.Success {
			fmt.Fprintf(os.Stderr, "%s %s: %s\n", ui.Error("Failed"), entry.URL, entry.Error)
			continue
		}
		if len(entries) > 1 {
			fmt.Printf("\n%s\n", ui.Header(entry.URL))
		}
		switch content := entry.Content.(type) {
		case string:
			fmt.Println(content)
		default:
			pretty, _ := json.MarshalIndent(content, "", "  ")
			fmt.Println(string(pretty))
		}
	}

	if !batch.AllSucceeded() {
		os.Exit(1)
	}
	return nil
}
