package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dgallion1/docblocks/internal/blocks"
	"github.com/dgallion1/docblocks/internal/chunker"
	"github.com/dgallion1/docblocks/internal/config"
	"github.com/dgallion1/docblocks/internal/notion"
	"github.com/dgallion1/docblocks/internal/parser"
	"github.com/dgallion1/docblocks/internal/pipeline"
	"github.com/dgallion1/docblocks/internal/restructure"
)

var convertCmd = &cobra.Command{
	Use:   "convert FILE",
	Short: "Convert a local paper into Notion blocks",
	Long: `Convert extracts the text of a PDF, DOCX, HTML, markdown or text file,
optionally restructures it with the configured LLM provider, and converts
everything from the start marker on into blocks.

Without --page the blocks are printed. With --page they are appended to that
Notion page and the delivery result is printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().String("start-marker", "", "label where content begins (default from START_MARKER)")
	convertCmd.Flags().String("page", "", "Notion page id to append the blocks to")
	convertCmd.Flags().String("format", "json", "output format: json or yaml")
	convertCmd.Flags().Bool("restructure", false, "restructure the extracted text with the configured LLM first")
	convertCmd.Flags().Bool("text", false, "print the converter input text instead of blocks")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	if format != "json" && format != "yaml" {
		return fmt.Errorf("--format must be json or yaml, got %q", format)
	}
	marker, _ := cmd.Flags().GetString("start-marker")
	if marker == "" {
		marker = cfg.StartMarker
	}
	pageID, _ := cmd.Flags().GetString("page")
	doRestructure, _ := cmd.Flags().GetBool("restructure")
	textOnly, _ := cmd.Flags().GetBool("text")

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	text, err := parser.Extract(filepath.Base(path), data, parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if doRestructure {
		text, err = restructureText(ctx, cmd.ErrOrStderr(), cfg, text)
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if textOnly {
		_, err := io.WriteString(out, text+"\n")
		return err
	}

	doc := blocks.Document{Text: text, StartMarker: marker}
	opts := pipeline.BlockOptions(cfg)
	if pageID == "" {
		bs, err := blocks.Convert(doc, opts)
		if err != nil {
			return err
		}
		return writeOutput(out, format, bs)
	}

	if cfg.NotionAPIKey == "" {
		return fmt.Errorf("NOTION_API_KEY is required to publish")
	}
	nc := notion.NewClient(cfg.NotionBaseURL, cfg.NotionAPIKey, notion.Options{
		Version:    cfg.NotionVersion,
		Timeout:    cfg.NotionTimeout,
		MaxRetries: cfg.NotionMaxRetries,
	})
	defer nc.Close()

	res, err := notion.Deliver(ctx, nc, pageID, doc, opts)
	if werr := writeOutput(out, format, res); werr != nil {
		return werr
	}
	return err
}

func restructureText(ctx context.Context, stderr io.Writer, cfg config.Config, text string) (string, error) {
	llm, err := restructure.New(restructureSettings(cfg))
	if err != nil {
		return "", err
	}
	if llm == nil {
		return "", fmt.Errorf("--restructure needs RESTRUCTURE_PROVIDER set to openrouter or anthropic")
	}
	if tokens := chunker.EstimateTokens(text); tokens > cfg.RestructureMaxTokens {
		fmt.Fprintf(stderr, "skipping restructure: ~%d tokens exceeds limit %d\n", tokens, cfg.RestructureMaxTokens)
		return text, nil
	}
	fmt.Fprintf(stderr, "restructuring with %s...\n", llm.Model())
	return llm.Restructure(ctx, text)
}

func writeOutput(w io.Writer, format string, v any) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
