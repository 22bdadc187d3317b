// Package main provides the listing-check CLI: run the verification
// pipeline on a local file, or list the recognised brands.
//
// Run with: go run ./cmd/cli check --image phone.jpg --description "galaxy s21"
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleveque/listing-check/internal/app"
	"github.com/fleveque/listing-check/internal/brand"
	"github.com/fleveque/listing-check/internal/config"
	"github.com/fleveque/listing-check/internal/model"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "listing-check",
		Short:         "Check product photos against their listing descriptions",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("LISTING_CONFIG_PATH"), "Path to config file")

	root.AddCommand(checkCmd(&configPath))
	root.AddCommand(brandsCmd(&configPath))
	return root
}

func loadConfig(path string) (*config.Config, error) {
	_ = godotenv.Load()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func checkCmd(configPath *string) *cobra.Command {
	var (
		imagePath   string
		description string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify a local image against a description",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return runCheck(cmd.Context(), cfg, imagePath, description, asJSON, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&imagePath, "image", "", "Path to the product image")
	cmd.Flags().StringVar(&description, "description", "", "Listing description")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the verdict as JSON")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func runCheck(ctx context.Context, cfg *config.Config, imagePath, description string, asJSON bool, out io.Writer) error {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("no file selected: %s is empty", imagePath)
	}

	// CLI output is for humans; logs go to stderr in development format.
	logger, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	verdict, err := a.Verifier.Verify(ctx, model.Upload{
		Filename: filepath.Base(imagePath),
		Data:     data,
	}, description)
	if err != nil {
		return err
	}

	return printVerdict(out, verdict, asJSON)
}

func printVerdict(out io.Writer, verdict *model.Verdict, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(verdict)
	}

	fmt.Fprintf(out, "Image:       %s\n", verdict.ImagePath)
	fmt.Fprintf(out, "Description: %s\n", verdict.Description)
	fmt.Fprintln(out, verdict.Message)
	if s := verdict.ScoreText(); s != "" {
		fmt.Fprintf(out, "Score: %s\n", s)
	}
	return nil
}

func brandsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "brands",
		Short: "List brand keywords in match order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			detector, err := brand.NewDetector(cfg.Brands.Keywords)
			if err != nil {
				return err
			}
			for i, k := range detector.Keywords() {
				fmt.Fprintf(cmd.OutOrStdout(), "%2d. %s\n", i+1, k)
			}
			return nil
		},
	}
}
