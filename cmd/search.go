package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spigell/scoreit/internal/search"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Find stored candidates for a job description",
	Run: func(cmd *cobra.Command, _ []string) {
		runSearch(cmd)
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringP("text", "t", "", "job description text")
	searchCmd.Flags().StringP("file", "f", "", "a file with the job description text")
	searchCmd.Flags().IntP("top-k", "k", search.DefaultTopK, "number of candidates to return")
	searchCmd.MarkFlagsMutuallyExclusive("text", "file")
	searchCmd.MarkFlagsOneRequired("text", "file")
}

func runSearch(cmd *cobra.Command) {
	ctx := context.Background()

	a := mustApp(ctx, appParts{search: true})
	defer a.Close(ctx)

	text, err := jobDescription(cmd)
	if err != nil {
		a.Logger.Fatal("reading job description", zap.Error(err))
	}

	topK, _ := cmd.Flags().GetInt("top-k")
	resp, err := a.Search.Search(ctx, text, topK)
	if err != nil {
		a.Logger.Fatal("searching candidates", zap.Error(err))
	}

	a.Logger.Info("search finished", zap.Int("results", len(resp.Results)), zap.String("query", resp.Query))

	pretty, _ := json.MarshalIndent(resp, "", "  ")
	fmt.Println(string(pretty))
}

func jobDescription(cmd *cobra.Command) (string, error) {
	if text := cmd.Flag("text").Value.String(); strings.TrimSpace(text) != "" {
		return text, nil
	}

	path := cmd.Flag("file").Value.String()
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}
