package cmd

import (
	"context"
	"fmt"

	"github.com/spigell/scoreit/internal/dataset"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Embed candidates from a file and store them for semantic search",
	Run: func(cmd *cobra.Command, _ []string) {
		ingest(cmd)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringP("file", "f", "", "a YAML or JSON file with candidates")
	ingestCmd.MarkFlagRequired("file")
}

func ingest(cmd *cobra.Command) {
	ctx := context.Background()

	a := mustApp(ctx, appParts{search: true})
	defer a.Close(ctx)

	path := cmd.Flag("file").Value.String()
	docs, err := dataset.LoadCandidates(path)
	if err != nil {
		a.Logger.Fatal("loading candidates", zap.String("file", path), zap.Error(err))
	}

	ids, err := a.Search.Ingest(ctx, docs)
	if err != nil {
		a.Logger.Fatal("ingesting candidates", zap.Error(err))
	}

	a.Logger.Info("candidates stored", zap.Int("count", len(ids)), zap.String("backend", a.Config.Store.Backend))
	for _, id := range ids {
		fmt.Println(id)
	}
}
