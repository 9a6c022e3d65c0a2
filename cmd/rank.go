package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spigell/scoreit/internal/candidate"
	"github.com/spigell/scoreit/internal/dataset"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank candidates from a file against a job and print the result as JSON",
	Run: func(cmd *cobra.Command, _ []string) {
		rank(cmd)
	},
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().StringP("job", "J", "", "a YAML or JSON file with job skills, experience and qualifications")
	rankCmd.Flags().StringP("candidates", "c", "", "a YAML or JSON file with candidates")

	rankCmd.MarkFlagRequired("job")
	rankCmd.MarkFlagRequired("candidates")
}

func rank(cmd *cobra.Command) {
	ctx := context.Background()

	a := mustApp(ctx, appParts{})
	defer a.Close(ctx)

	job, docs, err := loadRankInput(cmd)
	if err != nil {
		a.Logger.Fatal("loading input", zap.Error(err))
	}

	results, err := a.Ranker.Rank(ctx, candidatesOf(docs), job)
	if err != nil {
		a.Logger.Fatal("ranking candidates", zap.Error(err))
	}

	a.Logger.Info("ranked candidates",
		zap.Int("count", len(results)),
		zap.String("model_state", a.Model.State().String()),
	)

	pretty, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(pretty))
}

func loadRankInput(cmd *cobra.Command) (candidate.Job, []candidate.Document, error) {
	job, err := dataset.LoadJob(cmd.Flag("job").Value.String())
	if err != nil {
		return candidate.Job{}, nil, err
	}

	docs, err := dataset.LoadCandidates(cmd.Flag("candidates").Value.String())
	if err != nil {
		return candidate.Job{}, nil, err
	}
	return job, docs, nil
}

func candidatesOf(docs []candidate.Document) []candidate.Candidate {
	out := make([]candidate.Candidate, len(docs))
	for i, d := range docs {
		out[i] = d.Candidate()
	}
	return out
}
