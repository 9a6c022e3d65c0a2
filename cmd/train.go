package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spigell/scoreit/internal/dataset"
	"github.com/spigell/scoreit/internal/features"
	"github.com/spigell/scoreit/internal/model"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the model on labeled feedback or bootstrap it",
	Long: `Train refits the model on the accumulated feedback plus the samples in --feedback.
With --replace the accumulated feedback is dropped and only the file is used.
With --bootstrap only the model status is printed: a model that was never fitted\nis fitted on synthetic data when it is opened.`,
	Run: func(cmd *cobra.Command, _ []string) {
		train(cmd)
	},
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().StringP("feedback", "f", "", "a YAML or JSON file with feature vectors and labels")
	trainCmd.Flags().Bool("replace", false, "train on the file only, dropping earlier feedback")
	trainCmd.Flags().Bool("bootstrap", false, "make sure the model is fitted and print its status")
	trainCmd.MarkFlagsMutuallyExclusive("feedback", "bootstrap")
	trainCmd.MarkFlagsOneRequired("feedback", "bootstrap")
}

func train(cmd *cobra.Command) {
	ctx := context.Background()

	a := mustApp(ctx, appParts{})
	defer a.Close(ctx)

	bootstrap, _ := cmd.Flags().GetBool("bootstrap")
	if bootstrap {
		if err := a.Model.Bootstrap(ctx); err != nil {
			a.Logger.Fatal("bootstrapping the model", zap.Error(err))
		}
		printStatus(a.Model.Status())
		return
	}

	path := cmd.Flag("feedback").Value.String()
	samples, err := dataset.LoadFeedback(path)
	if err != nil {
		a.Logger.Fatal("loading feedback", zap.String("file", path), zap.Error(err))
	}

	var metrics model.Metrics
	if replace, _ := cmd.Flags().GetBool("replace"); replace {
		X, y := splitSamples(samples)
		metrics, err = a.Model.Train(ctx, X, y)
	} else {
		metrics, err = a.Model.AddFeedback(ctx, samples)
	}
	if err != nil {
		a.Logger.Fatal("training the model", zap.Error(err))
	}

	a.Logger.Info("model trained",
		zap.Int("new_samples", len(samples)),
		zap.Float64("accuracy", metrics.Accuracy),
		zap.Float64("auc", metrics.AUC),
	)
	printStatus(a.Model.Status())
}

func splitSamples(samples []model.Sample) ([]features.Vector, []int) {
	X := make([]features.Vector, len(samples))
	y := make([]int, len(samples))
	for i, s := range samples {
		X[i] = features.Vector{
			SkillOverlap:       int(s.Features[0]),
			ExperienceGap:      int(s.Features[1]),
			QualificationMatch: int(s.Features[2]),
		}
		y[i] = s.Label
	}
	return X, y
}

func printStatus(status model.Status) {
	pretty, _ := json.MarshalIndent(status, "", "  ")
	fmt.Println(string(pretty))
}
