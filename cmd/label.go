package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/scoreit/internal/candidate"
	"github.com/spigell/scoreit/internal/dataset"
	"github.com/spigell/scoreit/internal/features"
	"github.com/spigell/scoreit/internal/model"
	"github.com/spigell/scoreit/internal/ranking"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	PromptGood = "Good match"
	PromptPoor = "Poor match"
	PromptSkip = "Skip"
	PromptStop = "Stop labeling"

	PromptSave      = "Save feedback"
	PromptSaveTrain = "Save feedback and train"
	PromptDiscard   = "Discard"
)

var errStop = errors.New("labeling stopped")

var labelCmd = &cobra.Command{
	Use:   "label",
	Short: "Label ranked candidates interactively and record the feedback",
	Run: func(cmd *cobra.Command, _ []string) {
		label(cmd)
	},
}

func init() {
	rootCmd.AddCommand(labelCmd)

	labelCmd.Flags().StringP("job", "J", "", "a YAML or JSON file with job skills, experience and qualifications")
	labelCmd.Flags().StringP("candidates", "c", "", "a YAML or JSON file with candidates")
	labelCmd.Flags().StringP("output", "o", "data/feedback.yaml", "feedback file to append labels to")
	labelCmd.Flags().BoolP("auto-train", "y", false, "train on the new labels without asking")

	labelCmd.MarkFlagRequired("job")
	labelCmd.MarkFlagRequired("candidates")
}

func label(cmd *cobra.Command) {
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

	if len(results) == 0 {
		a.Logger.Info("exiting", zap.String("reason", "no candidates to label"))
		return
	}

	samples, err := collectLabels(results, job)
	if err != nil {
		a.Logger.Fatal("exiting", zap.Error(err))
	}

	if len(samples) == 0 {
		a.Logger.Info("exiting", zap.String("reason", "nothing was labeled"))
		return
	}

	a.Logger.Info("labels collected", zap.Int("count", len(samples)))

	action := PromptSaveTrain
	if cmd.Flag("auto-train").Value.String() == "false" {
		selector := promptui.Select{
			Label: "What to do with the labels?",
			Items: []string{PromptSaveTrain, PromptSave, PromptDiscard},
		}
		if _, action, err = selector.Run(); err != nil {
			a.Logger.Fatal("exiting", zap.Error(err))
		}
	}

	if err := handleLabels(ctx, a, action, cmd.Flag("output").Value.String(), samples); err != nil {
		a.Logger.Fatal("exiting", zap.Error(err))
	}
}

// collectLabels asks about every ranked candidate until the list ends or the user stops.
func collectLabels(results []ranking.Result, job candidate.Job) ([]model.Sample, error) {
	extractor := features.Overlap{}
	samples := make([]model.Sample, 0, len(results))

	for i, r := range results {
		selector := promptui.Select{
			Label: fmt.Sprintf("[%d/%d] %s", i+1, len(results), describeResult(r)),
			Items: []string{PromptGood, PromptPoor, PromptSkip, PromptStop},
		}

		_, answer, err := selector.Run()
		if err != nil {
			return nil, err
		}

		labelValue, err := labelFor(answer)
		if errors.Is(err, errStop) {
			break
		}
		if err != nil {
			return nil, err
		}
		if labelValue < 0 {
			continue
		}

		samples = append(samples, model.NewSample(extractor.Extract(r.Candidate, job), labelValue))
	}

	return samples, nil
}

// labelFor maps a prompt answer to a label. Skipped candidates get -1.
func labelFor(answer string) (int, error) {
	switch answer {
	case PromptGood:
		return 1, nil
	case PromptPoor:
		return 0, nil
	case PromptSkip:
		return -1, nil
	case PromptStop:
		return 0, errStop
	default:
		return 0, fmt.Errorf("invalid answer: %s", answer)
	}
}

func handleLabels(ctx context.Context, a *App, action, output string, samples []model.Sample) error {
	switch action {
	case PromptDiscard:
		a.Logger.Info("exiting", zap.String("reason", "labels discarded"))
		return nil
	case PromptSave, PromptSaveTrain:
		if err := dataset.AppendFeedback(output, samples); err != nil {
			return fmt.Errorf("saving feedback: %w", err)
		}
		a.Logger.Info("feedback saved", zap.String("filename", output), zap.Int("count", len(samples)))

		if action == PromptSave {
			return nil
		}

		metrics, err := a.Model.AddFeedback(ctx, samples)
		if err != nil {
			return fmt.Errorf("training on feedback: %w", err)
		}
		status := a.Model.Status()
		a.Logger.Info("feedback applied",
			zap.String("state", status.State),
			zap.Float64("accuracy", metrics.Accuracy),
			zap.Float64("auc", metrics.AUC),
			zap.Int("samples", status.Samples),
			zap.Int("pending", status.Pending),
		)
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func describeResult(r ranking.Result) string {
	c := r.Candidate
	parts := []string{fmt.Sprintf("score %.3f", r.Score)}
	if len(c.Skills) > 0 {
		parts = append(parts, "skills: "+strings.Join(c.Skills, ", "))
	}
	parts = append(parts, fmt.Sprintf("%d years", c.Experience))
	if len(c.Qualifications) > 0 {
		parts = append(parts, "qualifications: "+strings.Join(c.Qualifications, ", "))
	}
	return strings.Join(parts, " / ")
}
