package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"wordclass-go/internal/classifier"
	"wordclass-go/internal/model"
	"wordclass-go/internal/service"
	"wordclass-go/pkg/kafka"
	"wordclass-go/pkg/log"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func hyperparamsFlags(cmd *cobra.Command, hp *classifier.Hyperparams) {
	cmd.Flags().IntVar(&hp.Epochs, "epochs", 0, "number of epochs (default from config)")
	cmd.Flags().IntVar(&hp.BatchSize, "batch-size", 0, "batch size (default from config)")
	cmd.Flags().Float64Var(&hp.LearningRate, "learning-rate", 0, "Adam learning rate (default from config)")
	cmd.Flags().Float64Var(&hp.ValidationSplit, "validation-split", -1, "fraction held out for validation (default from config)")
}

// resolve 用配置补齐命令行未给出的超参数。
func resolve(e *env, flags classifier.Hyperparams) classifier.Hyperparams {
	tc := e.cfg.Trainer
	hp := classifier.DefaultHyperparams()
	hp.Epochs = tc.Epochs
	hp.BatchSize = tc.BatchSize
	hp.ValidationSplit = tc.ValidationSplit
	hp.LearningRate = tc.LearningRate
	hp.DropoutRate = tc.DropoutRate
	hp.Seed = tc.Seed
	if flags.Epochs > 0 {
		hp.Epochs = flags.Epochs
	}
	if flags.BatchSize > 0 {
		hp.BatchSize = flags.BatchSize
	}
	if flags.LearningRate > 0 {
		hp.LearningRate = flags.LearningRate
	}
	if flags.ValidationSplit >= 0 {
		hp.ValidationSplit = flags.ValidationSplit
	}
	return hp
}

func newTrainCommand() *cobra.Command {
	var flags classifier.Hyperparams
	var noSave, quiet bool
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Load the corpus from the gateway, train a model and save it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := envFrom(cmd)
			ctx := cmd.Context()
			hp := resolve(e, flags)

			corpus, err := e.session.Init(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "loaded %d rows, features %s, label %s, %d classes\n",
				len(corpus.Labels), strings.Join(corpus.Columns.Features, ","), corpus.Columns.Label, corpus.LabelMap.Len())

			bar := progressbar.NewOptions(hp.Epochs,
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionSetDescription("training"),
				progressbar.OptionSetWidth(30),
				progressbar.OptionShowCount(),
				progressbar.OptionSetVisibility(!quiet),
			)
			result, err := e.session.Train(ctx, hp, func(l classifier.EpochLog) {
				bar.Describe(fmt.Sprintf("loss %.4f acc %.3f", l.Loss, l.Accuracy))
				_ = bar.Add(1)
			})
			_ = bar.Finish()
			if err != nil {
				return err
			}

			out := map[string]any{"run_id": result.RunID, "history": result.History}
			if !noSave {
				report, err := e.session.Save(ctx)
				if err != nil {
					return err
				}
				if report.Warning != "" {
					log.Warnf("模型已保存但元数据未记录: %s", report.Warning)
				}
				out["saved"] = report
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	hyperparamsFlags(cmd, &flags)
	cmd.Flags().BoolVar(&noSave, "no-save", false, "skip saving the trained model")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "hide the progress bar")
	return cmd
}

func newEvaluateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate the saved model on the current corpus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := envFrom(cmd)
			ctx := cmd.Context()
			if _, err := e.session.Load(ctx); err != nil {
				return err
			}
			if _, err := e.session.Init(ctx); err != nil {
				return err
			}
			ev, err := e.session.Evaluate(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ev)
		},
	}
}

func newPredictCommand() *cobra.Command {
	var logIt, baseline bool
	cmd := &cobra.Command{
		Use:   "predict <text>",
		Short: "Predict the class of a text with the saved model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := envFrom(cmd)
			ctx := cmd.Context()
			text := strings.Join(args, " ")

			if baseline {
				res, err := e.client.HeuristicPredict(ctx, text)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			}

			if _, err := e.session.Load(ctx); err != nil {
				return err
			}
			pred, err := e.session.Predict(text)
			if err != nil {
				return err
			}
			if logIt {
				in := model.PredictionInput{Text: text, Class: pred.Label, Confidence: pred.Probability}
				if _, err := e.client.LogPrediction(ctx, in); err != nil {
					log.Warnf("记录预测日志失败: %v", err)
				}
			}
			return printJSON(cmd.OutOrStdout(), pred)
		},
	}
	cmd.Flags().BoolVar(&logIt, "log", false, "record the prediction through the gateway")
	cmd.Flags().BoolVar(&baseline, "baseline", false, "use the gateway keyword baseline instead of the model")
	return cmd
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show table statistics and the latest model metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := envFrom(cmd)
			ctx := cmd.Context()
			stats, err := e.client.WordTableStats(ctx)
			if err != nil {
				return err
			}
			meta, err := e.client.LatestMetadata(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"table": stats, "metadata": meta})
		},
	}
}

// newWorkerCommand 消费 Kafka 中的训练任务，直到收到停止信号。
func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume training tasks from Kafka",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := envFrom(cmd)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rdb, err := e.redis(ctx)
			if err != nil {
				return err
			}
			svc := service.NewClassifierService(ctx, e.session, resolve(e, classifier.Hyperparams{ValidationSplit: -1}), nil, e.client, nil)
			events, cancel := svc.Progress().Subscribe(16)
			defer cancel()
			go func() {
				for ev := range events {
					log.Infow("训练进度", "type", ev.Type, "task_id", ev.TaskID, "message", ev.Message)
				}
			}()

			kafka.StartConsumer(ctx, e.cfg.Kafka, svc, rdb)
			return nil
		},
	}
}
