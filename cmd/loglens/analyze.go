package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiranshivaraju/loglens/internal/ai/provider"
	"github.com/kiranshivaraju/loglens/internal/analyzer"
	"github.com/kiranshivaraju/loglens/internal/app"
	"github.com/kiranshivaraju/loglens/internal/config"
	"github.com/kiranshivaraju/loglens/pkg/models"
)

const maxLineBytes = 1 << 20

type analyzeOptions struct {
	provider       string
	remediation    string
	batchSize      int
	reuseThreshold int
	timeout        time.Duration
	maxLines       int
	showMetrics    bool
}

func newAnalyzeCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [file|-]",
		Short: "Analyze a log file or stdin",
		Long: `Analyze streams log lines through the batch analyzer and writes one JSON
analysis per flushed batch to stdout. Without a file, or with "-", lines are
read from stdin. A final partial batch is flushed at end of input.

Flag defaults can be set in a YAML file passed with --config, using the flag
names as keys. Provider settings not covered by flags come from the same
environment variables as the server (OLLAMA_*, OPENAI_*, ANTHROPIC_*, VLLM_*).

Examples:
  loglens analyze app.log
  kubectl logs deploy/api | loglens analyze --provider ollama --batch-size 50
  loglens analyze --provider mock --metrics=false app.log`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadAnalyzeOptions(cmd, v)
			if err != nil {
				return err
			}
			return runAnalyze(cmd, args, opts)
		},
	}

	f := cmd.Flags()
	f.StringP("provider", "p", "", "inference provider (ollama, vllm, openai, anthropic, mock); default $AI_PROVIDER or mock")
	f.String("remediation", "", "remediation mode (rules, inference); default $AI_REMEDIATION")
	f.IntP("batch-size", "b", 0, "lines per batch; default $STREAM_BATCH_SIZE")
	f.Int("reuse-threshold", -1, "reuse a cached analysis once its dominant pattern was seen this often (0 disables)")
	f.Duration("timeout", 0, "per-batch inference timeout; default $AI_INFERENCE_TIMEOUT_SECS")
	f.Int("max-lines", 0, "stop after this many lines (0 = no limit)")
	f.Bool("metrics", true, "print a metrics summary after the last analysis")

	return cmd
}

// loadAnalyzeOptions resolves each option from, in order, an explicitly set
// flag, the --config file and the flag default.
func loadAnalyzeOptions(cmd *cobra.Command, v *viper.Viper) (analyzeOptions, error) {
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return analyzeOptions{}, err
	}
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return analyzeOptions{}, fmt.Errorf("read config file: %w", err)
		}
	}

	return analyzeOptions{
		provider:       v.GetString("provider"),
		remediation:    v.GetString("remediation"),
		batchSize:      v.GetInt("batch-size"),
		reuseThreshold: v.GetInt("reuse-threshold"),
		timeout:        v.GetDuration("timeout"),
		maxLines:       v.GetInt("max-lines"),
		showMetrics:    v.GetBool("metrics"),
	}, nil
}

func (o analyzeOptions) config() (*config.Config, error) {
	cfg := config.FromEnv()
	if o.provider != "" {
		cfg.AI.Provider = o.provider
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "mock"
	}
	if o.remediation != "" {
		cfg.AI.Remediation = o.remediation
	}
	if o.batchSize != 0 {
		cfg.Stream.BatchSize = o.batchSize
	}
	if o.reuseThreshold >= 0 {
		cfg.Stream.PatternReuseThreshold = o.reuseThreshold
	}
	if o.timeout != 0 {
		cfg.AI.InferenceTimeout = o.timeout
	}
	// Input is flushed at EOF; there is no idle timer.
	cfg.Stream.FlushInterval = 0

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runAnalyze(cmd *cobra.Command, args []string, opts analyzeOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := opts.config()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	in, closeIn, err := openInput(cmd, args)
	if err != nil {
		return err
	}
	defer closeIn()

	client, err := provider.New(cfg.AI)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	stream, err := app.NewStream(cfg, client, app.Deps{Sink: &jsonLineSink{enc: json.NewEncoder(out)}})
	if err != nil {
		return err
	}

	if err := feed(ctx, stream, in, opts.maxLines); err != nil {
		return err
	}
	if _, err := stream.Close(ctx); err != nil {
		return fmt.Errorf("final flush: %w", err)
	}

	if opts.showMetrics {
		return json.NewEncoder(out).Encode(summary{
			Metrics: stream.Metrics(),
			Stream:  stream.Stats(),
		})
	}
	return nil
}

type summary struct {
	Metrics analyzer.MetricsSnapshot `json:"metrics"`
	Stream  analyzer.StreamStats     `json:"stream"`
}

func openInput(cmd *cobra.Command, args []string) (io.Reader, func(), error) {
	if len(args) == 0 || args[0] == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func feed(ctx context.Context, stream *analyzer.StreamAnalyzer, in io.Reader, maxLines int) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	n := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if _, err := stream.ProcessLog(ctx, line); err != nil {
			return err
		}
		n++
		if maxLines > 0 && n >= maxLines {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

// jsonLineSink writes each published analysis as one JSON line. Flushes are
// serialized by the stream analyzer, so writes never interleave.
type jsonLineSink struct {
	enc *json.Encoder
}

func (s *jsonLineSink) Publish(_ context.Context, a models.Analysis) error {
	return s.enc.Encode(a)
}
