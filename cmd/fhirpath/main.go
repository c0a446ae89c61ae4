// Command fhirpath evaluates FHIRPath expressions against FHIR resources
// from files or stdin.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gofhir/fhirpath"
	"github.com/gofhir/fhirpath/stream"
	"github.com/gofhir/fhirpath/types"
)

var (
	flagJSON    bool
	flagNDJSON  bool
	flagWorkers int
	flagNoFast  bool
	flagVerbose bool
	flagTrace   bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fhirpath",
		Short:         "Evaluate FHIRPath expressions against FHIR resources",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	root.AddCommand(newEvalCmd(), newParseCmd())
	return root
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if flagVerbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
}

func newEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval EXPRESSION [FILE...]",
		Short: "Evaluate an expression against JSON resources (files or stdin)",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runEval,
	}
	cmd.Flags().BoolVar(&flagJSON, "json", false, "emit results as JSON")
	cmd.Flags().BoolVar(&flagNDJSON, "ndjson", false, "treat input as newline-delimited JSON")
	cmd.Flags().IntVar(&flagWorkers, "workers", 4, "parallel workers for --ndjson")
	cmd.Flags().BoolVar(&flagNoFast, "no-fast-path", false, "force interpreted evaluation")
	cmd.Flags().BoolVar(&flagTrace, "trace", false, "log trace() output")
	return cmd
}

func runEval(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	opts := []fhirpath.Option{fhirpath.WithFastPath(!flagNoFast)}
	if flagTrace {
		opts = append(opts, fhirpath.WithTracer(fhirpath.NewLogTracer(logger)))
	}
	engine := fhirpath.New(opts...)

	expr, err := engine.Parse(args[0])
	if err != nil {
		return err
	}
	logger.Debug().Bool("fast_path", expr.FastPath()).Str("expr", expr.Source()).Msg("parsed")

	if flagNDJSON {
		return evalNDJSON(cmd.Context(), expr, args[1:], logger)
	}

	files := args[1:]
	if len(files) == 0 {
		files = []string{"-"}
	}
	for _, file := range files {
		data, err := readInput(file)
		if err != nil {
			return err
		}
		out, err := expr.Evaluate(data)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		if err := printResult(cmd, out); err != nil {
			return err
		}
	}
	return nil
}

func evalNDJSON(ctx context.Context, expr *fhirpath.Expression, files []string, logger zerolog.Logger) error {
	if len(files) == 0 {
		files = []string{"-"}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ev := stream.New(expr).WithWorkerCount(flagWorkers)

	for _, file := range files {
		in := os.Stdin
		if file != "-" {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		agg := stream.Aggregate(ev.EvaluateStreamParallel(ctx, in))
		for _, err := range agg.ProcessingErrors {
			logger.Error().Err(err).Str("file", file).Msg("processing error")
		}
		logger.Info().Str("file", file).Msg(agg.Summary())
		if agg.HasErrors() {
			return fmt.Errorf("%s: %d processing errors", file, len(agg.ProcessingErrors))
		}
	}
	return nil
}

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse EXPRESSION",
		Short: "Parse an expression and report its canonical form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expr, err := fhirpath.Compile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), expr.String())
			if expr.FastPath() {
				fmt.Fprintln(cmd.OutOrStdout(), "evaluation: compiled")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "evaluation: interpreted")
			}
			return nil
		},
	}
}

func readInput(file string) ([]byte, error) {
	if file == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(file)
}

func printResult(cmd *cobra.Command, out types.Collection) error {
	w := cmd.OutOrStdout()
	if flagJSON {
		enc := json.NewEncoder(w)
		return enc.Encode(types.ToNative(out))
	}
	if len(out) == 0 {
		fmt.Fprintln(w, "{ }")
		return nil
	}
	for _, e := range out {
		fmt.Fprintln(w, e.String())
	}
	return nil
}
