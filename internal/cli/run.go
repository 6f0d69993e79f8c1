package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	graphio "github.com/matzehuels/phaseline/pkg/io"
	"github.com/matzehuels/phaseline/pkg/pipeline"
)

// runCommand creates the "run" command: sequential execution of a graph
// document.
func (c *CLI) runCommand() *cobra.Command {
	var (
		input  string
		output string
	)

	cmd := &cobra.Command{
		Use:   "run <graph.json>",
		Short: "Execute a pipeline graph sequentially",
		Long: `Run executes every phase of a graph document in topological order.

Imported graphs carry no executor code, so each phase passes its input
through unchanged. This makes run useful for validating graph structure,
dependency order, and stream routing before wiring real executors via
the library API.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.executeGraph(cmd, args[0], input, output, pipeline.Options{})
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "initial input as JSON, or @file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the full run result to a JSON file")

	return cmd
}

// pipelineCommand creates the "pipeline" command: level-parallel
// execution with optional progress monitoring.
func (c *CLI) pipelineCommand() *cobra.Command {
	var (
		input    string
		output   string
		parallel bool
		monitor  bool
	)

	cmd := &cobra.Command{
		Use:   "pipeline <graph.json>",
		Short: "Execute a pipeline graph with scheduling controls",
		Long: `Pipeline executes a graph document like run, with explicit control
over scheduling: --parallel runs independent phases of the same level
concurrently, and --monitor logs per-phase progress.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := pipeline.Options{Parallel: parallel, Monitor: monitor}
			return c.executeGraph(cmd, args[0], input, output, opts)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "initial input as JSON, or @file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the full run result to a JSON file")
	cmd.Flags().BoolVarP(&parallel, "parallel", "p", false, "run independent phases concurrently")
	cmd.Flags().BoolVarP(&monitor, "monitor", "m", false, "log per-phase progress")

	return cmd
}

// executeGraph loads a graph document, runs it, and reports the result.
func (c *CLI) executeGraph(cmd *cobra.Command, path, input, output string, opts pipeline.Options) error {
	g, err := graphio.ImportJSON(path)
	if err != nil {
		return err
	}

	in, err := parseInput(input)
	if err != nil {
		return err
	}
	opts.Input = in

	runner := pipeline.NewRunner(nil, c.Logger)
	p := newProgress(c.Logger)

	result, err := runner.Pipeline(cmd.Context(), g, opts)
	if err != nil {
		return err
	}
	p.done(fmt.Sprintf("Executed %d phases", len(result.Completed)))

	c.printRunResult(result)
	printStats(g.NodeCount(), g.EdgeCount(), false)

	if output != "" {
		if err := writeResultJSON(result, output); err != nil {
			return err
		}
		printFile(output)
	}
	return nil
}

// printRunResult prints a run summary.
func (c *CLI) printRunResult(result *pipeline.Result) {
	if result.Status == pipeline.StatusSuccess {
		printSuccess("Run %s completed", result.RunID[:8])
	} else {
		printWarning("Run %s finished with failures", result.RunID[:8])
	}
	printKeyValue("status", result.Status)
	printKeyValue("completed", fmt.Sprintf("%d", len(result.Completed)))
	if len(result.Failed) > 0 {
		printKeyValue("failed", fmt.Sprintf("%d", len(result.Failed)))
		for _, f := range result.Failed {
			printDetail("%s: %s (%d attempts)", f.Phase, f.Error, f.Attempts)
		}
	}
	printKeyValue("duration", result.Duration.String())
}

// writeResultJSON writes a run result to a file as indented JSON.
func writeResultJSON(result *pipeline.Result, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
