package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	graphio "github.com/matzehuels/phaseline/pkg/io"
	"github.com/matzehuels/phaseline/pkg/pipeline"
)

// batchCommand creates the "batch" command: compile a TOML manifest into
// a graph and run it.
func (c *CLI) batchCommand() *cobra.Command {
	var (
		input     string
		output    string
		export    string
		parallel  bool
		monitor   bool
		noCache   bool
		redisAddr string
	)

	cmd := &cobra.Command{
		Use:   "batch <manifest.toml>",
		Short: "Compile and run a pipeline manifest",
		Long: `Batch compiles a TOML manifest into a pipeline graph and runs it.
Compiled graphs are cached by manifest content hash, so re-running an
unchanged manifest skips compilation.

Manifest-level [pipeline] settings control parallelism and monitoring;
--parallel and --monitor force them on for a single run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			m, err := pipeline.ParseManifest(data)
			if err != nil {
				return err
			}

			runner, err := c.newRunner(ctx, noCache, redisAddr)
			if err != nil {
				return err
			}
			defer runner.Cache.Close()

			g, cached, err := runner.Compile(ctx, data, nil)
			if err != nil {
				return err
			}

			opts := m.Options()
			if parallel {
				opts.Parallel = true
			}
			if monitor {
				opts.Monitor = true
			}
			opts.Input, err = parseInput(input)
			if err != nil {
				return err
			}

			p := newProgress(c.Logger)
			result, err := runner.Pipeline(ctx, g, opts)
			if err != nil {
				return err
			}
			p.done(fmt.Sprintf("Executed %d phases", len(result.Completed)))

			c.printRunResult(result)
			printStats(g.NodeCount(), g.EdgeCount(), cached)

			if export != "" {
				if err := graphio.ExportJSON(g, export); err != nil {
					return err
				}
				printFile(export)
				printNextStep("Inspect the compiled graph", "phaseline inspect "+export)
			}
			if output != "" {
				if err := writeResultJSON(result, output); err != nil {
					return err
				}
				printFile(output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "initial input as JSON, or @file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the full run result to a JSON file")
	cmd.Flags().StringVarP(&export, "export", "e", "", "write the compiled graph to a JSON file")
	cmd.Flags().BoolVarP(&parallel, "parallel", "p", false, "force level-parallel execution")
	cmd.Flags().BoolVarP(&monitor, "monitor", "m", false, "force per-phase progress logging")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "skip the compiled-manifest cache")
	cmd.Flags().StringVar(&redisAddr, "redis", "", "use a Redis cache at host:port instead of the file cache")

	return cmd
}
