package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/phaseline/internal/server"
	"github.com/matzehuels/phaseline/pkg/executor"
	"github.com/matzehuels/phaseline/pkg/hypergraph"
	graphio "github.com/matzehuels/phaseline/pkg/io"
	"github.com/matzehuels/phaseline/pkg/registry"
)

// serveCommand creates the "serve" command: host a pipeline's phases as
// supervised long-running jobs behind the control-plane API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr          string
		tick          time.Duration
		supervise     bool
		probeInterval time.Duration
		noCache       bool
		redisAddr     string
	)

	cmd := &cobra.Command{
		Use:   "serve <manifest.toml|graph.json>",
		Short: "Host a pipeline as supervised long-running jobs",
		Long: `Serve compiles the given manifest (or imports a graph document) and
registers one long-running job per phase. Each job executes its phase
capability on a fixed cadence; with --supervise, jobs whose health
probes fail three times in a row are restarted automatically.

The control-plane API exposes graph state and job lifecycle operations
for the "phase" subcommands and external tooling.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			g, err := c.loadServeGraph(ctx, args[0], noCache, redisAddr)
			if err != nil {
				return err
			}

			reg := registry.New(c.Logger)
			srv := server.New(g, reg, c.Logger)

			for _, node := range g.Nodes() {
				if err := reg.Start(ctx, node.ID, c.phaseLoop(srv, node, tick)); err != nil {
					return err
				}
				if supervise {
					go func(name string) {
						_ = reg.Monitor(ctx, name, registry.MonitorConfig{
							Interval: probeInterval,
							Restart:  true,
						})
					}(node.ID)
				}
			}

			printSuccess("Serving %s", g.Name())
			printKeyValue("phases", fmt.Sprintf("%d", g.NodeCount()))
			printKeyValue("addr", addr)
			if supervise {
				printKeyValue("supervision", fmt.Sprintf("restart after %d failed probes", registry.DefaultFailureThreshold))
			}
			printNextStep("Check job health", "phaseline phase list")

			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:7743", "listen address")
	cmd.Flags().DurationVar(&tick, "tick", 30*time.Second, "how often each phase job executes")
	cmd.Flags().BoolVar(&supervise, "supervise", false, "restart jobs that fail their health probes")
	cmd.Flags().DurationVar(&probeInterval, "probe-interval", registry.DefaultProbeInterval, "health probe interval")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "skip the compiled-manifest cache")
	cmd.Flags().StringVar(&redisAddr, "redis", "", "use a Redis cache at host:port instead of the file cache")

	return cmd
}

// loadServeGraph loads either a compiled manifest or a graph document,
// depending on the file extension.
func (c *CLI) loadServeGraph(ctx context.Context, path string, noCache bool, redisAddr string) (*hypergraph.Hypergraph, error) {
	if strings.HasSuffix(path, ".json") {
		return graphio.ImportJSON(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	runner, err := c.newRunner(ctx, noCache, redisAddr)
	if err != nil {
		return nil, err
	}
	defer runner.Cache.Close()

	g, _, err := runner.Compile(ctx, data, nil)
	return g, err
}

// phaseLoop builds the job body for one phase: execute the capability on
// a fixed cadence until the job is stopped. An execution error ends the
// job as failed, which supervision picks up.
func (c *CLI) phaseLoop(srv *server.Server, node *hypergraph.Node, every time.Duration) registry.RunFunc {
	return func(ctx context.Context) error {
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}

			res, err := executor.Run(ctx, node.ID, node.Capability(), nil, node.Config.Params, executor.FromNode(node, c.Logger))
			if err != nil {
				srv.RecordPhaseRun(node.ID, time.Now(), err)
				return err
			}
			srv.RecordPhaseRun(node.ID, res.CompletedAt, nil)
		}
	}
}
