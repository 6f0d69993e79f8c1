package cli

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/phaseline/pkg/executor"
	"github.com/matzehuels/phaseline/pkg/httputil"
	graphio "github.com/matzehuels/phaseline/pkg/io"
	"github.com/matzehuels/phaseline/pkg/registry"
)

// phaseCommand creates the "phase" command group. Apart from "phase run",
// which executes locally, the subcommands talk to a `phaseline serve`
// process over its control-plane API.
func (c *CLI) phaseCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "phase",
		Short: "Manage individual phases",
	}

	cmd.PersistentFlags().StringVar(&addr, "addr", httputil.DefaultAddr, "control-plane address of a running serve process")

	client := func() *httputil.Client { return httputil.NewClient(addr) }

	cmd.AddCommand(c.phaseRunCommand())
	cmd.AddCommand(c.phaseListCommand(client))
	cmd.AddCommand(c.phaseStatusCommand(client))
	cmd.AddCommand(c.phaseStopCommand(client))
	cmd.AddCommand(c.phaseRestartCommand(client))
	cmd.AddCommand(c.phaseWaitCommand(client))
	cmd.AddCommand(c.phaseMonitorCommand(client))

	return cmd
}

// phaseRunCommand executes a single phase of a graph document locally.
func (c *CLI) phaseRunCommand() *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "run <graph.json> <name>",
		Short: "Execute one phase locally with its retry policy",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := graphio.ImportJSON(args[0])
			if err != nil {
				return err
			}
			node, ok := g.Node(args[1])
			if !ok {
				return fmt.Errorf("unknown phase %q", args[1])
			}

			in, err := parseInput(input)
			if err != nil {
				return err
			}

			res, err := executor.Run(cmd.Context(), node.ID, node.Capability(), in, node.Config.Params, executor.FromNode(node, c.Logger))
			if err != nil {
				return err
			}

			printSuccess("Phase %s completed", node.ID)
			printKeyValue("attempts", fmt.Sprintf("%d", res.Attempts))
			printKeyValue("duration", res.Duration.String())
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "phase input as JSON, or @file")

	return cmd
}

func (c *CLI) phaseListCommand(client func() *httputil.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all jobs on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var jobs []registry.Status
			if err := client().GetJSON(cmd.Context(), "/phases", &jobs); err != nil {
				return err
			}
			if len(jobs) == 0 {
				printInfo("No jobs registered")
				return nil
			}
			for _, j := range jobs {
				printJobLine(j)
			}
			return nil
		},
	}
}

func (c *CLI) phaseStatusCommand(client func() *httputil.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "status <name>",
		Short: "Show one job's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var status registry.Status
			if err := client().GetJSON(cmd.Context(), "/phases/"+url.PathEscape(args[0]), &status); err != nil {
				return err
			}
			printJobStatus(status)
			return nil
		},
	}
}

func (c *CLI) phaseStopCommand(client func() *httputil.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <name>",
		Short: "Stop a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var status registry.Status
			if err := client().PostJSON(cmd.Context(), "/phases/"+url.PathEscape(args[0])+"/stop", &status); err != nil {
				return err
			}
			printSuccess("Stopped %s", status.Name)
			return nil
		},
	}
}

func (c *CLI) phaseRestartCommand(client func() *httputil.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "restart <name>",
		Short: "Restart a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var status registry.Status
			if err := client().PostJSON(cmd.Context(), "/phases/"+url.PathEscape(args[0])+"/restart", &status); err != nil {
				return err
			}
			printSuccess("Restarted %s (restart #%d)", status.Name, status.Restarts)
			return nil
		},
	}
}

func (c *CLI) phaseWaitCommand(client func() *httputil.Client) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "wait <name>",
		Short: "Block until a job finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spinner := newSpinnerWithContext(cmd.Context(), fmt.Sprintf("waiting for %s", args[0]))
			spinner.Start()

			var status registry.Status
			path := fmt.Sprintf("/phases/%s/wait?timeout=%s", url.PathEscape(args[0]), timeout)
			err := client().GetJSON(cmd.Context(), path, &status)
			if err != nil {
				spinner.StopWithError(fmt.Sprintf("wait failed: %v", err))
				return err
			}
			spinner.StopWithSuccess(fmt.Sprintf("%s finished (%s)", status.Name, status.State))
			return nil
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 30*time.Second, "how long to wait")

	return cmd
}

// phaseMonitorCommand polls a job's status and prints health transitions
// until interrupted.
func (c *CLI) phaseMonitorCommand(client func() *httputil.Client) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "monitor <name>",
		Short: "Continuously display a job's health",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			printInfo("Monitoring %s (every %s, ctrl-c to stop)", args[0], interval)
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}

				var status registry.Status
				if err := client().GetJSON(ctx, "/phases/"+url.PathEscape(args[0]), &status); err != nil {
					printWarning("probe failed: %v", err)
					continue
				}
				printJobLine(status)
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "polling interval")

	return cmd
}

// printJobLine prints a one-line job summary.
func printJobLine(j registry.Status) {
	state := string(j.State)
	switch j.State {
	case registry.StateRunning:
		state = StyleSuccess.Render(state)
	case registry.StateFailed:
		state = StyleWarning.Render(state)
	}
	line := fmt.Sprintf("%-20s %s", j.Name, state)
	if j.Uptime != "" {
		line += StyleDim.Render("  up " + j.Uptime)
	}
	if j.Restarts > 0 {
		line += StyleDim.Render(fmt.Sprintf("  restarts %d", j.Restarts))
	}
	fmt.Println("  " + line)
}

// printJobStatus prints a detailed job view.
func printJobStatus(j registry.Status) {
	fmt.Println(StyleTitle.Render(j.Name))
	printKeyValue("state", string(j.State))
	printKeyValue("started", j.StartedAt.Format(time.RFC3339))
	if j.Uptime != "" {
		printKeyValue("uptime", j.Uptime)
	}
	printKeyValue("restarts", fmt.Sprintf("%d", j.Restarts))
	if j.Error != "" {
		printKeyValue("error", j.Error)
	}
	if j.Failures > 0 {
		printKeyValue("failures", fmt.Sprintf("%d consecutive", j.Failures))
	}
	if n := len(j.Health); n > 0 {
		healthy := 0
		for _, s := range j.Health {
			if s.Healthy {
				healthy++
			}
		}
		printKeyValue("health", fmt.Sprintf("%d/%d probes healthy", healthy, n))
	}
}
