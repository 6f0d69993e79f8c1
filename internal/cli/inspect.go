package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/phaseline/pkg/hypergraph/schedule"
	graphio "github.com/matzehuels/phaseline/pkg/io"
)

// inspectCommand creates the "inspect" command: structural and
// scheduling information for a graph document.
func (c *CLI) inspectCommand() *cobra.Command {
	var showLevels bool

	cmd := &cobra.Command{
		Use:   "inspect <graph.json>",
		Short: "Show structure and execution order of a pipeline graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := graphio.ImportJSON(args[0])
			if err != nil {
				return err
			}

			stats := g.Stats()
			fmt.Println(StyleTitle.Render(g.Name()))
			printKeyValue("id", g.ID())
			printKeyValue("phases", fmt.Sprintf("%d", stats.Nodes))
			printKeyValue("streams", fmt.Sprintf("%d", stats.Edges))
			printKeyValue("categories", fmt.Sprintf("%d", stats.Phases))
			if stats.TotalRuns > 0 || stats.TotalErrors > 0 {
				printKeyValue("total runs", fmt.Sprintf("%d", stats.TotalRuns))
				printKeyValue("total errors", fmt.Sprintf("%d", stats.TotalErrors))
			}
			if le := g.LastError(); le != "" {
				printKeyValue("last error", le)
			}

			order, err := schedule.TopoSort(g)
			if err != nil {
				printNewline()
				printError("Graph is not schedulable: %v", err)
				return err
			}

			printNewline()
			printInfo("Execution order")
			for i, id := range order {
				n, _ := g.Node(id)
				printDetail("%d. %s (%s)", i+1, id, n.Phase)
			}

			if showLevels {
				printNewline()
				printInfo("Parallel levels")
				for i, level := range schedule.Levels(g, order) {
					printDetail("level %d: %s", i, strings.Join(level, ", "))
				}
			}

			printNewline()
			printInfo("Streams")
			for _, e := range g.Edges() {
				line := fmt.Sprintf("%s %s %s  [%s]", e.Source, iconArrow, e.Target, e.Stream)
				if e.MessagesPassed > 0 {
					line += fmt.Sprintf("  %d msgs, %d bytes", e.MessagesPassed, e.BytesTransferred)
				}
				printDetail("%s", line)
			}

			return nil
		},
	}

	cmd.Flags().BoolVarP(&showLevels, "levels", "l", false, "show parallel scheduling levels")

	return cmd
}
