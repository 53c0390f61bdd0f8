package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/statsql/pkg/redshift"
	"github.com/ethpandaops/statsql/pkg/rendering"
)

//nolint:gochecknoglobals // Cobra commands are typically global
var renderCmd = &cobra.Command{
	Use:   "render <request.yaml>",
	Short: "Render the SQL for a breakdown request",
	Long:  `Render the SQL, parameters and temp tables for a breakdown request without connecting to the warehouse.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	config, err := loadCommandConfig(cmd)
	if err != nil {
		return err
	}

	req, err := LoadRequest(args[0])
	if err != nil {
		return err
	}

	service, err := newService(logger, config, nil)
	if err != nil {
		return err
	}

	q, err := service.Prepare(req)
	if err != nil {
		return err
	}

	return printQuery(os.Stdout, q)
}

func printQuery(out io.Writer, q *redshift.Query) error {
	if _, err := fmt.Fprintf(out, "-- %s\n%s\n", q.Name, rendering.CleanSQL(q.SQL)); err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	if len(q.Params) > 0 {
		_, _ = fmt.Fprintln(w, "\nPARAM\tVALUE\tTYPE")
		for i, p := range q.Params {
			_, _ = fmt.Fprintf(w, "%d\t%v\t%T\n", i+1, p, p)
		}
	}

	if len(q.TempTables) > 0 {
		_, _ = fmt.Fprintln(w, "\nTEMP TABLE\tCOLUMN\tTYPE\tVALUES")
		for _, t := range q.TempTables {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", t.Name(), t.Column().Name(), t.ValueType(), len(t.Values()))
		}
	}

	return w.Flush()
}
