package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/statsql/pkg/redshift"
)

//nolint:gochecknoglobals // Cobra flags are typically global
var (
	queryRefresh bool
	queryCache   string
)

//nolint:gochecknoglobals // Cobra commands are typically global
var queryCmd = &cobra.Command{
	Use:   "query <request.yaml>",
	Short: "Run a breakdown request against the warehouse",
	Long:  `Run a breakdown request against the warehouse and print the resulting rows. Results are cached when the request names a cache.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().BoolVar(&queryRefresh, "refresh", false, "skip the cached result and store a fresh one")
	queryCmd.Flags().StringVar(&queryCache, "cache", "", "cache name, overrides the request's cacheName")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	config, err := loadCommandConfig(cmd)
	if err != nil {
		return err
	}

	req, err := LoadRequest(args[0])
	if err != nil {
		return err
	}

	if queryCache != "" {
		req.CacheName = queryCache
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, logger, config)
	if err != nil {
		return err
	}
	defer a.Close()

	var result *redshift.Result
	if queryRefresh {
		result, err = a.service.QueryFresh(ctx, req)
	} else {
		result, err = a.service.Query(ctx, req)
	}

	if err != nil {
		return err
	}

	logger.WithField("rows", result.Len()).WithField("cached", result.Cached).Info("Query complete")

	return printResult(os.Stdout, result)
}

func printResult(out io.Writer, result *redshift.Result) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, strings.ToUpper(strings.Join(result.Columns, "\t")))

	for _, row := range result.Tuples() {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprint(v)
		}

		_, _ = fmt.Fprintln(w, strings.Join(cells, "\t"))
	}

	return w.Flush()
}
