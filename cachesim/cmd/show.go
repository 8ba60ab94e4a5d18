package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/datarecording"
	"github.com/sarchlab/cachesim/mem/trace"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <recording.sqlite3>",
		Short: "Print the runs stored in a recording.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return show(cmd.Context(), cmd, args[0])
		},
	}
}

func show(ctx context.Context, cmd *cobra.Command, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	reader, err := datarecording.NewReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	reader.MapTable(trace.SummaryTable, trace.SummaryEntry{})

	rows, _, err := reader.Query(ctx, trace.SummaryTable,
		datarecording.QueryParams{OrderBy: "RunID"})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, row := range rows {
		s := row.(*trace.SummaryEntry)
		fmt.Fprintf(out,
			"%s %s size=%d line=%d ways=%d width=%d "+
				"accesses=%d hits=%d misses=%d rate=%f\n",
			s.RunID, s.CacheName, s.TotalBytes, s.LineBytes,
			s.Associativity, s.AddressWidth,
			s.NumAccesses, s.NumHits, s.NumMisses, s.HitRate)
	}

	return nil
}
