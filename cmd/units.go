package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/fund-intake-cli/internal/staging"
)

var unitsFile string

var unitsCmd = &cobra.Command{
	Use:   "units",
	Short: "List staged submission units",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var units []staging.Unit
		if unitsFile != "" {
			buf, err := staging.LoadFile(unitsFile)
			if err != nil {
				return err
			}
			units = buf.Units()
		} else {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			units, err = st.List(ctx)
			if err != nil {
				return err
			}
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDATA TYPE\tENDPOINT\tSTATUS\tERROR")
		for _, u := range units {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				u.ID, u.DataType, u.Endpoint, u.Status, truncate(u.Error, 60))
		}
		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Printf("\n%d units (%d pending)\n", len(units), countPending(units))
		return nil
	},
}

func countPending(units []staging.Unit) int {
	n := 0
	for _, u := range units {
		if u.Status == staging.StatusPending {
			n++
		}
	}
	return n
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func init() {
	unitsCmd.Flags().StringVar(&unitsFile, "file", "", "read units from a staging hand-off file instead of the store")
	rootCmd.AddCommand(unitsCmd)
}
