package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/fund-intake-cli/internal/submit"
)

var submitUnitID string

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit staged units to the asset-management API",
	Long:  "Submits pending units in staging order: the asset first (its returned id is patched into dependent payloads), then share classes, liquidity terms, returns, and service providers. Failed units stay pending and can be resubmitted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		apiClient, err := initAssetClient(ctx)
		if err != nil {
			return err
		}

		sub := submit.New(apiClient, st, retryConfig())

		var results []submit.Result
		if submitUnitID != "" {
			res, err := sub.SubmitOne(ctx, submitUnitID)
			if err != nil {
				return err
			}
			results = []submit.Result{res}
		} else {
			results, err = sub.SubmitAll(ctx)
			if err != nil {
				return err
			}
		}

		failed := 0
		for _, res := range results {
			if res.Err != nil {
				failed++
				fmt.Printf("FAIL  %s  %s: %v\n", res.UnitID, res.DataType, res.Err)
				continue
			}
			fmt.Printf("ok    %s  %s\n", res.UnitID, res.DataType)
		}
		fmt.Printf("\n%d submitted, %d failed\n", len(results)-failed, failed)

		if failed > 0 {
			return eris.Errorf("%d units failed", failed)
		}
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitUnitID, "unit", "", "submit a single unit by id")
	rootCmd.AddCommand(submitCmd)
}
