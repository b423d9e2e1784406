package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var queryJSON bool

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Run one context query and print the fused context",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, _, _, err := openService(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		res, err := svc.Query(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if queryJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		fmt.Fprintln(out, res.Context)
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Confidence: %.2f\n", res.Confidence)
		fmt.Fprintf(out, "Elapsed:    %s\n", res.Elapsed)
		for _, st := range res.Stages {
			line := fmt.Sprintf("  %-14s %-9s %s", st.Name, st.Status, st.Duration)
			if st.Error != "" {
				line += "  " + st.Error
			}
			fmt.Fprintln(out, line)
		}
		if len(res.Sources) > 0 {
			fmt.Fprintf(out, "Sources:    %s\n", strings.Join(res.Sources, ", "))
		}
		return nil
	},
}

func init() {
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print the full result as JSON")
}
