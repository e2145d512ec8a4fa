package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields <report>",
	Short: "List the fields found in a report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return err
		}
		defer ws.Close()

		report, err := ws.load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fields, err := ws.service.AvailableFields(cmd.Context(), report.ID)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d issues, %d pages\n%s\n",
			report.IssueCount, report.PageCount, strings.Join(fields, "\n"))
		return nil
	},
}
