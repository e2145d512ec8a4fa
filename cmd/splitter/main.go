package main

import (
	"fmt"
	"os"

	"github.com/fyerfyer/issue-report-splitter/api/middleware"
	"github.com/spf13/cobra"
)

var (
	logLevel string
	marker   string
)

var rootCmd = &cobra.Command{
	Use:   "splitter",
	Short: "Split an issue report into one document per issue",
	Long: `Splits an exported issue report (PDF or form-feed separated text) into one
document per issue and packages them into a zip archive with a manifest.csv.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := middleware.ConfigureLogger(middleware.LogOptions{Level: logLevel})
		if err != nil {
			return err
		}
		// 标准输出留给命令结果
		logger.SetOutput(cmd.ErrOrStderr())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug/info/warn/error)")
	rootCmd.PersistentFlags().StringVar(&marker, "marker", "Issue Report", "Text that identifies an issue report, empty to skip the check")

	rootCmd.AddCommand(splitCmd)
	rootCmd.AddCommand(fieldsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
