package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fyerfyer/issue-report-splitter/internal/services"
	"github.com/spf13/cobra"
)

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Split a report and write the zip archive",
	RunE:  runSplit,
}

var (
	splitIn          string
	splitOut         string
	splitPattern     string
	splitFields      []string
	splitSep         string
	splitMissing     string
	splitPlaceholder string
)

func init() {
	splitCmd.Flags().StringVarP(&splitIn, "in", "i", "", "Input report (.pdf or .txt)")
	splitCmd.Flags().StringVarP(&splitOut, "out", "o", "", "Output zip path (default <report>_issues.zip next to the input)")
	splitCmd.Flags().StringVarP(&splitPattern, "pattern", "p", "", "Filename pattern, e.g. \"{Issue ID}_{Location}\"")
	splitCmd.Flags().StringSliceVarP(&splitFields, "fields", "f", nil, "Fields joined into the filename when no pattern is given")
	splitCmd.Flags().StringVar(&splitSep, "sep", "_", "Separator between fields")
	splitCmd.Flags().StringVar(&splitMissing, "missing", "skip", "Missing field policy (skip/placeholder/fail)")
	splitCmd.Flags().StringVar(&splitPlaceholder, "placeholder", "NA", "Value used for missing fields with --missing=placeholder")
	_ = splitCmd.MarkFlagRequired("in")
}

func runSplit(cmd *cobra.Command, args []string) error {
	policy, err := services.ParseMissingPolicy(splitMissing)
	if err != nil {
		return err
	}

	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	ctx := cmd.Context()
	report, err := ws.load(ctx, splitIn)
	if err != nil {
		return err
	}

	result, err := ws.service.BuildArchive(ctx, report.ID, services.ArchiveRequest{
		Pattern:       splitPattern,
		Fields:        splitFields,
		Separator:     splitSep,
		MissingPolicy: policy,
		Placeholder:   splitPlaceholder,
	})
	if err != nil {
		return err
	}

	rc, name, err := ws.service.OpenArchive(ctx, result.Archive.ID)
	if err != nil {
		return err
	}
	defer rc.Close()

	out := splitOut
	if out == "" {
		out = filepath.Join(filepath.Dir(splitIn), name)
	}
	if err := writeFile(out, rc); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	for _, e := range result.Entries {
		if e.Error != "" {
			fmt.Fprintf(w, "skip  %-8s pages %d-%d: %s\n", e.IssueID, e.StartPage, e.EndPage, e.Error)
			continue
		}
		fmt.Fprintf(w, "ok    %-8s pages %d-%d -> %s\n", e.IssueID, e.StartPage, e.EndPage, e.Filename)
	}
	fmt.Fprintf(w, "%d issues, %d skipped, pattern %q\nwrote %s\n",
		len(result.Entries), result.Skipped, result.Pattern, out)
	return nil
}

func writeFile(path string, r io.Reader) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
