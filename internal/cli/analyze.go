package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/faultline/internal/classify"
	"github.com/vietddude/faultline/internal/core/capability"
	"github.com/vietddude/faultline/internal/faultlog"
)

var analyzeFile string

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run pattern analysis over a JSON fault export",
	Long: `Reads a JSON export (as produced by /faults/export) from --file or stdin and
prints recurring faults, per-context and per-severity counts and correlations.`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeFile, "file", "f", "-", "export file, - for stdin")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	if analyzeFile != "-" {
		f, err := os.Open(analyzeFile)
		if err != nil {
			return fmt.Errorf("failed to open export: %w", err)
		}
		defer f.Close()
		in = f
	}

	var export faultlog.Export
	if err := json.NewDecoder(in).Decode(&export); err != nil {
		return fmt.Errorf("failed to decode export: %w", err)
	}

	c := classify.New(capability.EnvironmentDescriptor{Kind: capability.EnvironmentNone})
	if err := c.Configure(classify.Options{
		SeverityRules:   cfg.Fault.SeverityRules,
		ContextPatterns: cfg.Fault.ContextPatterns,
	}); err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(c.AnalyzePatterns(export.Errors)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
