package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vietddude/faultline/internal/classify"
	"github.com/vietddude/faultline/internal/core/capability"
	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/manager"
)

var (
	classifyName  string
	classifyStack string
)

var classifyCmd = &cobra.Command{
	Use:   "classify [message]",
	Short: "Classify a fault message and print its record and analysis report",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

func init() {
	classifyCmd.Flags().StringVar(&classifyName, "name", "Error", "error name, e.g. TypeError")
	classifyCmd.Flags().StringVar(&classifyStack, "stack", "", "stack trace text")
	rootCmd.AddCommand(classifyCmd)
}

// classifyOutput is what the classify command prints.
type classifyOutput struct {
	Record   *domain.ErrorRecord     `json:"record"`
	Severity domain.Severity         `json:"severity"`
	Report   classify.AnalysisReport `json:"report"`
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	mgr, err := manager.New(manager.Options{
		Environment: capability.EnvironmentDescriptor{Kind: capability.EnvironmentNone},
		Config: manager.Config{
			SeverityRules:   cfg.Fault.SeverityRules,
			ContextPatterns: cfg.Fault.ContextPatterns,
		},
	})
	if err != nil {
		return err
	}

	rec := mgr.Normalize(&domain.RawError{
		Name:    classifyName,
		Message: strings.Join(args, " "),
		Stack:   classifyStack,
	})
	out := classifyOutput{
		Record:   rec,
		Severity: mgr.DetermineSeverity(rec.Name, rec.Message, rec.Context),
		Report:   mgr.Report(rec),
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
