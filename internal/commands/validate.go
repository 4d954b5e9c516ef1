package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"evalgo.org/sitesync/backend/memory"
	"evalgo.org/sitesync/internal/apply"
	"evalgo.org/sitesync/internal/declfile"
	"evalgo.org/sitesync/internal/validation"
)

var validateSimulate bool

var validateCmd = &cobra.Command{
	Use:   "validate [files or directories...]",
	Short: "Validate site declarations",
	Long: `Check site declarations without touching the store: field rules,
cross references between layouts, templates and pages, and placeholder
expansion. With --simulate (the default) every site is also applied to an
empty in-memory store, which surfaces unresolved page references.

Examples:
  sitesync validate
  sitesync validate sites/main.hcl --simulate=false`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateSimulate, "simulate", true, "apply to an in-memory store after validating")
}

func runValidate(cmd *cobra.Command, args []string) error {
	paths := declarationPaths(args)
	doc, err := declfile.LoadPaths(paths)
	if err != nil {
		return err
	}

	result := declfile.Validate(doc)
	if !result.Valid {
		printValidationErrors(result)
		return fmt.Errorf("validation failed")
	}

	svc := apply.NewService(memory.New(), cfg.Placeholders, logger)
	reg, err := svc.RegistryOf(doc)
	if err != nil {
		fmt.Println("✗ Validation failed:")
		fmt.Printf("  - %v\n", err)
		return fmt.Errorf("validation failed")
	}

	if validateSimulate {
		report, err := svc.Apply(context.Background(), reg, apply.Options{})
		if err != nil {
			fmt.Println("✗ Simulated apply failed:")
			if report != nil {
				for _, r := range report.Results {
					if r.Err != nil {
						fmt.Printf("  - %s: %s\n", r.Site, r.Run.ErrorMessage)
					}
				}
			} else {
				fmt.Printf("  - %v\n", err)
			}
			return fmt.Errorf("validation failed")
		}
	}

	fmt.Printf("✓ %d sites are valid\n", reg.Len())
	return nil
}

func printValidationErrors(result *validation.ValidationResult) {
	fmt.Println("✗ Validation failed:")
	for _, e := range result.Errors {
		if e.Value != nil {
			fmt.Printf("  - %s: %s (value: %v)\n", e.Field, e.Message, e.Value)
		} else {
			fmt.Printf("  - %s: %s\n", e.Field, e.Message)
		}
	}
}
