package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/resource"
)

var strict bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that every resource record loads",
	Long: `Load every record under the resource directory and report what was found.

A record that does not parse, or that lacks an id, fails validation. Term
references that point at a missing document or term are reported as
warnings; with --strict they fail validation too.

Examples:
  kbctl validate
  kbctl validate --resources ./resources --strict`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := loadStore()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		counts := store.CountByKind()
		kinds := make([]resource.Kind, 0, len(counts))
		for kind := range counts {
			kinds = append(kinds, kind)
		}
		slices.Sort(kinds)
		fmt.Fprintf(out, "%d resources (version %s)\n", store.Len(), store.Version())
		for _, kind := range kinds {
			fmt.Fprintf(out, "  %-24s %d\n", kind, counts[kind])
		}

		problems := store.CheckReferences()
		for _, p := range problems {
			fmt.Fprintf(out, "warning: %v\n", p)
		}
		if strict && len(problems) > 0 {
			return fmt.Errorf("%d dangling term references", len(problems))
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().BoolVar(&strict, "strict", false, "fail on dangling term references")
	rootCmd.AddCommand(validateCmd)
}
