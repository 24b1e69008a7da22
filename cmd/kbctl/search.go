package main

import (
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/pagetext"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/search"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/termgraph"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/config"
)

var (
	jsonOutput bool
	fetchPages bool
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the corpus",
	Long: `Search titles, descriptions and terms, following term definitions across
documents, and print why each resource matched.

Examples:
  kbctl search "security officer"
  kbctl search ISSO --json
  kbctl search "audit log" --page-text`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := loadStore()
		if err != nil {
			return err
		}

		var pages termgraph.PageTextProvider
		if fetchPages {
			cfg, err := config.Load("")
			if err != nil {
				return err
			}
			pages = pagetext.NewProvider(cfg.PageText)
		}

		query := strings.Join(args, " ")
		resp := search.New(store, pages, pagetext.Links{}).Search(cmd.Context(), query)
		out := cmd.OutOrStdout()

		if jsonOutput {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}

		if len(resp.Results) == 0 {
			fmt.Fprintln(out, "No results found")
		}
		for _, r := range resp.Results {
			fmt.Fprintf(out, "[%s] %s %s\n", r.Resource.Kind, r.Resource.ID, r.Resource.Title)
			for _, c := range r.Contexts {
				fmt.Fprintf(out, "    %s\n", plainText(c.HTML))
			}
		}
		for _, d := range resp.Diagnostics {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s term %q: %s\n", d.ResourceID, d.Term, d.Error)
		}
		return nil
	},
}

func plainText(fragment string) string {
	return html.UnescapeString(tagPattern.ReplaceAllString(fragment, ""))
}

func init() {
	searchCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the response as JSON")
	searchCmd.Flags().BoolVar(&fetchPages, "page-text", false, "fetch page text to refine contexts")
	rootCmd.AddCommand(searchCmd)
}
