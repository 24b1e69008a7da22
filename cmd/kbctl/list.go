package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/catalog"
)

var vocabCmd = &cobra.Command{
	Use:   "vocab",
	Short: "List defined terms and the documents that use them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := loadStore()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, group := range catalog.Vocabulary(store) {
			docs := make([]string, 0, len(group))
			for _, use := range group {
				docs = append(docs, use.Document)
			}
			fmt.Fprintf(out, "%s\t%v\n", group[0].Text, docs)
		}
		return nil
	},
}

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "List roles by title",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := loadStore()
		if err != nil {
			return err
		}
		for _, role := range catalog.Roles(store) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", role.ID, role.Title)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(vocabCmd, rolesCmd)
}
