package main

import (
	"github.com/spf13/cobra"

	"github.com/todmy/visa-advisor/internal/ranking"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank a track's questions",
	Long: `Rank the leaf questions of a rule set by how many outcomes
need them, ties broken by the smallest remaining question set and
then alphabetically. The order matches what the server stores when
question priorities are initialized.

Examples:
  rulectl rank --visa-type E
  rulectl rank --file rules.yaml -o yaml`,
	RunE: runRank,
}

func init() {
	rootCmd.AddCommand(rankCmd)
}

func runRank(cmd *cobra.Command, args []string) error {
	defs, err := loadDefinitions()
	if err != nil {
		return err
	}
	return printResult(ranking.RankQuestions(defs))
}
