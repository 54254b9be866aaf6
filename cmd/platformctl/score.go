package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/iliyamo/venture-platform/internal/scoring"
)

var (
	scoreProposal scoring.Proposal
	scoreOwner    scoring.OwnerProfile
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Compute a risk score offline without touching the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		res := scoring.Score(scoreProposal, scoreOwner)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	f := scoreCmd.Flags()
	f.StringVar(&scoreProposal.Category, "category", "", "idea category")
	f.StringVar(&scoreProposal.Budget, "budget", "", "free-text budget, e.g. \"₹800,00,000\"")
	f.StringVar(&scoreProposal.Description, "description", "", "idea description")
	f.Float64Var(&scoreProposal.Amount, "amount", 0, "requested amount when the budget has no digits")
	f.Float64Var(&scoreOwner.ExperienceYears, "experience", 0, "owner experience in years")
	f.IntVar(&scoreOwner.TeamSize, "team", 0, "owner team size")
}
