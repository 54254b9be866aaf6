package main

import (
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/iliyamo/venture-platform/internal/roles"
)

var rolesPath string

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "Validate and print the role registry",
	RunE:  runRoles,
}

func init() {
	rolesCmd.Flags().StringVar(&rolesPath, "file", "", "registry YAML to validate instead of the built-in one")
}

type roleView struct {
	Role             string   `yaml:"role"`
	Description      string   `yaml:"description"`
	RequiresApproval bool     `yaml:"requiresApproval"`
	Transitions      []string `yaml:"transitions"`
}

func runRoles(cmd *cobra.Command, args []string) error {
	reg := roles.Default()
	if rolesPath != "" {
		r, err := roles.Load(rolesPath)
		if err != nil {
			return err
		}
		reg = r
	}
	var out []roleView
	for _, r := range reg.Roles() {
		v := roleView{Role: string(r), Description: reg.Describe(r), RequiresApproval: reg.RequiresApproval(r), Transitions: []string{}}
		for _, t := range reg.AllowedTransitions(r) {
			v.Transitions = append(v.Transitions, string(t))
		}
		out = append(out, v)
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()
	return enc.Encode(out)
}
