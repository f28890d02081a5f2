package commands

import (
	"github.com/spf13/cobra"

	"github.com/dyluth/parkplan/internal/printer"
	"github.com/dyluth/parkplan/internal/scaffold"
)

var (
	initDir   string
	forceInit bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration and run input",
	Long: `Write a starter planner configuration and an example park run input.

Creates:
  • parkplan.yml - Planner configuration (policy, screener, finance, review rules)
  • park.yml     - Example run input for 'parkplan run --input park.yml'

Use --force to overwrite existing files.`,
	RunE: runInit,
}

func init() {
	// Note: Cannot use -f shorthand because it conflicts with global --config flag
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite existing parkplan.yml and park.yml")
	initCmd.Flags().StringVarP(&initDir, "dir", "d", ".", "Directory to write the files into")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	paths, err := scaffold.Initialize(initDir, forceInit)
	if err != nil {
		return printer.Error(
			"initialization failed",
			err.Error(),
			[]string{"Use --force to overwrite existing files", "Use --dir to write into another directory"},
		)
	}

	printer.Success("initialized planner files\n")
	for _, p := range paths {
		printer.Info("  ✓ %s\n", p)
	}
	printer.Info("\nNext: parkplan run --config %s --input %s\n", paths[0], paths[1])
	return nil
}
