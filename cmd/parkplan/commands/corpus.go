package commands

import (
	"github.com/spf13/cobra"

	"github.com/dyluth/parkplan/internal/policy"
	"github.com/dyluth/parkplan/internal/printer"
	"github.com/dyluth/parkplan/internal/report"
)

var corpusPath string

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Validate and list the policy corpus",
	Long: `Load the policy corpus, validate every clause and list them.

The corpus is located by --path, then policy.corpus_path in parkplan.yml, then
the PARKPLAN_POLICY_CORPUS environment variable. With none of these set the
bundled sample corpus is shown.

Examples:
  # Show the bundled sample corpus
  parkplan corpus

  # Validate a production corpus before deploying it
  parkplan corpus --path /etc/parkplan/policies.json`,
	RunE: runCorpus,
}

func init() {
	corpusCmd.Flags().StringVarP(&corpusPath, "path", "p", "", "Corpus file (JSON or YAML)")
	rootCmd.AddCommand(corpusCmd)
}

func runCorpus(cmd *cobra.Command, args []string) error {
	path := corpusPath
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return printer.Error("invalid configuration", err.Error(), nil)
		}
		path = cfg.Policy.CorpusPath
	}

	corpus, err := policy.NewLoader(path).Load()
	if err != nil {
		return corpusError(err)
	}

	report.FormatCorpus(cmd.OutOrStdout(), corpus)
	return nil
}
