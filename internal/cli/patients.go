package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/patientsim/internal/cache"
	"github.com/ppiankov/patientsim/internal/patient"
)

var patientsDir string

// patientsCmd represents the patients command
var patientsCmd = &cobra.Command{
	Use:   "patients",
	Short: "List the patient cases",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if patientsDir != "" {
			cfg.Patients.Dir = patientsDir
		}

		catalog := patient.NewCatalog(cfg.Patients.Dir, cache.NewMemoryCache(cfg.Patients.CacheTTL, cfg.Patients.CacheTTL), cfg.Patients.CacheTTL, logger)
		list, err := catalog.List()
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "No cases in %s\n", cfg.Patients.Dir)
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tAGE\tGENDER\tCHIEF COMPLAINT")
		for _, s := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Category, s.Age, s.Gender, s.ChiefComplaint)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(patientsCmd)

	patientsCmd.Flags().StringVar(&patientsDir, "dir", "", "case directory (overrides patients.dir)")
}
