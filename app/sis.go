package app

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recodex/sis-binding/internal/sis"
)

func init() { //nolint: gochecknoinits
	sisCmd.AddCommand(sisUserCmd)
	sisCmd.AddCommand(sisCoursesCmd)
	rootCmd.AddCommand(sisCmd)
}

// printJSON dumps a value for inspection on the console.
func printJSON(value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))

	return nil
}

var (
	sisCmd = &cobra.Command{
		Use:   "sis",
		Short: "Debug helpers exercising the SIS API",
	}

	sisUserCmd = &cobra.Command{
		Use:   "user <ukco>",
		Short: "Get personal data of a user from SIS",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(); err != nil {
				return err
			}

			client := sis.New(cfg.Sis)
			record, err := client.UserRecord(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return printJSON(record)
		},
	}

	sisCoursesCmd = &cobra.Command{
		Use:   "courses <ukco> <year-term>...",
		Short: "Get scheduling events of a user from SIS (terms as '2025-1')",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(); err != nil {
				return err
			}

			client := sis.New(cfg.Sis)
			records, err := client.Courses(cmd.Context(), args[0], args[1:])
			if err != nil {
				return err
			}

			return printJSON(records)
		},
	}
)
