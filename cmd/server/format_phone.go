package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"prelaunch/internal/registration/models"
)

func newFormatPhoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "format-phone <digits>...",
		Short: "Apply the landing page phone mask to each argument",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, raw := range args {
				formatted := models.FormatPhone(raw)
				status := "valid"
				if msg := models.ValidatePhone(formatted); msg != "" {
					status = "invalid"
				}
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", formatted, status); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
