package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spachava753/actorgen/internal/identity"
)

var slugSuffix string

var slugCmd = &cobra.Command{
	Use:   "slug <site name>",
	Short: "Print the actor title and slug for a site name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ident := identity.New(strings.Join(args, " "), slugSuffix)
		fmt.Fprintf(cmd.OutOrStdout(), "title: %s\nslug:  %s\n", ident.Title, ident.Slug)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(slugCmd)
	slugCmd.Flags().StringVar(&slugSuffix, "suffix", identity.DefaultTitleSuffix, "Suffix appended to the site name")
}
