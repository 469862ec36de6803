package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"kiesraad/internal/eml"
)

var errNoDefinition = errors.New("no readable election definition found")

func newDefinitionCmd(a *app) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "definition --source DIR",
		Short: "Print the election id and date from the batch's election definition.",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if source == "" {
				return usagef("--source is required")
			}
			docs, err := a.deps.discover(source)
			if err != nil {
				return err
			}
			for _, d := range docs.Definitions {
				if d.Err != nil {
					fmt.Fprintf(a.stderr, "skipped: %s: %v\n", d.Name, d.Err)
					continue
				}
				def, err := eml.ReadDefinition(d.Tree)
				if err != nil {
					fmt.Fprintf(a.stderr, "skipped: %s: %v\n", d.Name, err)
					continue
				}
				fmt.Fprintf(a.stdout, "election_id=%s\nelection_date=%s\n", def.ElectionID, def.ElectionDate)
				return nil
			}
			return errNoDefinition
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "directory holding the EML batch")
	return cmd
}
