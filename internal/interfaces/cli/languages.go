package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newLanguagesCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List target languages, the default is marked with *",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDeps(cmd, load, func(_ context.Context, deps *Deps) error {
				def := deps.Engine.DefaultLanguage()
				for _, lang := range deps.Engine.Languages() {
					mark := " "
					if lang == def {
						mark = "*"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", mark, lang)
				}
				return nil
			})
		},
	}
}
