package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print qlscan and engine versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("qlscan %s\n", Version)

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		engine := newEngine()
		v, err := engine.Version(ctx)
		if err != nil {
			fmt.Printf("codeql: unavailable (%v)\n", err)
			return nil
		}
		fmt.Printf("codeql %s\n", v)
		return nil
	},
}
