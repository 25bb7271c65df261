package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sectordocs/caodex/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "caodexd",
		Short: "Caodex daemon and CLI",
		Long:  "Caodex daemon for running the API server and ingesting and searching sector labor agreement PDFs",
	}

	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.IngestCmd())
	rootCmd.AddCommand(cli.SearchCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
