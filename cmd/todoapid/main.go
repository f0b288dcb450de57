package main

import (
	"fmt"
	"os"

	"github.com/izpodvypodvert/todoapi/internal/cli"
	"github.com/izpodvypodvert/todoapi/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "todoapid",
		Short: "Todo API daemon and admin CLI",
		Long:  "Todo API daemon for running the API server, applying migrations and managing users",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.MigrateCmd())
	rootCmd.AddCommand(admin.UserCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.ExitOnHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
