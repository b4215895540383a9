package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/auratask/core/cmd/api/commands"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "auratask",
		Short: "AuraTask API Server",
		Long:  `AuraTask is a personal task manager with AI-assisted task enrichment, gamified progress tracking and realtime sync across devices.`,
	}

	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewKeyCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
