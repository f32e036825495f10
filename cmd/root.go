/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gatehouse",
	Short: "Gatehouse attendance and access-logging API server",
	Long: `Gatehouse is the backend for the attendance and access-logging
system: cookie-session authentication for admins, employees and
visitors, kiosk clock-in/out, OTP flows and attendance reporting.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
