package main

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if !term.IsTerminal(int(os.Stdout.Fd())) || os.Getenv("NO_COLOR") != "" {
		pterm.DisableStyling()
		pterm.RawOutput = true
	}
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "modio-demo",
	Short: "Exercises the mod.io client SDK against a game's mods",
	Long: `modio-demo is a harness for the SDK, not a supported host
integration: authenticate, subscribe to mods, pump the reconciliation
loop, and print the event log as mods install, update, and uninstall.`,
}

func init() {
	rootCmd.PersistentFlags().Int64("game-id", 0, "mod.io game ID")
	rootCmd.PersistentFlags().String("api-key", "", "mod.io API key")
	rootCmd.PersistentFlags().String("root", "", "local storage root (defaults to a temp directory)")
	rootCmd.PersistentFlags().String("device-id", "modio-demo-device", "stable per-device identifier seeding the at-rest encryption key")
	rootCmd.PersistentFlags().Bool("test-env", false, "talk to the mod.io test environment instead of live")

	rootCmd.AddCommand(authEmailCmd)
	rootCmd.AddCommand(subscribeCmd)
	rootCmd.AddCommand(pumpCmd)
	rootCmd.AddCommand(listCmd)
}

func requiredFlags(cmd *cobra.Command) (gameID int64, apiKey string, err error) {
	gameID, _ = cmd.Flags().GetInt64("game-id")
	apiKey, _ = cmd.Flags().GetString("api-key")
	if gameID == 0 || apiKey == "" {
		return 0, "", fmt.Errorf("--game-id and --api-key are required")
	}
	return gameID, apiKey, nil
}
