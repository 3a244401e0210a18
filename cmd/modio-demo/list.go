package main

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every mod in the local collection and its current state",
	RunE: func(cmd *cobra.Command, args []string) error {
		gameID, apiKey, err := requiredFlags(cmd)
		if err != nil {
			return err
		}
		s := newDemoSDK(cmd, gameID, apiKey)
		defer s.Close()

		entries := s.Collection().All()
		if len(entries) == 0 {
			pterm.Info.Println("No mods tracked locally")
			return nil
		}

		rows := pterm.TableData{{"Mod ID", "Name", "State", "Size on disk"}}
		for _, e := range entries {
			size, _ := e.SizeOnDisk()
			rows = append(rows, []string{
				fmt.Sprintf("%d", e.ID),
				e.Profile().Name,
				string(e.State()),
				fmt.Sprintf("%d", size),
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	},
}
