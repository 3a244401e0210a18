package main

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var pumpCmd = &cobra.Command{
	Use:   "pump",
	Short: "Drive the reconciliation loop until the event log goes quiet",
	RunE: func(cmd *cobra.Command, args []string) error {
		gameID, apiKey, err := requiredFlags(cmd)
		if err != nil {
			return err
		}
		s := newDemoSDK(cmd, gameID, apiKey)
		defer s.Close()

		ctx := context.Background()
		idle := 0
		for idle < 20 {
			if err := s.Pump(ctx); err != nil {
				pterm.Warning.Printf("tick error: %v\n", err)
			}
			events := s.Events()
			if len(events) == 0 {
				idle++
				time.Sleep(50 * time.Millisecond)
				continue
			}
			idle = 0
			for _, e := range events {
				pterm.Info.Printf("mod %d: %s (status %d)\n", e.ModID, e.Type, e.StatusCode)
			}
		}
		return nil
	},
}
