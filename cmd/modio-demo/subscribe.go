package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/cuemby/modio-go/pkg/types"
)

var subscribeCmd = &cobra.Command{
	Use:   "subscribe <mod-id>",
	Short: "Subscribe to a mod, adding it to the desired set the next pump installs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gameID, apiKey, err := requiredFlags(cmd)
		if err != nil {
			return err
		}
		modID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid mod id: %w", err)
		}

		s := newDemoSDK(cmd, gameID, apiKey)
		defer s.Close()

		ctx := context.Background()
		if err := s.Ops().Subscribe(ctx, types.ModID(modID)); err != nil {
			return fmt.Errorf("subscribing: %w", err)
		}
		s.SetDesiredSubscriptions([]types.ModID{types.ModID(modID)})
		pterm.Success.Printf("Subscribed to mod %d; run 'pump' to install it\n", modID)
		return nil
	},
}
