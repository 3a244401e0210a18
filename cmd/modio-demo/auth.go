package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/cuemby/modio-go/pkg/sdk"
	"github.com/cuemby/modio-go/pkg/transport"
)

var authEmailCmd = &cobra.Command{
	Use:   "auth-email <address>",
	Short: "Request and exchange an email security code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gameID, apiKey, err := requiredFlags(cmd)
		if err != nil {
			return err
		}
		s := newDemoSDK(cmd, gameID, apiKey)
		defer s.Close()

		ctx := context.Background()
		if err := s.Ops().RequestEmailAuthCode(ctx, args[0]); err != nil {
			return fmt.Errorf("requesting auth code: %w", err)
		}
		pterm.Success.Printf("Security code sent to %s\n", args[0])

		fmt.Print("Enter the code: ")
		code, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if len(code) > 0 && code[len(code)-1] == '\n' {
			code = code[:len(code)-1]
		}

		if err := s.Ops().AuthenticateUserByEmailCode(ctx, code); err != nil {
			return fmt.Errorf("exchanging auth code: %w", err)
		}
		pterm.Success.Println("Authenticated")
		return nil
	},
}

func newDemoSDK(cmd *cobra.Command, gameID int64, apiKey string) *sdk.SDK {
	root, _ := cmd.Flags().GetString("root")
	if root == "" {
		root, _ = os.MkdirTemp("", "modio-demo-*")
	}
	deviceID, _ := cmd.Flags().GetString("device-id")
	testEnv, _ := cmd.Flags().GetBool("test-env")

	env := transport.Live
	if testEnv {
		env = transport.Test
	}

	return sdk.New(sdk.Config{
		GameID:      gameID,
		APIKey:      apiKey,
		Environment: env,
		RootPath:    root,
		DeviceID:    deviceID,
	})
}
