package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"

	"github.com/vaultpilot/vaultpilot/pkg/auth"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage provider authentication",
	}

	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthStatusCmd())
	cmd.AddCommand(newAuthLogoutCmd())

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login via OAuth device flow",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return authLoginCmd(provider)
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "qwen", "Provider to login with")

	return cmd
}

func authLoginCmd(provider string) error {
	flow := auth.NewFlow(provider)

	ctx := context.Background()
	da, err := flow.RequestDeviceCode(ctx)
	if err != nil {
		return fmt.Errorf("request device code: %w", err)
	}

	fmt.Printf("Open %s\n", da.VerifyURL())
	fmt.Printf("and enter the code: %s\n\n", da.UserCode)
	qrterminal.GenerateHalfBlock(da.VerifyURL(), qrterminal.L, os.Stdout)
	fmt.Println("\nWaiting for authorization (Ctrl+C to cancel)...")

	poller := auth.NewPoller(flow, da)
	done := poller.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		poller.Stop()
	}()

	result := <-done
	if result.Err != nil {
		if errors.Is(result.Err, auth.ErrCancelled) {
			fmt.Println("Login cancelled.")
			return nil
		}
		return fmt.Errorf("login failed: %w", result.Err)
	}

	cred := flow.CredentialFromToken(result.Token)
	if err := auth.SetCredential(flow.Provider, cred); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}

	fmt.Println("Login successful!")
	if !cred.ExpiresAt.IsZero() {
		fmt.Printf("Token expires: %s\n", cred.ExpiresAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authenticated providers",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return authStatusCmd()
		},
	}
}

func authStatusCmd() error {
	creds, err := auth.ListCredentials()
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	if len(creds) == 0 {
		return fmt.Errorf("no authenticated providers. run: vaultpilot auth login")
	}

	fmt.Println("Authenticated providers:")
	for provider, cred := range creds {
		status := "active"
		if cred.IsExpired() {
			status = "expired"
		} else if cred.NeedsRefresh() {
			status = "needs refresh"
		}
		fmt.Printf("  %s: %s", provider, status)
		if !cred.ExpiresAt.IsZero() {
			fmt.Printf(" (expires %s)", cred.ExpiresAt.Format("2006-01-02 15:04"))
		}
		fmt.Println()
	}
	return nil
}

func newAuthLogoutCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := auth.DeleteCredential(provider); err != nil {
				return fmt.Errorf("remove credentials: %w", err)
			}
			fmt.Printf("Logged out from %s\n", provider)
			return nil
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "qwen", "Provider to logout from")

	return cmd
}
