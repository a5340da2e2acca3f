package cmd

import (
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sparcd-io/cli/pkg/model"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage sandbox server accounts",
}

var accountAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an account (the token is read without echo)",
	RunE:  runAccountAdd,
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured accounts",
	RunE:  runAccountList,
}

var accountRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove an account and its stored token",
	RunE:  runAccountRemove,
}

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountAddCmd, accountListCmd, accountRemoveCmd)

	accountAddCmd.Flags().String("host", "", "Server base URL (required)")
	accountAddCmd.Flags().String("username", "", "Account username (required)")
	accountRemoveCmd.Flags().String("host", "", "Server base URL")
	accountRemoveCmd.Flags().String("username", "", "Account username")
}

func runAccountAdd(cmd *cobra.Command, args []string) error {
	host, _ := cmd.Flags().GetString("host")
	username, _ := cmd.Flags().GetString("username")
	if host == "" || username == "" {
		return fmt.Errorf("both --host and --username are required")
	}

	fmt.Print("Session token: ")
	tokenBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	token := strings.TrimSpace(string(tokenBytes))
	if token == "" {
		return fmt.Errorf("no token provided")
	}

	ctrl, err := newCtrl()
	if err != nil {
		return err
	}
	defer ctrl.DB.Close()

	account := model.Account{Host: host, Username: username}
	if err := ctrl.AddAccount(account, token); err != nil {
		return err
	}
	fmt.Printf("Added account %s\n", account.AccountKey())
	return nil
}

func runAccountList(cmd *cobra.Command, args []string) error {
	ctrl, err := newCtrl()
	if err != nil {
		return err
	}
	defer ctrl.DB.Close()

	accounts, err := ctrl.GetAccounts()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		fmt.Println("No accounts configured. Add one with 'sparcd account add'.")
		return nil
	}
	for _, account := range accounts {
		fmt.Printf("%s (added %s)\n", account.AccountKey(),
			time.Unix(account.AddedAt, 0).Format("2006-01-02"))
	}
	return nil
}

func runAccountRemove(cmd *cobra.Command, args []string) error {
	host, _ := cmd.Flags().GetString("host")
	username, _ := cmd.Flags().GetString("username")

	ctrl, err := newCtrl()
	if err != nil {
		return err
	}
	defer ctrl.DB.Close()

	account, err := ctrl.GetAccount(host, username)
	if err != nil {
		return err
	}
	if err := ctrl.RemoveAccount(*account); err != nil {
		return err
	}
	fmt.Printf("Removed account %s\n", account.AccountKey())
	return nil
}
