package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sparcd-io/cli/internal/api"
	"github.com/sparcd-io/cli/pkg"
	"github.com/sparcd-io/cli/pkg/model"
	"github.com/sparcd-io/cli/pkg/notify"
)

var rootCmd = &cobra.Command{
	Use:   "sparcd",
	Short: "Upload camera-trap batches to a SPARCd collection server",
	Long: `sparcd is the command-line client for a SPARCd field-data collection
server. It uploads folders of camera-trap images or movies into the
server's sandbox staging area, with resumable, chunked transfers.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("server", "", "Sandbox server base URL")
	rootCmd.PersistentFlags().String("account", "", "Account username to use")
	rootCmd.PersistentFlags().String("data-dir", "", "Directory for local state (default ~/.sparcd)")
	viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	viper.BindPFlag("account", rootCmd.PersistentFlags().Lookup("account"))
	viper.BindPFlag("data-dir", rootCmd.PersistentFlags().Lookup("data-dir"))
}

func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(defaultDataDir())
	viper.SetEnvPrefix("SPARCD")
	viper.AutomaticEnv()
	// A missing config file is fine; flags and env cover everything.
	_ = viper.ReadInConfig()
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sparcd"
	}
	return filepath.Join(home, ".sparcd")
}

func dataDir() (string, error) {
	dir := viper.GetString("data-dir")
	if dir == "" {
		dir = defaultDataDir()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}
	return dir, nil
}

// newCtrl opens the local database and builds the controller facade.
// The API client is attached later, once the account is resolved.
func newCtrl() (*pkg.Ctrl, error) {
	dir, err := dataDir()
	if err != nil {
		return nil, err
	}
	db, err := pkg.GetDB(filepath.Join(dir, "sparcd.db"))
	if err != nil {
		return nil, err
	}
	return &pkg.Ctrl{
		DB:     db,
		Notify: notify.NewConsole(),
	}, nil
}

// attachClient resolves the account and token and wires the API client
// into the controller.
func attachClient(ctrl *pkg.Ctrl) (*model.Account, error) {
	account, err := ctrl.GetAccount(viper.GetString("server"), viper.GetString("account"))
	if err != nil {
		return nil, err
	}
	token, err := ctrl.TokenFor(*account)
	if err != nil {
		return nil, err
	}

	ctrl.Client = api.NewClient(api.Params{
		BaseURL: account.Host,
		Token:   token,
		Timeout: 10 * time.Minute,
		OnCredentialExpired: func() {
			ctrl.Notify.Errorf("your session token has expired; add a fresh one with 'sparcd account add'")
		},
	})
	return account, nil
}
