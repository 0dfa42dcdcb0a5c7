package main

import (
	"os"
	"strings"

	"haggle/internal/archive"
	"haggle/internal/config"
	"haggle/internal/logging"
	"haggle/internal/negotiation"
	"haggle/internal/remote"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type appConfig struct {
	config.Config
	altScreen bool
}

type rootFlags struct {
	configPath  string
	baseURL     string
	timeout     int
	productID   string
	productName string
	listPrice   float64
	currency    string
	user        string
	archiveDB   string
	logFile     string
	logLevel    string
	altScreen   bool
}

func newRootCommand() *cobra.Command {
	return buildRootCommand(&rootFlags{}, runTUI)
}

func buildRootCommand(flags *rootFlags, run func(appConfig) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "haggle-tui",
		Short: "Negotiate a product price with the negotiation service",
		Long: `haggle-tui is a terminal client for a remote price negotiation service.

Enter your name, open a negotiation for the configured product and trade
offers with the service until a deal is made, refused or abandoned.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, flags)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&flags.configPath, "config", "", "YAML config file (env HAGGLE_CONFIG)")
	f.StringVar(&flags.archiveDB, "archive-db", "", "SQLite file for closed negotiations (env HAGGLE_ARCHIVE_DB)")
	f.StringVar(&flags.logFile, "log-file", "", "Write logs to this file (env HAGGLE_LOG_FILE)")
	f.StringVar(&flags.logLevel, "log-level", "info", "Log level: debug, info, warn, error (env HAGGLE_LOG_LEVEL)")

	cmd.Flags().StringVar(&flags.baseURL, "base-url", config.DefaultBaseURL, "Negotiation service base URL (env HAGGLE_BASE_URL)")
	cmd.Flags().IntVar(&flags.timeout, "timeout", config.DefaultTimeoutSeconds, "Per-call timeout in seconds, 0 disables (env HAGGLE_TIMEOUT)")
	cmd.Flags().StringVar(&flags.productID, "product-id", config.DefaultProductID, "Product to negotiate (env HAGGLE_PRODUCT_ID)")
	cmd.Flags().StringVar(&flags.productName, "product-name", config.DefaultProductName, "Product display name (env HAGGLE_PRODUCT_NAME)")
	cmd.Flags().Float64Var(&flags.listPrice, "list-price", config.DefaultListPrice, "Product list price (env HAGGLE_LIST_PRICE)")
	cmd.Flags().StringVar(&flags.currency, "currency", config.DefaultCurrency, "Currency symbol (env HAGGLE_CURRENCY)")
	cmd.Flags().StringVar(&flags.user, "user", "", "Skip the name prompt with this name (env HAGGLE_USER)")
	cmd.Flags().BoolVar(&flags.altScreen, "alt-screen", config.EnvOrBool("HAGGLE_ALT_SCREEN", true), "Use the terminal alternate screen")

	cmd.AddCommand(newHistoryCommand(flags))
	return cmd
}

// resolveConfig layers defaults, the YAML file, the environment and the
// flags that were set explicitly.
func resolveConfig(cmd *cobra.Command, flags *rootFlags) (appConfig, error) {
	cfg := config.Default()
	path := flags.configPath
	if !cmd.Flags().Changed("config") {
		path = envOr("HAGGLE_CONFIG", path)
	}
	cfg, err := config.LoadFile(cfg, path)
	if err != nil {
		return appConfig{}, err
	}
	cfg = config.ApplyEnv(cfg)

	changed := cmd.Flags().Changed
	if changed("base-url") {
		cfg.Service.BaseURL = flags.baseURL
	}
	if changed("timeout") {
		cfg.Service.TimeoutSeconds = flags.timeout
	}
	if changed("product-id") {
		cfg.Product.ID = flags.productID
	}
	if changed("product-name") {
		cfg.Product.Name = flags.productName
	}
	if changed("list-price") {
		cfg.Product.ListPrice = flags.listPrice
	}
	if changed("currency") {
		cfg.Product.Currency = flags.currency
	}
	if changed("user") {
		cfg.User.Name = flags.user
	}
	if changed("archive-db") {
		cfg.Archive.Path = flags.archiveDB
	}
	if changed("log-file") {
		cfg.Log.File = flags.logFile
	}
	if changed("log-level") {
		cfg.Log.Level = flags.logLevel
	}

	cfg, err = config.Normalize(cfg)
	if err != nil {
		return appConfig{}, err
	}
	return appConfig{Config: cfg, altScreen: flags.altScreen}, nil
}

func runTUI(cfg appConfig) error {
	logCloser, err := logging.Setup(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	var store *archive.Store
	if cfg.Archive.Path != "" {
		store, err = archive.Open(cfg.Archive.Path)
		if err != nil {
			return errors.Wrap(err, "open archive")
		}
		defer func() { _ = store.Close() }()
	}

	client := remote.New(cfg.Service.BaseURL, remote.WithTimeout(cfg.Timeout()))
	mgr := negotiation.NewManager(client, productFromConfig(cfg.Config))
	log.Info().Str("base_url", client.BaseURL()).Str("product_id", cfg.Product.ID).Msg("haggle-tui starting")

	var rec recorder
	if store != nil {
		rec = store
	}
	opts := []tea.ProgramOption{tea.WithMouseCellMotion()}
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		opts = append(opts, tea.WithOutput(os.Stderr))
	} else if cfg.altScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	p := tea.NewProgram(newModel(cfg, mgr, rec), opts...)
	_, err = p.Run()
	return err
}

func productFromConfig(cfg config.Config) negotiation.Product {
	return negotiation.Product{
		ID:        cfg.Product.ID,
		Name:      cfg.Product.Name,
		ListPrice: cfg.Product.ListPrice,
		Currency:  cfg.Product.Currency,
	}
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
