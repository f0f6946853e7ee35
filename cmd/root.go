package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Ashfaaq98/dossier-console/internal/bus"
	"github.com/Ashfaaq98/dossier-console/internal/gateway"
	"github.com/Ashfaaq98/dossier-console/internal/state"
	"github.com/Ashfaaq98/dossier-console/internal/store"
)

var (
	cfgFile    string
	baseURL    string
	sqlBaseURL string
	timeout    time.Duration
	dbPath     string
	redisURL   string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dossier",
	Short: "Terminal console for due-diligence monitoring",
	Long: `Dossier is a terminal console for a due-diligence backend. It lists the
findings collected about monitored entities, manages entities and database
connections, submits analysis runs and follows their jobs.

Features:
- Findings browser with search, risk filter and sortable columns
- Analysis setup: entities, keywords, period and data source
- Job history with live updates over Redis streams
- SQL console, through the SQL API or straight to the database
- Local SQLite snapshot for offline browsing and exports`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.dossier.yaml)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", gateway.DefaultBaseURL, "Data API base URL")
	rootCmd.PersistentFlags().StringVar(&sqlBaseURL, "sql-base-url", gateway.DefaultSQLBaseURL, "SQL API base URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", gateway.DefaultTimeout, "Request timeout")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "./data/dossier.db", "SQLite snapshot path")
	rootCmd.PersistentFlags().StringVar(&redisURL, "redis", "", "Redis connection URL (empty disables job events)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log requests and background activity to stderr")

	// Bind flags to viper
	viper.BindPFlag("gateway.base_url", rootCmd.PersistentFlags().Lookup("base-url"))
	viper.BindPFlag("gateway.sql_base_url", rootCmd.PersistentFlags().Lookup("sql-base-url"))
	viper.BindPFlag("gateway.timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	viper.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("redis.url", rootCmd.PersistentFlags().Lookup("redis"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// ".dossier.yaml" in the home directory, or "dossier.yaml" here.
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".dossier")
		if _, err := os.Stat("dossier.yaml"); err == nil {
			viper.SetConfigFile("dossier.yaml")
		}
	}

	viper.SetEnvPrefix("dossier")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && viper.GetBool("verbose") {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	viper.SetDefault("gateway.base_url", gateway.DefaultBaseURL)
	viper.SetDefault("gateway.sql_base_url", gateway.DefaultSQLBaseURL)
	viper.SetDefault("gateway.timeout", gateway.DefaultTimeout)
	viper.SetDefault("database.path", "./data/dossier.db")
	viper.SetDefault("redis.url", "")
	viper.SetDefault("ingest.folder", "./data/incoming")
	viper.SetDefault("export.dir", "exports")
	viper.SetDefault("log.file", "./logs/dossier.log")
	viper.SetDefault("ui.theme", "")
}

// GetConfig returns the current configuration values
func GetConfig() Config {
	return Config{
		Gateway: GatewayConfig{
			BaseURL:    viper.GetString("gateway.base_url"),
			SQLBaseURL: viper.GetString("gateway.sql_base_url"),
			Timeout:    viper.GetDuration("gateway.timeout"),
		},
		Database: DatabaseConfig{
			Path: viper.GetString("database.path"),
		},
		Redis: RedisConfig{
			URL: viper.GetString("redis.url"),
		},
		Ingest: IngestConfig{
			Folder: viper.GetString("ingest.folder"),
		},
		Export: ExportConfig{
			Dir: viper.GetString("export.dir"),
		},
		Log: LogConfig{
			File: viper.GetString("log.file"),
		},
		UI: UIConfig{
			Theme: viper.GetString("ui.theme"),
		},
		Verbose: viper.GetBool("verbose"),
	}
}

// Config represents the application configuration
type Config struct {
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Export   ExportConfig   `mapstructure:"export"`
	Log      LogConfig      `mapstructure:"log"`
	UI       UIConfig       `mapstructure:"ui"`
	Verbose  bool           `mapstructure:"verbose"`
}

type GatewayConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	SQLBaseURL string        `mapstructure:"sql_base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type IngestConfig struct {
	Folder string `mapstructure:"folder"`
}

type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

type LogConfig struct {
	File string `mapstructure:"file"`
}

type UIConfig struct {
	Theme string `mapstructure:"theme"`
}

// newLogger returns a stderr logger when verbose, otherwise a silent one.
func newLogger(cfg Config, component string) *log.Logger {
	if !cfg.Verbose {
		return log.New(io.Discard, "", 0)
	}
	return log.New(os.Stderr, fmt.Sprintf("[%s] ", component), log.LstdFlags)
}

func newGateway(cfg Config, logger *log.Logger) (*gateway.Client, error) {
	client, err := gateway.New(gateway.Config{
		BaseURL:    cfg.Gateway.BaseURL,
		SQLBaseURL: cfg.Gateway.SQLBaseURL,
		Timeout:    cfg.Gateway.Timeout,
		UserAgent:  "dossier-console/" + versionString(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway client: %w", err)
	}
	return client, nil
}

func openCache(cfg Config) (*store.Store, error) {
	st, err := store.NewStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return st, nil
}

// app bundles what most commands need. close releases it.
type app struct {
	cfg    Config
	client *gateway.Client
	cache  *store.Store
	state  *state.Store
	bus    bus.Bus
}

func newApp(cfg Config) (*app, error) {
	client, err := newGateway(cfg, newLogger(cfg, "gateway"))
	if err != nil {
		return nil, err
	}
	cache, err := openCache(cfg)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:    cfg,
		client: client,
		cache:  cache,
		state:  state.New(client, cache, newLogger(cfg, "state")),
		bus:    bus.NewBus(cfg.Redis.URL, newLogger(cfg, "bus")),
	}, nil
}

func (a *app) close() {
	a.bus.Close()
	a.cache.Close()
}
