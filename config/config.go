package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// WalletConfig selects and configures the signer transports
type WalletConfig struct {
	PrivateKey        string // base58, enables the in-process transport
	BridgeURL         string // enables the managed-session transport
	BridgeSessionFile string
	Platform          string // "", "desktop" or "mobile" (override)

	DeepLinkBaseURL  string
	DeepLinkAppURL   string
	DeepLinkRedirect string
	Cluster          string
}

// Config holds the application configuration
type Config struct {
	BackendURL string
	APIToken   string

	RPCUrl         string
	MintAddress    string
	MinGasLamports uint64

	SessionPath string
	KeysPath    string

	Wallet WalletConfig
}

var globalConfig *Config

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".support-flow")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	// Set default values
	viper.SetDefault("backend_url", "https://api.support-flow.app")
	viper.SetDefault("rpc_url", "https://api.mainnet-beta.solana.com")
	viper.SetDefault("mint_address", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v") // USDC
	viper.SetDefault("min_gas_lamports", 100_000)
	viper.SetDefault("wallet.cluster", "mainnet-beta")
	viper.SetDefault("wallet.deeplink_base_url", "https://phantom.app/ul/v1")

	// Read from environment variables; nested keys map dots to
	// underscores (wallet.private_key -> SUPPORT_FLOW_WALLET_PRIVATE_KEY)
	viper.SetEnvPrefix("SUPPORT_FLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		BackendURL:     viper.GetString("backend_url"),
		APIToken:       viper.GetString("api_token"),
		RPCUrl:         viper.GetString("rpc_url"),
		MintAddress:    viper.GetString("mint_address"),
		MinGasLamports: viper.GetUint64("min_gas_lamports"),
		SessionPath:    viper.GetString("session_path"),
		KeysPath:       viper.GetString("keys_path"),
		Wallet: WalletConfig{
			PrivateKey:        viper.GetString("wallet.private_key"),
			BridgeURL:         viper.GetString("wallet.bridge_url"),
			BridgeSessionFile: viper.GetString("wallet.bridge_session_file"),
			Platform:          viper.GetString("wallet.platform"),
			DeepLinkBaseURL:   viper.GetString("wallet.deeplink_base_url"),
			DeepLinkAppURL:    viper.GetString("wallet.deeplink_app_url"),
			DeepLinkRedirect:  viper.GetString("wallet.deeplink_redirect"),
			Cluster:           viper.GetString("wallet.cluster"),
		},
	}

	if cfg.APIToken == "" {
		return nil, fmt.Errorf("API token not found. Please set SUPPORT_FLOW_API_TOKEN environment variable or create a .support-flow.yaml config file")
	}

	globalConfig = cfg
	return cfg, nil
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
