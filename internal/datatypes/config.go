// Package datatypes holds configuration shared across services.
package datatypes

import (
	"fmt"
	"time"

	"solmaker/internal/utils"
)

// Config carries every runtime parameter for the market maker. It is loaded
// once at startup and never mutated afterwards.
type Config struct {
	// Chain access
	RPCEndpoint    string
	WSEndpoint     string
	StreamEndpoint string // streaming feed endpoint (ws), falls back to WSEndpoint
	StreamToken    string

	// Target market
	TargetTokenMint  string
	CoinCreator      string
	DexType          string // pumpfun | raydium-cpmm | raydium-launchpad
	PoolID           string
	PoolBaseAccount  string
	PoolQuoteAccount string

	// Fund operations
	MainWalletKey    string  // base58 private key of the treasury wallet
	WrapAmountSOL    float64 // per-wallet amount for --wrap
	DistributeAmount float64 // per-wallet amount for --distribute
	WalletCount      int     // wallets created by --wallet

	// Trading
	MinBuyAmountSOL    float64
	MaxBuyAmountSOL    float64
	SlippageBps        uint64
	SellingDelay       time.Duration // hold after buy before the sell leg
	MinTradeInterval   time.Duration
	MaxTradeInterval   time.Duration
	WalletsDir         string
	RotationFrequency  int // swap wallet every N trades
	MaxConsecutiveSame int

	// Guardian mode
	GuardianEnabled       bool
	GuardianDropThreshold float64

	// Volume waves
	WaveActiveHours float64
	WaveSlowHours   float64

	// Dynamic ratios
	MinBuyRatio        float64
	MaxBuyRatio        float64
	RatioChangeHours   float64
	WeeklyRatioChanges bool

	// Price monitor
	PriceChangeThreshold float64
	ThrottleDuration     time.Duration

	// Notifications
	TelegramBotToken string
	TelegramChatID   string

	// Logging
	LogFile  string
	LogLevel string
}

// Load reads configuration from the environment. Missing required settings
// are an error: the process must not run half-configured.
func Load() (*Config, error) {
	cfg := &Config{
		RPCEndpoint:    utils.GetEnv("RPC_ENDPOINT", "https://api.mainnet-beta.solana.com"),
		WSEndpoint:     utils.GetEnv("WS_ENDPOINT", "wss://api.mainnet-beta.solana.com"),
		StreamEndpoint: utils.GetEnv("STREAM_ENDPOINT", ""),
		StreamToken:    utils.GetEnv("STREAM_TOKEN", ""),

		TargetTokenMint:  utils.GetEnv("TARGET_TOKEN_MINT", ""),
		CoinCreator:      utils.GetEnv("COIN_CREATOR", ""),
		DexType:          utils.GetEnv("DEX_TYPE", "pumpfun"),
		PoolID:           utils.GetEnv("POOL_ID", ""),
		PoolBaseAccount:  utils.GetEnv("POOL_BASE_ACCOUNT", ""),
		PoolQuoteAccount: utils.GetEnv("POOL_QUOTE_ACCOUNT", ""),

		MainWalletKey:    utils.GetEnv("MAIN_WALLET_PRIVATE_KEY", ""),
		WrapAmountSOL:    utils.GetEnvFloat("WRAP_AMOUNT", 0.1),
		DistributeAmount: utils.GetEnvFloat("DISTRIBUTE_AMOUNT", 0.5),
		WalletCount:      utils.GetEnvInt("WALLET_COUNT", 10),

		MinBuyAmountSOL:    utils.GetEnvFloat("MIN_BUY_AMOUNT", 0.03),
		MaxBuyAmountSOL:    utils.GetEnvFloat("MAX_BUY_AMOUNT", 0.55),
		SlippageBps:        uint64(utils.GetEnvInt("SLIPPAGE_BPS", 1000)),
		SellingDelay:       time.Duration(utils.GetEnvInt("SELLING_TIME_AFTER_BUYING", 120)) * time.Second,
		MinTradeInterval:   time.Duration(utils.GetEnvInt("MIN_TRADE_INTERVAL_SECONDS", 30)) * time.Second,
		MaxTradeInterval:   time.Duration(utils.GetEnvInt("MAX_TRADE_INTERVAL_SECONDS", 300)) * time.Second,
		WalletsDir:         utils.GetEnv("WALLETS_DIR", "wallets"),
		RotationFrequency:  utils.GetEnvInt("WALLET_ROTATION_FREQUENCY", 3),
		MaxConsecutiveSame: utils.GetEnvInt("MAX_CONSECUTIVE_SAME_WALLET", 2),

		GuardianEnabled:       utils.GetEnvBool("GUARDIAN_ENABLED", true),
		GuardianDropThreshold: utils.GetEnvFloat("GUARDIAN_DROP_THRESHOLD", 0.10),

		WaveActiveHours: utils.GetEnvFloat("WAVE_ACTIVE_HOURS", 2),
		WaveSlowHours:   utils.GetEnvFloat("WAVE_SLOW_HOURS", 4),

		MinBuyRatio:        utils.GetEnvFloat("MIN_BUY_RATIO", 0.5),
		MaxBuyRatio:        utils.GetEnvFloat("MAX_BUY_RATIO", 0.8),
		RatioChangeHours:   utils.GetEnvFloat("RATIO_CHANGE_HOURS", 24),
		WeeklyRatioChanges: utils.GetEnvBool("WEEKLY_RATIO_CHANGES", false),

		PriceChangeThreshold: utils.GetEnvFloat("PRICE_CHANGE_THRESHOLD", 0.05),
		ThrottleDuration:     time.Duration(utils.GetEnvInt("THROTTLE_DURATION_SECONDS", 300)) * time.Second,

		TelegramBotToken: utils.GetEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   utils.GetEnv("TELEGRAM_CHAT_ID", ""),

		LogFile:  utils.GetEnv("LOG_FILE", "solmaker.log"),
		LogLevel: utils.GetEnv("LOG_LEVEL", "info"),
	}

	if cfg.StreamEndpoint == "" {
		cfg.StreamEndpoint = cfg.WSEndpoint
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.TargetTokenMint == "" {
		return fmt.Errorf("TARGET_TOKEN_MINT is required")
	}
	switch c.DexType {
	case "pumpfun":
	case "raydium-cpmm", "raydium-launchpad":
		if c.PoolID == "" || c.PoolBaseAccount == "" || c.PoolQuoteAccount == "" {
			return fmt.Errorf("POOL_ID, POOL_BASE_ACCOUNT and POOL_QUOTE_ACCOUNT are required for %s", c.DexType)
		}
	default:
		return fmt.Errorf("unknown DEX_TYPE %q", c.DexType)
	}
	if c.MinBuyAmountSOL <= 0 || c.MaxBuyAmountSOL < c.MinBuyAmountSOL {
		return fmt.Errorf("invalid buy amount range [%f, %f]", c.MinBuyAmountSOL, c.MaxBuyAmountSOL)
	}
	if c.MinTradeInterval <= 0 || c.MaxTradeInterval < c.MinTradeInterval {
		return fmt.Errorf("invalid trade interval range [%s, %s]", c.MinTradeInterval, c.MaxTradeInterval)
	}
	return nil
}
