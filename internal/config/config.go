package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/chainswarm/chainswarm-go/internal/models"
	"github.com/chainswarm/chainswarm-go/internal/registry"
)

type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Market      MarketConfig   `mapstructure:"market"`
	Telegram    TelegramConfig `mapstructure:"telegram"`
	Swarm       SwarmConfig    `mapstructure:"swarm"`
	Risk        RiskConfig     `mapstructure:"risk"`
	Chains      []ChainConfig  `mapstructure:"chains"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MarketConfig struct {
	ServiceURL    string `mapstructure:"service_url"`
	Timeout       int    `mapstructure:"timeout"`
	PriceCacheTTL string `mapstructure:"price_cache_ttl"`
}

// CallTimeout returns the market call timeout as a duration.
func (m MarketConfig) CallTimeout() time.Duration {
	if m.Timeout <= 0 {
		return 5 * time.Second
	}
	return time.Duration(m.Timeout) * time.Second
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

type SwarmConfig struct {
	AgentCount         int     `mapstructure:"agent_count"`
	TopKOpportunities  int     `mapstructure:"top_k_opportunities"`
	ScanInterval       string  `mapstructure:"scan_interval"`
	RiskUpdateInterval string  `mapstructure:"risk_update_interval"`
	ViabilityFloor     float64 `mapstructure:"viability_floor"`
	SuccessWindow      int     `mapstructure:"success_window"`
	SmoothingPeriod    int     `mapstructure:"smoothing_period"`
	MaxParallelScans   int     `mapstructure:"max_parallel_scans"`
}

type RiskConfig struct {
	MaxPositionSize     float64 `mapstructure:"max_position_size"`
	MinProfitThreshold  float64 `mapstructure:"min_profit_threshold"`
	MaxGasPrice         float64 `mapstructure:"max_gas_price"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
}

// Parameters converts the configured defaults into per-agent risk parameters.
func (r RiskConfig) Parameters() models.RiskParameters {
	return models.RiskParameters{
		MaxPositionSize:     decimal.NewFromFloat(r.MaxPositionSize),
		MinProfitThreshold:  decimal.NewFromFloat(r.MinProfitThreshold),
		MaxGasPrice:         decimal.NewFromFloat(r.MaxGasPrice),
		ConfidenceThreshold: decimal.NewFromFloat(r.ConfidenceThreshold),
	}
}

type ChainConfig struct {
	Name          string   `mapstructure:"name"`
	GasPrice      float64  `mapstructure:"gas_price"`
	BridgeAddress string   `mapstructure:"bridge_address"`
	Tokens        []string `mapstructure:"tokens"`
}

// ChainInfos converts the configured chains into registry entries.
func (c *Config) ChainInfos() []registry.ChainInfo {
	chains := make([]registry.ChainInfo, 0, len(c.Chains))
	for _, cc := range c.Chains {
		chains = append(chains, registry.ChainInfo{
			Name:          cc.Name,
			GasPrice:      decimal.NewFromFloat(cc.GasPrice),
			BridgeAddress: cc.BridgeAddress,
			Tokens:        cc.Tokens,
		})
	}
	return chains
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine, defaults and env vars cover it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)

	if err := config.Risk.Parameters().Validate(); err != nil {
		return nil, fmt.Errorf("invalid risk defaults: %w", err)
	}
	if config.Swarm.ScanInterval != "" {
		if _, err := time.ParseDuration(config.Swarm.ScanInterval); err != nil {
			return nil, fmt.Errorf("invalid scan interval: %w", err)
		}
	}
	if config.Swarm.RiskUpdateInterval != "" {
		if _, err := time.ParseDuration(config.Swarm.RiskUpdateInterval); err != nil {
			return nil, fmt.Errorf("invalid risk update interval: %w", err)
		}
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("server.port", 8080)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "chainswarm")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_open_conns", 25)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("market.service_url", "http://localhost:3001")
	viper.SetDefault("market.timeout", 5)
	viper.SetDefault("market.price_cache_ttl", "10s")

	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.chat_id", 0)

	viper.SetDefault("swarm.agent_count", 4)
	viper.SetDefault("swarm.top_k_opportunities", 32)
	viper.SetDefault("swarm.scan_interval", "30s")
	viper.SetDefault("swarm.risk_update_interval", "5m")
	viper.SetDefault("swarm.viability_floor", 0.2)
	viper.SetDefault("swarm.success_window", 10)
	viper.SetDefault("swarm.smoothing_period", 3)
	viper.SetDefault("swarm.max_parallel_scans", 16)

	viper.SetDefault("risk.max_position_size", 0.1)
	viper.SetDefault("risk.min_profit_threshold", 0.02)
	viper.SetDefault("risk.max_gas_price", 50.0)
	viper.SetDefault("risk.confidence_threshold", 0.01)

	viper.SetDefault("chains", []map[string]interface{}{})
}
