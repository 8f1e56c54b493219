package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ashare/internal/domain"
)

// ErrInvalid is wrapped by every validation failure returned from Validate.
var ErrInvalid = errors.New("invalid config")

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the ashare backtester.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Database Database `yaml:"database"`
	Server   Server   `yaml:"server"`
	Logging  Logging  `yaml:"logging"`
	Backtest Backtest `yaml:"backtest"`
	Report   Report   `yaml:"report"`
}

// Storage holds paths for local persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Database describes the relational store holding the bao_* market tables.
type Database struct {
	Type            string        `yaml:"type"` // mysql, postgres or sqlite
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	LogLevel        string        `yaml:"log_level"`

	// QueriesPerSecond throttles snapshot exports. Zero means unlimited.
	QueriesPerSecond float64 `yaml:"queries_per_second"`
}

// Server holds network listener configuration for the results API.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port.
func (s Server) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Backtest is the immutable parameter set of one simulation run.
type Backtest struct {
	Source         string     `yaml:"source"` // database or parquet
	StartDate      string     `yaml:"start_date"`
	EndDate        string     `yaml:"end_date"`
	InitialCapital float64    `yaml:"initial_capital"`
	Selection      Selection  `yaml:"selection"`
	Ranking        Ranking    `yaml:"ranking"`
	Execution      Execution  `yaml:"execution"`
	Commission     Commission `yaml:"commission"`
}

// Selection holds the eligibility thresholds, in the units the data provider
// stores them (market value in 亿 CNY, percentiles and yields in percent).
type Selection struct {
	ListingYears        int     `yaml:"listing_years"`
	MarketCapFloor      float64 `yaml:"market_cap_floor"`
	PECeiling           float64 `yaml:"pe_ceiling"`
	DividendYieldFloor  float64 `yaml:"dividend_yield_floor"`
	PEPercentileCeiling float64 `yaml:"pe_percentile_ceiling"`
	PSPercentileCeiling float64 `yaml:"ps_percentile_ceiling"`
	DividendYears       int     `yaml:"dividend_years"`
	MinPrice            float64 `yaml:"min_price"`
}

// Ranking configures the rank-sum target set.
type Ranking struct {
	TopK int `yaml:"top_k"`
}

// Execution holds sizing, interval and stop parameters. Fractions are
// expressed as 0.01 for 1%.
type Execution struct {
	TradeIntervalDays       int     `yaml:"trade_interval_days"`
	LotSize                 int64   `yaml:"lot_size"`
	TradePct                float64 `yaml:"trade_pct"`
	PositionCapPct          float64 `yaml:"position_cap_pct"`
	ValuationSellPercentile float64 `yaml:"valuation_sell_percentile"`
	TakeProfitPartial       float64 `yaml:"take_profit_partial"`
	TakeProfitFull          float64 `yaml:"take_profit_full"`
	TakeProfitCooldownDays  int     `yaml:"take_profit_cooldown_days"`
	StopLoss                float64 `yaml:"stop_loss"`
	StopLossCooldownDays    int     `yaml:"stop_loss_cooldown_days"`
	StopBuy                 float64 `yaml:"stop_buy"`
	MinPrice                float64 `yaml:"min_price"`
}

// Commission holds A-share brokerage fee rates.
type Commission struct {
	Rate        float64 `yaml:"rate"`
	MinFee      float64 `yaml:"min_fee"`
	StampDuty   float64 `yaml:"stamp_duty"`
	TransferFee float64 `yaml:"transfer_fee"`
}

// Benchmark names one index series drawn on the equity curve.
type Benchmark struct {
	Name string `yaml:"name"`
	Code string `yaml:"code"`
}

// Report controls the artifacts written after a run.
type Report struct {
	OutputDir   string      `yaml:"output_dir"`
	Prefix      string      `yaml:"prefix"`
	Benchmarks  []Benchmark `yaml:"benchmarks"`
	DisableHTML bool        `yaml:"disable_html"`
	Persist     bool        `yaml:"persist"`
}

// ---------------------------------------------------------------------------
// Defaults
// ---------------------------------------------------------------------------

// Default returns the configuration of the reference dividend-value strategy.
// Load decodes YAML on top of it, so omitted keys keep these values.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/ashare.db",
		},
		Database: Database{
			Type:            "mysql",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
			LogLevel:        "warn",
		},
		Server:  Server{Host: "0.0.0.0", Port: 8081},
		Logging: Logging{Level: "info"},
		Backtest: Backtest{
			Source:         "database",
			InitialCapital: 10_000_000,
			Selection: Selection{
				ListingYears:        2,
				MarketCapFloor:      50,
				PECeiling:           35,
				DividendYieldFloor:  1,
				PEPercentileCeiling: 20,
				PSPercentileCeiling: 20,
				DividendYears:       2,
				MinPrice:            1,
			},
			Ranking: Ranking{TopK: 10},
			Execution: Execution{
				TradeIntervalDays:       5,
				LotSize:                 100,
				TradePct:                0.01,
				PositionCapPct:          0.10,
				ValuationSellPercentile: 70,
				TakeProfitPartial:       0.30,
				TakeProfitFull:          1.00,
				TakeProfitCooldownDays:  90,
				StopLoss:                0.10,
				StopLossCooldownDays:    30,
				StopBuy:                 0.03,
				MinPrice:                1,
			},
			Commission: Commission{
				Rate:        0.0002,
				MinFee:      5,
				StampDuty:   0.001,
				TransferFee: 0.00002,
			},
		},
		Report: Report{
			OutputDir: "logs",
			Prefix:    "dividend_value",
			Benchmarks: []Benchmark{
				{Name: "hs300", Code: domain.IndexCSI300},
				{Name: "zz500", Code: domain.IndexCSI500},
				{Name: "zz1000", Code: domain.IndexCSI1000},
			},
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads a .env file if present, decodes the YAML configuration file at
// path over Default(), applies environment variable overrides and validates
// the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("ASHARE_DB_TYPE"); v != "" {
		cfg.Database.Type = v
	}
	if v := os.Getenv("ASHARE_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ASHARE_START_DATE"); v != "" {
		cfg.Backtest.StartDate = v
	}
	if v := os.Getenv("ASHARE_END_DATE"); v != "" {
		cfg.Backtest.EndDate = v
	}
	if v := os.Getenv("ASHARE_INITIAL_CAPITAL"); v != "" {
		capital, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("ASHARE_INITIAL_CAPITAL %q: %w", v, err)
		}
		cfg.Backtest.InitialCapital = capital
	}
	return nil
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// Window parses the configured start and end dates.
func (b Backtest) Window() (start, end time.Time, err error) {
	if start, err = domain.ParseDate(b.StartDate); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date: %w", err)
	}
	if end, err = domain.ParseDate(b.EndDate); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date: %w", err)
	}
	return start, end, nil
}

// Validate reports every problem found in the configuration at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	b := c.Backtest
	start, end, err := b.Window()
	if err != nil {
		errs = append(errs, err)
	} else if end.Before(start) {
		add("end_date %s is before start_date %s", b.EndDate, b.StartDate)
	}

	switch b.Source {
	case "database", "parquet":
	default:
		add("backtest.source %q: want database or parquet", b.Source)
	}
	if b.Source == "database" {
		switch c.Database.Type {
		case "mysql", "postgres", "sqlite":
		default:
			add("database.type %q: want mysql, postgres or sqlite", c.Database.Type)
		}
	}

	if b.InitialCapital <= 0 {
		add("initial_capital must be positive, got %v", b.InitialCapital)
	}
	if b.Ranking.TopK <= 0 {
		add("ranking.top_k must be positive, got %d", b.Ranking.TopK)
	}
	if b.Selection.DividendYears < 0 {
		add("selection.dividend_years must not be negative, got %d", b.Selection.DividendYears)
	}

	ex := b.Execution
	if ex.LotSize <= 0 {
		add("execution.lot_size must be positive, got %d", ex.LotSize)
	}
	if ex.TradeIntervalDays < 0 {
		add("execution.trade_interval_days must not be negative, got %d", ex.TradeIntervalDays)
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"execution.trade_pct", ex.TradePct},
		{"execution.position_cap_pct", ex.PositionCapPct},
		{"execution.stop_loss", ex.StopLoss},
		{"execution.stop_buy", ex.StopBuy},
	} {
		if f.v <= 0 || f.v > 1 {
			add("%s must be in (0, 1], got %v", f.name, f.v)
		}
	}
	if ex.TakeProfitPartial <= 0 || ex.TakeProfitFull < ex.TakeProfitPartial {
		add("execution take-profit thresholds must satisfy 0 < partial <= full, got %v and %v",
			ex.TakeProfitPartial, ex.TakeProfitFull)
	}
	if ex.StopBuy > ex.StopLoss {
		add("execution.stop_buy %v must not exceed stop_loss %v", ex.StopBuy, ex.StopLoss)
	}

	cm := b.Commission
	if cm.Rate < 0 || cm.MinFee < 0 || cm.StampDuty < 0 || cm.TransferFee < 0 {
		add("commission rates must not be negative")
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}
