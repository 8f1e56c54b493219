package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ashare/internal/config"
	"ashare/internal/domain"
)

// TradeShards is the number of bao_stock_trade_N tables daily quotes are
// split across, keyed by the last digit of the code.
const TradeShards = 10

// ---------------------------------------------------------------------------
// Table models (bao_* schema)
// ---------------------------------------------------------------------------

type tradeDateRow struct {
	CalendarDate time.Time `gorm:"column:calendar_date;primaryKey"`
	IsTradingDay int       `gorm:"column:is_trading_day"`
}

func (tradeDateRow) TableName() string { return "bao_trade_date" }

type stockBasicRow struct {
	Code     string     `gorm:"column:code;primaryKey;size:16"`
	CodeName string     `gorm:"column:code_name"`
	IPODate  *time.Time `gorm:"column:ipo_date"`
	OutDate  *time.Time `gorm:"column:out_date"`
	Type     int        `gorm:"column:type"`   // 1 = stock
	Status   int        `gorm:"column:status"` // 1 = listed
}

func (stockBasicRow) TableName() string { return "bao_stock_basic" }

type stockTradeRow struct {
	Code             string    `gorm:"column:code;primaryKey;size:16"`
	Date             time.Time `gorm:"column:date;primaryKey"`
	Open             *float64  `gorm:"column:open"`
	Close            *float64  `gorm:"column:close"`
	TotalMarketValue *float64  `gorm:"column:total_market_value"`
	PeTTM            *float64  `gorm:"column:peTTM"`
	PsTTM            *float64  `gorm:"column:psTTM"`
	PePercent        *float64  `gorm:"column:pe_year_1_percent"`
	PsPercent        *float64  `gorm:"column:ps_year_1_percent"`
	DividendYield    *float64  `gorm:"column:stock_fenghong_percent"`
	IsST             int       `gorm:"column:isST"`
}

type dividendRow struct {
	ID              uint       `gorm:"primaryKey"`
	Code            string     `gorm:"column:code;index;size:16"`
	OperateDate     *time.Time `gorm:"column:dividOperateDate"`
	CashPsBeforeTax *float64   `gorm:"column:dividCashPsBeforeTax"`
	DataExist       int        `gorm:"column:data_exist"`
}

func (dividendRow) TableName() string { return "bao_stock_dividend" }

type indexTradeRow struct {
	Code  string    `gorm:"column:code;primaryKey;size:16"`
	Date  time.Time `gorm:"column:date;primaryKey"`
	Close float64   `gorm:"column:close"`
}

func (indexTradeRow) TableName() string { return "bao_nostock_trade" }

// shardTable names quote table i.
func shardTable(i int) string { return fmt.Sprintf("bao_stock_trade_%d", i) }

// tradeShard returns the quote table holding code, keyed by its last digit.
func tradeShard(code string) string {
	if n := len(code); n > 0 {
		if c := code[n-1]; c >= '0' && c <= '9' {
			return shardTable(int(c - '0'))
		}
	}
	return shardTable(0)
}

// ---------------------------------------------------------------------------
// GormSource
// ---------------------------------------------------------------------------

// GormSource reads the bao_* tables through GORM. MySQL DSNs need
// parseTime=true.
type GormSource struct {
	db  *gorm.DB
	log zerolog.Logger
}

// OpenGorm connects to the configured database.
func OpenGorm(cfg config.Database, log zerolog.Logger) (*GormSource, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres", "postgresql":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	logLevel := logger.Silent
	switch cfg.LogLevel {
	case "error":
		logLevel = logger.Error
	case "warn":
		logLevel = logger.Warn
	case "info":
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logLevel)})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Type, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return NewGormSource(db, log), nil
}

// NewGormSource wraps an open connection.
func NewGormSource(db *gorm.DB, log zerolog.Logger) *GormSource {
	return &GormSource{db: db, log: log.With().Str("component", "gorm").Logger()}
}

// DB exposes the underlying connection.
func (s *GormSource) DB() *gorm.DB { return s.db }

// Close releases the connection pool.
func (s *GormSource) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate creates the bao_* tables, including every quote shard. Production
// databases are populated by the ETL jobs; this is for local SQLite copies.
func (s *GormSource) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(&tradeDateRow{}, &stockBasicRow{}, &dividendRow{}, &indexTradeRow{}); err != nil {
		return fmt.Errorf("migrate bao tables: %w", err)
	}
	for i := 0; i < TradeShards; i++ {
		table := shardTable(i)
		if err := db.Table(table).AutoMigrate(&stockTradeRow{}); err != nil {
			return fmt.Errorf("migrate %s: %w", table, err)
		}
	}
	return nil
}

// TradingDays returns the open sessions in [start, end] in order.
func (s *GormSource) TradingDays(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	var rows []tradeDateRow
	err := s.db.WithContext(ctx).
		Where("is_trading_day = ? AND calendar_date BETWEEN ? AND ?", 1, start, end).
		Order("calendar_date").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query bao_trade_date: %w", err)
	}
	days := make([]time.Time, len(rows))
	for i, r := range rows {
		days[i] = domain.Day(r.CalendarDate)
	}
	return days, nil
}

// Securities returns every stock in bao_stock_basic. Rows with status other
// than 1 are marked delisted.
func (s *GormSource) Securities(ctx context.Context) ([]domain.Security, error) {
	var rows []stockBasicRow
	if err := s.db.WithContext(ctx).Where("type = ?", 1).Order("code").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query bao_stock_basic: %w", err)
	}
	out := make([]domain.Security, 0, len(rows))
	for _, r := range rows {
		sec := domain.Security{Code: r.Code, Name: r.CodeName, IsDelisted: r.Status != 1}
		if r.IPODate != nil {
			sec.ListingDate = domain.Day(*r.IPODate)
		}
		if r.OutDate != nil {
			d := domain.Day(*r.OutDate)
			sec.DelistedDate = &d
		}
		out = append(out, sec)
	}
	return out, nil
}

// Quotes reads [start, end] from all quote shards concurrently. Rows without
// a close are skipped. The result is ordered by date, then code.
func (s *GormSource) Quotes(ctx context.Context, start, end time.Time) ([]domain.DailyQuote, error) {
	shards := make([][]stockTradeRow, TradeShards)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < TradeShards; i++ {
		table := shardTable(i)
		g.Go(func() error {
			var rows []stockTradeRow
			err := s.db.WithContext(gctx).Table(table).
				Where("date BETWEEN ? AND ?", start, end).
				Find(&rows).Error
			if err != nil {
				return fmt.Errorf("query %s: %w", table, err)
			}
			shards[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []domain.DailyQuote
	skipped := 0
	for _, rows := range shards {
		for _, r := range rows {
			if r.Close == nil {
				skipped++
				continue
			}
			out = append(out, domain.DailyQuote{
				Code:             r.Code,
				Date:             domain.Day(r.Date),
				Close:            *r.Close,
				Open:             r.Open,
				TotalMarketValue: r.TotalMarketValue,
				PeTTM:            r.PeTTM,
				PsTTM:            r.PsTTM,
				PePercentile1Y:   r.PePercent,
				PsPercentile1Y:   r.PsPercent,
				DividendYield:    r.DividendYield,
				IsST:             r.IsST == 1,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Code < out[j].Code
	})
	if skipped > 0 {
		s.log.Warn().Int("rows", skipped).Msg("quotes without close skipped")
	}
	return out, nil
}

// Dividends returns confirmed cash dividends with an operate date in
// [start, end].
func (s *GormSource) Dividends(ctx context.Context, start, end time.Time) ([]domain.DividendRecord, error) {
	var rows []dividendRow
	err := s.db.WithContext(ctx).
		Where("data_exist = ? AND dividOperateDate BETWEEN ? AND ?", 1, start, end).
		Order("code").Order("dividOperateDate").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query bao_stock_dividend: %w", err)
	}
	out := make([]domain.DividendRecord, 0, len(rows))
	for _, r := range rows {
		if r.OperateDate == nil {
			continue
		}
		rec := domain.DividendRecord{Code: r.Code, Date: domain.Day(*r.OperateDate)}
		if r.CashPsBeforeTax != nil {
			rec.CashPerShare = *r.CashPsBeforeTax
		}
		out = append(out, rec)
	}
	return out, nil
}

// Benchmark returns the closes of an index in [start, end].
func (s *GormSource) Benchmark(ctx context.Context, indexCode string, start, end time.Time) ([]domain.BenchmarkPoint, error) {
	var rows []indexTradeRow
	err := s.db.WithContext(ctx).
		Where("code = ? AND date BETWEEN ? AND ?", indexCode, start, end).
		Order("date").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query bao_nostock_trade %s: %w", indexCode, err)
	}
	out := make([]domain.BenchmarkPoint, len(rows))
	for i, r := range rows {
		out[i] = domain.BenchmarkPoint{Date: domain.Day(r.Date), Close: r.Close}
	}
	return out, nil
}
