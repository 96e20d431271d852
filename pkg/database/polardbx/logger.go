package polardbx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	gormUtils "gorm.io/gorm/utils"

	"github.com/ninja0404/whale-signal/pkg/logger"
)

const defaultSlowThreshold = 500 * time.Millisecond

var _ gormLogger.Interface = &MysqlLogger{}

// MysqlLogger 把 gorm 的日志转到 zap，SQL 以结构化字段输出
type MysqlLogger struct {
	logger        *logger.Logger
	loggerLevel   gormLogger.LogLevel
	slowThreshold time.Duration
}

func NewMysqlLogger(l *logger.Logger, loggerLevel gormLogger.LogLevel) *MysqlLogger {
	return &MysqlLogger{
		logger:        l,
		loggerLevel:   loggerLevel,
		slowThreshold: defaultSlowThreshold,
	}
}

func (l *MysqlLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	newLogger := *l
	newLogger.loggerLevel = level
	return &newLogger
}

func (l *MysqlLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.loggerLevel >= gormLogger.Info {
		l.logger.Info(fmt.Sprintf(msg, data...))
	}
}

func (l *MysqlLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.loggerLevel >= gormLogger.Warn {
		l.logger.Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *MysqlLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.loggerLevel >= gormLogger.Error {
		l.logger.Error(fmt.Sprintf(msg, data...))
	}
}

func (l *MysqlLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.loggerLevel <= gormLogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	fields := func() []logger.Field {
		sql, rows := fc()
		return []logger.Field{
			logger.String("sql", sql),
			logger.Int64("rows", rows),
			logger.FieldCost(elapsed),
			logger.String("line", gormUtils.FileWithLineNum()),
		}
	}

	switch {
	case err != nil && l.loggerLevel >= gormLogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		l.logger.Error("sql error", append(fields(), logger.FieldErr(err))...)
	case elapsed > l.slowThreshold && l.loggerLevel >= gormLogger.Warn:
		l.logger.Warn("🐢 slow sql", fields()...)
	case l.loggerLevel == gormLogger.Info:
		l.logger.Info("sql", fields()...)
	}
}

func mappingLoggerLevel(level string, openDebug bool) gormLogger.LogLevel {
	if openDebug {
		return gormLogger.Info
	}
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "":
		return gormLogger.Warn
	case "error", "dpanic", "panic", "fatal":
		return gormLogger.Error
	default:
		return gormLogger.Silent
	}
}
