package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process-wide logger. Unknown levels fall back to info.
func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

// CrawlerLogger writes one crawl run's log to logs/<site>/ and to the
// process logger at the same time.
type CrawlerLogger struct {
	file   *os.File
	logger *zap.SugaredLogger
}

func NewCrawlerLogger(base *zap.Logger, logsDir, siteName string) (*CrawlerLogger, error) {
	// Sanitize site name for file system
	sanitized := strings.ReplaceAll(strings.ToLower(siteName), " ", "_")
	sanitized = strings.ReplaceAll(sanitized, string(filepath.Separator), "_")
	sanitized = strings.ReplaceAll(sanitized, "/", "_")
	if strings.Trim(sanitized, ".") == "" {
		sanitized = "site"
	}

	siteDir := filepath.Join(logsDir, sanitized)
	if err := os.MkdirAll(siteDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logPath := filepath.Join(siteDir, fmt.Sprintf("crawl_%s_%s.log", sanitized, timestamp))

	file, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	fileCore := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(file), zapcore.DebugLevel)

	if base == nil {
		base = zap.NewNop()
	}
	logger := zap.New(zapcore.NewTee(base.Core(), fileCore)).With(zap.String("site", siteName))

	return &CrawlerLogger{
		file:   file,
		logger: logger.Sugar(),
	}, nil
}

func (cl *CrawlerLogger) LogInfo(format string, v ...interface{}) {
	cl.logger.Infof(format, v...)
}

func (cl *CrawlerLogger) LogError(format string, v ...interface{}) {
	cl.logger.Errorf(format, v...)
}

func (cl *CrawlerLogger) LogDebug(format string, v ...interface{}) {
	cl.logger.Debugf(format, v...)
}

// Path is the file this run is logged to.
func (cl *CrawlerLogger) Path() string {
	return cl.file.Name()
}

func (cl *CrawlerLogger) Close() error {
	_ = cl.logger.Sync()
	return cl.file.Close()
}
