package utils

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Component logger names.
const (
	LogGossip    = "gossip"
	LogRPC       = "rpc"
	LogP2P       = "p2p"
	LogPolicy    = "policy"
	LogAdmission = "admission"
)

// LogxManager hands out one logger per component. Each writes to
// <base>/<component>/{info,error,debug}.log; info.log also carries warnings.
type LogxManager struct {
	basePath string
	level    zapcore.Level
	loggers  map[string]*zap.Logger
	sinks    []*lumberjack.Logger
	mu       sync.RWMutex
}

func NewManager(base string, level string) (*LogxManager, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	m := &LogxManager{basePath: base, level: lvl, loggers: make(map[string]*zap.Logger)}

	if err := os.MkdirAll(m.basePath, 0o744); err != nil {
		log.Printf("failed to create base log dir %s: %v", m.basePath, err)
	}
	return m, nil
}

func (m *LogxManager) Logger(component string) *zap.Logger {
	m.mu.RLock()
	if lg, ok := m.loggers[component]; ok {
		m.mu.RUnlock()
		return lg
	}
	m.mu.RUnlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	if lg, ok := m.loggers[component]; ok {
		return lg
	}
	dir := filepath.Join(m.basePath, component)
	if err := os.MkdirAll(dir, 0o744); err != nil {
		log.Printf("failed to create log dir %s: %v", dir, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewConsoleEncoder(encCfg)

	minLevel := m.level
	infoLv := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= minLevel && l >= zapcore.InfoLevel && l < zapcore.ErrorLevel
	})
	errLv := zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l >= zapcore.ErrorLevel })
	dbgLv := zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l == zapcore.DebugLevel && minLevel <= zapcore.DebugLevel })

	tee := zapcore.NewTee(
		zapcore.NewCore(encoder, m.openSink(filepath.Join(dir, "info.log")), infoLv),
		zapcore.NewCore(encoder, m.openSink(filepath.Join(dir, "error.log")), errLv),
		zapcore.NewCore(encoder, m.openSink(filepath.Join(dir, "debug.log")), dbgLv),
	)
	lg := zap.New(tee).Named(component)
	m.loggers[component] = lg
	return lg
}

func (m *LogxManager) openSink(path string) zapcore.WriteSyncer {
	sink := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    100, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
	m.sinks = append(m.sinks, sink)
	return zapcore.AddSync(sink)
}

// Close flushes every logger and closes the rotated files.
func (m *LogxManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, lg := range m.loggers {
		_ = lg.Sync()
	}
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
