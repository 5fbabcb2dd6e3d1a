package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel определяет уровни логирования
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger логгер компонента поверх zap
type Logger struct {
	sugar        *zap.SugaredLogger
	base         *zap.Logger
	consoleLevel zap.AtomicLevel
	file         *os.File
}

var (
	defaultMu     sync.RWMutex
	defaultLogger *Logger
)

// NewLogger создаёт логгер компонента: консоль (INFO+) и файл logs/<component>_<time>.log (DEBUG+).
func NewLogger(component string) (*Logger, error) {
	if err := os.MkdirAll("logs", 0755); err != nil {
		return nil, fmt.Errorf("ошибка создания директории logs: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := filepath.Join("logs", fmt.Sprintf("%s_%s.log", component, timestamp))

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания файла логов: %w", err)
	}

	consoleLevel := zap.NewAtomicLevelAt(zapcore.InfoLevel)

	consoleEnc := zap.NewDevelopmentEncoderConfig()
	consoleEnc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	fileEnc := zap.NewProductionEncoderConfig()
	fileEnc.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEnc), zapcore.Lock(os.Stdout), consoleLevel),
		zapcore.NewCore(zapcore.NewJSONEncoder(fileEnc), zapcore.AddSync(file), zapcore.DebugLevel),
	)

	base := zap.New(core).Named(component)
	return &Logger{
		sugar:        base.Sugar(),
		base:         base,
		consoleLevel: consoleLevel,
		file:         file,
	}, nil
}

// FromZap оборачивает готовый zap.Logger (тесты, встраивание)
func FromZap(l *zap.Logger) *Logger {
	return &Logger{
		sugar:        l.Sugar(),
		base:         l,
		consoleLevel: zap.NewAtomicLevelAt(zapcore.DebugLevel),
	}
}

// Named возвращает дочерний логгер подсистемы
func (l *Logger) Named(component string) *Logger {
	child := l.base.Named(component)
	return &Logger{sugar: child.Sugar(), base: child, consoleLevel: l.consoleLevel}
}

// SetLevel меняет минимальный уровень консольного вывода
func (l *Logger) SetLevel(level LogLevel) {
	l.consoleLevel.SetLevel(level.zapLevel())
}

// Zap возвращает нижележащий zap.Logger
func (l *Logger) Zap() *zap.Logger {
	return l.base
}

func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// Close сбрасывает буферы и закрывает файл
func (l *Logger) Close() error {
	_ = l.base.Sync()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// InitDefaultLogger инициализирует глобальный логгер процесса
func InitDefaultLogger(component string) error {
	logger, err := NewLogger(component)
	if err != nil {
		return err
	}
	UseLogger(logger)
	return nil
}

// UseLogger подменяет глобальный логгер
func UseLogger(logger *Logger) {
	defaultMu.Lock()
	defaultLogger = logger
	defaultMu.Unlock()
}

// CloseDefaultLogger закрывает глобальный логгер
func CloseDefaultLogger() {
	defaultMu.Lock()
	logger := defaultLogger
	defaultLogger = nil
	defaultMu.Unlock()

	if logger != nil {
		_ = logger.Close()
	}
}

// Default возвращает глобальный логгер или nil до инициализации
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// GetComponentLogger возвращает именованный дочерний логгер глобального.
// До инициализации возвращает логгер без вывода.
func GetComponentLogger(component string) *Logger {
	if logger := Default(); logger != nil {
		return logger.Named(component)
	}
	return FromZap(zap.NewNop())
}

// SetLevel меняет уровень консоли глобального логгера
func SetLevel(level LogLevel) {
	if logger := Default(); logger != nil {
		logger.SetLevel(level)
	}
}

// Debug логирует сообщение уровня DEBUG
func Debug(format string, args ...interface{}) {
	if logger := Default(); logger != nil {
		logger.sugar.Debugf(format, args...)
	}
}

// Info логирует сообщение уровня INFO
func Info(format string, args ...interface{}) {
	if logger := Default(); logger != nil {
		logger.sugar.Infof(format, args...)
	}
}

// Warn логирует сообщение уровня WARN
func Warn(format string, args ...interface{}) {
	if logger := Default(); logger != nil {
		logger.sugar.Warnf(format, args...)
	}
}

// Error логирует сообщение уровня ERROR
func Error(format string, args ...interface{}) {
	if logger := Default(); logger != nil {
		logger.sugar.Errorf(format, args...)
	}
}
