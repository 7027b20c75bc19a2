package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type ILogger interface {
	Debug(module, message string, details map[string]interface{})
	Info(module, message string, details map[string]interface{})
	Warn(module, message string, details map[string]interface{})
	Error(module, message string, details map[string]interface{})
	Sync() error
}

type ZapLogger struct {
	logger *zap.Logger
}

// NewZapLogger writes JSON lines to a rotating file and mirrors everything to stdout.
// An empty logFilePath keeps only the console output.
func NewZapLogger(logFilePath string, isProd bool) *ZapLogger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "message"
	encoderConfig.LevelKey = "level"
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	jsonEncoder := zapcore.NewJSONEncoder(encoderConfig)

	var consoleEncoder zapcore.Encoder
	consoleLevel := zap.DebugLevel
	if isProd {
		consoleEncoder = jsonEncoder
		consoleLevel = zap.InfoLevel
	} else {
		consoleEncoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), consoleLevel),
	}

	if logFilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   logFilePath,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(jsonEncoder, zapcore.AddSync(rotator), zap.InfoLevel))
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	return &ZapLogger{logger: l}
}

// NewNop discards everything. Used by tests and library callers that do not log.
func NewNop() *ZapLogger {
	return &ZapLogger{logger: zap.NewNop()}
}

// FromZap wraps an existing zap logger.
func FromZap(l *zap.Logger) *ZapLogger {
	return &ZapLogger{logger: l.WithOptions(zap.AddCallerSkip(1))}
}

func (l *ZapLogger) Debug(module, message string, details map[string]interface{}) {
	l.logger.Debug(message, fields(module, details)...)
}

func (l *ZapLogger) Info(module, message string, details map[string]interface{}) {
	l.logger.Info(message, fields(module, details)...)
}

func (l *ZapLogger) Warn(module, message string, details map[string]interface{}) {
	l.logger.Warn(message, fields(module, details)...)
}

func (l *ZapLogger) Error(module, message string, details map[string]interface{}) {
	fs := fields(module, details)
	if err, ok := details["error"].(error); ok {
		fs = append(fs, zap.Error(err))
	}
	l.logger.Error(message, fs...)
}

func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}

func fields(module string, details map[string]interface{}) []zap.Field {
	if details == nil {
		details = make(map[string]interface{})
	}
	return []zap.Field{zap.String("module", module), zap.Any("details", details)}
}
