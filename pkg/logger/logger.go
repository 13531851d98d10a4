package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	Debugf(template string, args ...any)
	Infof(template string, args ...any)
	Warnf(template string, args ...any)
	Errorf(template string, args ...any)
	Fatalf(template string, args ...any)
}

type Config struct {
	Level string
	Mode  string // "production" or "development"
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

var logLevelMap = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
	"fatal": zapcore.FatalLevel,
}

func New(cfg Config) Logger {
	level, ok := logLevelMap[cfg.Level]
	if !ok {
		level = zapcore.InfoLevel
	}

	var encoderCfg zapcore.EncoderConfig
	var encoder zapcore.Encoder
	if cfg.Mode == "production" {
		encoderCfg = zap.NewProductionEncoderConfig()
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), zap.NewAtomicLevelAt(level))
	l := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	return &zapLogger{sugar: l.Sugar()}
}

// NewTest returns a console logger suitable for unit tests.
func NewTest() Logger {
	return New(Config{Level: "debug", Mode: "development"})
}

func (l *zapLogger) Debugf(template string, args ...any) { l.sugar.Debugf(template, args...) }
func (l *zapLogger) Infof(template string, args ...any)  { l.sugar.Infof(template, args...) }
func (l *zapLogger) Warnf(template string, args ...any)  { l.sugar.Warnf(template, args...) }
func (l *zapLogger) Errorf(template string, args ...any) { l.sugar.Errorf(template, args...) }
func (l *zapLogger) Fatalf(template string, args ...any) { l.sugar.Fatalf(template, args...) }
