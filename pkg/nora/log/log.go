package log

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/norahq/nora/pkg/nora/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps logrus.Logger with helpers for the events nora records
type Logger struct {
	*logrus.Logger
	config *config.LoggingConfig
}

// Fields represents a map of fields for structured logging
type Fields map[string]interface{}

// New creates a new logger instance
func New(cfg *config.LoggingConfig) (*Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	default:
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}

	var output io.Writer
	switch cfg.Output {
	case "file":
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return nil, err
		}

		output = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
	default:
		output = os.Stdout
	}
	logger.SetOutput(output)

	return &Logger{
		Logger: logger,
		config: cfg,
	}, nil
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &Logger{Logger: logger, config: &config.LoggingConfig{Level: "panic"}}
}

// WithFields adds fields to log entry
func (l *Logger) WithFields(fields Fields) *logrus.Entry {
	return l.Logger.WithFields(logrus.Fields(fields))
}

// LogRequest records one served HTTP request
func (l *Logger) LogRequest(method, path, userAgent, clientIP string, statusCode int, duration time.Duration) {
	entry := l.WithFields(Fields{
		"method":      method,
		"path":        path,
		"user_agent":  userAgent,
		"client_ip":   clientIP,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
		"type":        "request",
	})

	switch {
	case statusCode >= 500:
		entry.Error("HTTP request")
	case duration > time.Second:
		entry.Warn("Slow HTTP request")
	default:
		entry.Info("HTTP request")
	}
}

func (l *Logger) LogAuth(userID uint, email, method string, success bool) {
	entry := l.WithFields(Fields{
		"user_id": userID,
		"email":   email,
		"method":  method,
		"success": success,
		"type":    "auth",
	})

	if success {
		entry.Info("Authentication event")
	} else {
		entry.Warn("Authentication failed")
	}
}

func (l *Logger) LogSecurity(event string, ip string, details map[string]interface{}) {
	fields := Fields{
		"event": event,
		"ip":    ip,
		"type":  "security",
	}

	for k, v := range details {
		fields[k] = v
	}

	l.WithFields(fields).Warn("Security event")
}

// LogNotification records enqueue and delivery outcomes of selection-link jobs
func (l *Logger) LogNotification(jobID uint, deliveryToken, channel, action string, err error) {
	entry := l.WithFields(Fields{
		"job_id":         jobID,
		"delivery_token": deliveryToken,
		"channel":        channel,
		"action":         action,
		"success":        err == nil,
		"type":           "notification",
	})

	if err != nil {
		entry.WithError(err).Error("Notification event failed")
		return
	}
	entry.Info("Notification event")
}

func (l *Logger) LogSystem(component string, action string, success bool, details map[string]interface{}) {
	fields := Fields{
		"component": component,
		"action":    action,
		"success":   success,
		"type":      "system",
	}

	for k, v := range details {
		fields[k] = v
	}

	entry := l.WithFields(fields)
	if success {
		entry.Info("System event")
	} else {
		entry.Error("System event failed")
	}
}
