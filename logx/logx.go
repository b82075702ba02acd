package logx

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
)

const (
	defaultLogFile   = "./logs/hashchain.log"
	defaultMaxSizeMB = 100
	defaultMaxAge    = 7
)

var (
	mu sync.RWMutex

	lumberjackLogger = &lumberjack.Logger{
		Filename: getLogFilename(),
		MaxSize:  getMaxSize(), // megabytes
		MaxAge:   getMaxAge(),  // days
	}

	logger = log.New(lumberjackLogger, "", log.Ldate|log.Ltime|log.Lmicroseconds)
)

// Options overrides the env-derived rotation settings
type Options struct {
	Filename  string
	MaxSizeMB int
	MaxAge    int
	Stdout    bool
}

// Configure replaces the package logger. Zero fields keep their current value.
func Configure(opts Options) {
	mu.Lock()
	defer mu.Unlock()

	lj := &lumberjack.Logger{
		Filename: lumberjackLogger.Filename,
		MaxSize:  lumberjackLogger.MaxSize,
		MaxAge:   lumberjackLogger.MaxAge,
	}
	if opts.Filename != "" {
		lj.Filename = opts.Filename
	}
	if opts.MaxSizeMB > 0 {
		lj.MaxSize = opts.MaxSizeMB
	}
	if opts.MaxAge > 0 {
		lj.MaxAge = opts.MaxAge
	}
	_ = lumberjackLogger.Close()
	lumberjackLogger = lj

	var out io.Writer = lj
	if opts.Stdout {
		out = io.MultiWriter(lj, os.Stdout)
	}
	logger = log.New(out, "", log.Ldate|log.Ltime|log.Lmicroseconds)
}

// SetOutput redirects log lines to w, bypassing file rotation
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds)
}

func getLogFilename() string {
	if logFile := os.Getenv("LOGFILE"); logFile != "" {
		return "./logs/" + logFile
	}
	return defaultLogFile
}

func getMaxSize() int {
	return intFromEnv("LOGFILE_MAX_SIZE_MB", defaultMaxSizeMB)
}

func getMaxAge() int {
	return intFromEnv("LOGFILE_MAX_AGE_DAYS", defaultMaxAge)
}

func intFromEnv(name string, def int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		panic("Invalid value for " + name + ": " + raw)
	}
	return v
}

func printf(format string, args ...interface{}) {
	mu.RLock()
	l := logger
	mu.RUnlock()
	l.Printf(format, args...)
}

func Info(category string, content ...interface{}) {
	message := fmt.Sprint(content...)
	coloredCategory := fmt.Sprintf("%s[INFO][%s]%s", ColorGreen, category, ColorReset)
	printf("%s: %s", coloredCategory, message)
}

func Error(category string, content ...interface{}) {
	message := fmt.Sprint(content...)
	coloredCategory := fmt.Sprintf("%s[ERROR][%s]%s", ColorRed, category, ColorReset)
	printf("%s: %s", coloredCategory, message)
}

func Warn(category string, content ...interface{}) {
	message := fmt.Sprint(content...)
	coloredCategory := fmt.Sprintf("%s[WARN][%s]%s", ColorYellow, category, ColorReset)
	printf("%s: %s", coloredCategory, message)
}

func Debug(category string, content ...interface{}) {
	message := fmt.Sprint(content...)
	coloredCategory := fmt.Sprintf("%s[DEBUG][%s]%s", ColorBlue, category, ColorReset)
	printf("%s: %s", coloredCategory, message)
}

// Errorf logs an error message and returns a formatted error
func Errorf(format string, args ...interface{}) error {
	err := fmt.Errorf(format, args...)
	Error("ERROR", err.Error())
	return err
}
