package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogLevel определяет уровни логирования
type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
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

// ParseLevel разбирает уровень из конфигурации ("debug", "INFO", ...)
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return TRACE, nil
	case "DEBUG":
		return DEBUG, nil
	case "INFO", "":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	}
	return INFO, fmt.Errorf("unknown log level %q", s)
}

// Options задаёт параметры создаваемых логгеров
type Options struct {
	Dir          string   // каталог файлов логов; пусто — без файла
	ConsoleLevel LogLevel // минимальный уровень для консоли
	FileLevel    LogLevel // минимальный уровень для файла
}

var (
	optsMu sync.RWMutex
	opts   = Options{Dir: defaultLogDir(), ConsoleLevel: INFO, FileLevel: DEBUG}
)

// defaultLogDir: без LAYOUTD_LOG_DIR логгеры пишут только в консоль,
// пока Configure не задаст каталог из конфигурации
func defaultLogDir() string {
	return os.Getenv("LAYOUTD_LOG_DIR")
}

// Configure меняет параметры для логгеров, создаваемых после вызова
func Configure(o Options) {
	optsMu.Lock()
	opts = o
	optsMu.Unlock()
}

func currentOptions() Options {
	optsMu.RLock()
	defer optsMu.RUnlock()
	return opts
}

// Logger пишет сообщения компонента в консоль и (опционально) в файл
type Logger struct {
	mu              sync.RWMutex
	component       string
	consoleLogger   *log.Logger
	fileLogger      *log.Logger
	file            *os.File
	minConsoleLevel LogLevel
	minFileLevel    LogLevel
}

// NewLogger создаёт логгер компонента с текущими Options.
// Файл логов называется <component>_<timestamp>.log.
func NewLogger(component string) (*Logger, error) {
	o := currentOptions()
	l := &Logger{
		component:       component,
		consoleLogger:   log.New(os.Stdout, "", log.LstdFlags),
		minConsoleLevel: o.ConsoleLevel,
		minFileLevel:    o.FileLevel,
	}

	if o.Dir == "" {
		return l, nil
	}

	if err := os.MkdirAll(o.Dir, 0755); err != nil {
		return nil, fmt.Errorf("ошибка создания директории %s: %w", o.Dir, err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := filepath.Join(o.Dir, fmt.Sprintf("%s_%s.log", component, timestamp))

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания файла логов: %w", err)
	}

	l.file = file
	l.fileLogger = log.New(file, "", log.LstdFlags|log.Lmicroseconds)
	return l, nil
}

// NewWriterLogger создаёт логгер, пишущий только в w (используется в тестах и CLI)
func NewWriterLogger(component string, w io.Writer, level LogLevel) *Logger {
	return &Logger{
		component:       component,
		consoleLogger:   log.New(w, "", 0),
		minConsoleLevel: level,
		minFileLevel:    ERROR + 1,
	}
}

// Component возвращает имя компонента
func (l *Logger) Component() string {
	return l.component
}

// SetLevels меняет пороги вывода
func (l *Logger) SetLevels(console, file LogLevel) {
	l.mu.Lock()
	l.minConsoleLevel = console
	l.minFileLevel = file
	l.mu.Unlock()
}

// Close закрывает файл логов
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.fileLogger = nil
	return err
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if l == nil {
		return
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	message := fmt.Sprintf("[%s] [%s] %s", level.String(), l.component, fmt.Sprintf(format, args...))

	if l.fileLogger != nil && level >= l.minFileLevel {
		l.fileLogger.Println(message)
	}
	if l.consoleLogger != nil && level >= l.minConsoleLevel {
		l.consoleLogger.Println(message)
	}
}

func (l *Logger) Trace(format string, args ...interface{}) { l.log(TRACE, format, args...) }
func (l *Logger) Debug(format string, args ...interface{}) { l.log(DEBUG, format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.log(INFO, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.log(WARN, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.log(ERROR, format, args...) }

// Глобальный логгер процесса
var (
	defaultMu     sync.RWMutex
	defaultLogger = &Logger{
		component:       "main",
		consoleLogger:   log.New(os.Stdout, "", log.LstdFlags),
		minConsoleLevel: INFO,
		minFileLevel:    ERROR + 1,
	}
)

// InitDefaultLogger создаёт глобальный логгер с файлом для компонента
func InitDefaultLogger(component string) error {
	logger, err := NewLogger(component)
	if err != nil {
		return err
	}
	defaultMu.Lock()
	defaultLogger = logger
	defaultMu.Unlock()
	return nil
}

// SetDefaultLogger подменяет глобальный логгер
func SetDefaultLogger(l *Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// Default возвращает глобальный логгер
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// CloseDefaultLogger закрывает файл глобального логгера
func CloseDefaultLogger() {
	if err := Default().Close(); err != nil {
		log.Printf("ошибка закрытия логгера: %v", err)
	}
}

func Trace(format string, args ...interface{}) { Default().log(TRACE, format, args...) }
func Debug(format string, args ...interface{}) { Default().log(DEBUG, format, args...) }
func Info(format string, args ...interface{})  { Default().log(INFO, format, args...) }
func Warn(format string, args ...interface{})  { Default().log(WARN, format, args...) }
func Error(format string, args ...interface{}) { Default().log(ERROR, format, args...) }
