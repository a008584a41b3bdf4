package internal

import (
	"fmt"
	"github.com/sirupsen/logrus"
	"sync"
	"time"
)

type Importance string

const (
	Info    Importance = " "
	Warning Importance = "?"
	Error   Importance = "!"
	Raw     Importance = "-"
)

type Logger struct {
	database    Database
	location    *time.Location
	debugMode   bool
	output      *logrus.Entry
	writer      chan *LogEvent
	done        chan struct{}
	closeOnce   sync.Once
	// mutex guards database and debugMode, writerMutex guards the writer channel
	mutex       sync.RWMutex
	writerMutex sync.RWMutex
}

type LogEvent struct {
	Importance Importance
	Message    *FeatureLogMessage
}

func NewLogger(chargePointId string, location *time.Location) *Logger {
	if location == nil {
		location = time.UTC
	}
	base := logrus.New()
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger := &Logger{
		location: location,
		output:   base.WithField("cp", chargePointId),
		writer:   make(chan *LogEvent, 100),
		done:     make(chan struct{}),
	}
	go logger.startWriter(logger.writer)
	return logger
}

// startWriter owns its channel; Close clears the field without racing the loop
func (l *Logger) startWriter(writer <-chan *LogEvent) {
	defer close(l.done)
	for event := range writer {
		message := event.Message
		l.logLine(event.Importance, message)

		if database := l.getDatabase(); database != nil {
			if err := database.WriteLogMessage(message); err != nil {
				l.output.WithError(err).Error("write log to database failed")
			}
		}
	}
}

// Close stops accepting events and waits until the queued ones are written
func (l *Logger) Close() {
	l.closeOnce.Do(func() {
		l.writerMutex.Lock()
		close(l.writer)
		l.writer = nil
		l.writerMutex.Unlock()
		<-l.done
	})
}

func (l *Logger) SetDebugMode(debugMode bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.debugMode = debugMode
	if debugMode {
		l.output.Logger.SetLevel(logrus.DebugLevel)
	}
}

func (l *Logger) SetDatabase(database Database) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.database = database
}

func (l *Logger) getDatabase() Database {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.database
}

func logTime(t time.Time) string {
	timeString := fmt.Sprintf("%d-%02d-%02d %02d:%02d:%02d", t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
	return timeString
}

func (l *Logger) FeatureEvent(feature, id, text string) {
	l.logEvent(Info, l.newFeatureLogMessage(feature, id, text))
}

func (l *Logger) logEvent(importance Importance, message *FeatureLogMessage) {
	if message.ChargePointId == "" {
		message.ChargePointId = "*"
	}
	message.Importance = string(importance)
	event := &LogEvent{
		Importance: importance,
		Message:    message,
	}
	l.writerMutex.RLock()
	defer l.writerMutex.RUnlock()
	if l.writer == nil {
		l.logLine(importance, message)
		return
	}
	l.writer <- event
}

func (l *Logger) Debug(text string) {
	l.logEvent(Info, l.newFeatureLogMessage("info", "", text))
}

func (l *Logger) Warn(text string) {
	l.logEvent(Warning, l.newFeatureLogMessage("warning", "", text))
}

func (l *Logger) Error(text string, err error) {
	l.logEvent(Error, l.newFeatureLogMessage("error", "", fmt.Sprintf("%s: %s", text, err)))
}

func (l *Logger) RawDataEvent(direction, data string) {
	l.mutex.RLock()
	debug := l.debugMode
	l.mutex.RUnlock()
	if debug {
		l.logEvent(Raw, l.newFeatureLogMessage("raw", "", fmt.Sprintf("%s: %s", direction, data)))
	}
}

func (l *Logger) logLine(importance Importance, message *FeatureLogMessage) {
	entry := l.output.WithFields(logrus.Fields{
		"feature": message.Feature,
		"id":      message.ChargePointId,
	})
	switch importance {
	case Error:
		entry.Error(message.Text)
	case Warning:
		entry.Warn(message.Text)
	case Raw:
		entry.Debug(message.Text)
	default:
		entry.Info(message.Text)
	}
}

func (l *Logger) newFeatureLogMessage(feature, id, text string) *FeatureLogMessage {
	now := time.Now()
	return &FeatureLogMessage{
		Time:          logTime(now.In(l.location)),
		TimeStamp:     now.UTC(),
		Text:          text,
		Feature:       feature,
		ChargePointId: id,
	}
}
