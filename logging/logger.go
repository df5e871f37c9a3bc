package logging

import (
	"fmt"
	"os"
	"sync"
	"time"
)

type Level int

const (
	FATAL Level = iota
	ERROR
	WARNING
	INFO
	DEBUG
)

func (l Level) String() string {
	switch l {
	case FATAL:
		return "fatal"
	case ERROR:
		return "error"
	case WARNING:
		return "warn"
	case DEBUG:
		return "debug"
	default:
		return "info"
	}
}

type Record struct {
	Level     Level
	Component string
	Message   string
}

const clearline = "\x1b[2K"

// Logger tags all records with a component name. Loggers share a single
// broker goroutine so progress lines and records do not interleave.
type Logger struct {
	Component string
}

func NewLogger(component string) *Logger {
	return &Logger{component}
}

func (l *Logger) Print(args ...interface{}) {
	defaultBroker.records <- Record{INFO, l.Component, fmt.Sprint(args...)}
}

func (l *Logger) Printf(msg string, args ...interface{}) {
	defaultBroker.records <- Record{INFO, l.Component, fmt.Sprintf(msg, args...)}
}

func (l *Logger) Warnf(msg string, args ...interface{}) {
	defaultBroker.records <- Record{WARNING, l.Component, fmt.Sprintf(msg, args...)}
}

func (l *Logger) Errorf(msg string, args ...interface{}) {
	defaultBroker.records <- Record{ERROR, l.Component, fmt.Sprintf(msg, args...)}
}

func (l *Logger) Error(args ...interface{}) {
	defaultBroker.records <- Record{ERROR, l.Component, fmt.Sprint(args...)}
}

// StartStep logs msg as the current progress line and returns a handle
// for StopStep, which reports the duration of the step.
func (l *Logger) StartStep(msg string) string {
	defaultBroker.stepStart <- step{l.Component, msg}
	return msg
}

func (l *Logger) StopStep(msg string) {
	defaultBroker.stepStop <- step{l.Component, msg}
}

func Progress(msg string) {
	defaultBroker.progress <- msg
}

func SetQuiet(quiet bool) {
	defaultBroker.quiet = quiet
}

// Shutdown flushes pending records and stops the broker. Call before
// os.Exit, records logged after Shutdown are lost.
func Shutdown() {
	defaultBroker.quit <- true
	defaultBroker.wg.Wait()
}

type step struct {
	Component string
	Name      string
}

type broker struct {
	records      chan Record
	progress     chan string
	stepStart    chan step
	stepStop     chan step
	quit         chan bool
	wg           *sync.WaitGroup
	quiet        bool
	newline      bool
	lastProgress string
}

func (b *broker) loop() {
	started := make(map[step]time.Time)
For:
	for {
		select {
		case record := <-b.records:
			b.printRecord(record)
		case msg := <-b.progress:
			if !b.quiet {
				b.printProgress(msg)
			}
		case s := <-b.stepStart:
			started[s] = time.Now()
			if !b.quiet {
				b.printProgress(s.Name)
			}
		case s := <-b.stepStop:
			duration := time.Since(started[s])
			delete(started, s)
			b.printRecord(Record{INFO, s.Component, s.Name + " took: " + duration.String()})
		case <-b.quit:
			break For
		}
	}
Flush:
	for {
		select {
		case record := <-b.records:
			b.printRecord(record)
		default:
			break Flush
		}
	}
	if !b.newline {
		fmt.Fprintln(os.Stderr)
	}
	b.wg.Done()
}

func (b *broker) printPrefix() {
	fmt.Fprint(os.Stderr, "[", time.Now().Format(time.Stamp), "] ")
}

func (b *broker) printRecord(record Record) {
	if !b.newline {
		fmt.Fprint(os.Stderr, clearline)
	}
	b.printPrefix()
	if record.Component != "" {
		fmt.Fprint(os.Stderr, "[", record.Component, "] ")
	}
	if record.Level != INFO {
		fmt.Fprint(os.Stderr, "[", record.Level.String(), "] ")
	}
	fmt.Fprintln(os.Stderr, record.Message)
	b.newline = true
	if b.lastProgress != "" {
		b.printProgress(b.lastProgress)
	}
}

func (b *broker) printProgress(msg string) {
	b.printPrefix()
	fmt.Fprint(os.Stderr, msg, "\r")
	b.lastProgress = msg
	b.newline = false
}

var defaultBroker broker

func init() {
	defaultBroker = broker{
		records:   make(chan Record, 8),
		progress:  make(chan string),
		stepStart: make(chan step),
		stepStop:  make(chan step),
		quit:      make(chan bool),
		wg:        &sync.WaitGroup{},
	}
	defaultBroker.wg.Add(1)
	go defaultBroker.loop()
}
