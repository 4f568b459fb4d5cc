package logging

import (
	"fmt"
	"sync"

	smithylogging "github.com/aws/smithy-go/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Well-known channel names.
const (
	ChannelAWSSDK   = "aws.sdk"
	ChannelAzureSDK = "azure.sdk"
)

// Record is a single entry travelling through a Channel. Message is a printf
// template, Args its positional arguments and Fields the keyword arguments.
// Filters may rewrite Args and Fields in place.
type Record struct {
	Level   zapcore.Level
	Message string
	Args    []interface{}
	Fields  map[string]interface{}
}

// Filter inspects a record before it is written. Returning false drops it.
type Filter func(rec *Record) bool

// FilterID identifies an installed filter.
type FilterID uint64

type installedFilter struct {
	id FilterID
	fn Filter
}

// Channel is a named, process-wide log channel with a filter chain, the
// place SDK-level request/response logging is routed through. Channels are
// obtained with GetChannel and live for the whole process.
type Channel struct {
	name string

	mu      sync.RWMutex
	filters []installedFilter
	nextID  FilterID
	out     *Logger
}

var (
	channelsMu sync.Mutex
	channels   = map[string]*Channel{}
)

// GetChannel returns the channel registered under name, creating it on first
// use. Repeated calls return the same channel.
func GetChannel(name string) *Channel {
	channelsMu.Lock()
	defer channelsMu.Unlock()

	if c, ok := channels[name]; ok {
		return c
	}
	c := &Channel{name: name}
	channels[name] = c
	return c
}

// Name returns the channel name.
func (c *Channel) Name() string {
	return c.name
}

// SetOutput directs the channel's records to l. Until called, records go to
// Default().
func (c *Channel) SetOutput(l *Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = l
}

// AddFilter appends f to the filter chain.
func (c *Channel) AddFilter(f Filter) FilterID {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	c.filters = append(c.filters, installedFilter{id: c.nextID, fn: f})
	return c.nextID
}

// RemoveFilter removes the filter with the given id. Unknown ids are ignored.
func (c *Channel) RemoveFilter(id FilterID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, f := range c.filters {
		if f.id == id {
			c.filters = append(c.filters[:i:i], c.filters[i+1:]...)
			return
		}
	}
}

// Install adds f and returns a release func that removes exactly this
// installation. Release is safe to call more than once, so callers can
// write:
//
//	release := ch.Install(logging.SecretsFilter)
//	defer release()
func (c *Channel) Install(f Filter) (release func()) {
	id := c.AddFilter(f)
	var once sync.Once
	return func() {
		once.Do(func() { c.RemoveFilter(id) })
	}
}

// FilterCount returns the number of installed filters.
func (c *Channel) FilterCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.filters)
}

// Logf sends a printf-style record through the channel.
func (c *Channel) Logf(level zapcore.Level, format string, args ...interface{}) {
	c.Log(Record{Level: level, Message: format, Args: args})
}

// Log runs rec through the filter chain and writes it if no filter dropped
// it.
func (c *Channel) Log(rec Record) {
	c.mu.RLock()
	filters := make([]installedFilter, len(c.filters))
	copy(filters, c.filters)
	out := c.out
	c.mu.RUnlock()

	for _, f := range filters {
		if !f.fn(&rec) {
			return
		}
	}

	if out == nil {
		out = Default()
	}
	z := out.Zap().Named(c.name)
	ce := z.Check(rec.Level, rec.render())
	if ce == nil {
		return
	}
	fields := make([]zap.Field, 0, len(rec.Fields))
	for key, value := range rec.Fields {
		fields = append(fields, zap.Any(key, value))
	}
	ce.Write(fields...)
}

func (r Record) render() string {
	if len(r.Args) == 0 {
		return r.Message
	}
	return fmt.Sprintf(r.Message, r.Args...)
}

// SmithyLogger adapts the channel to the AWS SDK logger interface, so SDK
// clients configured with it log through the channel's filters.
func (c *Channel) SmithyLogger() smithylogging.Logger {
	return smithyLogger{channel: c}
}

type smithyLogger struct {
	channel *Channel
}

func (s smithyLogger) Logf(classification smithylogging.Classification, format string, v ...interface{}) {
	level := zapcore.DebugLevel
	if classification == smithylogging.Warn {
		level = zapcore.WarnLevel
	}
	s.channel.Logf(level, format, v...)
}
