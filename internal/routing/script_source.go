package routing

import (
	"bytes"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/robfig/cron/v3"

	"message-router/internal/common/errors"
	"message-router/internal/common/logging"
)

// Script is an immutable compiled snapshot of the route script
type Script struct {
	Program  *goja.Program
	Version  int64
	LoadedAt time.Time
	source   []byte
}

// ScriptSource owns the current Script. A cron job re-reads the file every
// refresh delay and swaps in a new snapshot when the content changed. A
// change that does not compile is logged and the previous snapshot stays.
type ScriptSource struct {
	location     string
	refreshDelay time.Duration
	current      atomic.Pointer[Script]
	reloadMu     sync.Mutex
	scheduler    *cron.Cron
	logger       logging.Logger
}

func NewScriptSource(location string, refreshDelay time.Duration, logger logging.Logger) (*ScriptSource, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	path, err := localPath(location)
	if err != nil {
		return nil, err
	}
	s := &ScriptSource{
		location:     path,
		refreshDelay: refreshDelay,
		logger:       logger.WithFields(logging.String("script", location)),
	}

	content, err := os.ReadFile(s.location)
	if err != nil {
		return nil, errors.ConfigError("failed to read route script " + location + ": " + err.Error())
	}
	script, err := compileScript(s.location, content, 1)
	if err != nil {
		return nil, errors.ConfigError("failed to compile route script " + location + ": " + err.Error())
	}
	s.current.Store(script)

	return s, nil
}

// Current returns the active snapshot. Callers keep using the value they got
// even if a reload happens meanwhile.
func (s *ScriptSource) Current() *Script {
	return s.current.Load()
}

// Reload re-reads the script and reports whether a new snapshot was installed
func (s *ScriptSource) Reload() (bool, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	content, err := os.ReadFile(s.location)
	if err != nil {
		return false, errors.InternalError("failed to read route script", err)
	}

	previous := s.current.Load()
	if bytes.Equal(previous.source, content) {
		return false, nil
	}

	script, err := compileScript(s.location, content, previous.Version+1)
	if err != nil {
		return false, errors.InternalError("route script does not compile, keeping version "+fmt.Sprint(previous.Version), err)
	}

	s.current.Store(script)
	s.logger.Info("Route script reloaded", logging.Int64("version", script.Version))
	return true, nil
}

// Start schedules the reload job. A non-positive refresh delay disables polling.
func (s *ScriptSource) Start() error {
	if s.refreshDelay <= 0 {
		s.logger.Info("Route script refresh disabled")
		return nil
	}

	scheduler := cron.New(
		cron.WithLogger(cronLogger{logger: s.logger}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger: s.logger})),
	)
	_, err := scheduler.AddFunc(fmt.Sprintf("@every %s", s.refreshDelay), func() {
		if _, err := s.Reload(); err != nil {
			s.logger.Error("Failed to reload route script", err)
		}
	})
	if err != nil {
		return errors.ConfigError("invalid script refresh delay: " + err.Error())
	}

	scheduler.Start()
	s.scheduler = scheduler
	return nil
}

// Stop cancels the reload job and waits for a running reload to finish
func (s *ScriptSource) Stop() {
	if s.scheduler == nil {
		return
	}
	<-s.scheduler.Stop().Done()
	s.scheduler = nil
}

func compileScript(name string, content []byte, version int64) (*Script, error) {
	program, err := goja.Compile(name, string(content), false)
	if err != nil {
		return nil, err
	}
	return &Script{
		Program:  program,
		Version:  version,
		LoadedAt: time.Now(),
		source:   content,
	}, nil
}

// cronLogger adapts the scheduler's key/value logging to our Logger
type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, cronFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, err, cronFields(keysAndValues)...)
}

func cronFields(keysAndValues []interface{}) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.Any(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return fields
}
