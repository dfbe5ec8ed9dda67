package config

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Rules are the reconciliation settings that can change without a restart.
// Zero values leave the environment configuration in place.
type Rules struct {
	Priorities             []string    `yaml:"priorities"`
	MaxDailyHours          float64     `yaml:"maxDailyHours"`
	MaxWeeklyHours         float64     `yaml:"maxWeeklyHours"`
	HoursMismatchTolerance float64     `yaml:"hoursMismatchTolerance"`
	IncludeValidatedOnly   *bool       `yaml:"includeValidatedDataOnly"`
	BusinessDay            ClockWindow `yaml:"businessDay"`
	Payroll                PayrollRule `yaml:"payroll"`
}

type ClockWindow struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

type PayrollRule struct {
	DailyRegularHours  float64     `yaml:"dailyRegularHours"`
	WeeklyRegularHours float64     `yaml:"weeklyRegularHours"`
	Night              ClockWindow `yaml:"night"`
}

func ParseRules(data []byte) (*Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, err
	}
	if rules.MaxDailyHours < 0 || rules.MaxWeeklyHours < 0 || rules.HoursMismatchTolerance < 0 {
		return nil, fmt.Errorf("limits must not be negative")
	}
	if rules.Payroll.DailyRegularHours < 0 || rules.Payroll.WeeklyRegularHours < 0 {
		return nil, fmt.Errorf("payroll regular hours must not be negative")
	}
	return &rules, nil
}

func ReadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("parse rules %s: %w", path, err)
	}
	return rules, nil
}

// RulesLoader holds the current rules file contents and reloads it when the
// file changes. Callers can veto a reload through the check function.
type RulesLoader struct {
	path     string
	check    func(*Rules) error
	mu       sync.RWMutex
	current  *Rules
	onChange []func(*Rules)
}

func NewRulesLoader(path string, check func(*Rules) error) (*RulesLoader, error) {
	l := &RulesLoader{path: path, check: check}
	rules, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = rules
	return l, nil
}

func (l *RulesLoader) Rules() *Rules {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

func (l *RulesLoader) OnChange(fn func(*Rules)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch reloads the rules in the background on every write to the file.
// A file that fails to parse or check keeps the previous rules in force.
func (l *RulesLoader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("rules watcher: %w", err)
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("rules watcher add %s: %w", l.path, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					if _, err := l.Reload(); err != nil {
						slog.Warn("rules reload failed, keeping previous rules", "path", l.path, "err", err)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("rules watcher error", "path", l.path, "err", err)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }, nil
}

// Reload re-reads the file immediately.
func (l *RulesLoader) Reload() (*Rules, error) {
	rules, err := l.load()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = rules
	callbacks := make([]func(*Rules), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(rules)
	}
	slog.Info("rules loaded", "path", l.path)
	return rules, nil
}

func (l *RulesLoader) load() (*Rules, error) {
	rules, err := ReadRules(l.path)
	if err != nil {
		return nil, err
	}
	if l.check != nil {
		if err := l.check(rules); err != nil {
			return nil, fmt.Errorf("check rules %s: %w", l.path, err)
		}
	}
	return rules, nil
}
