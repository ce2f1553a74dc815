// Package runconfig loads the run command's tunables from a YAML file and
// watches the file for changes (gopkg.in/yaml.v3 for parsing, fsnotify for
// the watch). The run command applies only the alert threshold from a
// reloaded file; beam and K values are read once at startup.
package runconfig

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"timelyworlds/engine/model"
	"timelyworlds/engine/subscription"
)

// File is the on-disk shape of a run config file.
type File struct {
	Beam struct {
		Width           int     `yaml:"beam_width"`
		MinProb         float64 `yaml:"min_prob"`
		BranchProb      float64 `yaml:"branch_prob"`
		MaxDepth        uint32  `yaml:"max_depth"`
		DeltaMultiplier float64 `yaml:"delta_multiplier"`
		MinDelta        int64   `yaml:"min_delta"`
	} `yaml:"beam"`
	K              int   `yaml:"k"`
	AlertThreshold int64 `yaml:"alert_threshold"`
}

// Load parses path into a File.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("runconfig: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("runconfig: parse %s: %w", path, err)
	}
	return &f, nil
}

// ApplyBeam overrides cfg's beam parameters with any non-zero fields in f.
func (f *File) ApplyBeam(cfg *model.BeamConfig) {
	if f.Beam.Width > 0 {
		cfg.BeamWidth = f.Beam.Width
	}
	if f.Beam.MinProb > 0 {
		cfg.MinProb = f.Beam.MinProb
	}
	if f.Beam.BranchProb > 0 {
		cfg.BranchProb = f.Beam.BranchProb
	}
	if f.Beam.MaxDepth > 0 {
		cfg.MaxDepth = f.Beam.MaxDepth
	}
	if f.Beam.DeltaMultiplier > 0 {
		cfg.DeltaMultiplier = f.Beam.DeltaMultiplier
	}
	if f.Beam.MinDelta != 0 {
		cfg.MinDelta = f.Beam.MinDelta
	}
}

// LiveThreshold is a subscription.Predicate whose Value can be swapped at
// runtime by a config watcher without rebuilding the subscription engine.
type LiveThreshold struct {
	bits atomic.Int64
}

// NewLiveThreshold returns a LiveThreshold starting at initial.
func NewLiveThreshold(initial int64) *LiveThreshold {
	lt := &LiveThreshold{}
	lt.bits.Store(initial)
	return lt
}

func (lt *LiveThreshold) Match(_ uint64, value int64, _ model.Prob) bool {
	return value >= lt.bits.Load()
}

func (lt *LiveThreshold) Set(v int64) { lt.bits.Store(v) }

var _ subscription.Predicate = (*LiveThreshold)(nil)

// Watch re-reads path on every fsnotify write or create event and calls onChange with
// the parsed File. The returned watcher must be closed by the caller.
func Watch(path string, onChange func(*File)) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("runconfig: new watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("runconfig: watch %s: %w", path, err)
	}
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				f, err := Load(path)
				if err != nil {
					continue
				}
				onChange(f)
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return watcher, nil
}
