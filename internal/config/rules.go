package config

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Level is one rung of the XP ladder.
type Level struct {
	Title string `yaml:"title"`
	MinXP int    `yaml:"min_xp"`
}

// Rules holds the note category map and the XP level ladder. Both are
// presentation-level tuning, so they live in a YAML file that can be
// edited without a redeploy.
type Rules struct {
	Categories      map[string]string `yaml:"categories"` // category name -> emoji icon
	DefaultCategory string            `yaml:"default_category"`
	Levels          []Level           `yaml:"levels"`
}

// DefaultRules returns the built-in rule set, used when no rules file exists.
func DefaultRules() *Rules {
	return &Rules{
		Categories: map[string]string{
			"Task":     "✅",
			"Meeting":  "🤝",
			"Idea":     "💡",
			"Purchase": "🛒",
			"Thought":  "🤔",
			"Link":     "🔗",
			"Quote":    "💬",
		},
		DefaultCategory: "Thought",
		Levels: []Level{
			{Title: "🌱 Novice", MinXP: 0},
			{Title: "🗡️ Apprentice", MinXP: 100},
			{Title: "🛡️ Adventurer", MinXP: 250},
			{Title: "⚔️ Warrior", MinXP: 500},
			{Title: "🏹 Veteran", MinXP: 1000},
			{Title: "🔮 Master", MinXP: 2000},
			{Title: "🐉 Grandmaster", MinXP: 3500},
			{Title: "👑 Legend", MinXP: 5500},
		},
	}
}

// Icon returns the emoji for a category, or the default category's icon
// when the category is unknown.
func (r *Rules) Icon(category string) string {
	if icon, ok := r.Categories[category]; ok {
		return icon
	}
	if icon, ok := r.Categories[r.DefaultCategory]; ok {
		return icon
	}
	return "📄"
}

// Normalize maps an arbitrary category string onto the configured set,
// falling back to the default category.
func (r *Rules) Normalize(category string) string {
	if _, ok := r.Categories[category]; ok {
		return category
	}
	return r.DefaultCategory
}

// LevelFor returns the level title for an XP total, its 1-based index, and
// the XP threshold of the next level (0 when already at the top).
func (r *Rules) LevelFor(xp int) (title string, index int, nextThreshold int) {
	levels := r.Levels
	if len(levels) == 0 {
		return "", 1, 0
	}
	sorted := make([]Level, len(levels))
	copy(sorted, levels)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinXP < sorted[j].MinXP })

	title, index = sorted[0].Title, 1
	for i, lvl := range sorted {
		if xp >= lvl.MinXP {
			title, index = lvl.Title, i+1
		} else {
			return title, index, lvl.MinXP
		}
	}
	return title, index, 0
}

// RuleStore serves the current rule set and hot-reloads it when the file
// changes on disk.
type RuleStore struct {
	mu    sync.RWMutex
	rules *Rules
	path  string
}

// LoadRules reads the rules file, falling back to defaults when the file is
// absent. A malformed file is an error; silently running with defaults after
// a bad edit would be confusing.
func LoadRules(path string) (*RuleStore, error) {
	store := &RuleStore{rules: DefaultRules(), path: path}
	if path == "" {
		return store, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return store, nil
		}
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	rules, err := parseRules(data)
	if err != nil {
		return nil, err
	}
	store.rules = rules
	return store, nil
}

func parseRules(data []byte) (*Rules, error) {
	rules := DefaultRules()
	if err := yaml.Unmarshal(data, rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules YAML: %w", err)
	}
	if rules.DefaultCategory == "" {
		rules.DefaultCategory = DefaultRules().DefaultCategory
	}
	if len(rules.Categories) == 0 {
		rules.Categories = DefaultRules().Categories
	}
	return rules, nil
}

// Current returns the active rule set.
func (s *RuleStore) Current() *Rules {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules
}

// Watch reloads the rule set whenever the file is written. Returns the
// watcher so the caller can close it on shutdown; a nil watcher means
// watching is disabled (no rules file configured).
func (s *RuleStore) Watch() (*fsnotify.Watcher, error) {
	if s.path == "" {
		return nil, nil
	}
	if _, err := os.Stat(s.path); err != nil {
		return nil, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create rules watcher: %w", err)
	}
	if err := watcher.Add(s.path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch rules file: %w", err)
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				data, err := os.ReadFile(s.path)
				if err != nil {
					slog.Warn("rules reload failed", "error", err)
					continue
				}
				rules, err := parseRules(data)
				if err != nil {
					slog.Warn("rules reload failed", "error", err)
					continue
				}
				s.mu.Lock()
				s.rules = rules
				s.mu.Unlock()
				slog.Info("rules reloaded", "path", s.path, "categories", len(rules.Categories))
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return watcher, nil
}
