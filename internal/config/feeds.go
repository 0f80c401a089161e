package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Feed is one community feed to poll.
type Feed struct {
	Name    string `yaml:"name"`
	Source  string `yaml:"source"`
	Limit   int    `yaml:"limit"`
	Enabled bool   `yaml:"enabled"`
}

// Job is one scheduled job entry.
type Job struct {
	Name     string `yaml:"name"`
	Schedule string `yaml:"schedule"` // cron format, e.g. "*/15 * * * *"
	Type     string `yaml:"type"`     // "ingest", "score", "paper.entry", "paper.update", "notify"
	Enabled  bool   `yaml:"enabled"`
}

// FeedsFile is the on-disk feeds and schedule configuration.
type FeedsFile struct {
	Feeds []Feed `yaml:"feeds"`
	Jobs  []Job  `yaml:"jobs"`
}

// LoadFeedsFile reads the yaml feeds/jobs file at path.
func LoadFeedsFile(path string) (*FeedsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feeds config %s: %w", path, err)
	}
	var f FeedsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse feeds config %s: %w", path, err)
	}
	for i := range f.Feeds {
		if f.Feeds[i].Source == "" {
			f.Feeds[i].Source = "reddit"
		}
	}
	return &f, nil
}

// EnabledFeeds filters the configured feeds down to the enabled ones. When
// no feeds file is configured, the env-derived feed list is used with the
// given defaults.
func (f *FeedsFile) EnabledFeeds() []Feed {
	var out []Feed
	for _, feed := range f.Feeds {
		if feed.Enabled {
			out = append(out, feed)
		}
	}
	return out
}
