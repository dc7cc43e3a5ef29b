package pingdom

import (
	"fmt"
	"time"
)

// Config is the tap configuration, usually read from config.json5 (with
// the token supplied via config.local.json5).
type Config struct {
	// API token for Pingdom. Required.
	Token string `json:"token"`
	// Earliest datetime to get data from, ISO-8601. Applies to the
	// streams with a time-based replication key.
	StartDate string `json:"start_date"`
	// Overrides the production API url, used by tests.
	BaseURL string `json:"base_url"`
	// Path (or libsql url) of the bookmark database. Optional; without
	// it every sync starts over from start_date.
	StateFile string `json:"state"`
}

func (c Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("config: token is required")
	}
	if _, err := c.StartTimestamp(); err != nil {
		return err
	}
	return nil
}

// StartTimestamp converts start_date to the Unix-seconds `from` filter
// the API expects. Zero means no filter was configured.
func (c Config) StartTimestamp() (int64, error) {
	if c.StartDate == "" {
		return 0, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		t, err := time.Parse(layout, c.StartDate)
		if err == nil {
			return t.Unix(), nil
		}
	}
	return 0, fmt.Errorf("config: cannot parse start_date %q", c.StartDate)
}
