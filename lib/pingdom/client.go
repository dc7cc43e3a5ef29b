package pingdom

import (
	"fmt"
	"time"

	"tap-pingdom/lib/telemetry"

	"github.com/go-resty/resty/v2"
)

const DefaultBaseURL = "https://api.pingdom.com/api/3.1"

const Version = "0.2.0"

// NewClient builds the resty client every stream fetch goes through:
// bearer-token auth, fixed base url and a tap-identifying user agent.
func NewClient(cfg Config) *resty.Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}

	client := resty.New()
	client.SetBaseURL(base)
	client.SetAuthToken(cfg.Token)
	client.SetHeader("User-Agent", fmt.Sprintf("tap-pingdom/%s", Version))
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "pingdom/http")

	return client
}
