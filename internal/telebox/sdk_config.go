package telebox

const (
	DefaultBaseURL = "https://www.telebox.online"
)

// Config is the configuration for the Telebox API client.
type Config struct {
	BaseURL string // BaseURL is required
	Token   string // Token is required
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}

	if c.Token == "" {
		return ErrNoToken
	}

	return nil
}
