package config

import (
	"errors"
	"fmt"
	"time"

	cli "github.com/spf13/pflag"
)

// Client holds the chat client settings.
type Client struct {
	common

	Server       string
	SubmitPath   string
	CheckPath    string
	DefaultToken string
	Socks        string

	KeyDir        string
	Redis         string
	RedisPassword string

	Speech  string
	Mute    bool
	Chime   string
	Width   int
	Height  int
	ATASCII bool

	PollInterval time.Duration
	Timeout      time.Duration
}

var clientEnv = []binding{
	{"server", "AISAM_SERVER"},
	{"default-token", "AISAM_DEFAULT_TOKEN"},
	{"socks", "AISAM_SOCKS"},
	{"key-dir", "AISAM_KEY_DIR"},
	{"redis", "AISAM_REDIS"},
	{"redis-password", "AISAM_REDIS_PASSWORD"},
	{"speech", "AISAM_SPEECH"},
	{"chime", "AISAM_CHIME"},
	{"width", "AISAM_WIDTH"},
	{"height", "AISAM_HEIGHT"},
	{"poll", "AISAM_POLL_INTERVAL"},
	{"timeout", "AISAM_TIMEOUT"},
	{"log", "AISAM_LOG"},
}

// LoadClient reads the client configuration from args (without the program
// name), the env file and the environment.
func LoadClient(args []string) (Client, error) {
	var c Client

	set := cli.NewFlagSet("aisam", cli.ContinueOnError)
	c.common.register(set)
	set.StringVarP(&c.Server, "server", "s", "http://localhost:8080", "Proxy base URL")
	set.StringVar(&c.SubmitPath, "submit-path", "/submit", "Submit endpoint path")
	set.StringVar(&c.CheckPath, "check-path", "/check", "Check endpoint path")
	set.StringVarP(&c.DefaultToken, "default-token", "t", "", "Shared default token used to open sessions")
	set.StringVarP(&c.Socks, "socks", "p", "", "Socks proxy address (direct when empty)")
	set.StringVar(&c.KeyDir, "key-dir", defaultKeyDir(), "Directory holding the session key")
	set.StringVar(&c.Redis, "redis", "", "Redis address; keeps the session key in Redis instead of key-dir")
	set.StringVar(&c.RedisPassword, "redis-password", "", "Redis password")
	set.StringVar(&c.Speech, "speech", "", `Speech device: "espeak", "espeak:<voice>" or a device path`)
	set.BoolVarP(&c.Mute, "mute", "m", false, "Start with speech off")
	set.StringVar(&c.Chime, "chime", "", "MP3 played when a reply arrives")
	set.IntVar(&c.Width, "width", 40, "Screen width in columns")
	set.IntVar(&c.Height, "height", 20, "Screen height in rows")
	set.BoolVar(&c.ATASCII, "atascii", false, "Use 0x9B as the line separator")
	set.DurationVar(&c.PollInterval, "poll", 6*time.Second, "Delay between reply checks")
	set.DurationVar(&c.Timeout, "timeout", 90*time.Second, "Give up on a reply after this long")

	if err := load(set, &c.common, args, clientEnv); err != nil {
		return Client{}, err
	}
	if err := c.Validate(); err != nil {
		return Client{}, err
	}
	return c, nil
}

func (c Client) Validate() error {
	var errs []error

	errs = append(errs, c.common.validate())
	errs = append(errs, validURL("server", c.Server))
	if c.DefaultToken == "" {
		errs = append(errs, errors.New("default-token is required (or AISAM_DEFAULT_TOKEN)"))
	}
	if len(c.DefaultToken) > 64 {
		errs = append(errs, fmt.Errorf("default-token is %d bytes, at most 64 allowed", len(c.DefaultToken)))
	}
	if c.Redis == "" && c.KeyDir == "" {
		errs = append(errs, errors.New("key-dir must not be empty"))
	}
	if c.Width < 2 || c.Height < 1 {
		errs = append(errs, fmt.Errorf("screen %dx%d is too small", c.Width, c.Height))
	}
	errs = append(errs, positive("poll", c.PollInterval), positive("timeout", c.Timeout))

	return errors.Join(errs...)
}

func (c Client) SubmitURL() string { return joinURL(c.Server, c.SubmitPath) }
func (c Client) CheckURL() string  { return joinURL(c.Server, c.CheckPath) }

// EOL is the line separator replies are transliterated to.
func (c Client) EOL() byte {
	if c.ATASCII {
		return 0x9B
	}
	return '\n'
}
