package config

import (
	"errors"
	"fmt"
	"time"

	cli "github.com/spf13/pflag"
)

// Proxy holds the proxy server settings.
type Proxy struct {
	common

	Addr          string
	DefaultToken  string
	APIKey        string
	Model         string
	Socks         string
	Redis         string
	RedisPassword string
	RedisPrefix   string

	History    int
	Retention  time.Duration
	Sweep      string
	ReplyLimit time.Duration
	Metrics    bool
}

var proxyEnv = []binding{
	{"addr", "AISAM_ADDR"},
	{"default-token", "AISAM_DEFAULT_TOKEN"},
	{"api-key", "OPENAI_API_KEY"},
	{"model", "AISAM_MODEL"},
	{"socks", "AISAM_SOCKS"},
	{"redis", "AISAM_REDIS"},
	{"redis-password", "AISAM_REDIS_PASSWORD"},
	{"retention", "AISAM_RETENTION"},
	{"log", "AISAM_LOG"},
}

func LoadProxy(args []string) (Proxy, error) {
	var p Proxy

	set := cli.NewFlagSet("aisam-proxy", cli.ContinueOnError)
	p.common.register(set)
	set.StringVarP(&p.Addr, "addr", "a", ":8080", "Listen address")
	set.StringVarP(&p.DefaultToken, "default-token", "t", "", "Shared default token clients open sessions with")
	set.StringVar(&p.APIKey, "api-key", "", "OpenAI API key (or OPENAI_API_KEY)")
	set.StringVar(&p.Model, "model", "gpt-5-nano", "Chat model")
	set.StringVarP(&p.Socks, "socks", "p", "", "Socks proxy for the model backend (direct when empty)")
	set.StringVar(&p.Redis, "redis", "", "Redis address; sessions are kept in memory when empty")
	set.StringVar(&p.RedisPassword, "redis-password", "", "Redis password")
	set.StringVar(&p.RedisPrefix, "redis-prefix", "aisam", "Redis key prefix")
	set.IntVar(&p.History, "history", 9, "Messages of context sent to the model")
	set.DurationVar(&p.Retention, "retention", 7*24*time.Hour, "Drop sessions idle for longer than this")
	set.StringVar(&p.Sweep, "sweep", "@hourly", "Cron spec for the idle session sweep")
	set.DurationVar(&p.ReplyLimit, "reply-limit", 2*time.Minute, "Deadline for one model reply")
	set.BoolVar(&p.Metrics, "metrics", true, "Serve Prometheus metrics on /metrics")

	if err := load(set, &p.common, args, proxyEnv); err != nil {
		return Proxy{}, err
	}
	if err := p.Validate(); err != nil {
		return Proxy{}, err
	}
	return p, nil
}

func (p Proxy) Validate() error {
	var errs []error

	errs = append(errs, p.common.validate())
	if p.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if p.DefaultToken == "" {
		errs = append(errs, errors.New("default-token is required (or AISAM_DEFAULT_TOKEN)"))
	}
	if p.APIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY not set"))
	}
	if p.History < 1 {
		errs = append(errs, fmt.Errorf("history must be at least 1, got %d", p.History))
	}
	errs = append(errs, positive("retention", p.Retention), positive("reply-limit", p.ReplyLimit))

	return errors.Join(errs...)
}
