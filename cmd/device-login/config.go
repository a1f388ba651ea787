package main

import "time"

// Config holds CLI configuration loaded from environment variables.
type Config struct {
	AuthorityURL string        `envconfig:"AUTHORITY_URL" required:"true"`
	ClientID     string        `envconfig:"CLIENT_ID" required:"true"`
	Scopes       []string      `envconfig:"SCOPES" default:"openid,profile"`
	CachePath    string        `envconfig:"CACHE_PATH" default:""`
	RedisURL     string        `envconfig:"REDIS_URL" default:""`
	RedisKey     string        `envconfig:"REDIS_KEY" default:"device-login:token-cache"`
	HTTPTimeout  time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`
	Debug        bool          `envconfig:"DEBUG" default:"false"`
}
