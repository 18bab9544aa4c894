package config

import (
	"fmt"
	"os"
	"path"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Public  Public
	Private Private
}

// Public holds settings safe to expose to clients and logs.
// TTLs are stored as whole seconds and converted via the accessor methods.
type Public struct {
	BaseURL            string   `yaml:"base_url"` // verification links are built against this
	AccessTokenTTLSec  int      `yaml:"access_token_ttl"`
	RefreshTokenTTLSec int      `yaml:"refresh_token_ttl"`
	VerifyTokenTTLSec  int      `yaml:"verify_token_ttl"`
	DefaultRole        string   `yaml:"default_role"`
	SecureCookies      bool     `yaml:"secure_cookies"`
	LogLevel           string   `yaml:"log_level"`
	LogJSON            bool     `yaml:"log_json"`
	AllowedOrigins     []string `yaml:"allowed_origins"`
}

type Private struct {
	JwtKey string `yaml:"jwt_key"`
	Pg     Pg     `yaml:"pg"`
	Email  Email  `yaml:"email"`
}

type Pg struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Dbname   string `yaml:"dbname"`
}

type Email struct {
	SMTPServer string `yaml:"smtp_server"`
	SMTPPort   int    `yaml:"smtp_port"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	SenderName string `yaml:"sender_name"`
	Timeout    int    `yaml:"timeout"` // seconds
}

func (c *Config) JwtKey() string {
	return c.Private.JwtKey
}

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.Public.AccessTokenTTLSec) * time.Second
}

func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.Public.RefreshTokenTTLSec) * time.Second
}

func (c *Config) VerifyTokenTTL() time.Duration {
	return time.Duration(c.Public.VerifyTokenTTLSec) * time.Second
}

func mustLoadPath(configPath string, output interface{}) {
	// check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		panic("can't read config file")
	}

	err = yaml.Unmarshal(configFile, output)
	if err != nil {
		panic("can't unmarshal config file")
	}
}

func MustLoad(configFolder string) *Config {
	var public Public
	mustLoadPath(path.Join(configFolder, "public.yaml"), &public)

	var private Private
	mustLoadPath(path.Join(configFolder, "private.yaml"), &private)

	cfg := &Config{public, private}
	mustValidate(cfg)
	return cfg
}

func mustValidate(cfg *Config) {
	required := map[string]bool{
		"access_token_ttl":  cfg.Public.AccessTokenTTLSec > 0,
		"refresh_token_ttl": cfg.Public.RefreshTokenTTLSec > 0,
		"verify_token_ttl":  cfg.Public.VerifyTokenTTLSec > 0,
		"default_role":      cfg.Public.DefaultRole != "",
		"base_url":          cfg.Public.BaseURL != "",
		"jwt_key":           cfg.Private.JwtKey != "",
	}
	for field, ok := range required {
		if !ok {
			panic(fmt.Sprintf("missing required config field: %s", field))
		}
	}
}
