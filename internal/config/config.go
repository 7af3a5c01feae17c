package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`

	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // postgres | mysql
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	OpenAI struct {
		APIKey         string `yaml:"apiKey"`
		Model          string `yaml:"model"`
		TimeoutSeconds int    `yaml:"timeoutSeconds"`
	} `yaml:"openai"`

	Stripe struct {
		SecretKey          string `yaml:"secretKey"`
		WebhookSecret      string `yaml:"webhookSecret"`
		Currency           string `yaml:"currency"`
		UnitAmount         int64  `yaml:"unitAmount"`
		ProductName        string `yaml:"productName"`
		ProductDescription string `yaml:"productDescription"`
	} `yaml:"stripe"`

	TestPay struct {
		Secret string `yaml:"secret"`
	} `yaml:"testPay"`

	Archive struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"archive"`

	RateLimit struct {
		Capacity   int `yaml:"capacity"`
		RefillRate int `yaml:"refillRate"`
	} `yaml:"rateLimit"`
}

// Load reads config.yaml, overlays environment variables and applies defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		// no file is fine, everything can come from the environment
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// Secrets are expected from the environment in deployment; yaml values are
// only a local-dev convenience.
func (c *Config) applyEnv() {
	setString(&c.Environment, "APP_ENV")
	setString(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.OpenAI.Model, "OPENAI_MODEL")
	setString(&c.Stripe.SecretKey, "STRIPE_SECRET_KEY")
	setString(&c.Stripe.WebhookSecret, "STRIPE_WEBHOOK_SECRET")
	setString(&c.TestPay.Secret, "TEST_PAY_SECRET")
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Name, "DB_NAME")
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.Port == 0 {
		if c.Database.Driver == "mysql" {
			c.Database.Port = 3306
		} else {
			c.Database.Port = 5432
		}
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "require"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.OpenAI.TimeoutSeconds == 0 {
		c.OpenAI.TimeoutSeconds = 60
	}
	if c.Stripe.Currency == "" {
		c.Stripe.Currency = "eur"
	}
	if c.Stripe.UnitAmount == 0 {
		c.Stripe.UnitAmount = 2400
	}
	if c.Stripe.ProductName == "" {
		c.Stripe.ProductName = "ClientProof - Full analysis"
	}
	if c.Stripe.ProductDescription == "" {
		c.Stripe.ProductDescription = "Detailed report: red flags, recommendations, clauses, ready-to-send message"
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 30
	}
	if c.RateLimit.RefillRate == 0 {
		c.RateLimit.RefillRate = 5
	}
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

// Production gates the test-bypass path.
func (c *Config) Production() bool {
	return c.Environment == "production"
}

// Helper to build DSN Postgres
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// Helper to build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}
