// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env-required:"true"`
	MigrationsPath          string `yaml:"migrations_path" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	RabbitMQ                `yaml:"rabbitmq"`
	JWTToken                `yaml:"jwttoken"`
	Wallet                  `yaml:"wallet"`
	PriceFeed               `yaml:"price_feed"`
	Billing                 `yaml:"billing"`
	Webhook                 `yaml:"webhook"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	// Ограничение частоты выставления счетов: запросов в секунду и размер всплеска.
	InvoiceRate  float64 `yaml:"invoice_rate" env-default:"5"`
	InvoiceBurst int     `yaml:"invoice_burst" env-default:"10"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// RabbitMQ структура для подключения к очереди задач провижининга
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// JWTToken структура для проверки jwt-токенов, выданных сервисом авторизации
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env-required:"true"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// Wallet структура с базовым адресом кошелька, на который приходят все оплаты
type Wallet struct {
	BaseAddress string `yaml:"base_address" env-required:"true"`
}

// PriceFeed структура для настройки внешнего источника курса
type PriceFeed struct {
	URL         string        `yaml:"url" env-default:"https://api.coingecko.com/api/v3/simple/price"`
	CoinID      string        `yaml:"coin_id" env-default:"monero"`
	Currency    string        `yaml:"currency" env-default:"usd"`
	TimeoutFeed time.Duration `yaml:"timeout" env-default:"10s"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
}

// Billing структура с параметрами выставления счетов
type Billing struct {
	DefaultCouponID   int64 `yaml:"default_coupon_id" env-default:"1"`
	PaymentIDAttempts int   `yaml:"payment_id_attempts" env-default:"5"`
}

// Webhook структура с секретом для проверки подтверждений оплаты
type Webhook struct {
	WebhookSecret string `yaml:"secret"`
}

// MustLoad функция для загрузки конфига, путь берётся из переменной окружения CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"MigrationsPath: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"Wallet:\n"+
			"  BaseAddress: %s\n"+
			"PriceFeed:\n"+
			"  URL: %s\n"+
			"  Pair: %s/%s\n"+
			"  CacheTTL: %s\n"+
			"Billing:\n"+
			"  DefaultCouponID: %d\n"+
			"  PaymentIDAttempts: %d\n",
		c.Env,
		c.MigrationsPath,
		c.AddressRedis,
		c.DB,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.BaseAddress,
		c.URL,
		c.CoinID,
		c.Currency,
		c.CacheTTL,
		c.DefaultCouponID,
		c.PaymentIDAttempts,
	)
}
