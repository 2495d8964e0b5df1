package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/johnmichaeldizon211/APATECH1/document"
	"github.com/johnmichaeldizon211/APATECH1/facematch"
	"github.com/johnmichaeldizon211/APATECH1/kycflow"
	"github.com/johnmichaeldizon211/APATECH1/logging"
	"github.com/johnmichaeldizon211/APATECH1/metrics"
	"github.com/johnmichaeldizon211/APATECH1/otp"
	"github.com/johnmichaeldizon211/APATECH1/redis"

	"github.com/prometheus/client_golang/prometheus"
)

type SmtpConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
}

type SmsWebhookConfig struct {
	Url         string `json:"url"`
	BearerToken string `json:"bearer_token,omitempty"`
}

type Config struct {
	ServerConfig ServerConfig `json:"server_config"`

	LogLevel  string `json:"log_level,omitempty"`
	LogFormat string `json:"log_format,omitempty"`

	RemoteKycUrl   string   `json:"remote_kyc_url,omitempty"`
	OcrEngineUrl   string   `json:"ocr_engine_url"`
	FaceEngineUrls []string `json:"face_engine_urls"`

	TokenSecret string `json:"token_secret"`
	TokenIssuer string `json:"token_issuer"`

	OtpDemoMode      bool              `json:"otp_demo_mode,omitempty"`
	SmtpConfig       *SmtpConfig       `json:"smtp_config,omitempty"`
	SmsWebhookConfig *SmsWebhookConfig `json:"sms_webhook_config,omitempty"`

	StorageType         string                    `json:"storage_type"`
	RedisConfig         redis.RedisConfig         `json:"redis_config,omitempty"`
	RedisSentinelConfig redis.RedisSentinelConfig `json:"redis_sentinel_config,omitempty"`
}

func main() {
	configPath := flag.String("config", "", "Path for the config.json to use")
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "please provide a config path using the --config flag")
		os.Exit(1)
	}

	config, err := readConfigFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read config file: %v\n", err)
		os.Exit(1)
	}

	logging.InitLoggerWithFormat(config.LogLevel, config.LogFormat)
	slog.Info("Using config", "path", *configPath)
	slog.Info("Hosting on", "host", config.ServerConfig.Host, "port", config.ServerConfig.Port)

	if config.TokenSecret == "" {
		slog.Error("token_secret is required")
		os.Exit(1)
	}
	tokens := NewHmacTokenCreator(config.TokenSecret, config.TokenIssuer, kycflow.IDVerificationMaxAge)

	loaders := make([]facematch.EngineLoader, 0, len(config.FaceEngineUrls))
	for _, url := range config.FaceEngineUrls {
		loaders = append(loaders, facematch.HTTPEngineLoader{BaseURL: url})
	}
	matcher := facematch.NewMatcher(loaders...)

	analyzer := document.NewAnalyzer(document.NewHTTPOCREngine(config.OcrEngineUrl), matcher)

	var remote RemoteVerifier
	if config.RemoteKycUrl != "" {
		remote = NewRemoteKycClient(config.RemoteKycUrl)
	} else {
		slog.Warn("No remote KYC authority configured, every verdict will be decided locally")
	}

	orchestrator := NewVerificationOrchestrator(remote, analyzer, matcher, tokens)

	drafts, bookings, err := createStores(&config)
	if err != nil {
		slog.Error("failed to instantiate draft storage", "error", err)
		os.Exit(1)
	}
	machine := kycflow.NewMachine(drafts, bookings, orchestrator)

	sender := &otp.Sender{DemoMode: config.OtpDemoMode}
	if config.SmtpConfig != nil {
		sender.Email = &otp.SMTPChannel{
			Host:     config.SmtpConfig.Host,
			Port:     config.SmtpConfig.Port,
			Username: config.SmtpConfig.Username,
			Password: config.SmtpConfig.Password,
			From:     config.SmtpConfig.From,
		}
	}
	if config.SmsWebhookConfig != nil {
		sender.SMS = otp.NewSMSWebhookChannel(config.SmsWebhookConfig.Url, config.SmsWebhookConfig.BearerToken)
	}

	state := &ServerState{
		orchestrator: orchestrator,
		machine:      machine,
		otpManager:   otp.NewManager(),
		otpSender:    sender,
		accounts:     NewInMemoryAccountStore(),
		metrics:      metrics.New(prometheus.DefaultRegisterer),
		remote:       remote,
	}

	server, err := NewServer(state, config.ServerConfig)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	if err := server.ListenAndServe(); err != nil {
		slog.Error("failed to listen and serve", "error", err)
		os.Exit(1)
	}
}

func readConfigFile(path string) (Config, error) {
	configBytes, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var config Config
	if err := json.Unmarshal(configBytes, &config); err != nil {
		return Config{}, err
	}
	return config, nil
}

func createStores(config *Config) (kycflow.DraftStore, kycflow.BookingStore, error) {
	if config.StorageType == "redis" {
		slog.Info("Using redis draft storage")
		client, err := redis.NewRedisClient(&config.RedisConfig)
		if err != nil {
			return nil, nil, err
		}
		namespace := config.RedisConfig.Namespace
		return kycflow.NewRedisDraftStore(client, namespace), kycflow.NewRedisBookingStore(client, namespace), nil
	}
	if config.StorageType == "redis_sentinel" {
		slog.Info("Using redis sentinel draft storage")
		client, err := redis.NewRedisSentinelClient(&config.RedisSentinelConfig)
		if err != nil {
			return nil, nil, err
		}
		namespace := config.RedisSentinelConfig.Namespace
		return kycflow.NewRedisDraftStore(client, namespace), kycflow.NewRedisBookingStore(client, namespace), nil
	}
	if config.StorageType == "memory" {
		slog.Info("Using in memory draft storage")
		return kycflow.NewInMemoryDraftStore(), kycflow.NewInMemoryBookingStore(), nil
	}
	return nil, nil, fmt.Errorf("%v is not a valid storage type", config.StorageType)
}
