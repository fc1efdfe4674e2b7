package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/chatterbox/internal/flagx"
	"github.com/dmitrijs2005/chatterbox/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations
// accept "5m" style strings or integer nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP string `json:"endpoint_addr_http"`
	EndpointAddrGRPC string `json:"endpoint_addr_grpc"`
	DatabaseDSN      string `json:"database_dsn"`
	SecretKey        string `json:"secret_key"`
	ClientOrigin     string `json:"client_origin"`
	LogLevel         string `json:"log_level"`

	SessionValidityDuration    timex.Duration `json:"session_validity_duration"`
	MaxSessions                int            `json:"max_sessions"`
	OTPValidityDuration        timex.Duration `json:"otp_validity_duration"`
	OTPSweepInterval           timex.Duration `json:"otp_sweep_interval"`
	ResetGrantValidityDuration timex.Duration `json:"reset_grant_validity_duration"`

	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUser     string `json:"smtp_user"`
	SMTPPassword string `json:"smtp_password"`
	MailFrom     string `json:"mail_from"`

	S3RootUser     string `json:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`

	RedisAddr    string `json:"redis_addr"`
	KafkaBrokers string `json:"kafka_brokers"`
	KafkaTopic   string `json:"kafka_topic"`
	OTLPEndpoint string `json:"otlp_endpoint"`
}

// parseJson overlays values from the file named by -c/-config (or the
// CHATTERBOX_CONFIG variable). Only fields present with a non-zero value
// replace what is already in config. Unreadable or invalid files panic.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigPath("CHATTERBOX_CONFIG")

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.ClientOrigin, c.ClientOrigin)
	setString(&config.LogLevel, c.LogLevel)

	if c.SessionValidityDuration.Duration > 0 {
		config.SessionValidityDuration = c.SessionValidityDuration.Duration
	}
	if c.MaxSessions > 0 {
		config.MaxSessions = c.MaxSessions
	}
	if c.OTPValidityDuration.Duration > 0 {
		config.OTPValidityDuration = c.OTPValidityDuration.Duration
	}
	if c.OTPSweepInterval.Duration > 0 {
		config.OTPSweepInterval = c.OTPSweepInterval.Duration
	}
	if c.ResetGrantValidityDuration.Duration > 0 {
		config.ResetGrantValidityDuration = c.ResetGrantValidityDuration.Duration
	}

	setString(&config.SMTPHost, c.SMTPHost)
	if c.SMTPPort > 0 {
		config.SMTPPort = c.SMTPPort
	}
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.MailFrom, c.MailFrom)

	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.KafkaBrokers, c.KafkaBrokers)
	setString(&config.KafkaTopic, c.KafkaTopic)
	setString(&config.OTLPEndpoint, c.OTLPEndpoint)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
