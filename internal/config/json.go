package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/mtms/internal/flagx"
	"github.com/dmitrijs2005/mtms/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept
// both "12h" strings and integer nanoseconds (see timex.Duration).
// Fields left out of the file keep their previous value.
type JsonConfig struct {
	StorageBackend   string         `json:"storage_backend"`
	DataFile         string         `json:"data_file"`
	SQLitePath       string         `json:"sqlite_path"`
	DatabaseDSN      string         `json:"database_dsn"`
	S3RootUser       string         `json:"s3_root_user"`
	S3RootPassword   string         `json:"s3_root_password"`
	S3Bucket         string         `json:"s3_bucket"`
	S3Region         string         `json:"s3_region"`
	S3BaseEndpoint   string         `json:"s3_base_endpoint"`
	S3ObjectKey      string         `json:"s3_object_key"`
	SecretKey        string         `json:"secret_key"`
	SessionTTL       timex.Duration `json:"session_ttl"`
	SessionFile      string         `json:"session_file"`
	PasswordHasher   string         `json:"password_hasher"`
	ReportWindowDays int            `json:"report_window_days"`
	LogFormat        string         `json:"log_format"`
	MetricsAddr      string         `json:"metrics_addr"`
	LegacyImportFile string         `json:"legacy_import_file"`
}

// parseJson overlays values from the file named by -c/-config in args.
// Without such a flag nothing is loaded.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&config.StorageBackend, c.StorageBackend)
	setString(&config.DataFile, c.DataFile)
	setString(&config.SQLitePath, c.SQLitePath)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3ObjectKey, c.S3ObjectKey)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.SessionFile, c.SessionFile)
	setString(&config.PasswordHasher, c.PasswordHasher)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.MetricsAddr, c.MetricsAddr)
	setString(&config.LegacyImportFile, c.LegacyImportFile)
	if c.SessionTTL.Duration != 0 {
		config.SessionTTL = c.SessionTTL.Duration
	}
	if c.ReportWindowDays != 0 {
		config.ReportWindowDays = c.ReportWindowDays
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
