package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/mtms/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-m string   storage backend (memory, file, sqlite, postgres, s3)
//	-f string   snapshot file (file backend)
//	-q string   SQLite database path
//	-d string   PostgreSQL DSN
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket
//	-g string   S3 region
//	-e string   S3 base endpoint
//	-o string   S3 object key
//	-k string   session signing key
//	-t int      session lifetime, minutes
//	-w string   session file
//	-x string   password hasher (argon2id, bcrypt)
//	-r int      report window, days
//	-l string   log format (json, text, zap)
//	-a string   metrics listen address
//	-i string   legacy storage dump to import
//
// Only these flags are looked at; -c/-config is handled by parseJson.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{
		"-m", "-f", "-q", "-d", "-u", "-p", "-b", "-g", "-e", "-o",
		"-k", "-t", "-w", "-x", "-r", "-l", "-a", "-i",
	})

	fs := flag.NewFlagSet("mtms", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.StorageBackend, "m", config.StorageBackend, "storage backend")
	fs.StringVar(&config.DataFile, "f", config.DataFile, "snapshot file")
	fs.StringVar(&config.SQLitePath, "q", config.SQLitePath, "SQLite database path")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3ObjectKey, "o", config.S3ObjectKey, "S3 object key")
	fs.StringVar(&config.SecretKey, "k", config.SecretKey, "session signing key")
	sessionTTL := fs.Int("t", int(config.SessionTTL.Minutes()), "session lifetime (in minutes)")
	fs.StringVar(&config.SessionFile, "w", config.SessionFile, "session file")
	fs.StringVar(&config.PasswordHasher, "x", config.PasswordHasher, "password hasher")
	fs.IntVar(&config.ReportWindowDays, "r", config.ReportWindowDays, "report window (in days)")
	fs.StringVar(&config.LogFormat, "l", config.LogFormat, "log format")
	fs.StringVar(&config.MetricsAddr, "a", config.MetricsAddr, "metrics listen address")
	fs.StringVar(&config.LegacyImportFile, "i", config.LegacyImportFile, "legacy storage dump to import")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			config.SessionTTL = time.Duration(*sessionTTL) * time.Minute
		}
	})
	return nil
}
