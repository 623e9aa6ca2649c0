// Package config loads devicekit configuration from environment variables
// and .env files.
//
// Variables are read with github.com/caarlos0/env/v11, .env files with
// github.com/joho/godotenv. Every name carries DefaultPrefix plus a
// section prefix:
//
//	DEVICEKIT_DB_ROOT_PATH=/var/lib/devicekit/devices.zip
//	DEVICEKIT_DB_CACHE_SIZE=10000
//	DEVICEKIT_UPDATER_ENABLED=true
//	DEVICEKIT_UPDATER_SOURCE=s3://device-data/devices.zip
//	DEVICEKIT_UPDATER_INTERVAL=24h
//	DEVICEKIT_S3_REGION=eu-central-1
//	DEVICEKIT_LOG_LEVEL=debug
//
// Load parses and validates in one step:
//
//	cfg, err := config.Load(config.WithEnvFiles(".env"))
//
// Tests can pass an explicit environment instead of mutating the process:
//
//	cfg, err := config.Load(config.WithEnvironment(map[string]string{
//	    "DEVICEKIT_DB_ROOT_PATH": "testdata/devices.yaml",
//	}))
package config
