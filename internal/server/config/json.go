package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/shellkeeper/internal/flagx"
	"github.com/dmitrijs2005/shellkeeper/internal/timex"
)

// JsonConfig is the JSON file shape. Absent fields keep earlier values.
type JsonConfig struct {
	ListenAddr   *string         `json:"listen_addr"`
	Origin       *string         `json:"origin"`
	CachePrefix  *string         `json:"cache_prefix"`
	Version      *string         `json:"version"`
	Backend      *string         `json:"backend"`
	SQLitePath   *string         `json:"sqlite_path"`
	S3Bucket     *string         `json:"s3_bucket"`
	S3Region     *string         `json:"s3_region"`
	S3Endpoint   *string         `json:"s3_endpoint"`
	S3AccessKey  *string         `json:"s3_access_key"`
	S3SecretKey  *string         `json:"s3_secret_key"`
	FetchTimeout *timex.Duration `json:"fetch_timeout"`
	LogLevel     *string         `json:"log_level"`
	Essential    []string        `json:"essential"`
	Modules      []string        `json:"modules"`
}

// parseJson overlays Config with the JSON file named by -c or -config.
// Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ListenAddr, jc.ListenAddr)
	setString(&cfg.Origin, jc.Origin)
	setString(&cfg.CachePrefix, jc.CachePrefix)
	setString(&cfg.Version, jc.Version)
	setString(&cfg.Backend, jc.Backend)
	setString(&cfg.SQLitePath, jc.SQLitePath)
	setString(&cfg.S3Bucket, jc.S3Bucket)
	setString(&cfg.S3Region, jc.S3Region)
	setString(&cfg.S3Endpoint, jc.S3Endpoint)
	setString(&cfg.S3AccessKey, jc.S3AccessKey)
	setString(&cfg.S3SecretKey, jc.S3SecretKey)
	setString(&cfg.LogLevel, jc.LogLevel)
	if jc.FetchTimeout != nil {
		cfg.FetchTimeout = time.Duration(jc.FetchTimeout.Duration)
	}
	if jc.Essential != nil {
		cfg.Essential = jc.Essential
	}
	if jc.Modules != nil {
		cfg.Modules = jc.Modules
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
