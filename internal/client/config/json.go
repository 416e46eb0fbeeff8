package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/shellkeeper/internal/flagx"
	"github.com/dmitrijs2005/shellkeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Absent fields
// keep the values set by earlier sources.
type JsonConfig struct {
	BackendURL     *string         `json:"backend_url"`
	PublicKey      *string         `json:"public_key"`
	ProfileTable   *string         `json:"profile_table"`
	StoragePath    *string         `json:"storage_path"`
	ProfileDSN     *string         `json:"profile_dsn"`
	LoginPath      *string         `json:"login_path"`
	RequestTimeout *timex.Duration `json:"request_timeout"`
	LogLevel       *string         `json:"log_level"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c or -config. Without either flag it does nothing. Panics on read or
// unmarshal errors.
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

	setString(&cfg.BackendURL, jc.BackendURL)
	setString(&cfg.PublicKey, jc.PublicKey)
	setString(&cfg.ProfileTable, jc.ProfileTable)
	setString(&cfg.StoragePath, jc.StoragePath)
	setString(&cfg.ProfileDSN, jc.ProfileDSN)
	setString(&cfg.LoginPath, jc.LoginPath)
	setString(&cfg.LogLevel, jc.LogLevel)
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = time.Duration(jc.RequestTimeout.Duration)
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
