// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

// Config aggregates configuration for the application.
// Each field is owned by its respective concern.
type Config struct {
	Source  SourceConfig  `mapstructure:"source"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Workers WorkersConfig `mapstructure:"workers"`
}

// SourceConfig describes the bucket holding the rasters being catalogued.
type SourceConfig struct {
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
	BaseURL  string `mapstructure:"base_url"`
	Suffix   string `mapstructure:"suffix"`
}

// CatalogConfig describes the collection being maintained and where its
// JSON documents live on disk and remotely.
type CatalogConfig struct {
	ID          string    `mapstructure:"id"`
	Title       string    `mapstructure:"title"`
	Description string    `mapstructure:"description"`
	License     string    `mapstructure:"license"`
	RemoteURL   string    `mapstructure:"remote_url"`
	Bucket      string    `mapstructure:"bucket"`
	Region      string    `mapstructure:"region"`
	Endpoint    string    `mapstructure:"endpoint"`
	BBox        []float64 `mapstructure:"bbox"`
	DurableRoot string    `mapstructure:"durable_root"`
	TrialRoot   string    `mapstructure:"trial_root"`
}

// CacheConfig holds paths for state that persists between runs.
type CacheConfig struct {
	SnapshotDir  string `mapstructure:"snapshot_dir"`
	ValidationDB string `mapstructure:"validation_db"`
}

type WorkersConfig struct {
	Validate int `mapstructure:"validate"`
	Extract  int `mapstructure:"extract"`
}

func defaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			Region: "us-west-2",
			Suffix: ".tif",
		},
		Catalog: CatalogConfig{
			License:     "proprietary",
			DurableRoot: "catalog",
			TrialRoot:   "catalog-trial",
		},
		Cache: CacheConfig{
			SnapshotDir:  ".stacrunner",
			ValidationDB: ".stacrunner/validation.db",
		},
		Workers: WorkersConfig{
			Validate: 16,
			Extract:  32,
		},
	}
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "STACRUNNER" and the dot character
// in keys is replaced by an underscore. For example, "source.bucket" becomes
// "STACRUNNER_SOURCE_BUCKET".
func Load() (*Config, error) {
	cfg := defaultConfig()

	v := viper.New()
	v.SetConfigName("stacrunner")
	v.AddConfigPath(".")
	v.SetEnvPrefix("STACRUNNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.ReadInConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
