/*
Copyright © 2025 Jayson Grace <jayson.e.grace@gmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/

// Package config loads pubami settings from defaults, an optional YAML file
// and the environment. Command line flags are layered on top by the CLI.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config represents the pubami configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	AWS       AWSConfig       `mapstructure:"aws"`
	RHSM      RHSMConfig      `mapstructure:"rhsm"`
	Push      PushConfig      `mapstructure:"push"`
	Delete    DeleteConfig    `mapstructure:"delete"`
	Collector CollectorConfig `mapstructure:"collector"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AWSConfig holds credentials and naming used for every region.
type AWSConfig struct {
	AccessID        string `mapstructure:"access_id"`
	SecretKey       string `mapstructure:"secret_key"`
	Profile         string `mapstructure:"profile"`
	ProviderName    string `mapstructure:"provider_name"`
	ContainerPrefix string `mapstructure:"container_prefix"`
}

// RHSMConfig holds the metadata service endpoint and client certificate.
type RHSMConfig struct {
	URL            string        `mapstructure:"url"`
	Cert           string        `mapstructure:"cert"`
	Key            string        `mapstructure:"key"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RequestThreads int           `mapstructure:"request_threads"`
}

// PushConfig holds the worker pool settings of the push task.
type PushConfig struct {
	Workers    int `mapstructure:"workers"`
	RetryWait  int `mapstructure:"retry_wait"`
	MaxRetries int `mapstructure:"max_retries"`
}

// DeleteConfig holds the worker pool settings of the delete task.
type DeleteConfig struct {
	Workers    int `mapstructure:"workers"`
	RetryWait  int `mapstructure:"retry_wait"`
	MaxRetries int `mapstructure:"max_retries"`
}

// CollectorConfig controls where task results are written.
type CollectorConfig struct {
	Dir    string `mapstructure:"dir"`
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
	Region string `mapstructure:"region"`
}

// RetryWaitDuration returns the push retry wait as a duration.
func (p PushConfig) RetryWaitDuration() time.Duration {
	return time.Duration(p.RetryWait) * time.Second
}

// RetryWaitDuration returns the delete retry wait as a duration.
func (d DeleteConfig) RetryWaitDuration() time.Duration {
	return time.Duration(d.RetryWait) * time.Second
}

// Load reads the configuration from the first config.yaml found in
// GetConfigDirs or the working directory. A missing file is not an error.
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, dir := range GetConfigDirs() {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific file path.
func LoadFromPath(path string) (*Config, error) {
	v := newViper()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	// PUBAMI_LOG_LEVEL, PUBAMI_RHSM_URL, ...
	v.SetEnvPrefix("PUBAMI")
	v.AutomaticEnv()
	bindEnvVars(v)
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "color")

	v.SetDefault("aws.provider_name", "AWS")
	v.SetDefault("aws.container_prefix", "redhat-cloudimg")

	v.SetDefault("rhsm.timeout", "60s")
	v.SetDefault("rhsm.max_retries", 3)
	v.SetDefault("rhsm.request_threads", 4)

	v.SetDefault("push.workers", 5)
	v.SetDefault("push.retry_wait", 30)
	v.SetDefault("push.max_retries", 4)

	v.SetDefault("delete.workers", 5)
	v.SetDefault("delete.retry_wait", 30)
	v.SetDefault("delete.max_retries", 4)

	v.SetDefault("collector.dir", DefaultResultsDir())
	v.SetDefault("collector.prefix", "pubami")
}

// bindEnvVars binds the environment variables the release tooling has always
// exported in addition to the PUBAMI_ prefixed ones.
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("log.level", "PUBAMI_LOG_LEVEL")
	_ = v.BindEnv("log.format", "PUBAMI_LOG_FORMAT")

	_ = v.BindEnv("aws.access_id", "PUBAMI_AWS_ACCESS_ID", "AWS_ACCESS_ID")
	_ = v.BindEnv("aws.secret_key", "PUBAMI_AWS_SECRET_KEY", "AWS_SECRET_KEY")
	_ = v.BindEnv("aws.profile", "AWS_PROFILE")
	_ = v.BindEnv("aws.provider_name", "PUBAMI_AWS_PROVIDER_NAME")
	_ = v.BindEnv("aws.container_prefix", "PUBAMI_AWS_CONTAINER_PREFIX")

	_ = v.BindEnv("rhsm.url", "PUBAMI_RHSM_URL", "RHSM_URL")
	_ = v.BindEnv("rhsm.cert", "PUBAMI_RHSM_CERT", "RHSM_CERT")
	_ = v.BindEnv("rhsm.key", "PUBAMI_RHSM_KEY", "RHSM_KEY")
	_ = v.BindEnv("rhsm.timeout", "PUBAMI_RHSM_TIMEOUT")
	_ = v.BindEnv("rhsm.max_retries", "PUBAMI_RHSM_MAX_RETRIES", "RHSM_REQUEST_RETRIES")
	_ = v.BindEnv("rhsm.request_threads", "PUBAMI_RHSM_REQUEST_THREADS", "RHSM_REQUEST_THREADS")

	_ = v.BindEnv("push.workers", "PUBAMI_PUSH_WORKERS", "AMI_PUSH_REQUEST_THREADS")
	_ = v.BindEnv("push.retry_wait", "PUBAMI_PUSH_RETRY_WAIT")
	_ = v.BindEnv("push.max_retries", "PUBAMI_PUSH_MAX_RETRIES")

	_ = v.BindEnv("delete.workers", "PUBAMI_DELETE_WORKERS", "AMI_DELETE_REQUEST_THREADS")
	_ = v.BindEnv("delete.retry_wait", "PUBAMI_DELETE_RETRY_WAIT")
	_ = v.BindEnv("delete.max_retries", "PUBAMI_DELETE_MAX_RETRIES")

	_ = v.BindEnv("collector.dir", "PUBAMI_COLLECTOR_DIR")
	_ = v.BindEnv("collector.bucket", "PUBAMI_COLLECTOR_BUCKET")
	_ = v.BindEnv("collector.prefix", "PUBAMI_COLLECTOR_PREFIX")
	_ = v.BindEnv("collector.region", "PUBAMI_COLLECTOR_REGION", "AWS_REGION")
}
