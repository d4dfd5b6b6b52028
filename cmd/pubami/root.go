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

// Package main implements the pubami CLI, which pushes AMIs to AWS and
// deletes them again while keeping the subscription management service in
// step.
package main

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/cowdogmoo/pubami/config"
	"github.com/cowdogmoo/pubami/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type configKeyType struct{}

var (
	configKey = configKeyType{}

	cfgFile string
)

// globalFlagKeys maps persistent flags to config keys.
var globalFlagKeys = map[string]string{
	"log-level":         "log.level",
	"log-format":        "log.format",
	"aws-access-id":     "aws.access_id",
	"aws-secret-key":    "aws.secret_key",
	"aws-profile":       "aws.profile",
	"aws-provider-name": "aws.provider_name",
	"rhsm-url":          "rhsm.url",
	"rhsm-cert":         "rhsm.cert",
	"rhsm-key":          "rhsm.key",
	"results-dir":       "collector.dir",
	"results-bucket":    "collector.bucket",
	"container-prefix":  "aws.container_prefix",
}

// taskFlags are namespaced by the command they belong to, e.g.
// push.max_retries.
var taskFlags = map[string]bool{
	"workers":     true,
	"retry-wait":  true,
	"max-retries": true,
}

var rootCmd = &cobra.Command{
	Use:   "pubami",
	Short: "pubami - push and delete AMIs across AWS regions",
	Long: `pubami uploads staged disk images to AWS as AMIs, one worker per region,
and registers them with the Red Hat subscription management service.
It can also hide images in that service and delete them from AWS.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func init() {
	resolveBuildInfo()
	rootCmd.Version = version

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "Config file (default is $HOME/.pubami/config.yaml)")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-format", "", "Log format (text, json, color)")
	flags.BoolP("quiet", "q", false, "Quiet mode - only show errors")
	flags.BoolP("verbose", "v", false, "Verbose mode - show debug output")

	flags.String("aws-access-id", "", "AWS access key id (env AWS_ACCESS_ID)")
	flags.String("aws-secret-key", "", "AWS secret access key (env AWS_SECRET_KEY)")
	flags.String("aws-profile", "", "AWS shared config profile used instead of keys")
	flags.String("aws-provider-name", "", "AWS provider e.g. AWS, ACN (AWS China), AGOV (AWS US Gov)")

	flags.String("rhsm-url", "", "Base URL of the RHSM service")
	flags.String("rhsm-cert", "", "RHSM client certificate (env RHSM_CERT)")
	flags.String("rhsm-key", "", "RHSM client key (env RHSM_KEY)")

	flags.String("results-dir", "", "Directory results are written to")
	flags.String("results-bucket", "", "S3 bucket results are uploaded to")

	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(versionCmd)
}

// configFromContext retrieves the config from the command context.
// Returns nil if no config is stored in context.
func configFromContext(cmd *cobra.Command) *config.Config {
	if cfg, ok := cmd.Context().Value(configKey).(*config.Config); ok {
		return cfg
	}
	return nil
}

// initConfig initializes configuration with proper precedence:
// CLI Flags > Environment Variables > Config File > Defaults
func initConfig(cmd *cobra.Command, args []string) error {
	var cfg *config.Config
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFromPath(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config %s: %w", cfgFile, err)
		}
	} else {
		cfg, err = config.Load()
		if err != nil {
			logging.Warn("failed to load config, using defaults: %v", err)
			cfg = &config.Config{}
		}
	}

	v := viper.New()
	setFlagDefaults(v, cfg)
	BindCommandFlagsToViper(v, cmd)
	applyFlagValues(v, cfg)

	quiet, _ := cmd.Flags().GetBool("quiet")
	verbose, _ := cmd.Flags().GetBool("verbose")
	if err := logging.Initialize(cfg.Log.Level, cfg.Log.Format, quiet, verbose); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, configKey, cfg)
	ctx = logging.WithLogger(ctx, logging.Default())
	cmd.SetContext(ctx)

	logEffectiveConfig(ctx, v)

	return nil
}

// setFlagDefaults seeds v with the loaded config so unchanged flags keep it.
func setFlagDefaults(v *viper.Viper, cfg *config.Config) {
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("aws.access_id", cfg.AWS.AccessID)
	v.SetDefault("aws.secret_key", cfg.AWS.SecretKey)
	v.SetDefault("aws.profile", cfg.AWS.Profile)
	v.SetDefault("aws.provider_name", cfg.AWS.ProviderName)
	v.SetDefault("aws.container_prefix", cfg.AWS.ContainerPrefix)
	v.SetDefault("rhsm.url", cfg.RHSM.URL)
	v.SetDefault("rhsm.cert", cfg.RHSM.Cert)
	v.SetDefault("rhsm.key", cfg.RHSM.Key)
	v.SetDefault("collector.dir", cfg.Collector.Dir)
	v.SetDefault("collector.bucket", cfg.Collector.Bucket)
	v.SetDefault("push.workers", cfg.Push.Workers)
	v.SetDefault("push.retry_wait", cfg.Push.RetryWait)
	v.SetDefault("push.max_retries", cfg.Push.MaxRetries)
	v.SetDefault("delete.workers", cfg.Delete.Workers)
	v.SetDefault("delete.retry_wait", cfg.Delete.RetryWait)
	v.SetDefault("delete.max_retries", cfg.Delete.MaxRetries)
}

func applyFlagValues(v *viper.Viper, cfg *config.Config) {
	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.Format = v.GetString("log.format")
	cfg.AWS.AccessID = v.GetString("aws.access_id")
	cfg.AWS.SecretKey = v.GetString("aws.secret_key")
	cfg.AWS.Profile = v.GetString("aws.profile")
	cfg.AWS.ProviderName = v.GetString("aws.provider_name")
	cfg.AWS.ContainerPrefix = v.GetString("aws.container_prefix")
	cfg.RHSM.URL = v.GetString("rhsm.url")
	cfg.RHSM.Cert = v.GetString("rhsm.cert")
	cfg.RHSM.Key = v.GetString("rhsm.key")
	cfg.Collector.Dir = v.GetString("collector.dir")
	cfg.Collector.Bucket = v.GetString("collector.bucket")
	cfg.Push.Workers = v.GetInt("push.workers")
	cfg.Push.RetryWait = v.GetInt("push.retry_wait")
	cfg.Push.MaxRetries = v.GetInt("push.max_retries")
	cfg.Delete.Workers = v.GetInt("delete.workers")
	cfg.Delete.RetryWait = v.GetInt("delete.retry_wait")
	cfg.Delete.MaxRetries = v.GetInt("delete.max_retries")
}

// logEffectiveConfig prints the merged settings at debug level with
// credentials masked.
func logEffectiveConfig(ctx context.Context, v *viper.Viper) {
	keys := v.AllKeys()
	slices.Sort(keys)
	for _, key := range keys {
		value := v.GetString(key)
		if key == "aws.access_id" {
			value = logging.RedactSecret(value)
		}
		logging.DebugContext(ctx, "config %s = %s", key, logging.RedactSensitiveValue(key, value))
	}
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// BindFlagsToViper binds the flags of cmd that carry configuration to v.
// Task flags are namespaced with viperKey, e.g. "push" for push.max_retries.
func BindFlagsToViper(v *viper.Viper, flags *pflag.FlagSet, viperKey string) {
	flags.VisitAll(func(f *pflag.Flag) {
		key := flagKey(f.Name, viperKey)
		if key == "" {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			logging.Warn("failed to bind flag %s to viper: %v", f.Name, err)
		}
	})
}

// BindCommandFlagsToViper binds the local and inherited flags of cmd to v.
func BindCommandFlagsToViper(v *viper.Viper, cmd *cobra.Command) {
	cmdPath := getCommandPath(cmd)
	BindFlagsToViper(v, cmd.Flags(), cmdPath)
	BindFlagsToViper(v, cmd.InheritedFlags(), cmdPath)
}

func flagKey(name, viperKey string) string {
	if key, ok := globalFlagKeys[name]; ok {
		return key
	}
	if taskFlags[name] && viperKey != "" {
		return viperKey + "." + strings.ReplaceAll(name, "-", "_")
	}
	return ""
}

// getCommandPath returns the command path for Viper key namespacing.
// For example, "pubami push" returns "push".
func getCommandPath(cmd *cobra.Command) string {
	var parts []string
	current := cmd

	for current != nil && current.Parent() != nil {
		parts = append([]string{current.Name()}, parts...)
		current = current.Parent()
	}

	return strings.Join(parts, ".")
}
