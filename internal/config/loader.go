package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a Config.
// Values from the file replace defaults; flags that were set replace both.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(rest, " "))
	}

	configPath := flagSet.Lookup("config").Value.String()
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := Defaults()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(&cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(&cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Pin = strings.TrimSpace(cfg.Pin)
	cfg.LogMode = strings.ToLower(strings.TrimSpace(cfg.LogMode))
	cfg.Clock = strings.ToLower(strings.TrimSpace(cfg.Clock))

	return &cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	ints := []struct {
		dst  *int
		keys []string
	}{
		{&cfg.FrequencyHz, []string{"frequency"}},
		{&cfg.CPU, []string{"cpu"}},
		{&cfg.Priority, []string{"priority"}},
		{&cfg.Window, []string{"window"}},
		{&cfg.ChannelCapacity, []string{"channelcapacity", "channel_capacity", "channel-capacity"}},
		{&cfg.HistoryLimit, []string{"historylimit", "history_limit", "history-limit"}},
	}
	for _, s := range ints {
		raw, ok := lookupSetting(settings, s.keys...)
		if !ok {
			continue
		}
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", s.keys[0], err)
		}
		*s.dst = val
	}

	strs := []struct {
		dst  *string
		keys []string
	}{
		{&cfg.Pin, []string{"pin"}},
		{&cfg.Clock, []string{"clock"}},
		{&cfg.Output, []string{"output"}},
		{&cfg.LogMode, []string{"logmode", "log_mode", "log-mode"}},
		{&cfg.HTMLOutput, []string{"htmloutput", "html_output", "html-output"}},
		{&cfg.MetricsAddr, []string{"metricsaddr", "metrics_addr", "metrics-addr"}},
		{&cfg.LogLevel, []string{"loglevel", "log_level", "log-level"}},
		{&cfg.LogFile, []string{"logfile", "log_file", "log-file"}},
	}
	for _, s := range strs {
		raw, ok := lookupSetting(settings, s.keys...)
		if !ok {
			continue
		}
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", s.keys[0], err)
		}
		*s.dst = strings.TrimSpace(val)
	}

	bools := []struct {
		dst  *bool
		keys []string
	}{
		{&cfg.Plot, []string{"plot"}},
		{&cfg.Dashboard, []string{"dashboard"}},
		{&cfg.JSONOutput, []string{"jsonoutput", "json_output", "json-output"}},
		{&cfg.YAMLOutput, []string{"yamloutput", "yaml_output", "yaml-output"}},
	}
	for _, s := range bools {
		raw, ok := lookupSetting(settings, s.keys...)
		if !ok {
			continue
		}
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", s.keys[0], err)
		}
		*s.dst = val
	}

	if raw, ok := lookupSetting(settings, "duration"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		cfg.Duration = dur
	}

	if raw, ok := lookupSetting(settings, "refresh"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("refresh: %w", err)
		}
		cfg.Refresh = dur
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		thresholds, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = thresholds
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := applyTracingSettings(&cfg.Tracing, raw); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}

	return nil
}

func applyTracingSettings(t *TracingConfig, raw interface{}) error {
	settings, err := toStringKeyMap(raw)
	if err != nil {
		return err
	}
	if v, ok := lookupSetting(settings, "endpoint"); ok {
		s, err := asString(v)
		if err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
		t.Endpoint = strings.TrimSpace(s)
	}
	if v, ok := lookupSetting(settings, "protocol"); ok {
		s, err := asString(v)
		if err != nil {
			return fmt.Errorf("protocol: %w", err)
		}
		t.Protocol = strings.TrimSpace(s)
	}
	if v, ok := lookupSetting(settings, "servicename", "service_name", "service-name"); ok {
		s, err := asString(v)
		if err != nil {
			return fmt.Errorf("service_name: %w", err)
		}
		t.ServiceName = strings.TrimSpace(s)
	}
	if v, ok := lookupSetting(settings, "insecure"); ok {
		b, err := asBool(v)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		t.Insecure = b
	}
	if v, ok := lookupSetting(settings, "samplerate", "sample_rate", "sample-rate"); ok {
		f, err := asFloat64(v)
		if err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
		t.SampleRate = f
	}
	return nil
}
