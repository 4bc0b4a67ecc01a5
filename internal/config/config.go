package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/Honorable-Knights-of-the-Roundtable/jackwrapper/pkg/jack"
)

// Set the viper defaults for a jack client.
// For use in cmd/jackctl, as well as the examples.
func SetViperDefaults() {
	viper.SetDefault("loglevel", "info")
	viper.SetDefault("logfile", "")
	viper.SetDefault("library.paths", []string{})
	viper.SetDefault("client.name", "jackctl")
	viper.SetDefault("client.server", "")
	viper.SetDefault("client.options", []string{"nostartserver"})
	viper.SetDefault("pool.buffers", 32)
	viper.SetDefault("record.samplerate", 0)
	viper.SetDefault("record.bitdepth", 16)
	viper.SetDefault("record.queue", 16)
}

// LoadConfig sets the defaults and reads configFilePath on top of them. A
// missing file is not an error.
func LoadConfig(configFilePath string) error {
	SetViperDefaults()

	viper.SetConfigFile(configFilePath)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			slog.Info("no config file found", "configFilePath", configFilePath)
			return nil
		}
		slog.Error("error during config read", "err", err)
		return err
	}
	return nil
}

// Config is the resolved client configuration.
type Config struct {
	LogLevel     string
	LogFile      string
	LibraryPaths []string

	ClientName string
	ServerName string
	Options    jack.OpenOptions

	PoolBuffers int

	RecordSampleRate int
	RecordBitDepth   int
	RecordQueue      int
}

// Current reads the configuration from viper and validates it.
func Current() (Config, error) {
	opts, err := jack.ParseOpenOptions(viper.GetStringSlice("client.options")...)
	if err != nil {
		return Config{}, fmt.Errorf("client.options: %w", err)
	}

	cfg := Config{
		LogLevel:         viper.GetString("loglevel"),
		LogFile:          viper.GetString("logfile"),
		LibraryPaths:     viper.GetStringSlice("library.paths"),
		ClientName:       viper.GetString("client.name"),
		ServerName:       viper.GetString("client.server"),
		Options:          opts,
		PoolBuffers:      viper.GetInt("pool.buffers"),
		RecordSampleRate: viper.GetInt("record.samplerate"),
		RecordBitDepth:   viper.GetInt("record.bitdepth"),
		RecordQueue:      viper.GetInt("record.queue"),
	}

	var errs []error
	if cfg.ClientName == "" {
		errs = append(errs, errors.New("client.name must not be empty"))
	}
	if cfg.PoolBuffers <= 0 {
		errs = append(errs, fmt.Errorf("pool.buffers must be positive, got %d", cfg.PoolBuffers))
	}
	if cfg.RecordSampleRate < 0 {
		errs = append(errs, fmt.Errorf("record.samplerate must not be negative, got %d", cfg.RecordSampleRate))
	}
	switch cfg.RecordBitDepth {
	case 16, 24, 32:
	default:
		errs = append(errs, fmt.Errorf("record.bitdepth must be 16, 24 or 32, got %d", cfg.RecordBitDepth))
	}
	if cfg.RecordQueue <= 0 {
		errs = append(errs, fmt.Errorf("record.queue must be positive, got %d", cfg.RecordQueue))
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
