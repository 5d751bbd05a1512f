package config

// Config represents the carton CLI configuration.
// Use mapstructure tags for Viper unmarshaling.
type Config struct {
	Progress string       `mapstructure:"progress"`
	Pack     PackConfig   `mapstructure:"pack"`
	Unpack   UnpackConfig `mapstructure:"unpack"`
}

// PackConfig holds archive creation defaults.
type PackConfig struct {
	Level int `mapstructure:"level"`
}

// UnpackConfig holds extraction defaults.
type UnpackConfig struct {
	Overwrite bool   `mapstructure:"overwrite"`
	Symlinks  string `mapstructure:"symlinks"`
	MaxFiles  int    `mapstructure:"max-files"`
	MaxSize   string `mapstructure:"max-size"`
}
