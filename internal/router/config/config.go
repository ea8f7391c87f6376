package config

import "github.com/spf13/viper"

// Config - структура для хранения конфигураций приложения
type Config struct {
	ServerAddress        string `mapstructure:"SERVER_ADDRESS"`
	PostgresConn         string `mapstructure:"POSTGRES_CONN"`
	PostgresUser         string `mapstructure:"POSTGRES_USERNAME"`
	PostgresPass         string `mapstructure:"POSTGRES_PASSWORD"`
	PostgresHost         string `mapstructure:"POSTGRES_HOST"`
	PostgresPort         string `mapstructure:"POSTGRES_PORT"`
	PostgresDB           string `mapstructure:"POSTGRES_DATABASE"`
	MigrationURL         string `mapstructure:"MIGRATION_URL"`
	UrgentExpiryMinutes  int    `mapstructure:"URGENT_EXPIRY_MINUTES"`
	RequestTimeoutSecond int    `mapstructure:"REQUEST_TIMEOUT_SECONDS"`
}

// LoadConfig загружает конфигурацию из файла
func LoadConfig(path string) (cfg Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("app")
	viper.SetConfigType("env")

	viper.SetDefault("URGENT_EXPIRY_MINUTES", 15)
	viper.SetDefault("REQUEST_TIMEOUT_SECONDS", 5)

	err = viper.ReadInConfig()
	if err != nil {
		return
	}
	err = viper.Unmarshal(&cfg)
	return
}
