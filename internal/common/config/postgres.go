package config

import "time"

type PostgresConfig struct {
	MaxOpenConns    int32
	ConnMaxLifetime time.Duration
	Connection      map[string]string
}
