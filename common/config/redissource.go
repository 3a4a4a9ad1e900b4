package config

import (
	"strings"

	"github.com/mediocregopher/radix/v3"
	"github.com/sirupsen/logrus"
)

// RedisConfigSource reads options from a redis hash, allowing live overrides
// without restarting the process.
type RedisConfigSource struct {
	Pool *radix.Pool
}

func (rs *RedisConfigSource) GetValue(key string) interface{} {
	prefixStripped := strings.TrimPrefix(key, "vertigo.")

	var v string
	err := rs.Pool.Do(radix.Cmd(&v, "HGET", "vertigo_config", prefixStripped))
	if err != nil {
		logrus.WithError(err).Error("[redis_config_source] failed retrieving value")
		return nil
	}

	if v == "" {
		return nil
	}

	return v
}

func (rs *RedisConfigSource) SaveValue(key, value string) error {
	prefixStripped := strings.TrimPrefix(key, "vertigo.")

	err := rs.Pool.Do(radix.Cmd(nil, "HSET", "vertigo_config", prefixStripped, value))
	if err != nil {
		return err
	}

	return nil
}

func (rs *RedisConfigSource) Name() string {
	return "redis"
}
