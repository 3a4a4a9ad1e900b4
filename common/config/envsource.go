package config

import (
	"os"
	"strings"
)

// EnvSource reads options from environment variables, vertigo.pq.host
// becomes VERTIGO_PQ_HOST.
type EnvSource struct{}

func (e *EnvSource) GetValue(key string) interface{} {
	properKey := strings.ToUpper(key)
	properKey = strings.Replace(properKey, ".", "_", -1)
	v := os.Getenv(properKey)
	if v == "" {
		return nil
	}
	return v
}

func (e *EnvSource) Name() string {
	return "env"
}
