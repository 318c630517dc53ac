package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizbattle/quizbattle-api/internal/config"
)

func TestNewUniversalRedisClient_ConfigValidation(t *testing.T) {
	testCases := []struct {
		name        string
		cfg         config.RedisConfig
		errContains string
	}{
		{
			"без адресов",
			config.RedisConfig{},
			"Addrs or Addr must be provided",
		},
		{
			"sentinel без MasterName",
			config.RedisConfig{Addr: "localhost:26379", Mode: "sentinel"},
			"sentinel mode requires MasterName",
		},
		{
			"неизвестный режим",
			config.RedisConfig{Addr: "localhost:6379", Mode: "replicated"},
			"unsupported redis mode",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Act: все ошибки конфигурации отлавливаются до подключения
			client, err := NewUniversalRedisClient(tc.cfg)

			// Assert
			require.Error(t, err)
			assert.Nil(t, client)
			assert.Contains(t, err.Error(), tc.errContains)
		})
	}
}
