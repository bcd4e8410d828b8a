package config

import (
	"encoding/json"
	"fmt"
)

// Vector store backend identifiers used in VectorStoreConfig.Backend.
const (
	BackendPostgres = "postgres"
	BackendQdrant   = "qdrant"
	BackendRedis    = "redis"
)

// VectorStoreConfig selects and configures the retrieval backend.
//
// The Postgres backend reuses the postgres_* connection settings from the
// main Config; Qdrant and Redis carry their own endpoints here.
type VectorStoreConfig struct {
	Backend      string `mapstructure:"backend" json:"backend"` // "postgres" (default), "qdrant", "redis"
	QdrantURL    string `mapstructure:"qdrant_url" json:"qdrant_url"`
	QdrantAPIKey string `mapstructure:"qdrant_api_key" json:"qdrant_api_key"` // SENSITIVE: masked in MarshalJSON
	RedisAddr    string `mapstructure:"redis_addr" json:"redis_addr"`
}

// MarshalJSON masks the Qdrant API key.
func (v VectorStoreConfig) MarshalJSON() ([]byte, error) {
	type alias VectorStoreConfig
	a := alias(v)
	a.QdrantAPIKey = maskSecret(a.QdrantAPIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal vector store config: %w", err)
	}
	return data, nil
}
