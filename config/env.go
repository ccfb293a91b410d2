package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables that override file settings.
const (
	EnvHost           = "RAGDIR_HOST"
	EnvEmbeddingHost  = "RAGDIR_EMBEDDING_HOST"
	EnvChatHost       = "RAGDIR_CHAT_HOST"
	EnvEmbeddingModel = "RAGDIR_EMBEDDING_MODEL"
	EnvChatModel      = "RAGDIR_CHAT_MODEL"
	EnvAPIKey         = "RAGDIR_API_KEY"
)

// LoadEnv reads .env files into the process environment without replacing
// variables that are already set. With no arguments it reads ./.env.
// Missing files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// ApplyEnv overrides model settings from RAGDIR_* variables.
func (c *Config) ApplyEnv() {
	overrides := []struct {
		name  string
		field *string
	}{
		{EnvHost, &c.Model.Host},
		{EnvEmbeddingHost, &c.Model.EmbeddingHost},
		{EnvChatHost, &c.Model.ChatHost},
		{EnvEmbeddingModel, &c.Model.EmbeddingModel},
		{EnvChatModel, &c.Model.ChatModel},
		{EnvAPIKey, &c.Model.APIKey},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.name); ok && v != "" {
			*o.field = v
		}
	}
}
