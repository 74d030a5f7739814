package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, AuthJWT, cfg.AuthBackend)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, LLMMock, cfg.LLMProvider)
	assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModel)
	assert.Equal(t, "gpt-3.5-turbo", cfg.OpenAIModel)
	assert.Equal(t, time.Hour, cfg.JWTTTL)
	assert.Zero(t, cfg.LLMTimeout)
	assert.Zero(t, cfg.HistoryLimit)
	assert.Len(t, cfg.AllowedOrigins, 3)
	assert.False(t, cfg.UsesFirebase())
}

func TestLoadEnvFileAndOverrides(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "JWT_SECRET=from-file\nPORT=7000\nHISTORY_LIMIT=20\nALLOWED_ORIGINS=http://a.test, http://b.test\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o600))

	t.Setenv("PORT", "9000")
	t.Setenv("LLM_TIMEOUT", "45s")

	cfg, err := LoadFile(envFile)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, "9000", cfg.Port, "environment wins over .env")
	assert.Equal(t, 20, cfg.HistoryLimit)
	assert.Equal(t, 45*time.Second, cfg.LLMTimeout)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "jwt needs a secret",
			cfg:     Config{AuthBackend: AuthJWT, StoreBackend: StoreMemory, LLMProvider: LLMMock},
			wantErr: "JWT_SECRET",
		},
		{
			name:    "rtdb needs a database url",
			cfg:     Config{AuthBackend: AuthJWT, JWTSecret: "x", StoreBackend: StoreRTDB, LLMProvider: LLMMock},
			wantErr: "FIREBASE_DATABASE_URL",
		},
		{
			name:    "openai needs a key",
			cfg:     Config{AuthBackend: AuthJWT, JWTSecret: "x", StoreBackend: StoreMemory, LLMProvider: LLMOpenAI},
			wantErr: "OPENAI_API_KEY",
		},
		{
			name:    "gemini on vertex needs a project",
			cfg:     Config{AuthBackend: AuthJWT, JWTSecret: "x", StoreBackend: StoreMemory, LLMProvider: LLMGemini, GeminiUseVertex: true},
			wantErr: "GCP_PROJECT",
		},
		{
			name:    "unknown store",
			cfg:     Config{AuthBackend: AuthJWT, JWTSecret: "x", StoreBackend: "redis", LLMProvider: LLMMock},
			wantErr: "STORE_BACKEND",
		},
		{
			name: "firebase with rtdb",
			cfg: Config{
				AuthBackend: AuthFirebase, GCPProjectID: "p",
				StoreBackend: StoreRTDB, FirebaseDatabaseURL: "https://p.firebaseio.com",
				LLMProvider: LLMGemini, GeminiAPIKey: "k",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
