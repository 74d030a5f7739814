package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AuthBackend string

const (
	AuthJWT      AuthBackend = "jwt"
	AuthFirebase AuthBackend = "firebase"
)

type StoreBackend string

const (
	StoreMemory    StoreBackend = "memory"
	StoreSQLite    StoreBackend = "sqlite"
	StoreFirestore StoreBackend = "firestore"
	StoreRTDB      StoreBackend = "rtdb"
)

type LLMProvider string

const (
	LLMMock   LLMProvider = "mock"
	LLMGemini LLMProvider = "gemini"
	LLMOpenAI LLMProvider = "openai"
)

type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string

	AuthBackend AuthBackend
	JWTSecret   string
	JWTIssuer   string
	JWTTTL      time.Duration

	StoreBackend        StoreBackend
	SQLiteDSN           string
	GCPProjectID        string
	GCPLocation         string
	FirebaseDatabaseURL string
	ServiceAccountJSON  string

	LLMProvider     LLMProvider
	GeminiAPIKey    string
	GeminiModel     string
	GeminiUseVertex bool
	OpenAIAPIKey    string
	OpenAIModel     string
	LLMTimeout      time.Duration // 0 = no bound on a completion call
	HistoryLimit    int           // 0 = replay the whole history

	RedisURL string // empty = in-process session lock
}

var defaultOrigins = []string{
	"http://localhost:3000",
	"https://ai-chatbot-13281.web.app",
	"https://ai-chatbot-13281.firebaseapp.com",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "5000")
	v.SetDefault("ALLOWED_ORIGINS", strings.Join(defaultOrigins, ","))
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("AUTH_BACKEND", string(AuthJWT))
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "chatrelay")
	v.SetDefault("JWT_TTL", "1h")

	v.SetDefault("STORE_BACKEND", string(StoreMemory))
	v.SetDefault("SQLITE_DSN", "file:chatrelay.db?_foreign_keys=on")
	v.SetDefault("GCP_PROJECT", "")
	v.SetDefault("GCP_LOCATION", "us-central1")
	v.SetDefault("FIREBASE_DATABASE_URL", "")
	v.SetDefault("SERVICE_ACCOUNT_JSON", "")

	v.SetDefault("LLM_PROVIDER", string(LLMMock))
	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("GEMINI_MODEL", "gemini-2.5-flash")
	v.SetDefault("GEMINI_USE_VERTEX", false)
	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_MODEL", "gpt-3.5-turbo")
	v.SetDefault("LLM_TIMEOUT", "0s")
	v.SetDefault("HISTORY_LIMIT", 0)

	v.SetDefault("REDIS_URL", "")
}

// Load reads defaults, an optional .env file in the working directory and
// the environment, in increasing order of precedence.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path. A missing file is not an error.
func LoadFile(envFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("reading %s: %w", envFile, err)
			}
		}
	}
	v.AutomaticEnv()

	cfg := &Config{
		Port:           v.GetString("PORT"),
		AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),
		LogLevel:       v.GetString("LOG_LEVEL"),

		AuthBackend: AuthBackend(strings.ToLower(v.GetString("AUTH_BACKEND"))),
		JWTSecret:   v.GetString("JWT_SECRET"),
		JWTIssuer:   v.GetString("JWT_ISSUER"),
		JWTTTL:      v.GetDuration("JWT_TTL"),

		StoreBackend:        StoreBackend(strings.ToLower(v.GetString("STORE_BACKEND"))),
		SQLiteDSN:           v.GetString("SQLITE_DSN"),
		GCPProjectID:        v.GetString("GCP_PROJECT"),
		GCPLocation:         v.GetString("GCP_LOCATION"),
		FirebaseDatabaseURL: v.GetString("FIREBASE_DATABASE_URL"),
		ServiceAccountJSON:  v.GetString("SERVICE_ACCOUNT_JSON"),

		LLMProvider:     LLMProvider(strings.ToLower(v.GetString("LLM_PROVIDER"))),
		GeminiAPIKey:    v.GetString("GEMINI_API_KEY"),
		GeminiModel:     v.GetString("GEMINI_MODEL"),
		GeminiUseVertex: v.GetBool("GEMINI_USE_VERTEX"),
		OpenAIAPIKey:    v.GetString("OPENAI_API_KEY"),
		OpenAIModel:     v.GetString("OPENAI_MODEL"),
		LLMTimeout:      v.GetDuration("LLM_TIMEOUT"),
		HistoryLimit:    v.GetInt("HISTORY_LIMIT"),

		RedisURL: v.GetString("REDIS_URL"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings each selected backend needs.
func (c *Config) Validate() error {
	var errs []error

	switch c.AuthBackend {
	case AuthJWT:
		if c.JWTSecret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required for the jwt auth backend"))
		}
	case AuthFirebase:
		if c.GCPProjectID == "" && c.ServiceAccountJSON == "" {
			errs = append(errs, errors.New("GCP_PROJECT or SERVICE_ACCOUNT_JSON is required for the firebase auth backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_BACKEND %q", c.AuthBackend))
	}

	switch c.StoreBackend {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLiteDSN == "" {
			errs = append(errs, errors.New("SQLITE_DSN is required for the sqlite store"))
		}
	case StoreFirestore:
		if c.GCPProjectID == "" {
			errs = append(errs, errors.New("GCP_PROJECT is required for the firestore store"))
		}
	case StoreRTDB:
		if c.FirebaseDatabaseURL == "" {
			errs = append(errs, errors.New("FIREBASE_DATABASE_URL is required for the rtdb store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	switch c.LLMProvider {
	case LLMMock:
	case LLMGemini:
		if c.GeminiUseVertex {
			if c.GCPProjectID == "" || c.GCPLocation == "" {
				errs = append(errs, errors.New("GCP_PROJECT and GCP_LOCATION are required for gemini on vertex"))
			}
		} else if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini provider"))
		}
	case LLMOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider))
	}

	if c.HistoryLimit < 0 {
		errs = append(errs, errors.New("HISTORY_LIMIT must not be negative"))
	}

	return errors.Join(errs...)
}

// UsesFirebase reports whether a Firebase app has to be initialised.
func (c *Config) UsesFirebase() bool {
	return c.AuthBackend == AuthFirebase || c.StoreBackend == StoreRTDB
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
