package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

type Config struct {
	DataDir       string  `json:"data_dir"`
	LogLevel      string  `json:"log_level"`
	Timezone      string  `json:"timezone"`
	MaxConcurrent int     `json:"max_concurrent"`
	DedupTTLMin   int     `json:"dedup_ttl_minutes"`
	Confidence    float64 `json:"confidence_threshold"`
	VoiceReply    bool    `json:"voice_reply"`
	HTTP          struct {
		Listen string `json:"listen"`
	} `json:"http"`
	LLM struct {
		BaseURL     string  `json:"base_url"`
		APIKey      string  `json:"api_key"`
		Model       string  `json:"model"`
		Temperature float32 `json:"temperature"`
	} `json:"llm"`
	Google struct {
		ClientID      string `json:"client_id"`
		ClientSecret  string `json:"client_secret"`
		RefreshToken  string `json:"refresh_token"`
		DriveFolderID string `json:"drive_folder_id"`
		SpreadsheetID string `json:"spreadsheet_id"`
	} `json:"google"`
	Telegram struct {
		Token      string `json:"token"`
		WebhookURL string `json:"webhook_url"`
		ExecKey    string `json:"exec_key"`
	} `json:"telegram"`
}

// Load reads the config file at path, creating it with defaults on first
// run. A .env file in the working directory is loaded first; environment
// variables take precedence over the file.
func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".amana"),
		LogLevel:      "info",
		Timezone:      "America/Sao_Paulo",
		MaxConcurrent: 4,
		DedupTTLMin:   5,
		Confidence:    0.5,
		VoiceReply:    true,
	}
	cfg.HTTP.Listen = ":10000"
	cfg.LLM.BaseURL = "https://api.openai.com/v1"
	cfg.LLM.Model = "gpt-4o-mini"
	cfg.LLM.Temperature = 0.2

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	// .env is optional; missing files are not an error.
	_ = godotenv.Load()

	// Override from env (highest precedence)
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("GOOGLE_OAUTH_CLIENT_ID"); v != "" {
		cfg.Google.ClientID = v
	}
	if v := os.Getenv("GOOGLE_OAUTH_CLIENT_SECRET"); v != "" {
		cfg.Google.ClientSecret = v
	}
	if v := os.Getenv("GOOGLE_OAUTH_REFRESH_TOKEN"); v != "" {
		cfg.Google.RefreshToken = v
	}
	if v := os.Getenv("DRIVE_FOLDER_BASE"); v != "" {
		cfg.Google.DriveFolderID = v
	}
	if v := os.Getenv("SHEETS_SPREADSHEET_ID"); v != "" {
		cfg.Google.SpreadsheetID = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_WEBHOOK_URL"); v != "" {
		cfg.Telegram.WebhookURL = v
	}
	if v := os.Getenv("AMANABOT_KEY"); v != "" {
		cfg.Telegram.ExecKey = v
	}
	if v := os.Getenv("MEMORY_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("AMANA_TIMEZONE"); v != "" {
		cfg.Timezone = v
	}

	return cfg, nil
}

func writeDefaults(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename default config: %w", err)
	}
	return nil
}
