package backend

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/adamavenir/frayfeed/internal/core"
)

const credentialsFileName = "credentials.json"

// Credentials stores local-only login details for the backend.
type Credentials struct {
	BaseURL  string `json:"base_url"`
	Token    string `json:"token"`
	UserID   string `json:"user_id,omitempty"`
	UserName string `json:"user_name,omitempty"`
	SavedAt  int64  `json:"saved_at,omitempty"`
}

// CredentialsPath returns the credentials file inside dir.
func CredentialsPath(dir string) string {
	return filepath.Join(dir, credentialsFileName)
}

// LoadCredentials reads credentials from dir. It returns nil, nil when none
// have been saved.
func LoadCredentials(dir string) (*Credentials, error) {
	var creds Credentials
	ok, err := readJSON(CredentialsPath(dir), &creds)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &creds, nil
}

// SaveCredentials writes creds to dir with owner-only permissions.
func SaveCredentials(dir string, creds Credentials) error {
	return writeJSONAtomic(CredentialsPath(dir), creds)
}

// ApplyCredentials fills backend and identity fields the config leaves blank.
func ApplyCredentials(cfg *core.Config, creds *Credentials) {
	if creds == nil {
		return
	}
	if strings.TrimSpace(cfg.Backend.BaseURL) == "" {
		cfg.Backend.BaseURL = creds.BaseURL
	}
	if cfg.Backend.Token == "" {
		cfg.Backend.Token = creds.Token
	}
	if cfg.UserID == "" {
		cfg.UserID = creds.UserID
	}
	if cfg.UserName == "" {
		cfg.UserName = creds.UserName
	}
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return true, err
	}
	return true, nil
}

func writeJSONAtomic(path string, value any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
