package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vaultpilot/vaultpilot/pkg/config"
)

// Credential is a stored OAuth credential for one provider.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	Provider     string    `json:"provider"`
	AuthMethod   string    `json:"auth_method"`
	ResourceURL  string    `json:"resource_url,omitempty"`
}

func (c *Credential) IsExpired() bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(c.ExpiresAt)
}

func (c *Credential) NeedsRefresh() bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(5 * time.Minute).After(c.ExpiresAt)
}

type credentialFile struct {
	Credentials map[string]*Credential `json:"credentials"`
}

func authFilePath() string {
	return filepath.Join(config.DataDir(), "auth.json")
}

func loadFile() (*credentialFile, error) {
	data, err := os.ReadFile(authFilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return &credentialFile{Credentials: make(map[string]*Credential)}, nil
		}
		return nil, err
	}

	var file credentialFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", authFilePath(), err)
	}
	if file.Credentials == nil {
		file.Credentials = make(map[string]*Credential)
	}
	return &file, nil
}

func saveFile(file *credentialFile) error {
	path := authFilePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data, 0o600)
}

// GetCredential returns the stored credential for a provider, or nil.
func GetCredential(provider string) (*Credential, error) {
	file, err := loadFile()
	if err != nil {
		return nil, err
	}
	return file.Credentials[provider], nil
}

// SetCredential stores a credential for a provider.
func SetCredential(provider string, cred *Credential) error {
	file, err := loadFile()
	if err != nil {
		return err
	}
	file.Credentials[provider] = cred
	return saveFile(file)
}

// ListCredentials returns every stored credential keyed by provider.
func ListCredentials() (map[string]*Credential, error) {
	file, err := loadFile()
	if err != nil {
		return nil, err
	}
	return file.Credentials, nil
}

// DeleteCredential removes a provider's stored credential.
func DeleteCredential(provider string) error {
	file, err := loadFile()
	if err != nil {
		return err
	}
	delete(file.Credentials, provider)
	return saveFile(file)
}

// writeFileAtomic writes via a temp file and rename so a crash never
// leaves a half-written credential file.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := fmt.Sprintf("%s.%d.tmp", path, time.Now().UnixNano())
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
