package azure

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"gopkg.in/ini.v1"
)

const (
	DefaultProfile = "default"
)

// Config is the Azure CLI profile the single-subscription variant runs
// against.
type Config struct {
	Profile        string
	SubscriptionID string
	TenantID       string
}

func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("unable to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".azure", "config"), nil
}

// LoadConfig reads a profile section from an Azure CLI style ini file.
func LoadConfig(path, profile string) (*Config, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	if path == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("unable to load Azure config file: %w", err)
	}

	section, err := cfg.GetSection(profile)
	if err != nil {
		return nil, fmt.Errorf("profile %s not found in Azure config: %w", profile, err)
	}

	config := &Config{
		Profile:        profile,
		SubscriptionID: section.Key("subscription").String(),
		TenantID:       section.Key("tenant").String(),
	}
	if config.SubscriptionID == "" {
		return nil, fmt.Errorf("subscription ID not found in profile %s", profile)
	}
	return config, nil
}

// NewCredential authenticates through the signed-in Azure CLI session,
// scoped to tenant when one is given.
func NewCredential(tenant string) (azcore.TokenCredential, error) {
	cred, err := azidentity.NewAzureCLICredential(&azidentity.AzureCLICredentialOptions{
		TenantID: tenant,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure CLI credential: %w", err)
	}
	return cred, nil
}
