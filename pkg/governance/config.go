package governance

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Well-known evidence external ids that populate model-level fields.
const (
	ExternalIDSystemID        = "system-id"
	ExternalIDApplicationType = "application-type"
	ExternalIDServiceLevel    = "service-level"
)

// Config controls which bundles are recognised and how evidence maps onto
// model fields.
type Config struct {
	// PolicyMatch is matched case-insensitively as a substring of policy
	// display names. A bundle needs at least one matching policy.
	PolicyMatch string `yaml:"policyMatch" json:"policyMatch"`

	// AttachmentType is the attachment type that identifies a model version.
	AttachmentType string `yaml:"attachmentType" json:"attachmentType"`

	// Concurrency bounds in-flight policy and evidence fetches.
	Concurrency int `yaml:"concurrency" json:"concurrency"`

	ExternalIDs ExternalIDConfig `yaml:"externalIds" json:"externalIds"`
}

// ExternalIDConfig names the evidence external ids read into model fields.
type ExternalIDConfig struct {
	SystemID        string `yaml:"systemId" json:"systemId"`
	ApplicationType string `yaml:"applicationType" json:"applicationType"`
	ServiceLevel    string `yaml:"serviceLevel" json:"serviceLevel"`
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() *Config {
	return &Config{
		PolicyMatch:    "[fitch",
		AttachmentType: "ModelVersion",
		Concurrency:    8,
		ExternalIDs: ExternalIDConfig{
			SystemID:        ExternalIDSystemID,
			ApplicationType: ExternalIDApplicationType,
			ServiceLevel:    ExternalIDServiceLevel,
		},
	}
}

// LoadConfig loads pipeline configuration from a YAML file. Fields missing
// from the file keep their defaults. A missing file yields DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read pipeline config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse pipeline config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

// normalize restores defaults for zero values that would disable the pipeline.
func (c *Config) normalize() {
	def := DefaultConfig()
	if c.AttachmentType == "" {
		c.AttachmentType = def.AttachmentType
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.ExternalIDs.SystemID == "" {
		c.ExternalIDs.SystemID = def.ExternalIDs.SystemID
	}
	if c.ExternalIDs.ApplicationType == "" {
		c.ExternalIDs.ApplicationType = def.ExternalIDs.ApplicationType
	}
	if c.ExternalIDs.ServiceLevel == "" {
		c.ExternalIDs.ServiceLevel = def.ExternalIDs.ServiceLevel
	}
}
