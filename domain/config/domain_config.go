package config

import (
	"fmt"
	"time"
)

// DomainConfig holds the business limits applied by the node service
type DomainConfig struct {
	// Listing
	DefaultListLimit int
	MaxListLimit     int

	// Node constraints
	MaxTitleLength         int
	MaxPropertyNameLength  int
	MaxReferencesPerSet    int
	RequireExistingTargets bool

	// Transactions
	MaxTransactionAttempts int
	TransactionBaseDelay   time.Duration
	TransactionMaxDelay    time.Duration
	NeighbourReadFanOut    int

	// Changelog
	ChangelogPageSize   int
	ChangelogSkipUsers  []string
	RecordFullNodeInLog bool

	// Read cache
	NodeCacheTTL time.Duration
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		DefaultListLimit: 20,
		MaxListLimit:     100,

		MaxTitleLength:         500,
		MaxPropertyNameLength:  200,
		MaxReferencesPerSet:    1000,
		RequireExistingTargets: true,

		MaxTransactionAttempts: 5,
		TransactionBaseDelay:   50 * time.Millisecond,
		TransactionMaxDelay:    2 * time.Second,
		NeighbourReadFanOut:    8,

		ChangelogPageSize:   20,
		ChangelogSkipUsers:  []string{"ouhrac"},
		RecordFullNodeInLog: true,

		NodeCacheTTL: 5 * time.Minute,
	}
}

// ProductionDomainConfig returns production-specific configuration
func ProductionDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()
	config.MaxTransactionAttempts = 8
	return config
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()
	config.TransactionBaseDelay = 5 * time.Millisecond
	config.TransactionMaxDelay = 100 * time.Millisecond
	config.NodeCacheTTL = 30 * time.Second
	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "production":
		return ProductionDomainConfig()
	case "development", "test":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// ClampListLimit applies the default and maximum page size to a requested limit
func (c *DomainConfig) ClampListLimit(limit int) int {
	if limit <= 0 {
		return c.DefaultListLimit
	}
	if limit > c.MaxListLimit {
		return c.MaxListLimit
	}
	return limit
}

// SkipsChangelogFor reports whether changes made by user are not logged
func (c *DomainConfig) SkipsChangelogFor(user string) bool {
	for _, u := range c.ChangelogSkipUsers {
		if u == user {
			return true
		}
	}
	return false
}

// Validate checks if the configuration is valid
func (c *DomainConfig) Validate() error {
	if c.DefaultListLimit <= 0 || c.MaxListLimit < c.DefaultListLimit {
		return fmt.Errorf("invalid list limits: default %d, max %d", c.DefaultListLimit, c.MaxListLimit)
	}
	if c.MaxTransactionAttempts < 1 {
		return fmt.Errorf("max transaction attempts must be at least 1")
	}
	if c.NeighbourReadFanOut < 1 {
		return fmt.Errorf("neighbour read fan-out must be at least 1")
	}
	return nil
}
