package config

import (
	"fmt"
	"net/mail"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EnvWorkflowStateFile    = "TALLY_WORKFLOW_STATE_FILE"
	EnvWorkflowCompany      = "TALLY_WORKFLOW_COMPANY"
	EnvWorkflowManager      = "TALLY_WORKFLOW_MANAGER"
	EnvWorkflowInvoicing    = "TALLY_WORKFLOW_INVOICING"
	EnvWorkflowAccountant   = "TALLY_WORKFLOW_ACCOUNTANT"
	EnvWorkflowHourlyRate   = "TALLY_WORKFLOW_HOURLY_RATE"
	EnvWorkflowCurrency     = "TALLY_WORKFLOW_CURRENCY"
	EnvWorkflowKeywords     = "TALLY_WORKFLOW_KEYWORDS"
	EnvWorkflowEditTimeout  = "TALLY_WORKFLOW_EDIT_TIMEOUT"
	EnvWorkflowTickInterval = "TALLY_WORKFLOW_TICK_INTERVAL"
	EnvWorkflowTimezone     = "TALLY_WORKFLOW_TIMEZONE"
)

// DefaultKeywords are the approval phrases recognized without the classifier.
var DefaultKeywords = []string{"approved", "schvalene", "schvalujem", "suhlasim", "ok", "v poriadku"}

// WorkflowConfig holds the invoice cycle parameters.
type WorkflowConfig struct {
	StateFile     string           `toml:"state_file"`
	Company       string           `toml:"company"`
	Manager       string           `toml:"manager"`
	Invoicing     string           `toml:"invoicing"`
	Accountant    string           `toml:"accountant"`
	HourlyRate    int              `toml:"hourly_rate"`
	Currency      string           `toml:"currency"`
	MinHours      int              `toml:"min_hours"`
	MaxHours      int              `toml:"max_hours"`
	Keywords      []string         `toml:"keywords"`
	EditTimeout   string           `toml:"edit_timeout"`
	TickInterval  string           `toml:"tick_interval"`
	FirstReminder string           `toml:"first_reminder"`
	DailyReminder string           `toml:"daily_reminder"`
	Timezone      string           `toml:"timezone"`
	Classifier    ClassifierConfig `toml:"classifier"`
}

// EditTimeoutDuration returns EditTimeout as a time.Duration.
func (c *WorkflowConfig) EditTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.EditTimeout)
	return d
}

// TickIntervalDuration returns TickInterval as a time.Duration.
func (c *WorkflowConfig) TickIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.TickInterval)
	return d
}

// FirstReminderDuration returns FirstReminder as a time.Duration.
func (c *WorkflowConfig) FirstReminderDuration() time.Duration {
	d, _ := time.ParseDuration(c.FirstReminder)
	return d
}

// DailyReminderDuration returns DailyReminder as a time.Duration.
func (c *WorkflowConfig) DailyReminderDuration() time.Duration {
	d, _ := time.ParseDuration(c.DailyReminder)
	return d
}

// Location returns the configured timezone, falling back to local time.
func (c *WorkflowConfig) Location() *time.Location {
	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		return loc
	}
	return time.Local
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *WorkflowConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Classifier.Finalize(); err != nil {
		return fmt.Errorf("classifier: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *WorkflowConfig) Merge(overlay *WorkflowConfig) {
	mergeString(&c.StateFile, overlay.StateFile)
	mergeString(&c.Company, overlay.Company)
	mergeString(&c.Manager, overlay.Manager)
	mergeString(&c.Invoicing, overlay.Invoicing)
	mergeString(&c.Accountant, overlay.Accountant)
	mergeString(&c.Currency, overlay.Currency)
	mergeString(&c.EditTimeout, overlay.EditTimeout)
	mergeString(&c.TickInterval, overlay.TickInterval)
	mergeString(&c.FirstReminder, overlay.FirstReminder)
	mergeString(&c.DailyReminder, overlay.DailyReminder)
	mergeString(&c.Timezone, overlay.Timezone)
	if overlay.HourlyRate != 0 {
		c.HourlyRate = overlay.HourlyRate
	}
	if overlay.MinHours != 0 {
		c.MinHours = overlay.MinHours
	}
	if overlay.MaxHours != 0 {
		c.MaxHours = overlay.MaxHours
	}
	if len(overlay.Keywords) > 0 {
		c.Keywords = overlay.Keywords
	}
	c.Classifier.Merge(&overlay.Classifier)
}

func (c *WorkflowConfig) loadDefaults() {
	if c.StateFile == "" {
		c.StateFile = "data/workflow.json"
	}
	if c.Currency == "" {
		c.Currency = "EUR"
	}
	if c.MinHours == 0 {
		c.MinHours = 1
	}
	if c.MaxHours == 0 {
		c.MaxHours = 300
	}
	if len(c.Keywords) == 0 {
		c.Keywords = DefaultKeywords
	}
	if c.EditTimeout == "" {
		c.EditTimeout = "5m"
	}
	if c.TickInterval == "" {
		c.TickInterval = "1m"
	}
	if c.FirstReminder == "" {
		c.FirstReminder = "168h"
	}
	if c.DailyReminder == "" {
		c.DailyReminder = "336h"
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
}

func (c *WorkflowConfig) loadEnv() {
	setString := func(dst *string, env string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	setString(&c.StateFile, EnvWorkflowStateFile)
	setString(&c.Company, EnvWorkflowCompany)
	setString(&c.Manager, EnvWorkflowManager)
	setString(&c.Invoicing, EnvWorkflowInvoicing)
	setString(&c.Accountant, EnvWorkflowAccountant)
	setString(&c.Currency, EnvWorkflowCurrency)
	setString(&c.EditTimeout, EnvWorkflowEditTimeout)
	setString(&c.TickInterval, EnvWorkflowTickInterval)
	setString(&c.Timezone, EnvWorkflowTimezone)

	if v := os.Getenv(EnvWorkflowHourlyRate); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.HourlyRate = n
		}
	}
	if v := os.Getenv(EnvWorkflowKeywords); v != "" {
		c.Keywords = strings.Split(v, ",")
	}
}

func (c *WorkflowConfig) validate() error {
	if c.Company == "" {
		return fmt.Errorf("company required")
	}
	for name, addr := range map[string]string{
		"manager":    c.Manager,
		"invoicing":  c.Invoicing,
		"accountant": c.Accountant,
	} {
		if _, err := mail.ParseAddress(addr); err != nil {
			return fmt.Errorf("invalid %s address %q: %w", name, addr, err)
		}
	}
	if c.HourlyRate <= 0 {
		return fmt.Errorf("hourly_rate must be positive")
	}
	if c.MinHours < 1 || c.MaxHours < c.MinHours {
		return fmt.Errorf("invalid hours range %d-%d", c.MinHours, c.MaxHours)
	}
	for name, v := range map[string]string{
		"edit_timeout":   c.EditTimeout,
		"tick_interval":  c.TickInterval,
		"first_reminder": c.FirstReminder,
		"daily_reminder": c.DailyReminder,
	} {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.FirstReminderDuration() > c.DailyReminderDuration() {
		return fmt.Errorf("first_reminder cannot exceed daily_reminder")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone: %w", err)
	}
	return nil
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
