package config

import (
	"errors"
	"os"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
)

const (
	EnvAgentProviderName = "TALLY_AGENT_PROVIDER_NAME"
	EnvAgentBaseURL      = "TALLY_AGENT_BASE_URL"
	EnvAgentToken        = "TALLY_AGENT_TOKEN"
	EnvAgentDeployment   = "TALLY_AGENT_DEPLOYMENT"
	EnvAgentAPIVersion   = "TALLY_AGENT_API_VERSION"
	EnvAgentAuthType     = "TALLY_AGENT_AUTH_TYPE"
	EnvAgentModelName    = "TALLY_AGENT_MODEL_NAME"
)

// ClassifierAgentName replaces the go-agents default name so provider logs
// identify the caller.
const ClassifierAgentName = "tally-classifier"

// agentOptions maps env variables to provider option keys. Azure needs
// deployment and api_version; the token covers every hosted provider.
var agentOptions = []struct{ env, key string }{
	{EnvAgentToken, "token"},
	{EnvAgentDeployment, "deployment"},
	{EnvAgentAPIVersion, "api_version"},
	{EnvAgentAuthType, "auth_type"},
}

// FinalizeAgent completes the classifier's go-agents config. The [agent]
// table is laid over the library defaults, then TALLY_AGENT_* variables
// apply. Only an enabled classifier calls it.
func FinalizeAgent(c *gaconfig.AgentConfig) error {
	merged := gaconfig.DefaultAgentConfig()
	merged.Name = ClassifierAgentName
	merged.Merge(c)
	*c = merged

	if c.Provider == nil {
		c.Provider = gaconfig.DefaultProviderConfig()
	}
	if c.Provider.Options == nil {
		c.Provider.Options = make(map[string]any)
	}
	if c.Model == nil {
		c.Model = gaconfig.DefaultModelConfig()
	}

	mergeString(&c.Provider.Name, os.Getenv(EnvAgentProviderName))
	mergeString(&c.Provider.BaseURL, os.Getenv(EnvAgentBaseURL))
	mergeString(&c.Model.Name, os.Getenv(EnvAgentModelName))
	for _, opt := range agentOptions {
		if v := os.Getenv(opt.env); v != "" {
			c.Provider.Options[opt.key] = v
		}
	}

	var errs []error
	if c.Provider.Name == "" {
		errs = append(errs, errors.New("provider name required"))
	}
	if c.Model.Name == "" {
		errs = append(errs, errors.New("model name required: the classifier sends chat and vision requests to it"))
	}
	return errors.Join(errs...)
}
