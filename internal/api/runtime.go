package api

import (
	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/JaimeStill/tally/internal/config"
	"github.com/JaimeStill/tally/internal/infrastructure"
	"github.com/JaimeStill/tally/pkg/pagination"
)

// Runtime extends Infrastructure with the configuration the API domain
// systems are built from.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination    pagination.Config
	MaxUpload     int64
	ArchivePrefix string
	Agent         gaconfig.AgentConfig
	Workflow      config.WorkflowConfig
	Mailbox       config.MailboxConfig
	Watcher       config.WatcherConfig
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    infra.Logger.With("module", "api"),
			Database:  infra.Database,
			Storage:   infra.Storage,
			State:     infra.State,
		},
		Pagination:    cfg.API.Pagination,
		MaxUpload:     cfg.API.MaxUploadSizeBytes(),
		ArchivePrefix: cfg.Storage.ArchivePrefix,
		Agent:         cfg.Agent,
		Workflow:      cfg.Workflow,
		Mailbox:       cfg.Mailbox,
		Watcher:       cfg.Watcher,
	}
}
