package handler

import (
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/channel"
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/guardrail"
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/knowledge"
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/pipeline"
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/quota"
)

// Shared handler dependencies, wired once from main
var (
	ingestion *pipeline.Pipeline
	channels  *channel.Manager
	docs      *knowledge.Service
	enforcer  *quota.Enforcer
	guard     *guardrail.Checker
)

// Deps bundles everything the handlers need
type Deps struct {
	Pipeline  *pipeline.Pipeline
	Channels  *channel.Manager
	Knowledge *knowledge.Service
	Quota     *quota.Enforcer
	Guardrail *guardrail.Checker
}

// Init stores the handler dependencies
func Init(d Deps) {
	ingestion = d.Pipeline
	channels = d.Channels
	docs = d.Knowledge
	enforcer = d.Quota
	guard = d.Guardrail
}
