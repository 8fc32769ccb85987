package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ValmirAutomacao/optusadmin-sub000/internal/knowledge"
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/llm"
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/model"
	"github.com/ValmirAutomacao/optusadmin-sub000/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FallbackReply is sent verbatim whenever the completion API fails. The user
// must never be left without a reply because of an upstream failure.
const FallbackReply = "Desculpe, estou com dificuldades técnicas no momento. " +
	"Vou transferir você para um de nossos atendentes."

const (
	knowledgeTopK = 3
	defaultTurns  = 10
)

// estimated cost per 1k tokens, keyed by model prefix
var costPer1KTokens = map[string]float64{
	"gpt-4o":      0.005,
	"gpt-4o-mini": 0.00015,
	"gpt-4":       0.03,
	"gpt-3.5":     0.0015,
}

// Orchestrator turns one inbound message into at most one completion call
// and a structured response for the pipeline to act on.
type Orchestrator struct {
	db           *gorm.DB
	log          *zap.Logger
	completer    llm.Completer
	store        *knowledge.Service
	defaultModel string
	historyTurns int
}

// NewOrchestrator wires the orchestrator's collaborators
func NewOrchestrator(db *gorm.DB, log *zap.Logger, completer llm.Completer, store *knowledge.Service, defaultModel string, historyTurns int) *Orchestrator {
	if historyTurns <= 0 {
		historyTurns = defaultTurns
	}
	return &Orchestrator{
		db:           db,
		log:          log,
		completer:    completer,
		store:        store,
		defaultModel: defaultModel,
		historyTurns: historyTurns,
	}
}

// Respond produces the reply and side effects for one user message.
// Exactly one completion request is sent; upstream failures produce the
// deterministic fallback plus a transfer action instead of an error.
func (o *Orchestrator) Respond(ctx context.Context, tenantID uint, conv *model.Conversation, userMessage string) (*Response, error) {
	cfg, err := ResolveActiveConfig(ctx, o.db, tenantID)
	if err != nil {
		if errors.Is(err, ErrNoActiveConfig) {
			o.log.Info("No active agent config, skipping automated reply",
				zap.Uint("tenant_id", tenantID))
			return &Response{ShouldRespond: false, NoActiveAgent: true}, nil
		}
		return nil, err
	}

	systemPrompt, err := o.buildSystemPrompt(ctx, tenantID, cfg, conv, userMessage)
	if err != nil {
		return nil, err
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = o.defaultModel
	}

	completion, err := o.completer.Complete(ctx, llm.Request{
		Model: modelName,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: userMessage},
		},
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	})
	if err != nil {
		prometheus.AgentFallbacksCounter.Inc()
		o.log.Error("Completion API failed, using fallback reply",
			zap.Uint("tenant_id", tenantID),
			zap.Uint("conversation_id", conv.ID),
			zap.Error(err))
		return &Response{
			ShouldRespond: true,
			Text:          FallbackReply,
			Actions:       []Action{{Type: ActionTransferHuman, Reason: ReasonTechnicalError}},
			ContextPatch:  ExtractContext(userMessage),
		}, nil
	}

	prometheus.AgentRepliesCounter.Inc()
	go o.logUsage(tenantID, conv.ID, modelName, completion)

	resp := &Response{
		ShouldRespond: true,
		Text:          completion.Content,
		ContextPatch:  ExtractContext(userMessage),
	}

	// Both classifiers may fire on the same message; insertion order here is
	// the order the executor applies them in.
	classified := userMessage + "\n" + completion.Content
	if DetectScheduling(classified) {
		resp.Actions = append(resp.Actions, Action{Type: ActionScheduleAppointment})
		prometheus.RecordAgentAction(string(ActionScheduleAppointment))
	}
	if DetectTransfer(classified) {
		resp.Actions = append(resp.Actions, Action{Type: ActionTransferHuman, Reason: ReasonUserRequest})
		prometheus.RecordAgentAction(string(ActionTransferHuman))
	}

	return resp, nil
}

// buildSystemPrompt assembles the single system message: the config's
// instructions (or rendered template), the top knowledge hits, the recent
// transcript and the conversation context.
func (o *Orchestrator) buildSystemPrompt(ctx context.Context, tenantID uint, cfg *model.AgentConfig, conv *model.Conversation, userMessage string) (string, error) {
	var b strings.Builder

	base, err := o.baseInstructions(ctx, tenantID, cfg)
	if err != nil {
		return "", err
	}
	b.WriteString(base)

	if o.store != nil {
		hits, err := o.store.Search(ctx, tenantID, userMessage, "", knowledgeTopK)
		if err != nil {
			// Retrieval failure degrades the prompt, not the reply
			o.log.Error("Knowledge search failed", zap.Uint("tenant_id", tenantID), zap.Error(err))
		} else if len(hits) > 0 {
			b.WriteString("\n\n### Informações adicionais\n")
			for _, hit := range hits {
				fmt.Fprintf(&b, "[%s] %s\n", hit.DocumentName, hit.ChunkText)
			}
		}
	}

	turns, err := o.recentTurns(ctx, conv.ID)
	if err != nil {
		return "", err
	}
	if len(turns) > 0 {
		b.WriteString("\n\n### Histórico recente\n")
		for _, msg := range turns {
			role := "Cliente"
			if msg.Direction == model.DirectionOutbound {
				role = "Assistente"
			}
			fmt.Fprintf(&b, "%s: %s\n", role, msg.Content)
		}
	}

	if len(conv.Context) > 0 {
		b.WriteString("\n### Contexto da conversa\n")
		for k, v := range conv.Context {
			fmt.Fprintf(&b, "%s: %v\n", k, v)
		}
	}

	return b.String(), nil
}

func (o *Orchestrator) baseInstructions(ctx context.Context, tenantID uint, cfg *model.AgentConfig) (string, error) {
	if cfg.TemplateID == nil {
		return cfg.Instructions, nil
	}

	var tpl model.PromptTemplate
	if err := o.db.WithContext(ctx).First(&tpl, *cfg.TemplateID).Error; err != nil {
		return "", fmt.Errorf("failed to load prompt template: %w", err)
	}

	var tenant model.Tenant
	if err := o.db.WithContext(ctx).First(&tenant, tenantID).Error; err != nil {
		return "", fmt.Errorf("failed to load tenant profile: %w", err)
	}

	rendered, warnings, err := RenderTemplate(&tpl, map[string]string{
		"tenant_name": tenant.Name,
		"segment":     tenant.Segment,
		"description": tenant.Description,
	})
	if err != nil {
		return "", err
	}
	for _, w := range warnings {
		o.log.Warn("Prompt template warning",
			zap.String("template", tpl.Name), zap.String("warning", w))
	}
	return rendered, nil
}

// recentTurns returns the last N transcript messages in oldest-first order
func (o *Orchestrator) recentTurns(ctx context.Context, conversationID uint) ([]model.Message, error) {
	var msgs []model.Message
	err := o.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("id DESC").
		Limit(o.historyTurns).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}

	// Reverse into chronological order
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// logUsage records token usage asynchronously. A failed write is logged and
// dropped; usage accounting never fails an orchestration.
func (o *Orchestrator) logUsage(tenantID, conversationID uint, modelName string, c *llm.Completion) {
	row := model.UsageLog{
		TenantID:         tenantID,
		ConversationID:   conversationID,
		Model:            modelName,
		PromptTokens:     c.PromptTokens,
		CompletionTokens: c.CompletionTokens,
		TotalTokens:      c.TotalTokens,
		EstimatedCost:    estimateCost(modelName, c.TotalTokens),
	}
	if err := o.db.Create(&row).Error; err != nil {
		o.log.Error("Failed to record usage log",
			zap.Uint("tenant_id", tenantID), zap.Error(err))
	}
}

func estimateCost(modelName string, totalTokens int) float64 {
	price := 0.002
	best := 0
	for prefix, p := range costPer1KTokens {
		if strings.HasPrefix(modelName, prefix) && len(prefix) > best {
			price = p
			best = len(prefix)
		}
	}
	return float64(totalTokens) / 1000 * price
}
