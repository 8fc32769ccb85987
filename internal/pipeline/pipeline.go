package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ValmirAutomacao/optusadmin-sub000/internal/action"
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/agent"
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/model"
	"github.com/ValmirAutomacao/optusadmin-sub000/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// InboundEvent is one message event as delivered by the provider webhook
type InboundEvent struct {
	ChannelProviderID string `json:"channelProviderId"`
	From              string `json:"from"`
	Body              string `json:"body"`
	Type              string `json:"type"`
	Timestamp         int64  `json:"timestamp"`
}

// Pipeline coordinates one inbound event end to end: conversation lookup,
// orchestration, reply delivery, action application and context merge.
// Events for the same (channel, contact) pair are processed strictly in
// order under a per-conversation lock; different conversations proceed in
// parallel.
type Pipeline struct {
	db           *gorm.DB
	log          *zap.Logger
	orchestrator *agent.Orchestrator
	executor     *action.Executor
	locks        *conversationLocks
}

// New creates the ingestion pipeline
func New(db *gorm.DB, log *zap.Logger, orchestrator *agent.Orchestrator, executor *action.Executor) *Pipeline {
	return &Pipeline{
		db:           db,
		log:          log,
		orchestrator: orchestrator,
		executor:     executor,
		locks:        newConversationLocks(),
	}
}

// HandleEvent processes one inbound event. Errors and panics are absorbed at
// this boundary: a malformed event is logged with its payload and never
// crashes the ingestion loop. Once the conversation lock is taken the event
// runs to completion before the lock is released.
func (p *Pipeline) HandleEvent(ctx context.Context, event InboundEvent) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("Panic while processing inbound event",
				zap.String("channel_provider_id", event.ChannelProviderID),
				zap.String("from", event.From),
				zap.Any("panic", r))
			prometheus.RecordMessageProcessed("panic")
		}
	}()

	// Step 1: resolve the source channel; unknown or disconnected drops the
	// event with nothing but a log line.
	ch, err := p.resolveChannel(ctx, event.ChannelProviderID)
	if err != nil {
		p.log.Info("Dropping event from unknown or disconnected channel",
			zap.String("channel_provider_id", event.ChannelProviderID),
			zap.String("from", event.From),
			zap.Error(err))
		prometheus.RecordMessageDropped("unknown_channel")
		return
	}

	// Steps 3-7 are serialized per conversation key
	key := fmt.Sprintf("%d:%s", ch.ID, event.From)
	release := p.locks.acquire(key)
	defer release()

	if err := p.process(ctx, ch, event); err != nil {
		p.log.Error("Failed to process inbound event",
			zap.String("channel_provider_id", event.ChannelProviderID),
			zap.String("from", event.From),
			zap.String("body", event.Body),
			zap.Error(err))
		prometheus.RecordMessageProcessed("error")
		return
	}
	prometheus.RecordMessageProcessed("ok")
}

func (p *Pipeline) process(ctx context.Context, ch *model.ChannelResource, event InboundEvent) error {
	conv, err := p.loadOrCreateConversation(ctx, ch, event.From)
	if err != nil {
		return err
	}

	// Step 2: the inbound message always joins the transcript, even when no
	// automated reply follows.
	inbound := model.Message{
		ConversationID: conv.ID,
		Direction:      model.DirectionInbound,
		Content:        event.Body,
		Type:           messageType(event.Type),
	}
	if err := p.db.WithContext(ctx).Create(&inbound).Error; err != nil {
		return fmt.Errorf("failed to persist inbound message: %w", err)
	}

	if err := p.touch(ctx, conv); err != nil {
		return err
	}

	// Step 3: a conversation waiting for a human gets no automated handling
	if conv.Status == model.ConversationWaitingHuman {
		p.log.Debug("Conversation waiting for human, skipping agent",
			zap.Uint("conversation_id", conv.ID))
		prometheus.RecordMessageProcessed("waiting_human")
		return nil
	}

	// Step 4: one orchestration per inbound message
	resp, err := p.orchestrator.Respond(ctx, ch.TenantID, conv, event.Body)
	if err != nil {
		return fmt.Errorf("orchestration failed: %w", err)
	}

	// Step 5: the reply goes out before any detected action is applied
	if resp.ShouldRespond {
		if err := p.executor.SendReply(ctx, ch, conv, &inbound, resp.Text); err != nil {
			p.log.Error("Failed to deliver reply",
				zap.Uint("conversation_id", conv.ID), zap.Error(err))
		}
	}

	// Step 6: apply actions in production order
	if len(resp.Actions) > 0 {
		p.executor.Apply(ctx, ch, conv, resp.Actions)
	}

	// Step 7: merge the context patch; existing keys survive
	if len(resp.ContextPatch) > 0 {
		conv.Context = conv.Context.Merge(resp.ContextPatch)
		if err := p.db.WithContext(ctx).Model(conv).
			UpdateColumn("context", conv.Context).Error; err != nil {
			return fmt.Errorf("failed to merge conversation context: %w", err)
		}
	}

	return nil
}

func (p *Pipeline) resolveChannel(ctx context.Context, providerID string) (*model.ChannelResource, error) {
	var ch model.ChannelResource
	err := p.db.WithContext(ctx).Where("provider_id = ?", providerID).First(&ch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("unknown channel %q", providerID)
		}
		return nil, fmt.Errorf("failed to resolve channel: %w", err)
	}
	if ch.Status == model.ChannelDisconnected {
		return nil, fmt.Errorf("channel %q is disconnected", providerID)
	}
	return &ch, nil
}

// loadOrCreateConversation reuses the single active conversation for the
// (channel, contact) pair, or starts a new one in the greeting stage.
func (p *Pipeline) loadOrCreateConversation(ctx context.Context, ch *model.ChannelResource, contact string) (*model.Conversation, error) {
	var conv model.Conversation
	err := p.db.WithContext(ctx).
		Where("channel_id = ? AND contact = ? AND status IN ?", ch.ID, contact,
			[]model.ConversationStatus{model.ConversationActive, model.ConversationWaitingHuman}).
		First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	conv = model.Conversation{
		ChannelID:      ch.ID,
		Contact:        contact,
		Status:         model.ConversationActive,
		Context:        model.JSONMap{"stage": "greeting"},
		LastActivityAt: time.Now(),
	}
	if err := p.db.WithContext(ctx).Create(&conv).Error; err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return &conv, nil
}

func (p *Pipeline) touch(ctx context.Context, conv *model.Conversation) error {
	now := time.Now()
	conv.LastActivityAt = now
	err := p.db.WithContext(ctx).Model(conv).
		UpdateColumn("last_activity_at", now).Error
	if err != nil {
		return fmt.Errorf("failed to update conversation activity: %w", err)
	}
	return nil
}

func messageType(t string) string {
	if t == "" {
		return "text"
	}
	return t
}
