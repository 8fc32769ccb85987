package action

import (
	"context"
	"fmt"
	"time"

	"github.com/ValmirAutomacao/optusadmin-sub000/internal/agent"
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/channel"
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MenuReply is the fixed options message for the send_menu action
const MenuReply = "Como posso ajudar?\n" +
	"1 - Agendar um horário\n" +
	"2 - Informações sobre nossos serviços\n" +
	"3 - Falar com um atendente"

// Executor applies the orchestrator's actions to the conversation, in order.
// One action failing does not stop the rest; failures are logged.
type Executor struct {
	db     *gorm.DB
	log    *zap.Logger
	client *channel.Client
}

// NewExecutor creates an action executor
func NewExecutor(db *gorm.DB, log *zap.Logger, client *channel.Client) *Executor {
	return &Executor{db: db, log: log, client: client}
}

// SendReply delivers the reply through the channel provider and records it.
// The order is fixed: provider send, then persist the outbound message, then
// mark the inbound message processed. A failed send persists nothing, so the
// transcript never claims a reply that was not delivered.
func (e *Executor) SendReply(ctx context.Context, ch *model.ChannelResource, conv *model.Conversation, inbound *model.Message, text string) error {
	result, err := e.client.SendText(ctx, ch.Token, conv.Contact, text)
	if err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}

	outbound := model.Message{
		ConversationID: conv.ID,
		Direction:      model.DirectionOutbound,
		Content:        text,
		Type:           "text",
		Processed:      true,
	}
	if err := e.db.WithContext(ctx).Create(&outbound).Error; err != nil {
		return fmt.Errorf("failed to persist outbound message: %w", err)
	}

	if inbound != nil {
		err = e.db.WithContext(ctx).Model(inbound).Updates(map[string]interface{}{
			"processed": true,
			"reply":     text,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to mark inbound message processed: %w", err)
		}
	}

	e.log.Debug("Reply sent",
		zap.Uint("conversation_id", conv.ID),
		zap.String("provider_message_id", result.MessageID))
	return nil
}

// Apply executes the detected actions sequentially in the order produced.
// The policy is log-and-continue: a failure is recorded and the next action
// still runs.
func (e *Executor) Apply(ctx context.Context, ch *model.ChannelResource, conv *model.Conversation, actions []agent.Action) {
	for _, act := range actions {
		var err error
		switch act.Type {
		case agent.ActionScheduleAppointment:
			err = e.startScheduling(ctx, conv)
		case agent.ActionTransferHuman:
			err = e.transferToHuman(ctx, conv, act.Reason)
		case agent.ActionSendMenu:
			err = e.sendMenu(ctx, ch, conv)
		default:
			e.log.Warn("Unknown action type", zap.String("type", string(act.Type)))
			continue
		}
		if err != nil {
			e.log.Error("Action failed",
				zap.String("type", string(act.Type)),
				zap.Uint("conversation_id", conv.ID),
				zap.Error(err))
		}
	}
}

// startScheduling only advances the conversation stage; the scheduling
// domain itself takes over from there.
func (e *Executor) startScheduling(ctx context.Context, conv *model.Conversation) error {
	conv.Context = conv.Context.Merge(map[string]interface{}{"stage": "scheduling"})
	err := e.db.WithContext(ctx).Model(conv).
		UpdateColumn("context", conv.Context).Error
	if err != nil {
		return fmt.Errorf("failed to advance conversation to scheduling: %w", err)
	}
	return nil
}

// transferToHuman parks the conversation for a human. The pipeline stops
// auto-responding until something outside changes the status back.
func (e *Executor) transferToHuman(ctx context.Context, conv *model.Conversation, reason string) error {
	now := time.Now()
	conv.Status = model.ConversationWaitingHuman
	conv.TransferReason = reason
	conv.TransferredAt = &now

	err := e.db.WithContext(ctx).Model(conv).Updates(map[string]interface{}{
		"status":          model.ConversationWaitingHuman,
		"transfer_reason": reason,
		"transferred_at":  now,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to transfer conversation: %w", err)
	}

	e.log.Info("Conversation transferred to human",
		zap.Uint("conversation_id", conv.ID),
		zap.String("reason", reason))
	return nil
}

func (e *Executor) sendMenu(ctx context.Context, ch *model.ChannelResource, conv *model.Conversation) error {
	return e.SendReply(ctx, ch, conv, nil, MenuReply)
}
