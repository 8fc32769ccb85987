package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ValmirAutomacao/optusadmin-sub000/internal/action"
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/agent"
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/channel"
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/llm"
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/model"
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/testutil"
)

type stubCompleter struct {
	mu    sync.Mutex
	reply string
	calls int
}

func (s *stubCompleter) Complete(context.Context, llm.Request) (*llm.Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return &llm.Completion{Content: s.reply, TotalTokens: 10}, nil
}

func (s *stubCompleter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fixture struct {
	db       *gorm.DB
	pipeline *Pipeline
	stub     *stubCompleter
	sent     *[]map[string]string
	tenantID uint
	channel  *model.ChannelResource
}

func newFixture(t *testing.T, reply string) *fixture {
	t.Helper()

	db := testutil.OpenTestDB(t)
	log := testutil.Logger()

	var (
		mu   sync.Mutex
		sent []map[string]string
	)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /message/send-text", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		sent = append(sent, body)
		mu.Unlock()
		json.NewEncoder(w).Encode(channel.SendResult{Response: "ok"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	tenantID := testutil.SeedTenant(t, db, "pipe-"+t.Name())
	require.NoError(t, db.Create(&model.AgentConfig{
		TenantID:     &tenantID,
		Name:         "padrao",
		Model:        "gpt-4o-mini",
		Instructions: "Seja cordial.",
		Active:       true,
	}).Error)

	ch := model.ChannelResource{
		TenantID:   tenantID,
		ProviderID: "prov-" + t.Name(),
		Status:     model.ChannelConnected,
		Token:      "tok",
	}
	require.NoError(t, db.Create(&ch).Error)

	stub := &stubCompleter{reply: reply}
	orchestrator := agent.NewOrchestrator(db, log, stub, nil, "gpt-4o", 10)
	executor := action.NewExecutor(db, log, channel.NewClient(srv.URL, "key"))

	return &fixture{
		db:       db,
		pipeline: New(db, log, orchestrator, executor),
		stub:     stub,
		sent:     &sent,
		tenantID: tenantID,
		channel:  &ch,
	}
}

func (f *fixture) event(from, body string) InboundEvent {
	return InboundEvent{
		ChannelProviderID: f.channel.ProviderID,
		From:              from,
		Body:              body,
		Type:              "text",
		Timestamp:         time.Now().Unix(),
	}
}

func TestHandleEventRepliesAndPersistsTranscript(t *testing.T) {
	f := newFixture(t, "Olá! Em que posso ajudar?")

	f.pipeline.HandleEvent(context.Background(), f.event("5511977770001", "bom dia"))

	var conv model.Conversation
	require.NoError(t, f.db.Where("channel_id = ? AND contact = ?",
		f.channel.ID, "5511977770001").First(&conv).Error)
	assert.Equal(t, model.ConversationActive, conv.Status)
	assert.Equal(t, "greeting", conv.Context["stage"])

	var msgs []model.Message
	require.NoError(t, f.db.Where("conversation_id = ?", conv.ID).Order("id").Find(&msgs).Error)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.DirectionInbound, msgs[0].Direction)
	assert.Equal(t, "bom dia", msgs[0].Content)
	assert.True(t, msgs[0].Processed)
	assert.Equal(t, model.DirectionOutbound, msgs[1].Direction)
	assert.Equal(t, "Olá! Em que posso ajudar?", msgs[1].Content)

	require.Len(t, *f.sent, 1)
	assert.Equal(t, "5511977770001", (*f.sent)[0]["phone"])
}

func TestHandleEventUnknownChannelDropped(t *testing.T) {
	f := newFixture(t, "nunca enviado")

	f.pipeline.HandleEvent(context.Background(), InboundEvent{
		ChannelProviderID: "does-not-exist",
		From:              "5511977770002",
		Body:              "oi",
	})

	var count int64
	require.NoError(t, f.db.Model(&model.Conversation{}).Count(&count).Error)
	assert.Zero(t, count, "dropped events create nothing")
	assert.Zero(t, f.stub.callCount())
}

func TestHandleEventDisconnectedChannelDropped(t *testing.T) {
	f := newFixture(t, "nunca enviado")
	require.NoError(t, f.db.Model(f.channel).
		UpdateColumn("status", model.ChannelDisconnected).Error)

	f.pipeline.HandleEvent(context.Background(), f.event("5511977770003", "oi"))

	var count int64
	require.NoError(t, f.db.Model(&model.Conversation{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestHandleEventWaitingHumanKeepsQuiet(t *testing.T) {
	f := newFixture(t, "nunca enviado")

	conv := model.Conversation{
		ChannelID:      f.channel.ID,
		Contact:        "5511977770004",
		Status:         model.ConversationWaitingHuman,
		LastActivityAt: time.Now(),
	}
	require.NoError(t, f.db.Create(&conv).Error)

	f.pipeline.HandleEvent(context.Background(), f.event("5511977770004", "alguém aí?"))

	// The message still joins the transcript
	var msgs []model.Message
	require.NoError(t, f.db.Where("conversation_id = ?", conv.ID).Find(&msgs).Error)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.DirectionInbound, msgs[0].Direction)

	assert.Zero(t, f.stub.callCount(), "no agent call while a human owns the conversation")
	assert.Empty(t, *f.sent)
}

func TestHandleEventMergesContextPatch(t *testing.T) {
	f := newFixture(t, "Prazer, Bruno!")

	f.pipeline.HandleEvent(context.Background(), f.event("5511977770005", "meu nome é Bruno"))

	var conv model.Conversation
	require.NoError(t, f.db.Where("contact = ?", "5511977770005").First(&conv).Error)
	assert.Equal(t, "Bruno", conv.Context["customer_name"])
	assert.Equal(t, "greeting", conv.Context["stage"], "existing keys survive the merge")
}

func TestHandleEventReusesActiveConversation(t *testing.T) {
	f := newFixture(t, "Certo!")

	ctx := context.Background()
	f.pipeline.HandleEvent(ctx, f.event("5511977770006", "primeira"))
	f.pipeline.HandleEvent(ctx, f.event("5511977770006", "segunda"))

	var count int64
	require.NoError(t, f.db.Model(&model.Conversation{}).
		Where("contact = ?", "5511977770006").Count(&count).Error)
	assert.Equal(t, int64(1), count, "one conversation per (channel, contact)")

	var msgs int64
	require.NoError(t, f.db.Model(&model.Message{}).
		Where("direction = ?", model.DirectionInbound).Count(&msgs).Error)
	assert.Equal(t, int64(2), msgs)
}

func TestHandleEventTransferStopsFollowingReplies(t *testing.T) {
	f := newFixture(t, "Vou te passar para um atendente.")

	ctx := context.Background()
	f.pipeline.HandleEvent(ctx, f.event("5511977770007", "quero falar com atendente"))

	var conv model.Conversation
	require.NoError(t, f.db.Where("contact = ?", "5511977770007").First(&conv).Error)
	assert.Equal(t, model.ConversationWaitingHuman, conv.Status)

	before := f.stub.callCount()
	f.pipeline.HandleEvent(ctx, f.event("5511977770007", "ainda estou esperando"))
	assert.Equal(t, before, f.stub.callCount(), "transferred conversation gets no agent")
}

func TestHandleEventAbsorbsPanics(t *testing.T) {
	f := newFixture(t, "ok")
	// A pipeline with no orchestrator panics mid-process; the boundary
	// must swallow it.
	broken := New(f.db, testutil.Logger(), nil, nil)

	assert.NotPanics(t, func() {
		broken.HandleEvent(context.Background(), f.event("5511977770008", "oi"))
	})
}

func TestConversationLocksSerializeSameKey(t *testing.T) {
	locks := newConversationLocks()

	var (
		mu      sync.Mutex
		running int
		max     int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.acquire("same-key")
			defer release()

			mu.Lock()
			running++
			if running > max {
				max = running
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			running--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, max, "same key never runs concurrently")
}

func TestSweepAbandonsStaleConversations(t *testing.T) {
	f := newFixture(t, "ok")

	stale := model.Conversation{
		ChannelID:      f.channel.ID,
		Contact:        "5511977770009",
		Status:         model.ConversationActive,
		LastActivityAt: time.Now().Add(-2 * time.Hour),
	}
	fresh := model.Conversation{
		ChannelID:      f.channel.ID,
		Contact:        "5511977770010",
		Status:         model.ConversationActive,
		LastActivityAt: time.Now(),
	}
	parked := model.Conversation{
		ChannelID:      f.channel.ID,
		Contact:        "5511977770011",
		Status:         model.ConversationWaitingHuman,
		LastActivityAt: time.Now().Add(-2 * time.Hour),
	}
	for _, c := range []*model.Conversation{&stale, &fresh, &parked} {
		require.NoError(t, f.db.Create(c).Error)
	}

	sweep(context.Background(), f.db, testutil.Logger(), time.Hour)

	var got model.Conversation
	require.NoError(t, f.db.First(&got, stale.ID).Error)
	assert.Equal(t, model.ConversationAbandoned, got.Status)

	got = model.Conversation{}
	require.NoError(t, f.db.First(&got, fresh.ID).Error)
	assert.Equal(t, model.ConversationActive, got.Status)

	got = model.Conversation{}
	require.NoError(t, f.db.First(&got, parked.ID).Error)
	assert.Equal(t, model.ConversationWaitingHuman, got.Status,
		"only active conversations are swept")
}
