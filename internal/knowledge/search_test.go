package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ValmirAutomacao/optusadmin-sub000/internal/model"
	"github.com/ValmirAutomacao/optusadmin-sub000/internal/testutil"
)

func seedDoc(t *testing.T, db *gorm.DB, tenantID uint, name, category string, status model.DocumentStatus, active bool, chunks ...string) uint {
	t.Helper()

	doc := model.KnowledgeDocument{
		TenantID: tenantID,
		Name:     name,
		Category: category,
		MimeType: "text/plain",
		Status:   status,
		Active:   active,
		Chunks:   model.StringSlice(chunks),
	}
	require.NoError(t, db.Create(&doc).Error)
	return doc.ID
}

func TestSearchDiscardsLowRelevanceChunks(t *testing.T) {
	db := testutil.OpenTestDB(t)
	svc := NewService(db, testutil.Logger(), t.TempDir(), 1<<20)
	tenantID := testutil.SeedTenant(t, db, "clinica-a")

	// 1 of 10 words matches: score exactly 0.1, at the floor, must be dropped.
	// 3 of 10 match: 0.3, kept.
	seedDoc(t, db, tenantID, "faq", "", model.DocumentReady, true,
		"consulta one two three four five six seven eight nine",
		"consulta consulta consulta four five six seven eight nine ten")

	results, err := svc.Search(context.Background(), tenantID, "consulta", "", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 0.3, results[0].Relevance, 1e-9)
	assert.Contains(t, results[0].ChunkText, "consulta consulta consulta")
}

func TestSearchOrdersByDescendingRelevance(t *testing.T) {
	db := testutil.OpenTestDB(t)
	svc := NewService(db, testutil.Logger(), t.TempDir(), 1<<20)
	tenantID := testutil.SeedTenant(t, db, "clinica-b")

	seedDoc(t, db, tenantID, "low", "", model.DocumentReady, true,
		"preço one two three four")
	seedDoc(t, db, tenantID, "high", "", model.DocumentReady, true,
		"preço preço preço preço one")

	results, err := svc.Search(context.Background(), tenantID, "preço", "", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "high", results[0].DocumentName)
	assert.Equal(t, "low", results[1].DocumentName)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Relevance, results[i].Relevance)
	}
}

func TestSearchStableOrderForEqualScores(t *testing.T) {
	db := testutil.OpenTestDB(t)
	svc := NewService(db, testutil.Logger(), t.TempDir(), 1<<20)
	tenantID := testutil.SeedTenant(t, db, "clinica-c")

	first := seedDoc(t, db, tenantID, "first", "", model.DocumentReady, true,
		"horário aberto das oito")
	second := seedDoc(t, db, tenantID, "second", "", model.DocumentReady, true,
		"horário fecha às dezoito")

	results, err := svc.Search(context.Background(), tenantID, "horário", "", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	// Ties keep document insertion order
	assert.Equal(t, first, results[0].DocumentID)
	assert.Equal(t, second, results[1].DocumentID)
}

func TestSearchHonorsLimit(t *testing.T) {
	db := testutil.OpenTestDB(t)
	svc := NewService(db, testutil.Logger(), t.TempDir(), 1<<20)
	tenantID := testutil.SeedTenant(t, db, "clinica-d")

	seedDoc(t, db, tenantID, "doc", "", model.DocumentReady, true,
		"plano um", "plano dois", "plano três", "plano quatro")

	results, err := svc.Search(context.Background(), tenantID, "plano", "", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchFiltersByCategory(t *testing.T) {
	db := testutil.OpenTestDB(t)
	svc := NewService(db, testutil.Logger(), t.TempDir(), 1<<20)
	tenantID := testutil.SeedTenant(t, db, "clinica-e")

	seedDoc(t, db, tenantID, "prices", "comercial", model.DocumentReady, true,
		"valor da consulta")
	seedDoc(t, db, tenantID, "hours", "atendimento", model.DocumentReady, true,
		"horário da consulta")

	results, err := svc.Search(context.Background(), tenantID, "consulta", "comercial", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "prices", results[0].DocumentName)
}

func TestSearchSkipsUnreadyAndInactiveDocuments(t *testing.T) {
	db := testutil.OpenTestDB(t)
	svc := NewService(db, testutil.Logger(), t.TempDir(), 1<<20)
	tenantID := testutil.SeedTenant(t, db, "clinica-f")

	seedDoc(t, db, tenantID, "pending", "", model.DocumentProcessing, true, "exame completo")
	seedDoc(t, db, tenantID, "disabled", "", model.DocumentReady, false, "exame completo")
	seedDoc(t, db, tenantID, "visible", "", model.DocumentReady, true, "exame completo")

	results, err := svc.Search(context.Background(), tenantID, "exame", "", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "visible", results[0].DocumentName)
}

func TestSearchIsolatesTenants(t *testing.T) {
	db := testutil.OpenTestDB(t)
	svc := NewService(db, testutil.Logger(), t.TempDir(), 1<<20)
	tenantA := testutil.SeedTenant(t, db, "clinica-g")
	tenantB := testutil.SeedTenant(t, db, "clinica-h")

	seedDoc(t, db, tenantA, "mine", "", model.DocumentReady, true, "retorno gratuito")
	seedDoc(t, db, tenantB, "theirs", "", model.DocumentReady, true, "retorno gratuito")

	results, err := svc.Search(context.Background(), tenantA, "retorno", "", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "mine", results[0].DocumentName)
}

func TestSearchEmptyQuery(t *testing.T) {
	db := testutil.OpenTestDB(t)
	svc := NewService(db, testutil.Logger(), t.TempDir(), 1<<20)
	tenantID := testutil.SeedTenant(t, db, "clinica-i")

	results, err := svc.Search(context.Background(), tenantID, "   ", "", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}
