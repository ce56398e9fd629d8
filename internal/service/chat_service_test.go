package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lromeral/sitechat/internal/config"
	"github.com/lromeral/sitechat/internal/model"
	appErr "github.com/lromeral/sitechat/internal/pkg/errors"
)

type stubEmbedder struct {
	lastInput string
	err       error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	s.lastInput = text
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1, 0}, nil
}

func (s *stubEmbedder) ModelName() string { return "stub" }

type stubGenerator struct {
	lastPrompt string
	reply      string
	err        error
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	s.lastPrompt = prompt
	return s.reply, s.err
}

type stubSearcher struct {
	matches []model.SearchMatch
}

func (s *stubSearcher) Search(ctx context.Context, queryEmb []float32, currentSourceID int64, limit int) ([]model.SearchMatch, error) {
	return s.matches, nil
}

type stubSnapshot struct {
	overview string
}

func (s *stubSnapshot) SiteOverview(ctx context.Context) (string, error) {
	return s.overview, nil
}

type stubTitles struct {
	title string
}

func (s *stubTitles) TitleFor(ctx context.Context, sourceType model.SourceType, sourceID int64) (string, error) {
	if s.title == "" {
		return "", appErr.ErrNotFound
	}
	return s.title, nil
}

type stubProducts struct {
	found []model.Product
}

func (s *stubProducts) SearchProducts(ctx context.Context, keywords []string, limit int) ([]model.Product, error) {
	return s.found, nil
}

func chatTestConfig() config.ChatConfig {
	return config.ChatConfig{
		MaxMessageChars: 1000,
		ResultLimit:     5,
		MinSimilarity:   0.15,
		PageBoost:       1.2,
		MaxContextChars: 6000,
	}
}

func newTestChat(embedder *stubEmbedder, gen *stubGenerator, search *stubSearcher, titles *stubTitles, products *stubProducts) *ChatService {
	sessions := NewSessionStore(64, time.Minute)
	svc := NewChatService(embedder, gen, search, sessions, &stubSnapshot{}, titles, nil, chatTestConfig())
	if products != nil {
		svc.products = products
	}
	return svc
}

func TestProcessMessage_RejectsEmptyAndOversized(t *testing.T) {
	svc := newTestChat(&stubEmbedder{}, &stubGenerator{reply: "ok"}, &stubSearcher{}, &stubTitles{}, nil)

	_, err := svc.ProcessMessage(context.Background(), ChatRequest{Message: "   "})
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = svc.ProcessMessage(context.Background(), ChatRequest{Message: strings.Repeat("a", 1001)})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestProcessMessage_EmbedFailureApologizes(t *testing.T) {
	svc := newTestChat(&stubEmbedder{err: fmt.Errorf("all providers down")}, &stubGenerator{reply: "ok"}, &stubSearcher{}, &stubTitles{}, nil)

	reply, err := svc.ProcessMessage(context.Background(), ChatRequest{Message: "¿hacen envíos?"})
	require.NoError(t, err)
	require.Equal(t, replyEmbedFailed, reply)
}

func TestProcessMessage_NoMatchesIsHonest(t *testing.T) {
	svc := newTestChat(&stubEmbedder{}, &stubGenerator{reply: "inventado"}, &stubSearcher{}, &stubTitles{}, nil)

	reply, err := svc.ProcessMessage(context.Background(), ChatRequest{Message: "¿qué opinas del clima?", SessionID: "s1"})
	require.NoError(t, err)
	require.Contains(t, reply, "No tengo información")
	// The provider must not be called without grounding context.
	require.Equal(t, "¿qué opinas del clima?", svc.sessions.Get("s1").LastQuestion)
}

func TestProcessMessage_FloorFiltersWeakMatches(t *testing.T) {
	search := &stubSearcher{matches: []model.SearchMatch{
		{ChunkText: "ruido", Similarity: 0.05},
	}}
	svc := newTestChat(&stubEmbedder{}, &stubGenerator{reply: "no debería llegar"}, search, &stubTitles{}, nil)

	reply, err := svc.ProcessMessage(context.Background(), ChatRequest{Message: "¿hacen envíos a Chile?"})
	require.NoError(t, err)
	require.Contains(t, reply, "No tengo información")
}

func TestProcessMessage_GroundedAnswer(t *testing.T) {
	search := &stubSearcher{matches: []model.SearchMatch{
		{ChunkText: "Hacemos envíos a todo el país en 48 horas.", SourceType: model.SourcePost, SourceID: 7, Similarity: 0.9},
	}}
	gen := &stubGenerator{reply: "Sí, enviamos a todo el país."}
	svc := newTestChat(&stubEmbedder{}, gen, search, &stubTitles{title: "Política de envíos"}, nil)

	reply, err := svc.ProcessMessage(context.Background(), ChatRequest{Message: "¿hacen envíos?", SessionID: "s1"})
	require.NoError(t, err)
	require.Equal(t, "Sí, enviamos a todo el país.", reply)
	require.Contains(t, gen.lastPrompt, "Hacemos envíos a todo el país")
	require.Contains(t, gen.lastPrompt, "¿hacen envíos?")

	state := svc.sessions.Get("s1")
	require.Equal(t, "Política de envíos", state.Topic)
	require.Equal(t, "¿hacen envíos?", state.LastQuestion)
}

func TestProcessMessage_AmbiguousFollowUpCarriesTopic(t *testing.T) {
	embedder := &stubEmbedder{}
	search := &stubSearcher{matches: []model.SearchMatch{
		{ChunkText: "Detalle del tema.", SourceType: model.SourcePost, SourceID: 7, Similarity: 0.8},
	}}
	svc := newTestChat(embedder, &stubGenerator{reply: "claro"}, search, &stubTitles{title: "Festival de jazz"}, nil)

	_, err := svc.ProcessMessage(context.Background(), ChatRequest{Message: "cuéntame del festival de jazz de la ciudad", SessionID: "s1"})
	require.NoError(t, err)
	require.Equal(t, "Festival de jazz", svc.sessions.Get("s1").Topic)

	_, err = svc.ProcessMessage(context.Background(), ChatRequest{Message: "¿y en 2023?", SessionID: "s1"})
	require.NoError(t, err)
	require.Contains(t, embedder.lastInput, "Festival de jazz")

	// A rewritten query must not overwrite the topic it borrowed.
	require.Equal(t, "Festival de jazz", svc.sessions.Get("s1").Topic)
}

func TestProcessMessage_TopicSwitchClearsState(t *testing.T) {
	embedder := &stubEmbedder{}
	search := &stubSearcher{matches: []model.SearchMatch{
		{ChunkText: "Otro contenido.", SourceType: model.SourcePost, SourceID: 9, Similarity: 0.8},
	}}
	svc := newTestChat(embedder, &stubGenerator{reply: "vale"}, search, &stubTitles{title: "Nuevo tema"}, nil)
	svc.sessions.Put("s1", model.ConversationState{Topic: "Tema viejo"})

	_, err := svc.ProcessMessage(context.Background(), ChatRequest{Message: "cambiemos de tema, háblame de conciertos", SessionID: "s1"})
	require.NoError(t, err)
	require.NotContains(t, embedder.lastInput, "Tema viejo")
	require.Equal(t, "Nuevo tema", svc.sessions.Get("s1").Topic)
}

func TestProcessMessage_FallbackGreeting(t *testing.T) {
	search := &stubSearcher{matches: []model.SearchMatch{
		{ChunkText: "Contenido cualquiera.", Similarity: 0.5},
	}}
	svc := newTestChat(&stubEmbedder{}, &stubGenerator{err: fmt.Errorf("quota")}, search, &stubTitles{}, nil)

	reply, err := svc.ProcessMessage(context.Background(), ChatRequest{Message: "hola"})
	require.NoError(t, err)
	require.Equal(t, replyGreeting, reply)

	reply, err = svc.ProcessMessage(context.Background(), ChatRequest{Message: "gracias por todo"})
	require.NoError(t, err)
	require.Equal(t, replyFarewell, reply)
}

func TestProcessMessage_FallbackParagraphExtraction(t *testing.T) {
	search := &stubSearcher{matches: []model.SearchMatch{
		{ChunkText: "El horario de atención es de lunes a viernes de 9 a 18.", SourceType: model.SourcePost, SourceID: 3, Similarity: 0.7},
		{ChunkText: "Nuestra empresa nació en 1990.", SourceType: model.SourcePost, SourceID: 4, Similarity: 0.4},
	}}
	svc := newTestChat(&stubEmbedder{}, &stubGenerator{err: fmt.Errorf("down")}, search, &stubTitles{title: "Horario"}, nil)

	reply, err := svc.ProcessMessage(context.Background(), ChatRequest{Message: "¿cuál es el horario de atención?"})
	require.NoError(t, err)
	require.Contains(t, reply, "horario de atención")
}

func TestProcessMessage_FallbackProductSearch(t *testing.T) {
	qty := int64(4)
	products := &stubProducts{found: []model.Product{
		{Name: "Guitarra clásica", Price: 199.99, Currency: "EUR", StockQty: &qty, URL: "https://tienda.example/guitarra"},
	}}
	search := &stubSearcher{matches: []model.SearchMatch{
		{ChunkText: "Texto sin relación alguna.", Similarity: 0.3},
	}}
	svc := newTestChat(&stubEmbedder{}, &stubGenerator{err: fmt.Errorf("down")}, search, &stubTitles{}, products)

	reply, err := svc.ProcessMessage(context.Background(), ChatRequest{Message: "busco guitarras baratas"})
	require.NoError(t, err)
	require.Contains(t, reply, "Guitarra clásica")
	require.Contains(t, reply, "199.99")
	require.Contains(t, reply, "4 en stock")
}

func TestProcessMessage_NoEmbedderUsesSnapshot(t *testing.T) {
	gen := &stubGenerator{reply: "según el sitio, sí"}
	sessions := NewSessionStore(16, time.Minute)
	svc := NewChatService(nil, gen, &stubSearcher{}, sessions,
		&stubSnapshot{overview: "Sitio: Tienda de música\nVendemos instrumentos."},
		&stubTitles{}, nil, chatTestConfig())

	reply, err := svc.ProcessMessage(context.Background(), ChatRequest{Message: "¿qué venden?"})
	require.NoError(t, err)
	require.Equal(t, "según el sitio, sí", reply)
	require.Contains(t, gen.lastPrompt, "Tienda de música")
}

func TestIsAmbiguousFollowUp(t *testing.T) {
	ambiguous := []string{
		"¿y eso?",
		"eso qué es",
		"esto no lo entiendo",
		"¿qué significa?",
		"a que se refiere",
		"¿y en 2023?",
		"más",
	}
	for _, msg := range ambiguous {
		require.True(t, isAmbiguousFollowUp(msg), msg)
	}

	standalone := []string{
		"¿cuál es el horario de atención de la tienda?",
		"quiero comprar una guitarra eléctrica",
		"háblame de los conciertos programados",
	}
	for _, msg := range standalone {
		require.False(t, isAmbiguousFollowUp(msg), msg)
	}
}

func TestHasTopicSwitch(t *testing.T) {
	require.True(t, hasTopicSwitch("bueno, cambiemos de tema"))
	require.True(t, hasTopicSwitch("Hablemos de otra cosa"))
	require.False(t, hasTopicSwitch("¿cuánto cuesta el envío?"))
}
