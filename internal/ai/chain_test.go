package ai

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	reply string
	err   error
	calls int
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	return f.reply, f.err
}

type fakeEmbedder struct {
	name  string
	emb   []float32
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.emb, nil
}

func (f *fakeEmbedder) ModelName() string {
	return f.name
}

type fakePrefs struct {
	preferred string
}

func (f *fakePrefs) Preferred(ctx context.Context) (string, error) {
	return f.preferred, nil
}

func (f *fakePrefs) SetPreferred(ctx context.Context, name string) error {
	f.preferred = name
	return nil
}

func TestChatChain_FirstSuccess(t *testing.T) {
	first := &fakeGenerator{reply: "respuesta"}
	second := &fakeGenerator{reply: "otra"}
	chain := NewChatChain([]GeneratorEntry{
		{Name: "gemini", Generator: first},
		{Name: "openai", Generator: second},
	}, 0)

	res, err := chain.Generate(context.Background(), "pregunta")
	require.NoError(t, err)
	require.Equal(t, "respuesta", res)
	require.Equal(t, 0, second.calls)
}

func TestChatChain_FallsBackOnFailure(t *testing.T) {
	first := &fakeGenerator{err: fmt.Errorf("quota exceeded")}
	second := &fakeGenerator{reply: "respaldo"}
	chain := NewChatChain([]GeneratorEntry{
		{Name: "gemini", Generator: first},
		{Name: "openai", Generator: second},
	}, 0)

	res, err := chain.Generate(context.Background(), "pregunta")
	require.NoError(t, err)
	require.Equal(t, "respaldo", res)
	require.Equal(t, 1, first.calls)
}

func TestChatChain_AllFail(t *testing.T) {
	chain := NewChatChain([]GeneratorEntry{
		{Name: "gemini", Generator: &fakeGenerator{err: fmt.Errorf("down")}},
		{Name: "openai", Generator: &fakeGenerator{err: fmt.Errorf("down too")}},
	}, 0)

	_, err := chain.Generate(context.Background(), "pregunta")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestChatChain_EmptyReplyIsFailure(t *testing.T) {
	chain := NewChatChain([]GeneratorEntry{
		{Name: "gemini", Generator: &fakeGenerator{reply: "   "}},
		{Name: "openai", Generator: &fakeGenerator{reply: "ok"}},
	}, 0)

	res, err := chain.Generate(context.Background(), "pregunta")
	require.NoError(t, err)
	require.Equal(t, "ok", res)
}

func TestChatChain_NoProviders(t *testing.T) {
	require.Nil(t, NewChatChain(nil, 0))
}

func TestEmbedChain_PreferenceMovesToLastSuccess(t *testing.T) {
	openai := &fakeEmbedder{name: "text-embedding-3-small", err: fmt.Errorf("rate limited")}
	gemini := &fakeEmbedder{name: "text-embedding-004", emb: []float32{0.1, 0.2}}
	prefs := &fakePrefs{}
	chain := NewEmbedChain([]EmbedderEntry{
		{Name: "openai", Embedder: openai},
		{Name: "gemini", Embedder: gemini},
	}, prefs, 0)

	res, err := chain.Embed(context.Background(), "texto", TaskRetrievalQuery)
	require.NoError(t, err)
	require.Equal(t, []float32{0.1, 0.2}, res)
	require.Equal(t, "gemini", prefs.preferred)
	require.NotEmpty(t, chain.LastError())
}

func TestEmbedChain_PreferredGoesFirst(t *testing.T) {
	openai := &fakeEmbedder{name: "text-embedding-3-small", emb: []float32{1}}
	gemini := &fakeEmbedder{name: "text-embedding-004", emb: []float32{2}}
	prefs := &fakePrefs{preferred: "gemini"}
	chain := NewEmbedChain([]EmbedderEntry{
		{Name: "openai", Embedder: openai},
		{Name: "gemini", Embedder: gemini},
	}, prefs, 0)

	res, err := chain.Embed(context.Background(), "texto", TaskRetrievalQuery)
	require.NoError(t, err)
	require.Equal(t, []float32{2}, res)
	require.Equal(t, 0, openai.calls)
	require.Equal(t, "gemini", prefs.preferred)
}

func TestEmbedChain_AllFail(t *testing.T) {
	chain := NewEmbedChain([]EmbedderEntry{
		{Name: "openai", Embedder: &fakeEmbedder{err: fmt.Errorf("key invalid")}},
	}, &fakePrefs{}, 0)

	_, err := chain.Embed(context.Background(), "texto", TaskRetrievalDocument)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestEmbedChain_ModelName(t *testing.T) {
	chain := NewEmbedChain([]EmbedderEntry{
		{Name: "openai", Embedder: &fakeEmbedder{name: "text-embedding-3-small"}},
		{Name: "gemini", Embedder: &fakeEmbedder{name: "text-embedding-004"}},
	}, nil, 0)
	require.Equal(t, "text-embedding-3-small|text-embedding-004", chain.ModelName())
}
