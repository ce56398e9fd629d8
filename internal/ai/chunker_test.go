package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkText_Empty(t *testing.T) {
	require.Nil(t, ChunkText("", 100))
	require.Nil(t, ChunkText("   \n\t  ", 100))
	require.Nil(t, ChunkText("<p></p>", 100))
}

func TestChunkText_SingleChunk(t *testing.T) {
	chunks := ChunkText("hola mundo", 100)
	require.Equal(t, []string{"hola mundo"}, chunks)
}

func TestChunkText_BoundsAndReassembly(t *testing.T) {
	var words []string
	for i := 0; i < 300; i++ {
		words = append(words, "palabra")
	}
	input := strings.Join(words, " ")

	chunks := ChunkText(input, 100)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		require.LessOrEqual(t, len(chunk), 100)
		require.NotEqual(t, " ", chunk[:1])
	}
	// No word is lost or split across chunks.
	require.Equal(t, input, strings.Join(chunks, " "))
}

func TestChunkText_LongWordBecomesOwnChunk(t *testing.T) {
	long := strings.Repeat("x", 150)
	chunks := ChunkText("corto "+long+" final", 100)
	require.Equal(t, []string{"corto", long, "final"}, chunks)
}

func TestChunkText_DefaultSize(t *testing.T) {
	chunks := ChunkText(strings.Repeat("palabra ", 200), 0)
	for _, chunk := range chunks {
		require.LessOrEqual(t, len(chunk), DefaultChunkChars)
	}
}

func TestStripMarkup(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		expect string
	}{
		{"html", "<p>Hola <strong>mundo</strong></p>", "Hola mundo"},
		{"markdown", "# Título\n\nTexto **en negrita** aquí.", "Título Texto en negrita aquí."},
		{"plain", "sin   marcado\n\nninguno", "sin marcado ninguno"},
		{"script", "<script>alert(1)</script>texto", "alert(1) texto"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, StripMarkup(tc.input))
		})
	}
}
