package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/lromeral/sitechat/internal/ai"
	"github.com/lromeral/sitechat/internal/config"
	"github.com/lromeral/sitechat/internal/model"
	appErr "github.com/lromeral/sitechat/internal/pkg/errors"
)

// User-facing replies mirror the site widget's language.
const (
	replyEmbedFailed = "Lo siento, no pude procesar tu mensaje."
	replyGreeting    = "¡Hola! ¿En qué puedo ayudarte?"
	replyFarewell    = "¡Gracias a ti! Si necesitas algo más, aquí estoy."
	replyNoInfo      = "No encontré información sobre eso en el sitio. ¿Podrías darme más detalles?"
)

type Searcher interface {
	Search(ctx context.Context, queryEmb []float32, currentSourceID int64, limit int) ([]model.SearchMatch, error)
}

type Sessions interface {
	Get(sessionID string) model.ConversationState
	Put(sessionID string, state model.ConversationState)
}

type SnapshotProvider interface {
	SiteOverview(ctx context.Context) (string, error)
}

type TitleResolver interface {
	TitleFor(ctx context.Context, sourceType model.SourceType, sourceID int64) (string, error)
}

type ProductFinder interface {
	SearchProducts(ctx context.Context, keywords []string, limit int) ([]model.Product, error)
}

type ChatRequest struct {
	Message       string
	CurrentPostID int64
	CurrentURL    string
	SessionID     string
}

// ChatService handles one message end to end: conversation-state rewrite,
// retrieval, prompt construction, provider chain, deterministic fallback,
// state update.
type ChatService struct {
	embedder ai.IEmbedder // nil when no embedding provider is keyed
	chat     ai.IGenerator
	search   Searcher
	sessions Sessions
	snapshot SnapshotProvider
	titles   TitleResolver
	products ProductFinder // nil unless commerce is enabled
	cfg      config.ChatConfig
}

func NewChatService(
	embedder ai.IEmbedder,
	chat ai.IGenerator,
	search Searcher,
	sessions Sessions,
	snapshot SnapshotProvider,
	titles TitleResolver,
	products ProductFinder,
	cfg config.ChatConfig,
) *ChatService {
	return &ChatService{
		embedder: embedder,
		chat:     chat,
		search:   search,
		sessions: sessions,
		snapshot: snapshot,
		titles:   titles,
		products: products,
		cfg:      cfg,
	}
}

func (s *ChatService) ProcessMessage(ctx context.Context, req ChatRequest) (string, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" || len(message) > s.cfg.MaxMessageChars {
		return "", appErr.ErrInvalid
	}
	logger := logutil.GetLogger(ctx).With(zap.String("session_id", NormalizeSessionID(req.SessionID)))

	state := s.sessions.Get(req.SessionID)
	switched := false
	if hasTopicSwitch(message) {
		state.Topic = ""
		switched = true
	}
	query := message
	rewritten := false
	if !switched && state.Topic != "" && isAmbiguousFollowUp(message) {
		query = message + " " + state.Topic
		rewritten = true
		logger.Debug("follow-up rewritten with active topic", zap.String("topic", state.Topic))
	}

	var matches []model.SearchMatch
	contextText := ""
	if s.embedder != nil {
		queryEmb, err := s.embedder.Embed(ctx, query, ai.TaskRetrievalQuery)
		if err != nil {
			logger.Warn("query embedding failed", zap.Error(err))
			return replyEmbedFailed, nil
		}
		matches, err = s.search.Search(ctx, queryEmb, req.CurrentPostID, s.cfg.ResultLimit)
		if err != nil {
			logger.Error("similarity search failed", zap.Error(err))
			matches = nil
		}
		matches = filterByFloor(matches, s.cfg.MinSimilarity)
		if len(matches) == 0 {
			// Honest refusal beats a hallucinated answer: no provider call
			// happens without grounding context.
			reply := s.noContextReply(state.Topic)
			s.persistState(req.SessionID, state, message)
			return reply, nil
		}
		contextText = joinChunks(matches, s.cfg.MaxContextChars)
	} else {
		overview := ""
		if s.snapshot != nil {
			var err error
			overview, err = s.snapshot.SiteOverview(ctx)
			if err != nil {
				logger.Warn("site snapshot unavailable", zap.Error(err))
			}
		}
		if strings.TrimSpace(overview) == "" {
			reply := s.noContextReply(state.Topic)
			s.persistState(req.SessionID, state, message)
			return reply, nil
		}
		contextText = truncateRunes(overview, s.cfg.MaxContextChars)
	}

	reply := ""
	if s.chat != nil {
		prompt := s.buildPrompt(contextText, state, message)
		res, err := s.chat.Generate(ctx, prompt)
		if err != nil {
			logger.Warn("chat provider chain exhausted", zap.Error(err))
		} else {
			reply = res
		}
	}
	if reply == "" {
		reply = s.fallbackReply(ctx, message, contextText, matches)
	}

	if len(matches) > 0 && !rewritten {
		if topic := s.topicFor(ctx, matches[0]); topic != "" {
			state.Topic = topic
		}
	}
	s.persistState(req.SessionID, state, message)
	return reply, nil
}

func (s *ChatService) persistState(sessionID string, state model.ConversationState, message string) {
	state.LastQuestion = message
	s.sessions.Put(sessionID, state)
}

func (s *ChatService) noContextReply(topic string) string {
	if topic != "" {
		return fmt.Sprintf("No encontré más información sobre \"%s\". ¿Puedes reformular tu pregunta?", topic)
	}
	return "No tengo información sobre eso. ¿Puedes darme más detalles o preguntar sobre el contenido del sitio?"
}

func (s *ChatService) buildPrompt(contextText string, state model.ConversationState, message string) string {
	var sb strings.Builder
	sb.WriteString("Eres el asistente virtual de este sitio web. Responde únicamente basándote en el contexto proporcionado.\n")
	sb.WriteString("- Si la información del contexto no es suficiente, dilo claramente.\n")
	sb.WriteString("- Incluye enlaces del propio sitio solo cuando la consulta sea sobre productos.\n")
	sb.WriteString("- Nunca enlaces ni recomiendes contenido de la competencia.\n")
	if state.Topic != "" {
		sb.WriteString("Tema actual de la conversación: " + state.Topic + "\n")
	}
	if state.LastQuestion != "" {
		sb.WriteString("Pregunta anterior del usuario: " + state.LastQuestion + "\n")
	}
	sb.WriteString("\nContexto del sitio web:\n")
	sb.WriteString(contextText)
	sb.WriteString("\n\nPregunta del usuario: " + message + "\n")
	sb.WriteString("\nResponde basándote en el contexto proporcionado.")
	return sb.String()
}

// topicFor labels the conversation after a grounded turn: the source title
// when the content table knows it, else the chunk's leading words.
func (s *ChatService) topicFor(ctx context.Context, top model.SearchMatch) string {
	if s.titles != nil {
		title, err := s.titles.TitleFor(ctx, top.SourceType, top.SourceID)
		if err == nil && strings.TrimSpace(title) != "" {
			return strings.TrimSpace(title)
		}
	}
	line := top.ChunkText
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	return truncateRunes(strings.TrimSpace(line), 80)
}

func (s *ChatService) fallbackReply(ctx context.Context, message, contextText string, matches []model.SearchMatch) string {
	lower := strings.ToLower(message)
	if isGreeting(lower) {
		return replyGreeting
	}
	if isFarewell(lower) {
		return replyFarewell
	}
	keywords := meaningfulWords(lower)

	if best, score := bestParagraph(contextText, keywords); score > 0 {
		title := ""
		if len(matches) > 0 {
			title = s.topicFor(ctx, matches[0])
		}
		excerpt := truncateRunes(best, 300)
		if title != "" {
			return fmt.Sprintf("Sobre \"%s\": %s", title, excerpt)
		}
		return excerpt
	}

	if s.products != nil && len(keywords) > 0 {
		found, err := s.products.SearchProducts(ctx, keywords, 3)
		if err != nil {
			logutil.GetLogger(ctx).Warn("fallback product search failed", zap.Error(err))
		}
		if len(found) > 0 {
			var sb strings.Builder
			sb.WriteString("Esto es lo que encontré en la tienda:\n")
			for _, p := range found {
				sb.WriteString(fmt.Sprintf("• %s — %.2f %s — %s", p.Name, p.Price, p.Currency, stockLabel(&p)))
				if p.URL != "" {
					sb.WriteString(" — " + p.URL)
				}
				sb.WriteByte('\n')
			}
			return strings.TrimSpace(sb.String())
		}
	}
	return replyNoInfo
}

func stockLabel(p *model.Product) string {
	if p.StockQty != nil {
		return fmt.Sprintf("%d en stock", *p.StockQty)
	}
	if p.StockStatus == "instock" {
		return "disponible"
	}
	return "agotado"
}

func filterByFloor(matches []model.SearchMatch, floor float64) []model.SearchMatch {
	filtered := matches[:0]
	for _, m := range matches {
		if m.Similarity >= floor {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

func joinChunks(matches []model.SearchMatch, maxChars int) string {
	var sb strings.Builder
	for _, m := range matches {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		if sb.Len()+len(m.ChunkText) > maxChars {
			remaining := maxChars - sb.Len()
			if remaining > 0 {
				sb.WriteString(truncateRunes(m.ChunkText, remaining))
			}
			break
		}
		sb.WriteString(m.ChunkText)
	}
	return sb.String()
}

// Conversation heuristics. The widget's audience writes Spanish, so the
// phrase lists and stopwords are Spanish.

var topicSwitchPhrases = []string{"cambiemos de tema", "otro tema", "hablemos de"}

var ambiguousPhrases = []string{
	"a qué se refiere", "a que se refiere",
	"qué significa", "que significa",
	"qué pasó", "que pasó", "que paso",
}

var bareYearRegex = regexp.MustCompile(`\b(19|20)\d{2}\b`)

var spanishStopwords = map[string]struct{}{
	"el": {}, "la": {}, "los": {}, "las": {}, "un": {}, "una": {}, "unos": {}, "unas": {},
	"de": {}, "del": {}, "al": {}, "a": {}, "en": {}, "y": {}, "o": {}, "u": {}, "que": {},
	"qué": {}, "es": {}, "son": {}, "por": {}, "para": {}, "con": {}, "sin": {}, "su": {},
	"sus": {}, "se": {}, "me": {}, "te": {}, "lo": {}, "le": {}, "les": {}, "mi": {},
	"tu": {}, "más": {}, "mas": {}, "pero": {}, "como": {}, "cómo": {}, "ya": {},
	"este": {}, "esta": {}, "sobre": {}, "hay": {}, "fue": {}, "ser": {}, "si": {},
	"sí": {}, "no": {}, "muy": {}, "también": {}, "cuando": {}, "cuándo": {}, "donde": {},
	"dónde": {}, "cual": {}, "cuál": {}, "quien": {}, "quién": {}, "entre": {}, "hasta": {},
}

var greetingWords = []string{"hola", "buenas", "buenos días", "buenos dias", "buenas tardes", "buenas noches", "hey", "saludos"}

var farewellWords = []string{"gracias", "adiós", "adios", "hasta luego", "chao", "nos vemos"}

func hasTopicSwitch(message string) bool {
	lower := strings.ToLower(message)
	for _, phrase := range topicSwitchPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// isAmbiguousFollowUp flags messages that cannot stand alone: very short
// ones, demonstrative openers, bare years, and "what does that mean" style
// questions.
func isAmbiguousFollowUp(message string) bool {
	lower := strings.ToLower(message)
	for _, phrase := range ambiguousPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	if bareYearRegex.MatchString(lower) {
		return true
	}
	tokens := strings.Fields(stripPunctuation(lower))
	if len(tokens) == 0 {
		return false
	}
	if tokens[0] == "eso" || tokens[0] == "esto" {
		return true
	}
	if len(tokens) <= 3 {
		meaningful := 0
		for _, tok := range tokens {
			if _, stop := spanishStopwords[tok]; !stop {
				meaningful++
			}
		}
		if meaningful <= 1 {
			return true
		}
	}
	return false
}

func isGreeting(lower string) bool {
	trimmed := strings.TrimSpace(stripPunctuation(lower))
	for _, g := range greetingWords {
		if trimmed == g || strings.HasPrefix(trimmed, g+" ") {
			return true
		}
	}
	return false
}

func isFarewell(lower string) bool {
	trimmed := strings.TrimSpace(stripPunctuation(lower))
	for _, f := range farewellWords {
		if trimmed == f || strings.HasPrefix(trimmed, f+" ") {
			return true
		}
	}
	return false
}

// meaningfulWords keeps tokens longer than 3 runes that are not stopwords.
func meaningfulWords(lower string) []string {
	var words []string
	for _, tok := range strings.Fields(stripPunctuation(lower)) {
		if len([]rune(tok)) <= 3 {
			continue
		}
		if _, stop := spanishStopwords[tok]; stop {
			continue
		}
		words = append(words, tok)
	}
	return words
}

func bestParagraph(contextText string, keywords []string) (string, int) {
	best := ""
	bestScore := 0
	for _, para := range strings.Split(contextText, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		paraLower := strings.ToLower(para)
		score := 0
		for _, kw := range keywords {
			if strings.Contains(paraLower, kw) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = para
		}
	}
	return best, bestScore
}

func stripPunctuation(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '¿', '?', '¡', '!', '.', ',', ';', ':', '(', ')', '"', '\'':
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
