// Package sentiment scores news articles with an LLM. Articles arrive from
// the news provider without scores when the feed carries no ticker-matched
// sentiment; this analyzer fills the gap.
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"news-stock-explorer/internal/domain"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// LLMClient abstracts the OpenAI chat completions API for testability.
type LLMClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

const systemPrompt = "You are a financial sentiment analyst. Respond only with valid JSON."

const maxTextLen = 500

type Analyzer struct {
	tracer trace.Tracer
	llm    LLMClient
	model  string
}

func NewAnalyzer(tracer trace.Tracer, llm LLMClient, model string) *Analyzer {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Analyzer{tracer: tracer, llm: llm, model: model}
}

// AnalyzeBatch scores articles in one LLM call. The result always has one
// entry per article; any failure, from the API or from malformed output,
// degrades that article to a neutral zero score rather than erroring out.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, articles []domain.Article) []domain.SentimentResult {
	ctx, span := a.tracer.Start(ctx, "sentiment.analyze-batch")
	defer span.End()
	span.SetAttributes(attribute.Int("article_count", len(articles)))

	if len(articles) == 0 {
		return nil
	}

	results, err := a.callBatch(ctx, articles)
	if err == nil && len(results) == len(articles) {
		return results
	}
	if err != nil {
		log.Printf("sentiment: batch analysis failed, scoring individually: %v", err)
	} else {
		log.Printf("sentiment: batch returned %d results for %d articles, scoring individually", len(results), len(articles))
	}

	out := make([]domain.SentimentResult, len(articles))
	for i := range articles {
		out[i] = a.Analyze(ctx, articles[i])
	}
	return out
}

// Analyze scores a single article, returning (0, Neutral) on any failure.
func (a *Analyzer) Analyze(ctx context.Context, article domain.Article) domain.SentimentResult {
	ctx, span := a.tracer.Start(ctx, "sentiment.analyze")
	defer span.End()

	prompt := fmt.Sprintf(`Analyze the sentiment of this financial news headline/article about stocks.

Text: %s

Respond with ONLY a JSON object with:
- "score": a number between -1.0 (very negative) and 1.0 (very positive)
- "label": one of "Positive", "Neutral", or "Negative"
`, articleText(article, 1000))

	content, err := a.complete(ctx, prompt)
	if err != nil {
		log.Printf("sentiment: analysis failed for article %d: %v", article.ID, err)
		return neutral()
	}

	var parsed scoredItem
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &parsed); err != nil {
		log.Printf("sentiment: unparseable response for article %d: %v", article.ID, err)
		return neutral()
	}
	return parsed.result()
}

type scoredItem struct {
	Score float64 `json:"score"`
	Label string  `json:"label"`
}

func (s scoredItem) result() domain.SentimentResult {
	score := s.Score
	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}
	label := s.Label
	switch label {
	case domain.SentimentPositive, domain.SentimentNeutral, domain.SentimentNegative:
	default:
		label = domain.SentimentNeutral
	}
	return domain.SentimentResult{Score: score, Label: label}
}

func (a *Analyzer) callBatch(ctx context.Context, articles []domain.Article) ([]domain.SentimentResult, error) {
	var b strings.Builder
	b.WriteString(`Analyze the sentiment of the following news headlines/articles about stocks.
For each item, respond with ONLY a JSON array of objects, each with:
- "score": a number between -1.0 (very negative) and 1.0 (very positive)
- "label": one of "Positive", "Neutral", or "Negative"

Items:
`)
	for i, article := range articles {
		fmt.Fprintf(&b, "%d. %s\n", i+1, articleText(article, maxTextLen))
	}

	content, err := a.complete(ctx, b.String())
	if err != nil {
		return nil, err
	}

	var parsed []scoredItem
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &parsed); err != nil {
		return nil, fmt.Errorf("parse batch response: %w", err)
	}
	out := make([]domain.SentimentResult, len(parsed))
	for i, item := range parsed {
		out[i] = item.result()
	}
	return out, nil
}

func (a *Analyzer) complete(ctx context.Context, prompt string) (string, error) {
	completion, err := a.llm.CreateChatCompletion(ctx, openai.ChatCompletionNewParams{
		Model: a.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no choices in LLM response")
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

func articleText(a domain.Article, limit int) string {
	text := a.RawText
	if text == "" {
		text = a.Headline
	}
	if len(text) > limit {
		text = text[:limit]
	}
	return text
}

// stripCodeFence unwraps ```json fenced replies, which some models emit
// despite the JSON-only instruction.
func stripCodeFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	parts := strings.SplitN(content, "```", 3)
	if len(parts) < 2 {
		return content
	}
	inner := parts[1]
	inner = strings.TrimPrefix(inner, "json")
	return strings.TrimSpace(inner)
}

func neutral() domain.SentimentResult {
	return domain.SentimentResult{Score: 0, Label: domain.SentimentNeutral}
}

// openaiClient wraps the official SDK's chat completions service.
type openaiClient struct {
	client openai.Client
}

func NewOpenAIClient(apiKey string) LLMClient {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &openaiClient{client: client}
}

func (c *openaiClient) CreateChatCompletion(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}
