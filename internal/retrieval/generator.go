package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"anyrag/core"
)

// summaryInputTokens caps how much of a document is shown to the model when
// producing its ingest-time summary.
const summaryInputTokens = 4000

// Generator is the model-facing half of the pipeline: it renders prompts from
// retrieved passages and calls the chat binding, switching to the vision
// model whenever image payloads are involved.
type Generator struct {
	client      *openai.Client
	model       string
	visionModel string
	temperature float32
	maxTokens   int
	logger      *zap.SugaredLogger
}

func NewGenerator(cfg *core.Config, logger *zap.SugaredLogger) *Generator {
	return &Generator{
		client:      newOpenAIClient(cfg.LLMHost, cfg.LLMAPIKey, cfg.Timeout),
		model:       cfg.LLMModel,
		visionModel: cfg.VisionModel,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}
}

// MultimodalContent is one attachment sent along with a multimodal query.
// Exactly one family of fields is used depending on Type.
type MultimodalContent struct {
	Type            string `json:"type"`
	TableData       string `json:"table_data,omitempty"`
	TableCaption    string `json:"table_caption,omitempty"`
	Latex           string `json:"latex,omitempty"`
	EquationCaption string `json:"equation_caption,omitempty"`
	ImageData       string `json:"image_data,omitempty"`
	ImageCaption    string `json:"image_caption,omitempty"`
	ImgPath         string `json:"img_path,omitempty"`
}

// Answer produces a response to the query grounded in the given passages. An
// empty passage list (bypass mode, or an empty corpus) falls back to a plain
// conversation with the model.
func (g *Generator) Answer(ctx context.Context, query string, passages []Passage) (string, error) {
	messages := g.baseMessages(passages)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: query,
	})

	return g.complete(ctx, g.model, messages)
}

// AnswerMultimodal answers a query that carries attached tables, equations or
// images. Image payloads route the request to the vision model.
func (g *Generator) AnswerMultimodal(ctx context.Context, query string, content []MultimodalContent, passages []Passage) (string, error) {
	attachments, images := renderMultimodal(content)

	messages := g.baseMessages(passages)
	if attachments != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: "The user attached the following content to their question:\n\n" + attachments,
		})
	}

	if len(images) == 0 {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: query,
		})
		return g.complete(ctx, g.model, messages)
	}

	parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: query}}
	for _, image := range images {
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: image},
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:         openai.ChatMessageRoleUser,
		MultiContent: parts,
	})

	return g.complete(ctx, g.visionModel, messages)
}

// Summarize produces the dense per-document summary embedded for global
// retrieval.
func (g *Generator) Summarize(ctx context.Context, fileName, text string) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: "You summarize documents for a retrieval index. Be dense and factual.",
		},
		{
			Role: openai.ChatMessageRoleUser,
			Content: fmt.Sprintf(
				"Summarize the document %q in one paragraph covering its main topics, entities and conclusions.\n\n%v",
				fileName, TruncateTokens(text, summaryInputTokens),
			),
		},
	}

	return g.complete(ctx, g.model, messages)
}

// DescribeImage asks the vision model for a searchable description of an
// image extracted from a document.
func (g *Generator) DescribeImage(ctx context.Context, imageB64 string, captions, footnotes []string) (string, error) {
	prompt := "Describe this image from a document so the description can be used for search. Cover any text, data and structure it contains."
	if hint := joinNonEmpty(captions, footnotes); hint != "" {
		prompt += "\nContext from the document: " + hint
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: prompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL(imageB64)}},
			},
		},
	}

	return g.complete(ctx, g.visionModel, messages)
}

// AnalyzeTable turns a table body into a prose description of its contents.
func (g *Generator) AnalyzeTable(ctx context.Context, body string, captions, footnotes []string) (string, error) {
	prompt := "Describe what the following table shows, including notable rows, columns and values.\n\n" + body
	if hint := joinNonEmpty(captions, footnotes); hint != "" {
		prompt += "\nContext from the document: " + hint
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}
	return g.complete(ctx, g.model, messages)
}

// ExplainEquation turns a LaTeX equation into a prose explanation.
func (g *Generator) ExplainEquation(ctx context.Context, latex, text string) (string, error) {
	prompt := "Explain the meaning of the following equation in plain language.\n\n" + latex
	if text != "" {
		prompt += "\nContext from the document: " + text
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}
	return g.complete(ctx, g.model, messages)
}

func (g *Generator) baseMessages(passages []Passage) []openai.ChatCompletionMessage {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: g.systemPrompt()},
	}
	if len(passages) > 0 {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: "Passages retrieved from the document base, most relevant first:\n\n" + renderPassages(passages),
		})
	}

	return messages
}

func (g *Generator) systemPrompt() string {
	return fmt.Sprintf(
		"You are a careful assistant answering questions about the user's ingested documents. "+
			"Ground your answer in the provided passages, name the files you relied on, and say "+
			"plainly when the passages do not contain the answer. Today is %v.",
		time.Now().Format("January 2, 2006"),
	)
}

func (g *Generator) complete(ctx context.Context, model string, messages []openai.ChatCompletionMessage) (string, error) {
	response, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	g.logger.Debugw("chat completion",
		"model", model,
		"prompt_tokens", response.Usage.PromptTokens,
		"completion_tokens", response.Usage.CompletionTokens,
	)
	return response.Choices[0].Message.Content, nil
}

func renderPassages(passages []Passage) string {
	var b strings.Builder
	for i, passage := range passages {
		fmt.Fprintf(&b, "[%v] %v (%v):\n%v\n\n", i+1, passage.FileName, passage.Kind, passage.Text)
	}

	return strings.TrimRight(b.String(), "\n")
}

// renderMultimodal splits attachments into a text block and a list of image
// data URLs for the vision message.
func renderMultimodal(content []MultimodalContent) (string, []string) {
	var blocks []string
	var images []string

	for _, item := range content {
		switch item.Type {
		case "table":
			block := "Table:\n" + item.TableData
			if item.TableCaption != "" {
				block += "\nCaption: " + item.TableCaption
			}
			blocks = append(blocks, block)
		case "equation":
			block := "Equation: " + item.Latex
			if item.EquationCaption != "" {
				block += "\nCaption: " + item.EquationCaption
			}
			blocks = append(blocks, block)
		case "image":
			if item.ImageData != "" {
				images = append(images, dataURL(item.ImageData))
			}
			if item.ImageCaption != "" {
				blocks = append(blocks, "Image caption: "+item.ImageCaption)
			}
		}
	}

	return strings.Join(blocks, "\n\n"), images
}

func dataURL(b64 string) string {
	if strings.HasPrefix(b64, "data:") {
		return b64
	}
	return "data:image/jpeg;base64," + b64
}

func joinNonEmpty(lists ...[]string) string {
	var parts []string
	for _, list := range lists {
		for _, item := range list {
			if item = strings.TrimSpace(item); item != "" {
				parts = append(parts, item)
			}
		}
	}

	return strings.Join(parts, " ")
}
