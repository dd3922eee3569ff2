package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/patientsim/internal/nlu"
	"github.com/ppiankov/patientsim/internal/util"
)

// entityTypes are the labels the chat model may assign
var entityTypes = []string{
	nlu.TypeQuery, nlu.TypeSymptom, nlu.TypeDisease, nlu.TypeSurgery, nlu.TypeMedication,
	nlu.TypeAllergy, nlu.TypeRelationship, nlu.TypeSubstance, nlu.TypeGeography,
	nlu.TypeTimeQualifier, nlu.TypeKeyword, nlu.TypePreposition,
}

// OpenAIClassifier asks a chat model for a LUIS-shaped prediction
type OpenAIClassifier struct {
	name    string
	client  *openai.Client
	config  Config
	timeout time.Duration
}

// NewOpenAIClassifier creates a new OpenAI-backed classifier
func NewOpenAIClassifier(config Config) (*OpenAIClassifier, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if len(config.Intents) == 0 {
		return nil, fmt.Errorf("OpenAI classifier needs the intent catalogue")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.Endpoint != "" {
		clientConfig.BaseURL = config.Endpoint
	}
	clientConfig.HTTPClient = &http.Client{
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
		},
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &OpenAIClassifier{
		name:    "openai",
		client:  openai.NewClientWithConfig(clientConfig),
		config:  config,
		timeout: timeout,
	}, nil
}

// Name returns the provider name
func (c *OpenAIClassifier) Name() string {
	return c.name
}

// NewOllamaClassifier talks to a local Ollama server through its
// OpenAI-compatible API. The endpoint defaults to OLLAMA_BASE_URL, then
// http://localhost:11434.
func NewOllamaClassifier(config Config) (*OpenAIClassifier, error) {
	if config.Endpoint == "" {
		config.Endpoint = os.Getenv("OLLAMA_BASE_URL")
	}
	if config.Endpoint == "" {
		config.Endpoint = "http://localhost:11434"
	}
	config.Endpoint = strings.TrimSuffix(config.Endpoint, "/")
	if !strings.HasSuffix(config.Endpoint, "/v1") {
		config.Endpoint += "/v1"
	}
	if config.APIKey == "" {
		config.APIKey = "ollama"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	c, err := NewOpenAIClassifier(config)
	if err != nil {
		return nil, err
	}
	c.name = "ollama"
	return c, nil
}

// Classify generates a prediction using the Chat Completions API
func (c *OpenAIClassifier) Classify(ctx context.Context, query string) (*nlu.Prediction, error) {
	model := c.config.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: BuildPrompt(c.config.Intents)},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0,
	}

	resp, err := c.client.CreateChatCompletion(ctxWithTimeout, req)
	if err != nil {
		return nil, fmt.Errorf("%w: OpenAI API error: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no response from OpenAI", ErrUnavailable)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.Trim(content, "`\n ")

	var p nlu.Prediction
	if err := json.Unmarshal([]byte(content), &p); err != nil {
		return nil, fmt.Errorf("%w: unmarshal prediction: %v", ErrUnavailable, err)
	}
	p.Query = query
	p.Intents = known(p.Intents, c.config.Intents)
	p.TopIntent = nlu.Intent{}
	return finish(&p, query), nil
}

// BuildPrompt constructs the system prompt listing intents and entity types
func BuildPrompt(intents []string) string {
	sorted := append([]string(nil), intents...)
	sort.Strings(sorted)

	var b strings.Builder
	b.WriteString(`You classify questions a medical student asks a standardized patient.

Reply with a single JSON object and nothing else:
{"intents":[{"intent":"<name>","score":<0..1>}],"entities":[{"entity":"<exact text from the question>","type":"<type>","score":<0..1>}]}

List up to three intents, best first. Only use these intent names:
`)
	for _, name := range sorted {
		fmt.Fprintf(&b, "- %s\n", name)
	}
	b.WriteString("\nOnly use these entity types (geography may be suffixed, e.g. builtin.geography.country):\n")
	for _, typ := range entityTypes {
		fmt.Fprintf(&b, "- %s\n", typ)
	}
	b.WriteString(`
Tag the question word (do, does, is, are, have, has, what, when, how...) as "query".
Tag words like first, last, previous, current, now as "timeQualifier".
Use "None" when the question does not fit any intent.`)
	return b.String()
}

// known drops intents outside the catalogue
func known(got []nlu.Intent, catalogue []string) []nlu.Intent {
	allowed := make(map[string]bool, len(catalogue))
	for _, name := range catalogue {
		allowed[name] = true
	}
	out := got[:0]
	for _, in := range got {
		if allowed[in.Name] {
			out = append(out, in)
		}
	}
	return out
}
