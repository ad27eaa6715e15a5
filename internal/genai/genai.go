// Package genai provides GenAI-enhanced operations using the OpenAI API.
//
// It exposes the two capabilities the pipeline consumes as black boxes:
// structured emotion classification and meditation script generation. Callers
// hold the narrow interfaces defined by the consuming packages, so this
// package stays the single place that knows about the OpenAI wire format.
package genai

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

// Default models for the two capabilities.
const (
	DefaultClassifierModel = "gpt-4o-mini"
	DefaultScriptModel     = "gpt-4o"
)

// Classification is the collaborator's output shape for emotion understanding.
// RiskSignal is free-form from the model's point of view; the analyzer maps it
// onto the crisis-risk scale conservatively.
type Classification struct {
	PrimaryEmotion    string   `json:"primary_emotion" jsonschema_description:"Dominant emotion expressed in the message, a single lowercase word"`
	Intensity         float64  `json:"intensity" jsonschema_description:"Intensity of the primary emotion on a 0 to 10 scale"`
	SecondaryEmotions []string `json:"secondary_emotions" jsonschema_description:"Other emotions present, strongest first"`
	RiskSignal        string   `json:"risk_signal" jsonschema_description:"Crisis risk level: one of none, low, moderate, severe"`
}

// responseCaller defines the minimal interface over the OpenAI Responses API.
type responseCaller interface {
	New(ctx context.Context, params responses.ResponseNewParams) (*responses.Response, error)
}

type liveCaller struct {
	client openai.Client
}

func (l liveCaller) New(ctx context.Context, params responses.ResponseNewParams) (*responses.Response, error) {
	return l.client.Responses.New(ctx, params)
}

// Client wraps the OpenAI Responses service for classification and script generation.
type Client struct {
	caller          responseCaller
	classifierModel string
	scriptModel     string
}

// Option configures a Client.
type Option func(*Client)

// WithClassifierModel overrides the model used for emotion classification.
func WithClassifierModel(model string) Option {
	return func(c *Client) { c.classifierModel = model }
}

// WithScriptModel overrides the model used for script generation.
func WithScriptModel(model string) Option {
	return func(c *Client) { c.scriptModel = model }
}

// NewClient initializes a new GenAI client using the OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	return NewClientWithKey(apiKey, opts...), nil
}

// NewClientWithKey initializes a new GenAI client with an explicit API key.
func NewClientWithKey(apiKey string, opts ...Option) *Client {
	c := &Client{
		classifierModel: DefaultClassifierModel,
		scriptModel:     DefaultScriptModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.caller == nil {
		c.caller = liveCaller{client: openai.NewClient(option.WithAPIKey(apiKey))}
	}
	return c
}

var classificationSchema = GenerateSchema[Classification]()

const classifierInstructions = `You analyze the emotional content of a user's message.

Identify the dominant emotion as a single lowercase word (for example: anxiety,
stress, sadness, grief, anger, guilt, fear, desire, numbness, low_confidence,
fatigue, restlessness, contentment), rate its intensity from 0 to 10, and list
any other emotions present.

You must also assess crisis risk. Return "severe" if the message suggests the
user may be a danger to themselves or others, is experiencing suicidal thoughts,
or describes feeling unsafe. Return "moderate" for panic attacks, feeling unable
to cope, or acute overwhelming distress. Return "low" for notable but manageable
distress, and "none" otherwise. When in doubt between two levels, always choose
the higher one.`

// Classify runs structured emotion classification over the given text.
func (c *Client) Classify(ctx context.Context, text string) (Classification, error) {
	params := responses.ResponseNewParams{
		Model:           c.classifierModel,
		MaxOutputTokens: openai.Int(500),
		Instructions:    openai.String(classifierInstructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(text, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:        "EmotionClassification",
					Schema:      classificationSchema,
					Strict:      openai.Bool(true),
					Description: openai.String("Structured emotional assessment JSON"),
					Type:        "json_schema",
				},
			},
		},
	}

	resp, err := c.caller.New(ctx, params)
	if err != nil {
		return Classification{}, fmt.Errorf("emotion classification call failed: %w", err)
	}

	var out Classification
	if err := DecodeModelJSON(resp.OutputText(), &out); err != nil {
		return Classification{}, fmt.Errorf("unmarshal classification: %w", err)
	}
	out.PrimaryEmotion = strings.ToLower(strings.TrimSpace(out.PrimaryEmotion))
	out.RiskSignal = strings.ToLower(strings.TrimSpace(out.RiskSignal))
	return out, nil
}

// GenerateText generates prose from the given instructions and user input.
func (c *Client) GenerateText(ctx context.Context, instructions, input string) (string, error) {
	params := responses.ResponseNewParams{
		Model:           c.scriptModel,
		MaxOutputTokens: openai.Int(4000),
		Instructions:    openai.String(instructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(input, responses.EasyInputMessageRoleUser),
			},
		},
	}

	resp, err := c.caller.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("text generation call failed: %w", err)
	}
	text := strings.TrimSpace(resp.OutputText())
	if text == "" {
		return "", fmt.Errorf("empty model output")
	}
	return text, nil
}
