package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"

	"github.com/rapid-pub/backoffice/internal/sales"
)

const instructions = `You assist a print shop. Extract the structured quote details from the client request.
Rules:
1. Never invent data. Leave a field empty (or 0 for quantity) when the request does not state it.
2. product_type is one of: flyers, business_cards, posters, leaflets, rollup_banner, stickers, brochures, other.
3. Finishes use these labels: matte lamination, glossy lamination, spot varnish, gilding.
4. Provide a confidence score between 0.0 and 1.0.
Reply with JSON only.`

// ErrEmptyOutput is returned when the model produced no text.
var ErrEmptyOutput = errors.New("extraction: empty model output")

// payload is the flat document the model fills. Strict schemas require
// every property, so absent values are zero values instead of nulls.
type payload struct {
	ClientName    string   `json:"client_name"`
	ClientCompany string   `json:"client_company"`
	ClientEmail   string   `json:"client_email"`
	ClientPhone   string   `json:"client_phone"`
	ProductType   string   `json:"product_type"`
	Quantity      int      `json:"quantity"`
	Format        string   `json:"format"`
	Paper         string   `json:"paper"`
	DoubleSided   bool     `json:"double_sided"`
	Finishes      []string `json:"finishes"`
	Deadline      string   `json:"deadline"`
	Notes         string   `json:"notes"`
	Confidence    float64  `json:"confidence"`
}

func (p payload) result() (*Result, error) {
	if p.Confidence < 0 || p.Confidence > 1 {
		return nil, fmt.Errorf("extraction: confidence %v out of range", p.Confidence)
	}
	product := sales.ProductType(strings.TrimSpace(p.ProductType))
	if !product.Valid() {
		product = sales.ProductOther
	}
	res := &Result{
		Client: ClientInfo{
			Name:    p.ClientName,
			Company: p.ClientCompany,
			Email:   p.ClientEmail,
			Phone:   p.ClientPhone,
		},
		Product: ProductInfo{
			Type:        product,
			Format:      p.Format,
			Paper:       p.Paper,
			DoubleSided: p.DoubleSided,
			Finishes:    p.Finishes,
		},
		Deadline:   p.Deadline,
		Notes:      p.Notes,
		Confidence: p.Confidence,
		Strategy:   StrategyAssisted,
	}
	if p.Quantity > 0 {
		q := p.Quantity
		res.Product.Quantity = &q
	}
	if res.Product.Finishes == nil {
		res.Product.Finishes = []string{}
	}
	return res, nil
}

// AssistedConfig configures the model backed extractor.
type AssistedConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Assisted extracts with the OpenAI Responses API and a strict JSON schema.
type Assisted struct {
	client *openai.Client
	model  string
	schema map[string]any
}

// NewAssisted builds the extractor. Retries are disabled: a failed call
// falls back to the heuristic instead.
func NewAssisted(cfg AssistedConfig) (*Assisted, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	schema, err := payloadSchema()
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" {
		model = string(shared.ChatModelGPT4oMini)
	}
	client := openai.NewClient(opts...)
	return &Assisted{client: &client, model: model, schema: schema}, nil
}

// Extract implements Extractor.
func (a *Assisted) Extract(ctx context.Context, text string) (*Result, error) {
	params := responses.ResponseNewParams{
		Model:        shared.ResponsesModel(a.model),
		Instructions: param.NewOpt(instructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(text),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "quote_request",
					Strict:      param.NewOpt(true),
					Schema:      a.schema,
					Description: param.NewOpt("Structured details of a print quote request"),
				},
			},
		},
	}

	resp, err := a.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("extraction: openai responses: %w", err)
	}
	content := resp.OutputText()
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyOutput
	}
	var p payload
	if err := json.Unmarshal([]byte(content), &p); err != nil {
		return nil, fmt.Errorf("extraction: parse model output: %w", err)
	}
	return p.result()
}

func payloadSchema() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	raw, err := json.Marshal(reflector.Reflect(&payload{}))
	if err != nil {
		return nil, fmt.Errorf("extraction: marshal schema: %w", err)
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("extraction: decode schema: %w", err)
	}
	// The Responses API rejects the draft marker on strict schemas.
	delete(schema, "$schema")
	delete(schema, "$id")
	return schema, nil
}
