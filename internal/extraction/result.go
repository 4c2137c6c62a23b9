// Package extraction turns a free-form client request into a structured
// quote draft, with a language model when one is configured and a
// deterministic rule set otherwise.
package extraction

import (
	"context"

	"github.com/rapid-pub/backoffice/internal/sales"
)

// Strategy names the extractor that produced a result.
type Strategy string

const (
	StrategyAssisted  Strategy = "assisted"
	StrategyHeuristic Strategy = "heuristic"
)

// Result is the structured draft extracted from a request.
type Result struct {
	Client     ClientInfo  `json:"client"`
	Product    ProductInfo `json:"product"`
	Deadline   string      `json:"deadline"`
	Notes      string      `json:"notes"`
	Confidence float64     `json:"confidence"`
	Strategy   Strategy    `json:"strategy"`
}

type ClientInfo struct {
	Name      string `json:"name"`
	Company   string `json:"company"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	PhoneE164 string `json:"phone_e164,omitempty"`
}

type ProductInfo struct {
	Type        sales.ProductType `json:"type"`
	Quantity    *int              `json:"quantity"`
	Format      string            `json:"format"`
	Paper       string            `json:"paper"`
	DoubleSided bool              `json:"double_sided"`
	Finishes    []string          `json:"finishes"`
}

// Extractor produces a Result from raw request text.
type Extractor interface {
	Extract(ctx context.Context, text string) (*Result, error)
}
