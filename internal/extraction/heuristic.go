package extraction

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/rapid-pub/backoffice/internal/sales"
)

// HeuristicConfidence is reported for every rule based extraction.
const HeuristicConfidence = 0.6

// Rule tables are evaluated top to bottom; the first hit wins except for
// finishes, where every hit is kept in table order.

type productRule struct {
	keywords []string
	product  sales.ProductType
}

var productRules = []productRule{
	{[]string{"flyer", "tract"}, sales.ProductFlyers},
	{[]string{"carte de visite", "cartes de visite"}, sales.ProductBusinessCards},
	{[]string{"affiche"}, sales.ProductPosters},
	{[]string{"dépliant", "depliant"}, sales.ProductLeaflets},
	{[]string{"kakémono", "kakemono", "roll-up", "rollup"}, sales.ProductRollupBanner},
	{[]string{"sticker", "autocollant"}, sales.ProductStickers},
	{[]string{"brochure"}, sales.ProductBrochures},
}

type labelRule struct {
	keywords []string
	label    string
}

var formatRules = []labelRule{
	{[]string{"a6"}, "A6"},
	{[]string{"a5"}, "A5"},
	{[]string{"a4"}, "A4"},
	{[]string{"a3"}, "A3"},
	{[]string{"a2"}, "A2"},
	{[]string{"85x55", "85 x 55"}, "85x55mm"},
}

// Heaviest first, so a text naming several weights reports the heaviest.
var paperRules = []labelRule{
	{[]string{"350g", "350 g"}, "350g"},
	{[]string{"250g", "250 g"}, "250g"},
	{[]string{"170g", "170 g"}, "170g"},
	{[]string{"135g", "135 g"}, "135g"},
	{[]string{"90g", "90 g"}, "90g"},
}

var doubleSidedKeywords = []string{"recto-verso", "recto verso", "r/v"}

type finishRule struct {
	pattern *regexp.Regexp
	label   string
}

var finishRules = []finishRule{
	{regexp.MustCompile(`pelliculage mat|\bmat\b`), "matte lamination"},
	{regexp.MustCompile(`pelliculage brillant|\bbrillant\b`), "glossy lamination"},
	{regexp.MustCompile(`vernis s[ée]lectif`), "spot varnish"},
	{regexp.MustCompile(`dorure`), "gilding"},
}

var (
	quantityPattern = regexp.MustCompile(`(?i)(\d+)\s*(ex|exemplaire|pièce|unité|flyer|carte|affiche|sticker)`)
	emailPattern    = regexp.MustCompile(`[\w.-]+@[\w.-]+\.\w+`)
	phonePattern    = regexp.MustCompile(`(?:0|\+33)[1-9](?:[\s.-]?\d{2}){4}`)
)

// Heuristic is the rule based extractor. It never fails and never invents
// a value: a field without a match stays empty.
type Heuristic struct{}

// Extract implements Extractor.
func (Heuristic) Extract(_ context.Context, text string) (*Result, error) {
	return Analyze(text), nil
}

// Analyze applies the rule tables to text.
func Analyze(text string) *Result {
	lower := strings.ToLower(text)

	res := &Result{
		Product: ProductInfo{
			Type:     sales.ProductOther,
			Finishes: []string{},
		},
		Confidence: HeuristicConfidence,
		Strategy:   StrategyHeuristic,
	}

	for _, rule := range productRules {
		if containsAny(lower, rule.keywords) {
			res.Product.Type = rule.product
			break
		}
	}
	if m := quantityPattern.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			res.Product.Quantity = &n
		}
	}
	res.Product.Format = firstLabel(lower, formatRules)
	res.Product.Paper = firstLabel(lower, paperRules)
	res.Product.DoubleSided = containsAny(lower, doubleSidedKeywords)
	for _, rule := range finishRules {
		if rule.pattern.MatchString(lower) {
			res.Product.Finishes = append(res.Product.Finishes, rule.label)
		}
	}

	// Contact details keep the original case.
	res.Client.Email = emailPattern.FindString(text)
	res.Client.Phone = phonePattern.FindString(text)
	return res
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func firstLabel(s string, rules []labelRule) string {
	for _, rule := range rules {
		if containsAny(s, rule.keywords) {
			return rule.label
		}
	}
	return ""
}
