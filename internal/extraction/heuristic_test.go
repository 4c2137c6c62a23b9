package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapid-pub/backoffice/internal/sales"
)

func TestAnalyzeFullRequest(t *testing.T) {
	res := Analyze("500 flyers A5 recto-verso papier 350g vernis sélectif, contact: jean@acme.fr, 06 12 34 56 78")

	assert.Equal(t, sales.ProductFlyers, res.Product.Type)
	require.NotNil(t, res.Product.Quantity)
	assert.Equal(t, 500, *res.Product.Quantity)
	assert.Equal(t, "A5", res.Product.Format)
	assert.Equal(t, "350g", res.Product.Paper)
	assert.True(t, res.Product.DoubleSided)
	assert.Equal(t, []string{"spot varnish"}, res.Product.Finishes)
	assert.Equal(t, "jean@acme.fr", res.Client.Email)
	assert.Equal(t, "06 12 34 56 78", res.Client.Phone)
	assert.Equal(t, HeuristicConfidence, res.Confidence)
	assert.Equal(t, StrategyHeuristic, res.Strategy)
}

func TestAnalyzeNoMatch(t *testing.T) {
	res := Analyze("Bonjour, pouvez-vous me rappeler ?")

	assert.Equal(t, sales.ProductOther, res.Product.Type)
	assert.Nil(t, res.Product.Quantity)
	assert.Empty(t, res.Product.Format)
	assert.Empty(t, res.Product.Paper)
	assert.False(t, res.Product.DoubleSided)
	assert.NotNil(t, res.Product.Finishes)
	assert.Empty(t, res.Product.Finishes)
	assert.Empty(t, res.Client.Email)
	assert.Empty(t, res.Client.Phone)
	assert.Empty(t, res.Client.Name)
	assert.Empty(t, res.Deadline)
	assert.Equal(t, 0.6, res.Confidence)
}

func TestAnalyzeRules(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		product  sales.ProductType
		format   string
		paper    string
		finishes []string
	}{
		{
			name:     "business cards with metric format",
			text:     "Cartes de visite 85 x 55 pelliculage mat",
			product:  sales.ProductBusinessCards,
			format:   "85x55mm",
			finishes: []string{"matte lamination"},
		},
		{
			name:     "format word does not read as matte",
			text:     "Affiche format A3 brillant 170 g",
			product:  sales.ProductPosters,
			format:   "A3",
			paper:    "170g",
			finishes: []string{"glossy lamination"},
		},
		{
			name:     "finishes keep table order",
			text:     "Brochure avec dorure et pelliculage mat",
			product:  sales.ProductBrochures,
			finishes: []string{"matte lamination", "gilding"},
		},
		{
			name:     "first product rule wins",
			text:     "Kakémono et autocollants",
			product:  sales.ProductRollupBanner,
			finishes: []string{},
		},
		{
			name:     "unaccented leaflet",
			text:     "depliant A4 135g",
			product:  sales.ProductLeaflets,
			format:   "A4",
			paper:    "135g",
			finishes: []string{},
		},
		{
			name:     "heaviest paper wins",
			text:     "stickers 90g ou 250g",
			product:  sales.ProductStickers,
			paper:    "250g",
			finishes: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Analyze(tt.text)
			assert.Equal(t, tt.product, res.Product.Type)
			assert.Equal(t, tt.format, res.Product.Format)
			assert.Equal(t, tt.paper, res.Product.Paper)
			assert.Equal(t, tt.finishes, res.Product.Finishes)
		})
	}
}

func TestAnalyzeQuantityUnits(t *testing.T) {
	tests := map[string]int{
		"1000 exemplaires":  1000,
		"250 ex.":           250,
		"50 Affiches A2":    50,
		"2000 cartes":       2000,
		"300 pièces rondes": 300,
	}
	for text, want := range tests {
		res := Analyze(text)
		require.NotNil(t, res.Product.Quantity, text)
		assert.Equal(t, want, *res.Product.Quantity, text)
	}

	assert.Nil(t, Analyze("papier 350g").Product.Quantity)
}

func TestAnalyzeContactKeepsCase(t *testing.T) {
	res := Analyze("Écrire à Marie.Dupont@Studio-Bleu.fr ou appeler +33123456789")
	assert.Equal(t, "Marie.Dupont@Studio-Bleu.fr", res.Client.Email)
	assert.Equal(t, "+33123456789", res.Client.Phone)
}
