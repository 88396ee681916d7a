package extraction

import (
	"github.com/fyrsmithlabs/contextos/pkg/graph"
)

// Category describes one extractable entity type: the keywords that gate
// the category on the decision's search string, and the input field names
// whose string values become candidate entity names when the gate passes.
type Category struct {
	Type     graph.EntityType `json:"type"`
	Keywords []string         `json:"keywords"`
	Fields   []string         `json:"fields"`
}

// Config holds extractor configuration.
type Config struct {
	// CacheSize bounds the per-decision memo cache. Zero uses
	// DefaultCacheSize.
	CacheSize int `json:"cache_size"`

	// Categories overrides the default category set when non-empty.
	Categories []Category `json:"categories,omitempty"`
}

// DefaultCacheSize is the memo cache capacity when none is configured.
const DefaultCacheSize = 1000

// DefaultConfig returns the default extractor configuration.
func DefaultConfig() Config {
	return Config{
		CacheSize:  DefaultCacheSize,
		Categories: DefaultCategories(),
	}
}

// DefaultCategories returns the built-in category set. Field allowlists
// carry both camelCase and snake_case spellings because trace inputs come
// from heterogeneous tool payloads.
func DefaultCategories() []Category {
	return []Category{
		{
			Type:     graph.EntityProduct,
			Keywords: []string{"product", "sku", "inventory", "strain", "discount", "item", "stock"},
			Fields:   []string{"productName", "product_name", "product", "sku", "strain", "itemName", "item_name"},
		},
		{
			Type:     graph.EntityBrand,
			Keywords: []string{"brand", "branding", "label"},
			Fields:   []string{"brandName", "brand_name", "brand"},
		},
		{
			Type:     graph.EntityCustomer,
			Keywords: []string{"customer", "shopper", "segment", "loyalty", "audience"},
			Fields:   []string{"customerName", "customer_name", "customer", "segment", "segmentName", "segment_name"},
		},
		{
			Type:     graph.EntityCampaign,
			Keywords: []string{"campaign", "promotion", "promo", "blast", "newsletter"},
			Fields:   []string{"campaignName", "campaign_name", "campaign", "promoName", "promo_name"},
		},
		{
			Type:     graph.EntityCompetitor,
			Keywords: []string{"competitor", "competition", "rival", "undercut"},
			Fields:   []string{"competitorName", "competitor_name", "competitor"},
		},
	}
}
