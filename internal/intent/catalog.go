package intent

import "guardrag/internal/types"

// Definition describes one recognized intent: what it means, which downstream
// specialist handles it, and the keywords that signal it.
type Definition struct {
	Intent      types.Intent
	Description string
	Specialist  string
	Keywords    []string
}

// Catalog is the immutable set of recognized intents. It is built once and
// injected into the classifier, so decision tables can be tuned per
// deployment and tested in isolation.
type Catalog struct {
	defs     []Definition
	byIntent map[types.Intent]Definition
}

// NewCatalog builds a catalog from definitions.
func NewCatalog(defs []Definition) *Catalog {
	byIntent := make(map[types.Intent]Definition, len(defs))
	for _, d := range defs {
		byIntent[d.Intent] = d
	}
	return &Catalog{defs: defs, byIntent: byIntent}
}

// DefaultCatalog returns the standard intent catalog.
func DefaultCatalog() *Catalog {
	return NewCatalog([]Definition{
		{
			Intent:      types.IntentProductInquiry,
			Description: "Questions about products",
			Specialist:  "product_agent",
			Keywords: []string{
				"product", "features", "specifications", "model", "version",
				"compare", "difference", "which", "best", "available",
			},
		},
		{
			Intent:      types.IntentTechnicalSupport,
			Description: "Technical issues and troubleshooting",
			Specialist:  "tech_agent",
			Keywords: []string{
				"error", "issue", "problem", "broken", "crash", "fail",
				"bug", "fix", "troubleshoot", "debug", "not working",
			},
		},
		{
			Intent:      types.IntentMaintenance,
			Description: "Maintenance and service procedures",
			Specialist:  "maintenance_agent",
			Keywords: []string{
				"maintenance", "service", "schedule", "routine", "preventive",
				"check", "inspection", "calibration", "replace", "change",
			},
		},
		{
			Intent:      types.IntentWarranty,
			Description: "Warranty and service terms",
			Specialist:  "warranty_agent",
			Keywords: []string{
				"warranty", "guarantee", "coverage", "claim", "protection",
				"covered", "expired", "term", "condition", "valid",
			},
		},
		{
			Intent:      types.IntentAnomalyConcern,
			Description: "Fraud, security, suspicious activity",
			Specialist:  "anomaly_detection_agent",
			Keywords: []string{
				"fraud", "flagged", "suspicious", "hacked", "compromised",
				"unauthorized", "breach", "security", "attack", "malicious",
				"unusual", "strange", "weird activity", "account locked",
			},
		},
		{
			Intent:      types.IntentGeneral,
			Description: "General questions",
			Specialist:  "general_agent",
			Keywords:    nil,
		},
	})
}

// Definitions returns the catalog entries in declaration order.
func (c *Catalog) Definitions() []Definition {
	return c.defs
}

// Contains reports whether the intent is part of the catalog.
func (c *Catalog) Contains(intent types.Intent) bool {
	_, ok := c.byIntent[intent]
	return ok
}

// Specialist returns the handler name for an intent.
// Unknown intents route to the general agent.
func (c *Catalog) Specialist(intent types.Intent) string {
	if d, ok := c.byIntent[intent]; ok {
		return d.Specialist
	}
	return "general_agent"
}

// Keywords returns the keyword lexicon for an intent.
func (c *Catalog) Keywords(intent types.Intent) []string {
	return c.byIntent[intent].Keywords
}
