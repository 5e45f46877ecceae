package autofill

// defaultSynonyms maps a field id to normalized tool output keys that carry the
// same concept. Lists are in priority order.
func defaultSynonyms() map[string][]string {
	table := map[string][]string{
		"target_customer": {
			"selectedCustomer", "targetCustomer", "idealCustomer", "customerSegment",
			"customerProfile", "persona", "targetAudience", "targetMarket", "audience", "customer",
		},
		"problem_statement": {
			"problem", "painPoint", "coreProblem", "challenge", "refinedProblem",
		},
		"customer_segments": {
			"segments", "secondarySegments", "marketSegments", "personas",
		},
		"market_size": {
			"tam", "totalAddressableMarket", "marketSizeEstimate", "marketSize",
		},
		"key_benefit": {
			"valueProposition", "valueStatement", "benefit", "mainBenefit", "headline",
		},
		"differentiator": {
			"differentiation", "uniqueSellingPoint", "usp", "competitiveAdvantage",
		},
		"competitors": {
			"competition", "alternatives", "competitorList",
		},
		"current_alternatives": {
			"alternatives", "workarounds", "existingSolutions",
		},
		"core_features": {
			"features", "mvpFeatures", "keyFeatures",
		},
		"mvp_scope": {
			"scope", "solutionSummary", "mvp",
		},
		"revenue_model": {
			"businessModel", "monetization", "revenueStreams",
		},
		"pricing": {
			"price", "pricingStrategy", "pricingModel",
		},
		"channels": {
			"acquisitionChannels", "distribution", "marketingChannels",
		},
		"cost_structure": {
			"costs", "costDrivers", "expenses",
		},
		"geography": {
			"region", "location", "country", "markets",
		},
	}
	out := make(map[string][]string, len(table))
	for field, names := range table {
		norm := make([]string, 0, len(names))
		for _, n := range names {
			norm = append(norm, normalize(n))
		}
		out[field] = norm
	}
	return out
}
