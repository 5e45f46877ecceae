package framework

// Built-in stage keys in pipeline order.
const (
	StageProblemClarity   = "problem_clarity"
	StageTargetMarket     = "target_market"
	StageValueProposition = "value_proposition"
	StageSolutionConcept  = "solution_concept"
	StageBusinessModel    = "business_model"
)

// Default returns a registry with the built-in planning stages.
func Default() *Registry {
	return MustRegistry(
		problemClarity(),
		targetMarket(),
		valueProposition(),
		solutionConcept(),
		businessModel(),
	)
}

func problemClarity() Stage {
	return Stage{
		Key:         StageProblemClarity,
		Title:       "Problem Clarity",
		Description: "Pin down the problem worth solving and who has it.",
		Instructions: `You are a startup advisor. Sharpen the founder's problem statement into one
precise sentence, identify root causes, and list the assumptions that must hold
for the problem to be worth solving. Suggest questions to validate it with customers.`,
		Fields: []Field{
			{
				ID: "problem_statement", Label: "Problem statement", Kind: KindTextarea, Required: true,
				Placeholder: "Describe the problem in a few sentences",
				HelpText:    "Focus on the problem, not your solution.",
				Example:     "Freelance designers lose hours every week chasing unpaid invoices.",
				Validators:  []Validator{MinLength(20)},
			},
			{
				ID: "target_customer", Label: "Who has this problem", Kind: KindText, Required: true,
				Example: "Independent designers billing 5-20 clients a month",
			},
			{
				ID: "current_alternatives", Label: "How they cope today", Kind: KindTextarea,
				HelpText: "Spreadsheets, competitors, manual work, or nothing at all.",
			},
			{
				ID: "pain_frequency", Label: "How often the problem occurs", Kind: KindSelect,
				Options: []string{"daily", "weekly", "monthly", "rarely"},
			},
			{
				ID: "evidence", Label: "Evidence gathered so far", Kind: KindTextarea,
				HelpText: "Interviews, surveys, support tickets, personal experience.",
			},
		},
		Output: []OutputField{
			{Name: "refined_problem", Type: OutputString, Description: "one-sentence problem statement"},
			{Name: "root_causes", Type: OutputStringArray},
			{Name: "affected_customer", Type: OutputString},
			{Name: "assumptions", Type: OutputStringArray, Description: "assumptions that must be true"},
			{Name: "validation_questions", Type: OutputStringArray, Description: "questions to ask customers"},
		},
	}
}

func targetMarket() Stage {
	return Stage{
		Key:         StageTargetMarket,
		Title:       "Target Market",
		Description: "Choose the first customer segment and size the opportunity.",
		Instructions: `Identify the most promising beachhead segment for this business, describe it
concretely, and estimate the market size with a short justification.`,
		Fields: []Field{
			{
				ID: "target_customer", Label: "Target customer", Kind: KindText, Required: true,
				Validators: []Validator{MinLength(3)},
			},
			{ID: "geography", Label: "Geography", Kind: KindText, Example: "United States, Canada"},
			{
				ID: "market_size", Label: "Known market size", Kind: KindText,
				Example:    "$2.5M",
				Validators: []Validator{Predicate("currency", "market size must be an amount like $2.5M")},
			},
			{ID: "customer_segments", Label: "Candidate segments", Kind: KindList},
			{ID: "buying_behavior", Label: "How they buy today", Kind: KindTextarea},
		},
		Output: []OutputField{
			{Name: "primary_segment", Type: OutputObject, Description: "name, description and size of the beachhead segment"},
			{Name: "secondary_segments", Type: OutputStringArray},
			{Name: "market_size_estimate", Type: OutputString},
			{Name: "early_adopters", Type: OutputString},
			{Name: "reasoning", Type: OutputString},
		},
	}
}

func valueProposition() Stage {
	return Stage{
		Key:         StageValueProposition,
		Title:       "Value Proposition",
		Description: "State why the target customer should care.",
		Instructions: `Write a clear value proposition for the target customer. Map customer gains and
pain relievers, and explain how the offer differs from the alternatives.`,
		Fields: []Field{
			{ID: "target_customer", Label: "Target customer", Kind: KindText, Required: true},
			{
				ID: "key_benefit", Label: "Key benefit", Kind: KindTextarea, Required: true,
				Validators: []Validator{MinLength(10)},
			},
			{ID: "differentiator", Label: "What makes it different", Kind: KindTextarea, Required: true},
			{ID: "competitors", Label: "Competitors", Kind: KindList},
		},
		Output: []OutputField{
			{Name: "headline", Type: OutputString},
			{Name: "value_statement", Type: OutputString},
			{Name: "gains", Type: OutputStringArray},
			{Name: "pain_relievers", Type: OutputStringArray},
			{Name: "differentiation", Type: OutputString},
		},
	}
}

func solutionConcept() Stage {
	return Stage{
		Key:         StageSolutionConcept,
		Title:       "Solution Concept",
		Description: "Shape the smallest product that delivers the value proposition.",
		Instructions: `Propose a minimum viable product. Keep the feature list small, name what is
deliberately out of scope, and list delivery risks with milestones.`,
		Fields: []Field{
			{ID: "core_features", Label: "Core features", Kind: KindList, Required: true},
			{ID: "mvp_scope", Label: "MVP scope", Kind: KindTextarea, Required: true, Validators: []Validator{MinLength(10)}},
			{ID: "technical_constraints", Label: "Technical constraints", Kind: KindTextarea},
			{
				ID: "timeline_weeks", Label: "Timeline (weeks)", Kind: KindNumber,
				Validators: []Validator{Predicate("numeric", "timeline must be a number of weeks")},
			},
		},
		Output: []OutputField{
			{Name: "solution_summary", Type: OutputString},
			{Name: "mvp_features", Type: OutputStringArray},
			{Name: "out_of_scope", Type: OutputStringArray},
			{Name: "risks", Type: OutputStringArray},
			{Name: "milestones", Type: OutputObject, Description: "milestone name to target week"},
		},
	}
}

func businessModel() Stage {
	return Stage{
		Key:         StageBusinessModel,
		Title:       "Business Model",
		Description: "Decide how the business makes money and reaches customers.",
		Instructions: `Design a business model consistent with the inputs. Describe revenue streams,
pricing, channels and cost drivers, and sketch the unit economics.`,
		Fields: []Field{
			{
				ID: "revenue_model", Label: "Revenue model", Kind: KindSelect, Required: true,
				Options: []string{"subscription", "transactional", "marketplace", "licensing", "advertising", "freemium"},
			},
			{ID: "pricing", Label: "Pricing", Kind: KindText, Required: true, Example: "$29/month per seat"},
			{ID: "channels", Label: "Acquisition channels", Kind: KindList, Required: true},
			{ID: "cost_structure", Label: "Main costs", Kind: KindTextarea},
			{
				ID: "gross_margin", Label: "Target gross margin (%)", Kind: KindNumber,
				Validators: []Validator{Predicate("percentage", "gross margin must be between 0 and 100")},
			},
		},
		Output: []OutputField{
			{Name: "revenue_streams", Type: OutputStringArray},
			{Name: "pricing_strategy", Type: OutputString},
			{Name: "channels", Type: OutputStringArray},
			{Name: "cost_drivers", Type: OutputStringArray},
			{Name: "unit_economics", Type: OutputObject, Description: "CAC, LTV, payback period"},
			{Name: "key_metrics", Type: OutputStringArray},
		},
	}
}
