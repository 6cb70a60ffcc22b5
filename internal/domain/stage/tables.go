package stage

// Built-in table tags.
const (
	General    = "general"
	Salesforce = "salesforce"
	Pivotal    = "pivotal"
	ACRM       = "acrm"
)

// textStageWeights are the weights for text-labelled pipelines.
// pending is 0.7 in the latest revision; older deployments used 0.6.
func textStageWeights() map[string]float64 {
	return map[string]float64{
		"engaged":         1.0,
		"proposal":        0.9,
		"quote follow-up": 0.85,
		"finalizing":      0.8,

		"outreach":     0.7,
		"user":         0.7,
		"business":     0.65,
		"introduction": 0.7,
		"connect":      0.65,
		"engage":       0.65,
		"pending":      0.7,

		"activation":          0.5,
		"review":              0.5,
		"identify resolution": 0.45,
		"resolution attempt":  0.45,

		"resolution success": 0.3,
		"co-term":            0.25,

		"resolution fail/futile": 0.1,
		"won't process":          0.05,
		"closed won":             0.1,
		"closed lost":            0.0,
		"none":                   0.0,
	}
}

// NewGeneralTable is the platform-neutral text table; unknown stages weigh 0.5.
func NewGeneralTable() *Table {
	return NewTable(General, textStageWeights(), 0.5)
}

// NewSalesforceTable shares the text weights but defaults unknown stages to 0.2.
func NewSalesforceTable() *Table {
	return NewTable(Salesforce, textStageWeights(), 0.2)
}

// NewPivotalTable covers the integer-coded status field.
func NewPivotalTable() *Table {
	return NewTable(Pivotal, map[string]float64{
		"0": 1.0,
		"1": 0.1,
		"2": 0.3,
		"3": 0.4,
		"4": 0.1,
	}, 0.0)
}

// NewACRMTable covers the "(BASE)" suffixed status labels.
func NewACRMTable() *Table {
	return NewTable(ACRM, map[string]float64{
		"In Progress (BASE)":      1.0,
		"Won (BASE)":              0.9,
		"Verbal Agreement (BASE)": 0.7,
		"Rests (BASE)":            0.4,
		"Lost (BASE)":             0.1,
		"Cancelled (BASE)":        0.1,
	}, 0.0)
}
