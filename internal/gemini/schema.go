package gemini

// Schema is the subset of the OpenAPI schema object accepted as
// responseSchema.
type Schema struct {
	Type       string             `json:"type"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Items      *Schema            `json:"items,omitempty"`
	Required   []string           `json:"required,omitempty"`
}

const (
	typeObject = "OBJECT"
	typeArray  = "ARRAY"
	typeString = "STRING"
	typeNumber = "NUMBER"
)

// AnalysisSchema mirrors analysis.Result.
func AnalysisSchema() *Schema {
	str := func() *Schema { return &Schema{Type: typeString} }
	num := func() *Schema { return &Schema{Type: typeNumber} }

	return &Schema{
		Type: typeObject,
		Properties: map[string]*Schema{
			"summary": str(),
			"laughterEvents": {
				Type: typeArray,
				Items: &Schema{
					Type: typeObject,
					Properties: map[string]*Schema{
						"timestamp":    str(),
						"setup":        str(),
						"intensity":    num(),
						"reactionType": str(),
					},
					Required: []string{"timestamp", "setup", "intensity", "reactionType"},
				},
			},
			"deliveryInsights": {
				Type:  typeArray,
				Items: str(),
			},
			"overallEngagementScore": num(),
			"topPerformingJoke":      str(),
		},
		Required: []string{"summary", "laughterEvents", "deliveryInsights", "overallEngagementScore", "topPerformingJoke"},
	}
}
