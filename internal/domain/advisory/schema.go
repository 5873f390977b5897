package advisory

import "fmt"

// FieldType is the JSON shape of a result field.
type FieldType int

const (
	FieldString FieldType = iota
	FieldStringList
	FieldObjectList
)

// Field describes one named result field. Keys lists the string members
// every item of an object list must carry.
type Field struct {
	Name        string
	Type        FieldType
	Keys        []string
	Description string
}

// Schema is the ordered field list of a kind.
type Schema []Field

var (
	marketSchema = Schema{
		{Name: "price", Description: `current price with unit, e.g. "₹ 2,150 per quintal"`},
		{Name: "trend", Description: `"up", "down" or "stable"`},
		{Name: "trend_percentage", Description: `change over the last week, e.g. "2.5%"`},
		{Name: "trend_explanation", Description: "why prices are moving"},
		{Name: "best_time_to_sell", Description: "when to sell for the best price"},
		{Name: "nearby_mandis", Type: FieldObjectList, Keys: []string{"name", "price", "distance"}, Description: "nearby markets with their prices and distance"},
		{Name: "storage_advice", Description: "how to store the produce while waiting"},
		{Name: "government_schemes", Description: "relevant support schemes or MSP information"},
		{Name: "prediction_next_week", Description: "expected price direction next week"},
		{Name: "personalized_advice", Description: "advice specific to this farmer"},
	}

	fertilizerSchema = Schema{
		{Name: "npk_ratio", Description: `recommended N:P:K ratio, e.g. "10:26:26"`},
		{Name: "quantity_per_acre", Description: `e.g. "120 kg"`},
		{Name: "total_required", Description: "total quantity for the whole farm"},
		{Name: "recommended_brands", Type: FieldStringList, Description: "fertilizer brands available in India"},
		{Name: "application_schedule", Type: FieldObjectList, Keys: []string{"stage", "timing", "quantity"}, Description: "split doses by crop stage"},
		{Name: "organic_alternatives", Type: FieldStringList, Description: "organic inputs that can replace part of the dose"},
		{Name: "estimated_cost", Description: "total cost in rupees"},
		{Name: "government_subsidies", Description: "applicable subsidies"},
		{Name: "soil_health_tips", Description: "tips for this soil type"},
		{Name: "irrigation_tips", Description: "tips for this irrigation method"},
		{Name: "personalized_advice", Description: "advice specific to this farmer"},
	}

	quickMarketSchema = Schema{
		{Name: "price", Description: `current price, e.g. "₹ 2,100"`},
		{Name: "trend", Description: `"up", "down" or "stable"`},
	}

	quickFertilizerSchema = Schema{
		{Name: "npk", Description: `N:P:K ratio, e.g. "10:26:26"`},
		{Name: "quantity", Description: `dose, e.g. "120 kg/acre"`},
	}

	taskSchema = Schema{
		{Name: "task", Description: "the task name"},
		{Name: "summary", Description: "one paragraph overview"},
		{Name: "steps", Type: FieldStringList, Description: "ordered steps to follow"},
		{Name: "recommended_inputs", Type: FieldStringList, Description: "tools, products or inputs needed"},
		{Name: "best_timing", Description: "when to do it this season"},
		{Name: "precautions", Description: "what to avoid"},
	}
)

// SchemaFor returns the schema of kind k. Unknown kinds have no fields.
func SchemaFor(k Kind) Schema {
	switch k {
	case KindMarket:
		return marketSchema
	case KindFertilizer:
		return fertilizerSchema
	case KindQuickMarket:
		return quickMarketSchema
	case KindQuickFertilizer:
		return quickFertilizerSchema
	}
	if _, ok := k.Task(); ok {
		return taskSchema
	}
	return nil
}

// Names returns the field names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Conform returns a copy of fields in which every schema field is present
// with the right shape. Scalars in string fields are stringified; missing
// or mis-shaped values are taken from fallback. The second return value
// lists the fields that were taken from fallback. Extra fields are kept.
func (s Schema) Conform(fields, fallback map[string]any) (map[string]any, []string) {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}

	var replaced []string
	for _, f := range s {
		v, ok := conformValue(f, fields[f.Name])
		if !ok {
			v = fallback[f.Name]
			replaced = append(replaced, f.Name)
		}
		out[f.Name] = v
	}
	return out, replaced
}

func conformValue(f Field, v any) (any, bool) {
	switch f.Type {
	case FieldString:
		switch val := v.(type) {
		case string:
			return val, true
		case float64, bool, int:
			return fmt.Sprint(val), true
		}
	case FieldStringList:
		list, ok := v.([]any)
		if !ok {
			return nil, false
		}
		out := make([]any, 0, len(list))
		for _, item := range list {
			switch val := item.(type) {
			case string:
				out = append(out, val)
			case float64, bool:
				out = append(out, fmt.Sprint(val))
			default:
				return nil, false
			}
		}
		return out, true
	case FieldObjectList:
		list, ok := v.([]any)
		if !ok || len(list) == 0 {
			return nil, false
		}
		out := make([]any, 0, len(list))
		for _, item := range list {
			row, ok := item.(map[string]any)
			if !ok {
				return nil, false
			}
			conformed, ok := conformRow(f.Keys, row)
			if !ok {
				return nil, false
			}
			out = append(out, conformed)
		}
		return out, true
	}
	return nil, false
}

// conformRow requires every key to hold a string or a scalar, which is
// stringified. Extra keys are kept.
func conformRow(keys []string, row map[string]any) (map[string]any, bool) {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	for _, key := range keys {
		v, ok := conformValue(Field{Name: key, Type: FieldString}, row[key])
		if !ok {
			return nil, false
		}
		out[key] = v
	}
	return out, true
}
