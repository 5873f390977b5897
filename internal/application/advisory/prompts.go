package advisory

import (
	"fmt"
	"strconv"
	"strings"

	domain "github.com/smartcrop/advisor/internal/domain/advisory"
)

// systemPrompt is sent with every structured recommendation request.
const systemPrompt = "You are an agricultural expert. Always respond with valid JSON only, no additional text."

var taskFocus = map[domain.TaskType]string{
	domain.TaskSoilPrep:    "Explain how to prepare the soil before sowing %s, taking the soil type into account.",
	domain.TaskPestControl: "Explain how to protect %s from the pests and diseases common this season. Include chemical and biological methods with product names.",
	domain.TaskIrrigation:  "Give an irrigation schedule for %s suited to the irrigation method and season.",
	domain.TaskHarvesting:  "Give harvesting advice for %s including signs of maturity and expected yield per acre.",
}

// BuildPrompt renders the user prompt for kind from the snapshot. The
// output depends only on its arguments.
func BuildPrompt(kind domain.Kind, snap domain.Snapshot) string {
	var b strings.Builder

	switch kind {
	case domain.KindMarket:
		b.WriteString("You are an agricultural market expert for India. Provide personalized market advice in JSON format.\n\n")
		writeProfile(&b, snap)
	case domain.KindFertilizer:
		b.WriteString("You are an agricultural scientist specializing in Indian farming. Provide personalized fertilizer advice in JSON format.\n\n")
		writeProfile(&b, snap)
	case domain.KindQuickMarket:
		fmt.Fprintf(&b, "Current market price for %s in %s. Season: %s.\n\n", snap.Crop(), orUnknown(snap.District), snap.Season())
	case domain.KindQuickFertilizer:
		fmt.Fprintf(&b, "Fertilizer dose for %s on %s soil. Season: %s.\n\n", snap.Crop(), orNotSpecified(snap.SoilType), snap.Season())
	default:
		task, _ := kind.Task()
		focus, ok := taskFocus[task]
		if !ok {
			focus = "Give practical advice for %s."
		}
		fmt.Fprintf(&b, focus, snap.Crop())
		b.WriteString("\n\n")
		writeProfile(&b, snap)
	}

	writeSchema(&b, domain.SchemaFor(kind))

	if kind == domain.KindMarket {
		fmt.Fprintf(&b, "\nMake the data realistic for the location and crop. If crop is not specified, use '%s' as default.", domain.DefaultCrop)
	} else {
		b.WriteString("\nMake recommendations realistic for the crop and location.")
	}
	return b.String()
}

func writeProfile(b *strings.Builder, snap domain.Snapshot) {
	b.WriteString("FARMER PROFILE:\n")
	fmt.Fprintf(b, "- Location: %s, %s\n", orUnknown(snap.State), orUnknown(snap.District))
	fmt.Fprintf(b, "- Primary Crop: %s\n", orNotSpecified(snap.PrimaryCrop))
	fmt.Fprintf(b, "- Farm Size: %s acres\n", farmSize(snap.FarmSize))
	fmt.Fprintf(b, "- Soil Type: %s\n", orNotSpecified(snap.SoilType))
	fmt.Fprintf(b, "- Irrigation Type: %s\n", orNotSpecified(snap.IrrigationType))
	fmt.Fprintf(b, "- Preferred Language: %s\n", snap.Language)
	fmt.Fprintf(b, "- Current Date: %s\n", snap.Date.Format("January 02, 2006"))
	fmt.Fprintf(b, "- Current Season: %s\n\n", snap.Season())
}

func writeSchema(b *strings.Builder, schema domain.Schema) {
	b.WriteString("Provide this exact JSON structure:\n{\n")
	for i, f := range schema {
		sep := ","
		if i == len(schema)-1 {
			sep = ""
		}
		switch f.Type {
		case domain.FieldStringList:
			fmt.Fprintf(b, "    %q: [\"...\"]%s  // %s\n", f.Name, sep, f.Description)
		case domain.FieldObjectList:
			keys := make([]string, len(f.Keys))
			for j, k := range f.Keys {
				keys[j] = fmt.Sprintf("%q: \"...\"", k)
			}
			fmt.Fprintf(b, "    %q: [{%s}]%s  // %s\n", f.Name, strings.Join(keys, ", "), sep, f.Description)
		default:
			fmt.Fprintf(b, "    %q: \"...\"%s  // %s\n", f.Name, sep, f.Description)
		}
	}
	b.WriteString("}\nScalar values are strings. Do not include the comments.\n")
}

func farmSize(acres float64) string {
	if acres <= 0 {
		return "Not specified"
	}
	return strconv.FormatFloat(acres, 'f', -1, 64)
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func orNotSpecified(s string) string {
	if s == "" {
		return "Not specified"
	}
	return s
}
