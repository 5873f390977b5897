// Package language defines the supported response languages and the
// priority chain that picks one for a request.
package language

import (
	"sort"
	"strings"

	textlang "golang.org/x/text/language"
)

// Code is an ISO 639-1 language code from the supported set.
type Code string

const (
	English Code = "en"
	Hindi   Code = "hi"
	Telugu  Code = "te"
	Tamil   Code = "ta"
	Bengali Code = "bn"
	Marathi Code = "mr"
)

// Default is used when no signal yields a supported code.
const Default = English

// Info describes a supported language for display.
type Info struct {
	Code       Code   `json:"code"`
	Name       string `json:"name"`
	NativeName string `json:"native_name"`
}

var supported = []Info{
	{Code: English, Name: "English", NativeName: "English"},
	{Code: Hindi, Name: "Hindi", NativeName: "हिन्दी"},
	{Code: Telugu, Name: "Telugu", NativeName: "తెలుగు"},
	{Code: Tamil, Name: "Tamil", NativeName: "தமிழ்"},
	{Code: Bengali, Name: "Bengali", NativeName: "বাংলা"},
	{Code: Marathi, Name: "Marathi", NativeName: "मराठी"},
}

// Supported returns the supported languages in display order.
func Supported() []Info {
	out := make([]Info, len(supported))
	copy(out, supported)
	return out
}

// IsSupported reports whether raw is exactly a supported code.
func IsSupported(raw string) bool {
	for _, info := range supported {
		if string(info.Code) == raw {
			return true
		}
	}
	return false
}

// Parse normalizes raw (trim, lowercase) and returns it when supported.
func Parse(raw string) (Code, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if IsSupported(normalized) {
		return Code(normalized), true
	}
	return "", false
}

// Name returns the English display name of a code, or the code itself.
func (c Code) Name() string {
	for _, info := range supported {
		if info.Code == c {
			return info.Name
		}
	}
	return string(c)
}

func (c Code) String() string {
	return string(c)
}

// Negotiate picks a supported language from an Accept-Language header.
// Exact codes win in q-value order, then "<code>-IN" regional variants of
// the non-English languages, then any English variant.
func Negotiate(acceptLanguage string) (Code, bool) {
	if strings.TrimSpace(acceptLanguage) == "" {
		return "", false
	}

	ranked := rankAcceptLanguage(acceptLanguage)

	for _, tag := range ranked {
		if IsSupported(tag) {
			return Code(tag), true
		}
	}

	for _, info := range supported {
		if info.Code == English {
			continue
		}
		regional := string(info.Code) + "-in"
		for _, tag := range ranked {
			if tag == regional {
				return info.Code, true
			}
		}
	}

	for _, tag := range ranked {
		if strings.HasPrefix(tag, "en-") {
			return English, true
		}
	}

	return "", false
}

// rankAcceptLanguage returns the lowercased tags of an Accept-Language
// header in descending q-value order. Entries are parsed one at a time so
// a malformed entry is skipped instead of voiding the whole header.
func rankAcceptLanguage(header string) []string {
	type weighted struct {
		tag string
		q   float32
	}

	var entries []weighted
	for _, part := range strings.Split(header, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		tags, weights, err := textlang.ParseAcceptLanguage(part)
		if err != nil {
			continue
		}
		for i, tag := range tags {
			if weights[i] <= 0 {
				continue
			}
			entries = append(entries, weighted{tag: strings.ToLower(tag.String()), q: weights[i]})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].q > entries[j].q })

	ranked := make([]string, len(entries))
	for i, e := range entries {
		ranked[i] = e.tag
	}
	return ranked
}
