package language

// Source names the signal a resolution came from.
type Source string

const (
	SourceOverride Source = "override"
	SourceSession  Source = "session"
	SourceCookie   Source = "cookie"
	SourceUser     Source = "user"
	SourceBrowser  Source = "browser"
	SourceDefault  Source = "default"
)

// Signals carries every input the resolver looks at. Empty fields are
// treated as absent.
type Signals struct {
	// Override is the explicit ?lang= request parameter.
	Override string
	// Session is the user_language session value.
	Session string
	// Cookie is the preferred_language cookie value.
	Cookie string
	// UserPreference is the authenticated farmer's stored language.
	UserPreference string
	// AcceptLanguage is the raw Accept-Language header.
	AcceptLanguage string
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Code   Code   `json:"language"`
	Source Source `json:"source"`
}

// Resolve walks the signals in priority order and returns the first
// supported code. Invalid values are skipped; the result is always a
// supported code.
func Resolve(s Signals) Resolution {
	if code, ok := Parse(s.Override); ok {
		return Resolution{Code: code, Source: SourceOverride}
	}

	if IsSupported(s.Session) {
		return Resolution{Code: Code(s.Session), Source: SourceSession}
	}

	if IsSupported(s.Cookie) {
		return Resolution{Code: Code(s.Cookie), Source: SourceCookie}
	}

	// Stored preferences are validated on write; the check here only
	// guards rows written before that validation existed.
	if IsSupported(s.UserPreference) {
		return Resolution{Code: Code(s.UserPreference), Source: SourceUser}
	}

	if code, ok := Negotiate(s.AcceptLanguage); ok {
		return Resolution{Code: code, Source: SourceBrowser}
	}

	return Resolution{Code: Default, Source: SourceDefault}
}
