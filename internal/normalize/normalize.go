package normalize

import "strings"

// Sex maps free-form sex values onto M, F or U. Unrecognized values are
// returned upper-cased so validation can reject them with the original text.
func Sex(s string) string {
	switch v := strings.ToUpper(strings.TrimSpace(s)); v {
	case "M", "MALE", "1":
		return "M"
	case "F", "FEMALE", "2":
		return "F"
	case "", "U", "UNKNOWN", "0":
		return "U"
	default:
		return v
	}
}

// Discharge maps common discharge status spellings and UB-04 status codes onto
// alive, expired or transferred. Unrecognized values pass through lower-cased.
func Discharge(s string) string {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "", "alive", "home", "01":
		return "alive"
	case "expired", "died", "dead", "20":
		return "expired"
	case "transferred", "transfer", "02", "05":
		return "transferred"
	default:
		return v
	}
}
