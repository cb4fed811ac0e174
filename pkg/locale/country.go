package locale

import "strings"

type Country struct {
	Code     string // ISO 3166-1 alpha-2 country code (e.g., "EG", "GB")
	Name     string // Human-readable country name
	DialCode string // E.164 country calling code including the plus sign
}

// Countries lists the regions a national-format phone number is tried
// against, most likely first.
var Countries = []Country{
	{Code: "EG", Name: "Egypt", DialCode: "+20"},
	{Code: "SA", Name: "Saudi Arabia", DialCode: "+966"},
	{Code: "AE", Name: "United Arab Emirates", DialCode: "+971"},
	{Code: "GB", Name: "United Kingdom", DialCode: "+44"},
	{Code: "US", Name: "United States", DialCode: "+1"},
}

func PhoneRegions() []string {
	regions := make([]string, 0, len(Countries))
	for _, c := range Countries {
		regions = append(regions, c.Code)
	}
	return regions
}

// InferCountryFromPhone matches an E.164 number against the known dial
// codes. The longest matching code wins.
func InferCountryFromPhone(phone string) *Country {
	normalized := strings.TrimSpace(phone)
	if !strings.HasPrefix(normalized, "+") {
		return nil
	}

	var best *Country
	for i := range Countries {
		c := &Countries[i]
		if !strings.HasPrefix(normalized, c.DialCode) {
			continue
		}
		if best == nil || len(c.DialCode) > len(best.DialCode) {
			best = c
		}
	}
	return best
}
