package tlv

// nationalityNames maps the ISO alpha-3 codes the chip records to display
// names. The list covers the large resident populations only; an unlisted
// code passes through unchanged rather than failing the parse.
var nationalityNames = map[string]string{
	"CHN": "China",
	"VNM": "Vietnam",
	"KOR": "South Korea",
	"PHL": "Philippines",
	"BRA": "Brazil",
	"NPL": "Nepal",
	"IDN": "Indonesia",
	"MMR": "Myanmar",
	"THA": "Thailand",
	"PER": "Peru",
	"IND": "India",
	"USA": "United States",
	"LKA": "Sri Lanka",
	"KHM": "Cambodia",
	"MNG": "Mongolia",
	"PAK": "Pakistan",
	"BGD": "Bangladesh",
	"GBR": "United Kingdom",
	"FRA": "France",
	"DEU": "Germany",
}

// statusNames maps printed residence statuses to their official English
// renderings. Unknown statuses pass through raw.
var statusNames = map[string]string{
	"永住者":           "Permanent Resident",
	"定住者":           "Long-Term Resident",
	"留学":            "Student",
	"家族滞在":          "Dependent",
	"技術・人文知識・国際業務": "Engineer / Specialist in Humanities / International Services",
	"技能実習":          "Technical Intern Training",
	"特定技能１号":        "Specified Skilled Worker (i)",
	"特定技能２号":        "Specified Skilled Worker (ii)",
	"日本人の配偶者等":      "Spouse or Child of Japanese National",
	"永住者の配偶者等":      "Spouse or Child of Permanent Resident",
	"経営・管理":         "Business Manager",
	"高度専門職１号":       "Highly Skilled Professional (i)",
	"特定活動":          "Designated Activities",
}

// LookupNationality resolves a nationality code, passing unknown codes
// through unchanged.
func LookupNationality(code string) string {
	if name, ok := nationalityNames[code]; ok {
		return name
	}
	return code
}

// LookupStatus resolves a residence status, passing unknown statuses
// through unchanged.
func LookupStatus(status string) string {
	if name, ok := statusNames[status]; ok {
		return name
	}
	return status
}
