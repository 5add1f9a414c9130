// Package carddata defines the typed, validated output records produced by
// both acquisition paths (chip read and photo OCR). The three card variants
// share the Card contract so downstream consumers can treat them uniformly.
// Values are built once per successful parse; corrections produce a new
// instance rather than mutating an existing one.
package carddata

import "time"

// CardType identifies one of the three supported physical card layouts.
type CardType string

const (
	TypeZairyu        CardType = "zairyu"
	TypeMyNumber      CardType = "mynumber"
	TypeDriverLicense CardType = "driver_license"
)

// Sex as printed on the card face. Empty when not extracted.
type Sex string

const (
	SexMale   Sex = "M"
	SexFemale Sex = "F"
)

// Card is the common contract over the three card variants. FieldUpdates
// returns the dictionary-style view consumed by the external profile
// persistence collaborator; the library never writes to storage itself.
type Card interface {
	Type() CardType
	HolderName() string
	Number() string
	Expiry() time.Time
	FieldUpdates() map[string]string
}

// ZairyuCardData holds fields read from a residence card (在留カード).
type ZairyuCardData struct {
	CardNumber    string
	Name          string
	DateOfBirth   time.Time
	ExpiryDate    time.Time
	Sex           Sex
	Nationality   string
	Address       string
	Status        string // residence status (在留資格)
	PeriodOfStay  string
	WorkPermitted bool
}

func (z ZairyuCardData) Type() CardType     { return TypeZairyu }
func (z ZairyuCardData) HolderName() string { return z.Name }
func (z ZairyuCardData) Number() string     { return z.CardNumber }
func (z ZairyuCardData) Expiry() time.Time  { return z.ExpiryDate }

func (z ZairyuCardData) FieldUpdates() map[string]string {
	u := map[string]string{
		"card_number": z.CardNumber,
		"name":        z.Name,
		"nationality": z.Nationality,
		"status":      z.Status,
		"address":     z.Address,
	}
	putDate(u, "date_of_birth", z.DateOfBirth)
	putDate(u, "expiry_date", z.ExpiryDate)
	if z.Sex != "" {
		u["sex"] = string(z.Sex)
	}
	if z.PeriodOfStay != "" {
		u["period_of_stay"] = z.PeriodOfStay
	}
	return u
}

// MyNumberCardData holds fields read from an individual number card.
//
// The full 12-digit individual number is never retained: NumberLast4 carries
// at most the final four digits, and every construction path (chip and OCR)
// truncates before a value reaches this struct.
type MyNumberCardData struct {
	NumberLast4 string
	Name        string
	DateOfBirth time.Time
	ExpiryDate  time.Time
	Sex         Sex
	Address     string
}

func (m MyNumberCardData) Type() CardType     { return TypeMyNumber }
func (m MyNumberCardData) HolderName() string { return m.Name }
func (m MyNumberCardData) Number() string     { return m.NumberLast4 }
func (m MyNumberCardData) Expiry() time.Time  { return m.ExpiryDate }

func (m MyNumberCardData) FieldUpdates() map[string]string {
	u := map[string]string{
		"number_last4": m.NumberLast4,
		"name":         m.Name,
		"address":      m.Address,
	}
	putDate(u, "date_of_birth", m.DateOfBirth)
	putDate(u, "expiry_date", m.ExpiryDate)
	if m.Sex != "" {
		u["sex"] = string(m.Sex)
	}
	return u
}

// DriverLicenseData holds fields read from a Japanese driver's license.
type DriverLicenseData struct {
	LicenseNumber string
	Name          string
	DateOfBirth   time.Time
	ExpiryDate    time.Time
	IssueDate     time.Time
	Address       string
	Prefecture    Prefecture
	Classes       []LicenseClass
	Conditions    string
}

func (d DriverLicenseData) Type() CardType     { return TypeDriverLicense }
func (d DriverLicenseData) HolderName() string { return d.Name }
func (d DriverLicenseData) Number() string     { return d.LicenseNumber }
func (d DriverLicenseData) Expiry() time.Time  { return d.ExpiryDate }

func (d DriverLicenseData) FieldUpdates() map[string]string {
	u := map[string]string{
		"license_number": d.LicenseNumber,
		"name":           d.Name,
		"address":        d.Address,
	}
	putDate(u, "date_of_birth", d.DateOfBirth)
	putDate(u, "expiry_date", d.ExpiryDate)
	putDate(u, "issue_date", d.IssueDate)
	if d.Prefecture != PrefectureUnknown {
		u["prefecture"] = d.Prefecture.String()
	}
	if len(d.Classes) > 0 {
		u["classes"] = joinClasses(d.Classes)
	}
	if d.Conditions != "" {
		u["conditions"] = d.Conditions
	}
	return u
}

// LicenseClass is one licence category printed in the class grid.
type LicenseClass string

const (
	ClassRegular      LicenseClass = "普通"
	ClassMediumSized  LicenseClass = "中型"
	ClassLargeSized   LicenseClass = "大型"
	ClassMotorcycle   LicenseClass = "普自二"
	ClassLargeMoto    LicenseClass = "大自二"
	ClassMoped        LicenseClass = "原付"
	ClassSmallSpecial LicenseClass = "小特"
	ClassLargeSpecial LicenseClass = "大特"
	ClassTowing       LicenseClass = "け引"
)

// AllLicenseClasses lists the class tokens in grid order for extractors.
var AllLicenseClasses = []LicenseClass{
	ClassLargeSized, ClassMediumSized, ClassRegular,
	ClassLargeSpecial, ClassSmallSpecial,
	ClassLargeMoto, ClassMotorcycle, ClassMoped, ClassTowing,
}

func joinClasses(cs []LicenseClass) string {
	s := ""
	for i, c := range cs {
		if i > 0 {
			s += ","
		}
		s += string(c)
	}
	return s
}

const dateLayout = "2006-01-02"

func putDate(u map[string]string, key string, t time.Time) {
	if !t.IsZero() {
		u[key] = t.Format(dateLayout)
	}
}
