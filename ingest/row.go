package ingest

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Column names of the upload format.
const (
	ColAgent           = "agent"
	ColCategoryName    = "category_name"
	ColCompanyName     = "company_name"
	ColEmail           = "email"
	ColFirstname       = "firstname"
	ColDOB             = "dob"
	ColAddress         = "address"
	ColPhone           = "phone"
	ColState           = "state"
	ColZip             = "zip"
	ColGender          = "gender"
	ColUserType        = "userType"
	ColAccountName     = "account_name"
	ColAccountType     = "account_type"
	ColPolicyNumber    = "policy_number"
	ColPolicyStartDate = "policy_start_date"
	ColPolicyEndDate   = "policy_end_date"
	ColPremiumAmount   = "premium_amount"
	ColPolicyType      = "policy_type"
)

// Row is the typed view of one Record.
type Row struct {
	Agent   string
	Carrier string
	LOB     string
	User    UserFields
	Account AccountFields
	Policy  PolicyFields
}

// UserFields are the user attributes carried by a row.
type UserFields struct {
	Email     string `validate:"required,max=320"`
	Firstname string
	DOB       *time.Time
	Address   string
	Phone     string
	State     string
	Zip       string
	Gender    string
	UserType  string
}

// AccountFields are the account attributes carried by a row.
type AccountFields struct {
	Name string `validate:"required"`
	Type string
}

// PolicyFields are the policy attributes carried by a row.
type PolicyFields struct {
	Number    string `validate:"required"`
	StartDate *time.Time
	EndDate   *time.Time
	Premium   float64 `validate:"gte=0"`
	Type      string
}

// DecodeRow maps a record onto a Row. Unknown columns are ignored; missing
// columns decode as empty values. Header names match case-insensitively.
func DecodeRow(rec Record) Row {
	get := func(name string) string {
		if v, ok := rec[name]; ok {
			return v
		}
		for k, v := range rec {
			if strings.EqualFold(k, name) {
				return v
			}
		}
		return ""
	}

	return Row{
		Agent:   get(ColAgent),
		Carrier: get(ColCompanyName),
		LOB:     get(ColCategoryName),
		User: UserFields{
			Email:     get(ColEmail),
			Firstname: get(ColFirstname),
			DOB:       ParseDate(get(ColDOB)),
			Address:   get(ColAddress),
			Phone:     get(ColPhone),
			State:     get(ColState),
			Zip:       get(ColZip),
			Gender:    get(ColGender),
			UserType:  get(ColUserType),
		},
		Account: AccountFields{
			Name: get(ColAccountName),
			Type: get(ColAccountType),
		},
		Policy: PolicyFields{
			Number:    get(ColPolicyNumber),
			StartDate: ParseDate(get(ColPolicyStartDate)),
			EndDate:   ParseDate(get(ColPolicyEndDate)),
			Premium:   ParsePremium(get(ColPremiumAmount)),
			Type:      get(ColPolicyType),
		},
	}
}

// DecodeRows decodes every record in order.
func DecodeRows(records []Record) []Row {
	rows := make([]Row, len(records))
	for i, rec := range records {
		rows[i] = DecodeRow(rec)
	}
	return rows
}

var premiumCleaner = strings.NewReplacer("$", "", ",", "", " ", "")

// ParsePremium parses a premium amount. Currency symbols and thousands
// separators are ignored. Missing, unparseable, non-finite or negative
// values yield 0.
func ParsePremium(s string) float64 {
	s = premiumCleaner.Replace(strings.TrimSpace(s))
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"01-02-2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseDate parses s with the accepted layouts, in UTC. It returns nil when
// s is empty or matches none of them.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return &t
		}
	}
	return nil
}
