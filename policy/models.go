// Package policy stores insurance policies and answers the per-user search and
// premium aggregation queries.
package policy

import "time"

// Policy is a persisted policy. CarrierID and LOBID are nil when the carrier
// or line of business did not resolve at ingestion time.
type Policy struct {
	ID            string
	PolicyNumber  string
	StartDate     *time.Time
	EndDate       *time.Time
	PremiumAmount float64
	PolicyType    string
	UserID        string
	CarrierID     *string
	LOBID         *string
	CreatedAt     time.Time
}

// CreateParams contains write parameters for creating policies.
type CreateParams struct {
	ID            string
	PolicyNumber  string
	StartDate     *time.Time
	EndDate       *time.Time
	PremiumAmount float64
	PolicyType    string
	UserID        string
	CarrierID     *string
	LOBID         *string
}

// Detail is a policy with its carrier and line of business names resolved.
type Detail struct {
	ID            string     `json:"id"`
	PolicyNumber  string     `json:"policy_number"`
	PolicyType    string     `json:"policy_type"`
	PremiumAmount float64    `json:"premium_amount"`
	StartDate     *time.Time `json:"policy_start_date,omitempty"`
	EndDate       *time.Time `json:"policy_end_date,omitempty"`
	CompanyName   string     `json:"company_name,omitempty"`
	CategoryName  string     `json:"category_name,omitempty"`
}

// Holder is the public view of the user a search matched.
type Holder struct {
	ID        string `json:"id"`
	Firstname string `json:"firstname"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// SearchResult is the outcome of a firstname search. Found is false when no
// user matched; Policies is then empty, never nil.
type SearchResult struct {
	Found    bool
	User     *Holder
	Policies []Detail
	Count    int
}

// HolderRow is one joined policy row read for aggregation.
type HolderRow struct {
	UserID    string
	Firstname string
	Email     string
	Phone     string
	Policy    Detail
}

// Summary is one policy inside an aggregate.
type Summary struct {
	PolicyNumber  string     `json:"policy_number"`
	PolicyType    string     `json:"policy_type"`
	PremiumAmount float64    `json:"premium_amount"`
	CompanyName   string     `json:"company_name,omitempty"`
	CategoryName  string     `json:"category_name,omitempty"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	EndDate       *time.Time `json:"end_date,omitempty"`
}

// UserAggregate groups a user's policies with their count and premium total.
type UserAggregate struct {
	UserID        string    `json:"user_id"`
	Firstname     string    `json:"firstname"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	TotalPolicies int       `json:"total_policies"`
	TotalPremium  float64   `json:"total_premium"`
	Policies      []Summary `json:"policies"`
}
