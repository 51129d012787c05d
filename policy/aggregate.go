package policy

import (
	"math"
	"sort"
)

// Aggregate groups rows by user and orders the groups by total premium,
// highest first. Ties keep the order in which users first appear in rows.
func Aggregate(rows []HolderRow) []UserAggregate {
	index := make(map[string]int)
	out := make([]UserAggregate, 0)

	for _, row := range rows {
		i, ok := index[row.UserID]
		if !ok {
			i = len(out)
			index[row.UserID] = i
			out = append(out, UserAggregate{
				UserID:    row.UserID,
				Firstname: row.Firstname,
				Email:     row.Email,
				Phone:     row.Phone,
				Policies:  []Summary{},
			})
		}

		agg := &out[i]
		agg.TotalPolicies++
		agg.TotalPremium += row.Policy.PremiumAmount
		agg.Policies = append(agg.Policies, Summary{
			PolicyNumber:  row.Policy.PolicyNumber,
			PolicyType:    row.Policy.PolicyType,
			PremiumAmount: row.Policy.PremiumAmount,
			CompanyName:   row.Policy.CompanyName,
			CategoryName:  row.Policy.CategoryName,
			StartDate:     row.Policy.StartDate,
			EndDate:       row.Policy.EndDate,
		})
	}

	for i := range out {
		out[i].TotalPremium = math.Round(out[i].TotalPremium*100) / 100
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].TotalPremium > out[b].TotalPremium
	})
	return out
}
