package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_unique_reference_names",
			SQL: `SELECT 'agent', agent_name FROM agents GROUP BY agent_name HAVING COUNT(*) > 1
                  UNION ALL
                  SELECT 'carrier', company_name FROM carriers GROUP BY company_name HAVING COUNT(*) > 1
                  UNION ALL
                  SELECT 'lob', category_name FROM lobs GROUP BY category_name HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_unique_user_email",
			SQL:  `SELECT email, COUNT(*) FROM users GROUP BY email HAVING COUNT(*) > 1`,
		},
		{
			Name: "O3_unique_policy_number",
			SQL:  `SELECT policy_number, COUNT(*) FROM policies GROUP BY policy_number HAVING COUNT(*) > 1`,
		},
		{
			Name: "O4_policy_owner_exists",
			SQL: `SELECT p.id FROM policies p
                  LEFT JOIN users u ON u.id = p.user_id
                  WHERE u.id IS NULL`,
		},
		{
			Name: "O5_account_owner_exists",
			SQL: `SELECT a.id FROM user_accounts a
                  LEFT JOIN users u ON u.id = a.user_id
                  WHERE u.id IS NULL`,
		},
		{
			Name: "O6_sent_flag_matches_timestamp",
			SQL:  `SELECT id FROM scheduled_messages WHERE is_sent <> (sent_at IS NOT NULL)`,
		},
		{
			Name: "O7_sent_after_due",
			SQL:  `SELECT id, scheduled_date, sent_at FROM scheduled_messages WHERE is_sent AND sent_at < scheduled_date`,
		},
		{
			Name: "O8_premium_non_negative",
			SQL:  `SELECT id, premium_amount FROM policies WHERE premium_amount < 0`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
