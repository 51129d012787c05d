// Package reference stores the name-keyed parent entities of the policy graph:
// agents, carriers and lines of business.
package reference

import (
	"fmt"
	"time"
)

// Kind selects one of the name-keyed entity tables.
type Kind string

const (
	KindAgent   Kind = "agent"
	KindCarrier Kind = "carrier"
	KindLOB     Kind = "lob"
)

// Kinds lists every reference kind.
var Kinds = []Kind{KindAgent, KindLOB, KindCarrier}

// Entity is a persisted agent, carrier or line of business.
type Entity struct {
	ID        string
	Kind      Kind
	Name      string
	CreatedAt time.Time
}

type table struct {
	name   string
	column string
}

func (k Kind) table() (table, error) {
	switch k {
	case KindAgent:
		return table{name: "agents", column: "agent_name"}, nil
	case KindCarrier:
		return table{name: "carriers", column: "company_name"}, nil
	case KindLOB:
		return table{name: "lobs", column: "category_name"}, nil
	default:
		return table{}, fmt.Errorf("reference: unknown kind %q", string(k))
	}
}
