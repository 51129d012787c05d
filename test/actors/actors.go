package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/pramodsurya033/Insuredmine/customer"
	"github.com/pramodsurya033/Insuredmine/ingest"
	"github.com/pramodsurya033/Insuredmine/policy"
	"github.com/pramodsurya033/Insuredmine/reference"
	"github.com/pramodsurya033/Insuredmine/schedule"
)

var weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// Batch builds n upload records spread over a small pool of agents, carriers,
// lines of business and users so concurrent ingesters collide on every key.
func Batch(seed int64, n int) []ingest.Record {
	rng := rand.New(rand.NewSource(seed))
	records := make([]ingest.Record, 0, n)
	for i := 0; i < n; i++ {
		user := rng.Intn(n/4 + 1)
		records = append(records, ingest.Record{
			ingest.ColAgent:         fmt.Sprintf("Agent %d", rng.Intn(5)),
			ingest.ColCompanyName:   fmt.Sprintf("Carrier %d", rng.Intn(4)),
			ingest.ColCategoryName:  fmt.Sprintf("LOB %d", rng.Intn(3)),
			ingest.ColEmail:         fmt.Sprintf("user%d@stress.test", user),
			ingest.ColFirstname:     fmt.Sprintf("User%d", user),
			ingest.ColAccountName:   fmt.Sprintf("Account %d", rng.Intn(6)),
			ingest.ColPolicyNumber:  fmt.Sprintf("POL-%d-%d", seed, i),
			ingest.ColPremiumAmount: fmt.Sprintf("%d.%02d", rng.Intn(5000), rng.Intn(100)),
			ingest.ColPolicyType:    "Single",
		})
	}
	return records
}

// NewIngestService wires the ingestion pipeline over pool.
func NewIngestService(pool *pgxpool.Pool, logger *zap.Logger) *ingest.Service {
	customers := customer.NewRepository(pool)
	return ingest.NewService(
		ingest.NewParser(',', 4, logger),
		ingest.NewResolver(reference.NewRepository(pool), customers, logger),
		ingest.NewLinker(customers, policy.NewRepository(pool), logger),
		logger,
	)
}

// Ingester replays the same batch until stopped. Every replay after the first
// must create no new policy; tolerated store failures are absorbed by the
// pipeline and only context errors end the actor.
func Ingester(ctx context.Context, svc *ingest.Service, records []ingest.Record, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		if _, err := svc.IngestRecords(ctx, records); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("ingester: %w", err)
		}
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
}

// Scheduler keeps scheduling messages whose next occurrence is already in the
// past, so sweepers always have due work.
func Scheduler(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger, stop <-chan struct{}) error {
	svc := schedule.NewService(schedule.NewRepository(pool), time.UTC, logger).
		WithClock(func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) })
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, err := svc.Schedule(ctx, schedule.Request{
			Message: fmt.Sprintf("stress message %d", i),
			Day:     weekdays[rand.Intn(len(weekdays))],
			Time:    fmt.Sprintf("%02d:%02d", rand.Intn(24), rand.Intn(60)),
		})
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		time.Sleep(time.Duration(5+rand.Intn(15)) * time.Millisecond)
	}
}

// Sweeper runs its own dispatcher so several sweepers race on the same due
// rows. Sweep failures caused by chaos are tolerated.
func Sweeper(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger, stop <-chan struct{}) error {
	d := schedule.NewDispatcher(schedule.NewRepository(pool), schedule.NewLogSender(logger), schedule.DispatcherConfig{BatchSize: 50}, logger)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		if _, err := d.Sweep(ctx); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		time.Sleep(time.Duration(20+rand.Intn(40)) * time.Millisecond)
	}
}

// Reader searches and aggregates while writers run.
func Reader(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger, stop <-chan struct{}) error {
	svc := policy.NewService(customer.NewRepository(pool), policy.NewRepository(pool), logger)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		if _, err := svc.SearchByFirstname(ctx, fmt.Sprintf("User%d", rand.Intn(10))); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		report, err := svc.Aggregated(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		for i := 1; i < len(report); i++ {
			if report[i].TotalPremium > report[i-1].TotalPremium {
				return fmt.Errorf("reader: aggregate out of order at %d", i)
			}
		}
		time.Sleep(time.Duration(30+rand.Intn(30)) * time.Millisecond)
	}
}
