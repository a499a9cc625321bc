// Seed script for creating demo data in Mindscape.
// Run with: go run ./scripts/seed.go
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mindscape-ai/mindscape/ai"
	"github.com/mindscape-ai/mindscape/config"
	"github.com/mindscape-ai/mindscape/domain"
	"github.com/mindscape-ai/mindscape/driver"
	"github.com/mindscape-ai/mindscape/service"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	_ = config.Load()
	ctx := context.Background()
	logger := zap.NewNop()

	store, cleanup, err := openDriver(ctx)
	if err != nil {
		log.Fatalf("Failed to open storage driver: %v", err)
	}
	defer cleanup()
	fmt.Printf("Connected (%s driver)\n", config.StorageDriver())

	// The mock provider keeps seeding deterministic and credential-free.
	engine := service.NewEngine(store, ai.NewMockProvider(), service.NewDriverSink(store, logger), logger)

	tenant := "demo-" + uuid.NewString()[:8]
	agent := "demo-agent-1"

	if _, err := engine.ConfigureAdaptive(ctx, tenant, domain.DefaultTenantConfig()); err != nil {
		log.Fatalf("Failed to configure tenant: %v", err)
	}
	fmt.Printf("Created tenant: %s\n", tenant)

	memories := []struct {
		memType string
		content string
		claim   string
		signal  float64
	}{
		{"preference", "User prefers dark mode in all interfaces", "the user prefers dark mode", 0.8},
		{"preference", "User likes responses formatted as bullet points", "the user prefers bullet points", 0.6},
		{"fact", "User is a software engineer working on backend systems", "the user works on backend systems", 0.9},
		{"fact", "User's primary programming language is Go", "the user writes Go", 0.7},
		{"constraint", "Never suggest proprietary tools - user only uses open source", "the user only uses open source tools", 0.85},
		{"observation", "User mentioned the market will grow this quarter", "the market will grow this quarter", 0.5},
		{"observation", "Analyst report says the market will not grow this quarter", "the market will not grow this quarter", 0.75},
		{"decision", "User decided to use PostgreSQL for the new project", "the project uses postgresql", 0.4},
	}

	for _, m := range memories {
		result, err := engine.StoreMemory(ctx, tenant, agent, domain.IngestData{
			Type:    m.memType,
			Content: m.content,
			Claims:  []domain.Claim{{Text: m.claim}},
		}, &domain.SurpriseSignal{Magnitude: &m.signal})
		if err != nil {
			log.Printf("Warning: Failed to store memory: %v", err)
			continue
		}
		fmt.Printf("Stored [%s] %s  surprise=%.2f layer=%s\n",
			m.memType, truncate(m.content, 50), result.SurpriseScore, result.Layer)
	}

	// Drain any summarization work dispatched during seeding.
	engine.Jobs().RunQueuedNow(ctx)

	snapshot, err := engine.GetMetrics(ctx, tenant)
	if err != nil {
		log.Fatalf("Failed to read census: %v", err)
	}

	fmt.Println("\n=== Seed Complete ===")
	fmt.Printf("Memories: %d  Beliefs: %d  Contradictions: %d (active: %d)\n",
		snapshot.MemoryCount, snapshot.BeliefCount,
		snapshot.ContradictionCount, snapshot.ActiveContradictions)
	fmt.Printf("\nTenant id for further experiments: %s\n", tenant)
}

func openDriver(ctx context.Context) (domain.Driver, func(), error) {
	switch config.StorageDriver() {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     config.RedisAddr(),
			Password: config.RedisPassword(),
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, nil, err
		}
		return driver.NewRedis(client), func() { _ = client.Close() }, nil

	case "postgres":
		pool, err := pgxpool.New(ctx, config.DatabaseURL())
		if err != nil {
			return nil, nil, err
		}
		pg := driver.NewPostgres(pool)
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return pg, pool.Close, nil

	default:
		return driver.NewMemory(), func() {}, nil
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
