package store

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/andresmejia3/rollcall/internal/ledger"
	"github.com/andresmejia3/rollcall/internal/types"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestVectorConversion(t *testing.T) {
	in := []float64{1, 0.5, -2}
	v := toVector(in)
	if got := v.Slice(); len(got) != 3 || got[1] != 0.5 {
		t.Errorf("toVector() = %v", got)
	}
	out := fromVector(v)
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("fromVector()[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}

func descriptor(axis int) []float64 {
	vec := make([]float64, types.DescriptorDim)
	vec[axis] = 1.0
	return vec
}

// TestStoreIntegration runs a full integration test against a real Postgres container.
// It requires Docker to be running.
func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	// Recover from panics inside testcontainers (e.g. socket not found)
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("testcontainers panicked: %v", r)
			}
		}()
		_, err = testcontainers.NewDockerClientWithOpts(ctx)
		return
	}()
	if err != nil {
		t.Fatalf("Docker not available, cannot run integration test: %v", err)
	}

	pgContainer, err := postgres.Run(ctx, "pgvector/pgvector:pg16",
		postgres.WithDatabase("rollcall_test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
		testcontainers.WithLogger(noopLogger{}),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("Failed to terminate container: %v", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	s, err := New(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to connect to store: %v", err)
	}
	defer s.Close(ctx)

	// --- Identities ---

	identities := []types.Identity{
		{Name: "alice", Descriptor: descriptor(0)},
		{Name: "Bob", Descriptor: descriptor(1)},
	}
	if err := s.UpsertIdentities(ctx, identities); err != nil {
		t.Fatalf("UpsertIdentities failed: %v", err)
	}
	// Second sync replaces the embedding instead of duplicating the row
	identities[0].Descriptor = descriptor(2)
	if err := s.UpsertIdentities(ctx, identities); err != nil {
		t.Fatalf("UpsertIdentities (again) failed: %v", err)
	}

	listed, err := s.ListIdentities(ctx)
	if err != nil {
		t.Fatalf("ListIdentities failed: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("Expected 2 identities, got %d", len(listed))
	}
	if listed[0].Name != "ALICE" || listed[1].Name != "BOB" {
		t.Errorf("Expected canonical names, got %s, %s", listed[0].Name, listed[1].Name)
	}
	if listed[0].Descriptor[2] != 1.0 || listed[0].Descriptor[0] != 0 {
		t.Errorf("Expected ALICE embedding to be replaced")
	}

	if err := s.UpsertIdentities(ctx, []types.Identity{{Name: "short", Descriptor: []float64{1}}}); err == nil {
		t.Error("Expected dimension mismatch error")
	}

	name, dist, err := s.FindClosestIdentity(ctx, descriptor(1), 0.55)
	if err != nil {
		t.Fatalf("FindClosestIdentity failed: %v", err)
	}
	if name != "BOB" || dist > 1e-6 {
		t.Errorf("Expected BOB at distance 0, got %q at %f", name, dist)
	}

	// Orthogonal unit vectors are sqrt(2) apart
	name, dist, err = s.FindClosestIdentity(ctx, descriptor(5), 0.55)
	if err != nil {
		t.Fatalf("FindClosestIdentity error: %v", err)
	}
	if name != "" || math.Abs(dist-math.Sqrt2) > 1e-6 {
		t.Errorf("Expected no match at sqrt(2), got %q at %f", name, dist)
	}

	// --- Attendance ---

	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	records := []ledger.Record{
		{Name: "ALICE", Time: base},
		{Name: "BOB", Time: base.Add(time.Minute)},
		{Name: "alice", Time: base.Add(2 * time.Hour)},
	}
	inserted, err := s.InsertAttendance(ctx, records)
	if err != nil {
		t.Fatalf("InsertAttendance failed: %v", err)
	}
	if inserted != 3 {
		t.Errorf("Expected 3 new rows, got %d", inserted)
	}

	inserted, err = s.InsertAttendance(ctx, records)
	if err != nil {
		t.Fatalf("InsertAttendance (again) failed: %v", err)
	}
	if inserted != 0 {
		t.Errorf("Expected re-sync to insert nothing, got %d", inserted)
	}

	summary, err := s.AttendanceSummary(ctx)
	if err != nil {
		t.Fatalf("AttendanceSummary failed: %v", err)
	}
	if len(summary) != 2 {
		t.Fatalf("Expected 2 identities in summary, got %d", len(summary))
	}
	if summary[0].Name != "ALICE" || summary[0].Count != 2 {
		t.Errorf("Unexpected ALICE row %+v", summary[0])
	}
	if !summary[0].Last.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("Expected ALICE last at %v, got %v", base.Add(2*time.Hour), summary[0].Last)
	}

	// --- Reset ---

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if _, err := s.ListIdentities(ctx); err == nil {
		t.Error("Expected query to fail after tables were dropped")
	}
}

type noopLogger struct{}

func (n noopLogger) Printf(format string, v ...interface{}) {}
