//go:build integration

package lead_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"leadpipe/internal/lead"
	"leadpipe/pkg/sentinel"
	"leadpipe/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *lead.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = lead.NewPostgres(s.postgres.DB, s.postgres.DSN, slog.New(slog.DiscardHandler))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "leads"))
}

func (s *PostgresStoreSuite) newLead(name string, stage lead.Stage, createdAt time.Time) lead.Lead {
	l := lead.Lead{
		Name:      name,
		Stage:     stage,
		CreatedBy: "tester",
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
		ExpiresAt: createdAt.AddDate(2, 0, 0),
	}
	s.Require().NoError(s.store.Insert(context.Background(), &l))
	return l
}

func (s *PostgresStoreSuite) TestInsertAndFind() {
	now := time.Now().UTC().Truncate(time.Microsecond)
	email := "buyer@acme.test"
	l := lead.Lead{
		Name:      "Acme deal",
		Company:   "Acme",
		Stage:     lead.StageNew,
		Email:     &email,
		Consent:   true,
		CreatedBy: "alice",
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.AddDate(2, 0, 0),
	}
	s.Require().NoError(s.store.Insert(context.Background(), &l))
	s.NotEmpty(l.ID)

	found, err := s.store.FindByID(context.Background(), l.ID)
	s.Require().NoError(err)
	s.Equal("Acme deal", found.Name)
	s.Require().NotNil(found.Email)
	s.Equal(email, *found.Email)
	s.Nil(found.Phone)
	s.True(found.CreatedAt.Equal(now))
}

func (s *PostgresStoreSuite) TestMergePreservesProvenance() {
	created := time.Now().UTC().Truncate(time.Microsecond)
	l := s.newLead("Acme deal", lead.StageNew, created)

	update := l
	update.Name = "Acme deal (qualified)"
	update.Stage = lead.StageQualified
	update.CreatedBy = "mallory"
	update.CreatedAt = created.Add(48 * time.Hour)
	update.UpdatedAt = created.Add(time.Hour)
	s.Require().NoError(s.store.Merge(context.Background(), l.ID, update))

	found, err := s.store.FindByID(context.Background(), l.ID)
	s.Require().NoError(err)
	s.Equal(lead.StageQualified, found.Stage)
	s.Equal("tester", found.CreatedBy)
	s.True(found.CreatedAt.Equal(created))
	s.True(found.UpdatedAt.Equal(created.Add(time.Hour)))
}

func (s *PostgresStoreSuite) TestMergeAndDeleteUnknownID() {
	ghost := "00000000-0000-0000-0000-000000000000"
	s.ErrorIs(s.store.Merge(context.Background(), ghost, lead.Lead{Name: "x"}), sentinel.ErrNotFound)
	s.ErrorIs(s.store.Delete(context.Background(), ghost), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestWatchDeliversOnWrite() {
	base := time.Now().UTC().Truncate(time.Microsecond)
	s.newLead("First", lead.StageNew, base)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	sub, err := s.store.Watch(ctx, lead.Query{OrderByCreatedAt: true})
	s.Require().NoError(err)
	defer sub.Close()

	snapshot := s.nextSnapshot(sub)
	s.Require().Len(snapshot, 1)

	second := s.newLead("Second", lead.StageNew, base.Add(time.Minute))

	// The trigger wakes the listener; the fresh snapshot is newest-first.
	snapshot = s.waitForLen(sub, 2)
	s.Equal(second.ID, snapshot[0].ID)
}

func (s *PostgresStoreSuite) TestWatchStageFilterAndLimit() {
	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 4; i++ {
		s.newLead("Won", lead.StageWon, base.Add(time.Duration(i)*time.Minute))
	}
	s.newLead("Open", lead.StageNew, base)

	stage := lead.StageWon
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	sub, err := s.store.Watch(ctx, lead.Query{Stage: &stage, OrderByCreatedAt: true, Limit: 3})
	s.Require().NoError(err)
	defer sub.Close()

	snapshot := s.nextSnapshot(sub)
	s.Require().Len(snapshot, 3)
	for _, l := range snapshot {
		s.Equal(lead.StageWon, l.Stage)
	}
}

func (s *PostgresStoreSuite) nextSnapshot(sub lead.Subscription) []lead.Lead {
	s.T().Helper()
	select {
	case snapshot, ok := <-sub.Snapshots():
		s.Require().True(ok, "subscription ended unexpectedly")
		return snapshot
	case err := <-sub.Errors():
		s.Require().NoError(err)
		return nil
	case <-time.After(10 * time.Second):
		s.Require().Fail("timed out waiting for snapshot")
		return nil
	}
}

// waitForLen reads snapshots until one reaches the wanted size; notification
// timing may deliver an intermediate state first.
func (s *PostgresStoreSuite) waitForLen(sub lead.Subscription, n int) []lead.Lead {
	s.T().Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case snapshot, ok := <-sub.Snapshots():
			s.Require().True(ok, "subscription ended unexpectedly")
			if len(snapshot) == n {
				return snapshot
			}
		case err := <-sub.Errors():
			s.Require().NoError(err)
		case <-deadline:
			s.Require().Failf("timeout", "no snapshot of length %d arrived", n)
			return nil
		}
	}
}
