package marketplace

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/apperr"
	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/db"
	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/models"
	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/utils"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	gdb, err := db.Open(sqlite.Open(":memory:"))
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	// one connection keeps the in-memory database shared and serializes writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return NewStore(gdb).WithClock(func() time.Time { return t0 })
}

func credential(t *testing.T, password string) utils.Credential {
	t.Helper()
	h := utils.NewPasswordHasher(utils.HasherConfig{BcryptCost: bcrypt.MinCost})
	cred, err := h.Derive(password)
	require.NoError(t, err)
	return cred
}

func mustUser(t *testing.T, s *Store, name string, freelancer bool) models.User {
	t.Helper()
	u := &models.User{
		Username:     name,
		Email:        name + "@example.com",
		IsFreelancer: freelancer,
		Skills:       "Go, SQL",
	}
	require.NoError(t, s.CreateUser(context.Background(), u, credential(t, "secret-"+name)))
	return *u
}

func mustProject(t *testing.T, s *Store, client models.User) models.Project {
	t.Helper()
	p := &models.Project{
		Title:          "Build API",
		Description:    "REST backend",
		Budget:         500,
		RequiredSkills: "Go",
		ClientID:       client.ID,
	}
	require.NoError(t, s.CreateProject(context.Background(), p))
	return *p
}

func mustBid(t *testing.T, s *Store, p models.Project, f models.User, amount float64) models.Bid {
	t.Helper()
	days := 3
	b := &models.Bid{
		Amount:               amount,
		Proposal:             "I can do it",
		ProposedTimelineDays: &days,
		ProjectID:            p.ID,
		FreelancerID:         f.ID,
	}
	require.NoError(t, s.PlaceBid(context.Background(), b))
	return *b
}

// assigned returns a project that has been taken by freelancer through an
// accepted bid.
func assigned(t *testing.T, s *Store, client, freelancer models.User) models.Project {
	t.Helper()
	p := mustProject(t, s, client)
	b := mustBid(t, s, p, freelancer, 400)
	p, err := s.AcceptBid(context.Background(), p.ID, b.ID, client.ID)
	require.NoError(t, err)
	return p
}

func TestCreateUser_UniqueUsernameAndEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustUser(t, s, "alice", false)

	err := s.CreateUser(ctx, &models.User{Username: "alice", Email: "other@example.com"}, credential(t, "pw"))
	assert.ErrorIs(t, err, apperr.ErrConstraintViolation)

	err = s.CreateUser(ctx, &models.User{Username: "alice2", Email: "ALICE@example.com"}, credential(t, "pw"))
	assert.ErrorIs(t, err, apperr.ErrConstraintViolation)

	var n int64
	require.NoError(t, s.DB.Model(&models.User{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestCreateUser_StoresOnlyDerivedHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.CreateUser(ctx, &models.User{Username: "bob", Email: "bob@example.com"}, utils.Credential{})
	require.ErrorIs(t, err, apperr.ErrConstraintViolation)

	u := &models.User{
		Username:       "bob",
		Email:          "bob@example.com",
		AvgRating:      4.9,
		PortfolioScore: 1,
	}
	require.NoError(t, s.CreateUser(ctx, u, credential(t, "hunter22")))

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", got.PasswordHash)
	assert.True(t, utils.CheckPassword(got.PasswordHash, "hunter22"))
	assert.Equal(t, models.Scores{}, got.Scores(), "caller supplied scores are discarded")
}

func TestUpdateUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	client := mustUser(t, s, "carol", false)
	dev := mustUser(t, s, "dave", true)

	bio := "Backend developer"
	skills := " Go ,go, Postgres,"
	got, err := s.UpdateUser(ctx, dev.ID, models.UserUpdate{Bio: &bio, Skills: &skills})
	require.NoError(t, err)
	assert.Equal(t, bio, got.Bio)
	assert.Equal(t, "Go,Postgres", got.Skills)

	_, err = s.UpdateUser(ctx, 999, models.UserUpdate{Bio: &bio})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	mustBid(t, s, mustProject(t, s, client), dev, 100)
	off := false
	_, err = s.UpdateUser(ctx, dev.ID, models.UserUpdate{IsFreelancer: &off})
	assert.ErrorIs(t, err, apperr.ErrConstraintViolation)
}

func TestSetCredential(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := mustUser(t, s, "erin", false)

	require.NoError(t, s.SetCredential(ctx, u.ID, credential(t, "new-password")))
	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, utils.CheckPassword(got.PasswordHash, "new-password"))
	assert.False(t, utils.CheckPassword(got.PasswordHash, "secret-erin"))

	assert.ErrorIs(t, s.SetCredential(ctx, 999, credential(t, "x")), apperr.ErrNotFound)
	assert.ErrorIs(t, s.SetCredential(ctx, u.ID, utils.Credential{}), apperr.ErrConstraintViolation)
}

func TestFreelancerIDNullIffOpen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	client := mustUser(t, s, "client", false)
	dev := mustUser(t, s, "dev", true)

	p := mustProject(t, s, client)
	assert.Equal(t, models.ProjectStatusOpen, p.Status)
	assert.Nil(t, p.FreelancerID)

	b := mustBid(t, s, p, dev, 450)
	p, err := s.AcceptBid(ctx, p.ID, b.ID, client.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusInProgress, p.Status)
	require.NotNil(t, p.FreelancerID)
	assert.Equal(t, dev.ID, *p.FreelancerID)
	require.NotNil(t, p.AcceptedBidID)
	assert.Equal(t, b.ID, *p.AcceptedBidID)
	require.NotNil(t, p.Deadline)
	assert.True(t, t0.AddDate(0, 0, 3).Equal(*p.Deadline))

	p, err = s.CompleteProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusCompleted, p.Status)
	require.NotNil(t, p.CompletedAt)
	assert.True(t, p.OnTime())

	_, err = s.CancelProject(ctx, p.ID)
	assert.ErrorIs(t, err, apperr.ErrConstraintViolation)

	open := mustProject(t, s, client)
	_, err = s.CancelProject(ctx, open.ID)
	assert.ErrorIs(t, err, apperr.ErrConstraintViolation, "open projects are deleted, not cancelled")

	var projects []models.Project
	require.NoError(t, s.DB.Find(&projects).Error)
	for _, p := range projects {
		assert.Equal(t, p.Status == models.ProjectStatusOpen, p.FreelancerID == nil, "project %d", p.ID)
	}
}

func TestAcceptBid_Rules(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	client := mustUser(t, s, "client", false)
	dev := mustUser(t, s, "dev", true)
	p := mustProject(t, s, client)
	other := mustProject(t, s, client)
	b := mustBid(t, s, p, dev, 100)

	_, err := s.AcceptBid(ctx, other.ID, b.ID, client.ID)
	assert.ErrorIs(t, err, apperr.ErrConstraintViolation)

	_, err = s.AcceptBid(ctx, p.ID, b.ID, dev.ID)
	assert.ErrorIs(t, err, apperr.ErrConstraintViolation)

	_, err = s.AcceptBid(ctx, p.ID, 999, client.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAcceptBid_ConcurrentExactlyOneWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	client := mustUser(t, s, "client", false)
	p := mustProject(t, s, client)

	var bids []models.Bid
	for _, name := range []string{"f1", "f2", "f3", "f4"} {
		bids = append(bids, mustBid(t, s, p, mustUser(t, s, name, true), 300))
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		won    []uint
		failed int
	)
	for _, b := range bids {
		wg.Add(1)
		go func(b models.Bid) {
			defer wg.Done()
			_, err := s.AcceptBid(ctx, p.ID, b.ID, client.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				won = append(won, b.ID)
				return
			}
			assert.ErrorIs(t, err, apperr.ErrConstraintViolation)
			failed++
		}(b)
	}
	wg.Wait()

	require.Len(t, won, 1)
	assert.Equal(t, len(bids)-1, failed)

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AcceptedBidID)
	assert.Equal(t, won[0], *got.AcceptedBidID)
}

func TestPlaceBid_Rules(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	client := mustUser(t, s, "client", false)
	dev := mustUser(t, s, "dev", true)
	devClient := mustUser(t, s, "devclient", true)
	p := mustProject(t, s, client)
	own := mustProject(t, s, devClient)
	zero := 0
	tooLong := models.MaxTimelineDays + 1

	cases := []struct {
		name string
		bid  models.Bid
		want error
	}{
		{"non-positive amount", models.Bid{Amount: 0, Proposal: "x", ProjectID: p.ID, FreelancerID: dev.ID}, apperr.ErrConstraintViolation},
		{"empty proposal", models.Bid{Amount: 10, Proposal: "  ", ProjectID: p.ID, FreelancerID: dev.ID}, apperr.ErrConstraintViolation},
		{"zero timeline", models.Bid{Amount: 10, Proposal: "x", ProposedTimelineDays: &zero, ProjectID: p.ID, FreelancerID: dev.ID}, apperr.ErrConstraintViolation},
		{"timeline beyond bound", models.Bid{Amount: 10, Proposal: "x", ProposedTimelineDays: &tooLong, ProjectID: p.ID, FreelancerID: dev.ID}, apperr.ErrConstraintViolation},
		{"missing project", models.Bid{Amount: 10, Proposal: "x", ProjectID: 999, FreelancerID: dev.ID}, apperr.ErrConstraintViolation},
		{"missing freelancer", models.Bid{Amount: 10, Proposal: "x", ProjectID: p.ID, FreelancerID: 999}, apperr.ErrConstraintViolation},
		{"client is not a freelancer", models.Bid{Amount: 10, Proposal: "x", ProjectID: own.ID, FreelancerID: client.ID}, apperr.ErrConstraintViolation},
		{"bid on own project", models.Bid{Amount: 10, Proposal: "x", ProjectID: own.ID, FreelancerID: devClient.ID}, apperr.ErrConstraintViolation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := tc.bid
			assert.ErrorIs(t, s.PlaceBid(ctx, &b), tc.want)
		})
	}

	mustBid(t, s, p, dev, 100)
	dup := models.Bid{Amount: 90, Proposal: "cheaper", ProjectID: p.ID, FreelancerID: dev.ID}
	assert.ErrorIs(t, s.PlaceBid(ctx, &dup), apperr.ErrConstraintViolation)

	taken := assigned(t, s, client, dev)
	late := models.Bid{Amount: 90, Proposal: "late", ProjectID: taken.ID, FreelancerID: devClient.ID}
	assert.ErrorIs(t, s.PlaceBid(ctx, &late), apperr.ErrConstraintViolation)

	bids, err := s.ListBids(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, bids, 1)
}

func TestUpdateAndWithdrawBid(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	client := mustUser(t, s, "client", false)
	dev := mustUser(t, s, "dev", true)
	dev2 := mustUser(t, s, "dev2", true)
	p := mustProject(t, s, client)
	b := mustBid(t, s, p, dev, 100)
	b2 := mustBid(t, s, p, dev2, 120)

	amount := 80.0
	got, err := s.UpdateBid(ctx, b.ID, models.BidUpdate{Amount: &amount})
	require.NoError(t, err)
	assert.Equal(t, 80.0, got.Amount)

	neg := -1.0
	_, err = s.UpdateBid(ctx, b.ID, models.BidUpdate{Amount: &neg})
	assert.ErrorIs(t, err, apperr.ErrConstraintViolation)

	_, err = s.AcceptBid(ctx, p.ID, b.ID, client.ID)
	require.NoError(t, err)

	_, err = s.UpdateBid(ctx, b2.ID, models.BidUpdate{Amount: &amount})
	assert.ErrorIs(t, err, apperr.ErrConstraintViolation, "project no longer open")

	assert.ErrorIs(t, s.WithdrawBid(ctx, b.ID), apperr.ErrConstraintViolation)
	require.NoError(t, s.WithdrawBid(ctx, b2.ID))
	_, err = s.GetBid(ctx, b2.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestWithdrawBid_AgainstAcceptBid(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	client := mustUser(t, s, "client", false)
	dev := mustUser(t, s, "dev", true)

	for i := 0; i < 5; i++ {
		p := mustProject(t, s, client)
		b := mustBid(t, s, p, dev, 100)

		var wg sync.WaitGroup
		var acceptErr, withdrawErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, acceptErr = s.AcceptBid(ctx, p.ID, b.ID, client.ID)
		}()
		go func() {
			defer wg.Done()
			withdrawErr = s.WithdrawBid(ctx, b.ID)
		}()
		wg.Wait()

		got, err := s.GetProject(ctx, p.ID)
		require.NoError(t, err)
		if acceptErr == nil {
			assert.ErrorIs(t, withdrawErr, apperr.ErrConstraintViolation)
			require.NotNil(t, got.AcceptedBidID)
			_, err := s.GetBid(ctx, *got.AcceptedBidID)
			assert.NoError(t, err, "accepted bid still exists")
		} else {
			require.NoError(t, withdrawErr)
			assert.ErrorIs(t, acceptErr, apperr.ErrNotFound)
			assert.Equal(t, models.ProjectStatusOpen, got.Status)
			assert.Nil(t, got.AcceptedBidID)
		}
	}
}

func TestForUpdate_LocksRowOnPostgres(t *testing.T) {
	// the pgx pool connects lazily, so no server is needed to render SQL
	pg, err := gorm.Open(postgres.Open("host=localhost user=joki dbname=joki sslmode=disable"), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)

	sql := pg.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var p models.Project
		return forUpdate(tx).First(&p, "id = ?", 7)
	})
	assert.Contains(t, sql, `FROM "project"`)
	assert.Contains(t, sql, "FOR UPDATE")
}

func TestDeleteProject_WithAcceptedBid(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	client := mustUser(t, s, "client", false)
	dev := mustUser(t, s, "dev", true)
	p := assigned(t, s, client, dev)
	_, err := s.CompleteProject(ctx, p.ID)
	require.NoError(t, err)

	require.NoError(t, s.DeleteProject(ctx, p.ID))
	bids, err := s.ListBids(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, bids)
}

func TestCreateReview_Rules(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	client := mustUser(t, s, "client", false)
	dev := mustUser(t, s, "dev", true)
	outsider := mustUser(t, s, "outsider", false)

	p := assigned(t, s, client, dev)
	r := models.Review{Rating: 5, ProjectID: p.ID, ReviewerID: client.ID, RevieweeID: dev.ID}
	assert.ErrorIs(t, s.CreateReview(ctx, &r), apperr.ErrConstraintViolation, "project still in progress")

	_, err := s.CompleteProject(ctx, p.ID)
	require.NoError(t, err)

	cases := []struct {
		name   string
		review models.Review
	}{
		{"rating too low", models.Review{Rating: 0, ProjectID: p.ID, ReviewerID: client.ID, RevieweeID: dev.ID}},
		{"rating too high", models.Review{Rating: 6, ProjectID: p.ID, ReviewerID: client.ID, RevieweeID: dev.ID}},
		{"self review", models.Review{Rating: 4, ProjectID: p.ID, ReviewerID: dev.ID, RevieweeID: dev.ID}},
		{"outsider", models.Review{Rating: 4, ProjectID: p.ID, ReviewerID: outsider.ID, RevieweeID: dev.ID}},
		{"missing project", models.Review{Rating: 4, ProjectID: 999, ReviewerID: client.ID, RevieweeID: dev.ID}},
		{"missing reviewee", models.Review{Rating: 4, ProjectID: p.ID, ReviewerID: client.ID, RevieweeID: 999}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := tc.review
			assert.ErrorIs(t, s.CreateReview(ctx, &r), apperr.ErrConstraintViolation)
		})
	}

	r = models.Review{Rating: 5, Comment: "great", ProjectID: p.ID, ReviewerID: client.ID, RevieweeID: dev.ID}
	require.NoError(t, s.CreateReview(ctx, &r))
	back := models.Review{Rating: 4, ProjectID: p.ID, ReviewerID: dev.ID, RevieweeID: client.ID}
	require.NoError(t, s.CreateReview(ctx, &back))

	again := models.Review{Rating: 1, ProjectID: p.ID, ReviewerID: client.ID, RevieweeID: dev.ID}
	assert.ErrorIs(t, s.CreateReview(ctx, &again), apperr.ErrConstraintViolation)

	received, err := s.ListReviewsReceived(ctx, dev.ID)
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, "great", received[0].Comment)

	four := 4
	updated, err := s.UpdateReview(ctx, r.ID, models.ReviewUpdate{Rating: &four})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Rating)

	seven := 7
	_, err = s.UpdateReview(ctx, r.ID, models.ReviewUpdate{Rating: &seven})
	assert.ErrorIs(t, err, apperr.ErrConstraintViolation)

	require.NoError(t, s.DeleteReview(ctx, back.ID))
	assert.ErrorIs(t, s.DeleteReview(ctx, back.ID), apperr.ErrNotFound)
}

func TestDeleteProject_CascadesOnlyItsRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	client := mustUser(t, s, "client", false)
	dev := mustUser(t, s, "dev", true)
	dev2 := mustUser(t, s, "dev2", true)

	doomed := assigned(t, s, client, dev)
	mustBid(t, s, mustProject(t, s, client), dev2, 10)
	_, err := s.CompleteProject(ctx, doomed.ID)
	require.NoError(t, err)
	r := models.Review{Rating: 3, ProjectID: doomed.ID, ReviewerID: client.ID, RevieweeID: dev.ID}
	require.NoError(t, s.CreateReview(ctx, &r))

	kept := assigned(t, s, client, dev2)
	_, err = s.CompleteProject(ctx, kept.ID)
	require.NoError(t, err)
	kr := models.Review{Rating: 5, ProjectID: kept.ID, ReviewerID: client.ID, RevieweeID: dev2.ID}
	require.NoError(t, s.CreateReview(ctx, &kr))

	var bidsBefore, reviewsBefore int64
	s.DB.Model(&models.Bid{}).Where("project_id <> ?", doomed.ID).Count(&bidsBefore)
	s.DB.Model(&models.Review{}).Where("project_id <> ?", doomed.ID).Count(&reviewsBefore)

	require.NoError(t, s.DeleteProject(ctx, doomed.ID))

	_, err = s.GetProject(ctx, doomed.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	var n int64
	s.DB.Model(&models.Bid{}).Where("project_id = ?", doomed.ID).Count(&n)
	assert.Zero(t, n)
	s.DB.Model(&models.Review{}).Where("project_id = ?", doomed.ID).Count(&n)
	assert.Zero(t, n)

	s.DB.Model(&models.Bid{}).Count(&n)
	assert.Equal(t, bidsBefore, n)
	s.DB.Model(&models.Review{}).Count(&n)
	assert.Equal(t, reviewsBefore, n)

	assert.ErrorIs(t, s.DeleteProject(ctx, doomed.ID), apperr.ErrNotFound)
}

func TestDeleteUser_RejectsReferencedUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	client := mustUser(t, s, "client", false)
	dev := mustUser(t, s, "dev", true)
	idle := mustUser(t, s, "idle", true)

	mustBid(t, s, mustProject(t, s, client), dev, 50)

	assert.ErrorIs(t, s.DeleteUser(ctx, client.ID), apperr.ErrConstraintViolation)
	assert.ErrorIs(t, s.DeleteUser(ctx, dev.ID), apperr.ErrConstraintViolation)

	require.NoError(t, s.DeleteUser(ctx, idle.ID))
	_, err := s.GetUser(ctx, idle.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, s.DeleteUser(ctx, idle.ID), apperr.ErrNotFound)
}

func TestUpdateProject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	client := mustUser(t, s, "client", false)
	dev := mustUser(t, s, "dev", true)
	p := mustProject(t, s, client)

	title := "  Build a better API "
	budget := 750.0
	got, err := s.UpdateProject(ctx, p.ID, models.ProjectUpdate{Title: &title, Budget: &budget})
	require.NoError(t, err)
	assert.Equal(t, "Build a better API", got.Title)
	assert.Equal(t, 750.0, got.Budget)

	zero := 0.0
	_, err = s.UpdateProject(ctx, p.ID, models.ProjectUpdate{Budget: &zero})
	assert.ErrorIs(t, err, apperr.ErrConstraintViolation)

	_, err = s.UpdateProject(ctx, 999, models.ProjectUpdate{Title: &title})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	done := assigned(t, s, client, dev)
	_, err = s.CompleteProject(ctx, done.ID)
	require.NoError(t, err)
	_, err = s.UpdateProject(ctx, done.ID, models.ProjectUpdate{Title: &title})
	assert.ErrorIs(t, err, apperr.ErrConstraintViolation)

	err = s.CreateProject(ctx, &models.Project{Title: "x", Description: "y", Budget: 1, ClientID: 999})
	assert.ErrorIs(t, err, apperr.ErrConstraintViolation)
}

func TestGetProjectGraph_ResolvesUsersByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	client := mustUser(t, s, "client", false)
	dev := mustUser(t, s, "dev", true)
	dev2 := mustUser(t, s, "dev2", true)

	p := mustProject(t, s, client)
	b := mustBid(t, s, p, dev, 100)
	mustBid(t, s, p, dev2, 110)
	_, err := s.AcceptBid(ctx, p.ID, b.ID, client.ID)
	require.NoError(t, err)

	g, err := s.GetProjectGraph(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, g.Bids, 2)
	assert.Empty(t, g.Reviews)
	assert.Len(t, g.Users, 3)
	assert.Equal(t, "client", g.Users[g.Project.ClientID].Username)
	assert.Equal(t, "dev", g.Users[*g.Project.FreelancerID].Username)

	sum, err := s.GetProjectSummary(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, sum.Users, 2)

	ug, err := s.GetUserGraph(ctx, dev.ID)
	require.NoError(t, err)
	assert.Empty(t, ug.ReviewsReceived)
	assert.Contains(t, ug.Users, dev.ID)
}

func TestUpdateScores(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	dev := mustUser(t, s, "dev", true)

	want := models.Scores{AvgRating: 4.5, CompletionRate: 1, OnTimeRate: 0.5, PortfolioScore: 0.7}
	got, err := s.UpdateScores(ctx, dev.ID, func(in models.ScoreInputs) (models.Scores, error) {
		assert.Equal(t, dev.ID, in.User.ID)
		return want, nil
	})
	require.NoError(t, err)
	assert.Equal(t, want, got)

	u, err := s.GetUser(ctx, dev.ID)
	require.NoError(t, err)
	assert.Equal(t, want, u.Scores())
	require.NotNil(t, u.ScoresUpdatedAt)

	_, err = s.UpdateScores(ctx, dev.ID, func(models.ScoreInputs) (models.Scores, error) {
		return models.Scores{AvgRating: 6}, nil
	})
	assert.ErrorIs(t, err, apperr.ErrConstraintViolation)

	u, err = s.GetUser(ctx, dev.ID)
	require.NoError(t, err)
	assert.Equal(t, want, u.Scores(), "rejected scores leave the previous ones intact")

	_, err = s.UpdateScores(ctx, 999, func(models.ScoreInputs) (models.Scores, error) { return want, nil })
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListFreelancers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	client := mustUser(t, s, "client", false)
	goDev := mustUser(t, s, "godev", true)
	design := &models.User{Username: "designer", Email: "d@example.com", IsFreelancer: true, Skills: "Figma"}
	require.NoError(t, s.CreateUser(ctx, design, credential(t, "pw")))

	ids, err := s.ListUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint{client.ID, goDev.ID, design.ID}, ids)

	got, err := s.ListFreelancers(ctx, FreelancerFilter{Skills: []string{"figma"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, design.ID, got[0].ID)
}

func TestRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.LatestRun(ctx)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	first := &models.MetricsRun{PolicyVersion: "v", Trigger: models.RunTriggerManual, StartedAt: t0, FinishedAt: t0}
	second := &models.MetricsRun{PolicyVersion: "v", Trigger: models.RunTriggerSchedule, StartedAt: t0.Add(time.Hour), FinishedAt: t0.Add(time.Hour)}
	require.NoError(t, s.RecordRun(ctx, first))
	require.NoError(t, s.RecordRun(ctx, second))
	assert.NotEqual(t, first.ID, second.ID)

	got, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, models.RunTriggerSchedule, got.Trigger)
}
