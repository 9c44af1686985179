package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/docker/client"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"bestiary-server/internal/database"
	"bestiary-server/internal/models"
	"bestiary-server/internal/repository"
	"bestiary-server/internal/service"
)

// MonsterRepositorySuite поднимает PostgreSQL в контейнере и гоняет репозиторий по настоящей схеме.
type MonsterRepositorySuite struct {
	suite.Suite
	ctx         context.Context
	pgContainer *postgres.PostgresContainer
	pool        *pgxpool.Pool
	repo        service.MonsterRepository
	logger      *zap.Logger
}

func (s *MonsterRepositorySuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = zap.NewNop()

	var err error
	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("bestiary_test"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2*time.Minute),
		),
	)
	s.Require().NoError(err, "Failed to start postgres container")

	connStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.pool, err = pgxpool.New(s.ctx, connStr)
	s.Require().NoError(err)
	s.Require().NoError(database.Migrate(s.pool, s.logger))

	s.repo = repository.NewPgMonsterRepository(s.pool, s.logger)
}

func (s *MonsterRepositorySuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.pgContainer != nil {
		_ = s.pgContainer.Terminate(s.ctx)
	}
}

func (s *MonsterRepositorySuite) SetupTest() {
	_, err := s.pool.Exec(s.ctx, "TRUNCATE TABLE monster RESTART IDENTITY")
	s.Require().NoError(err)
}

func creature(name string) *models.CreatureRecord {
	return &models.CreatureRecord{
		HitPoints: 178, Type: "dragon", Name: name, Description: "Cinders and teeth",
		Strength: 23, Dexterity: 10, Constitution: 21, Intelligence: 14, Wisdom: 11, Charisma: 19,
		Speed: "40 ft., fly 80 ft.", Actions: "Multiattack", LegendaryActions: "None", ArmorClass: 18,
		Resistances: "fire", Immunities: "fire", Languages: "Draconic", Senses: "darkvision 120 ft.",
		Skills: "Perception +9", SavingThrows: "Dex +5", ChallengeRating: "10", Size: "Huge",
		ProficiencyBonus: "+4", CreatureType: "dragon", Alignment: "chaotic evil", Initiative: 0,
	}
}

func (s *MonsterRepositorySuite) create(name string, userID uint64) *models.Monster {
	m, err := s.repo.Create(s.ctx, creature(name), fmt.Sprintf("https://cdn.example.com/bestiary/Monsters/%s.png", name), userID)
	s.Require().NoError(err)
	return m
}

func (s *MonsterRepositorySuite) TestCreateReturnsCanonicalRow() {
	m := s.create("Ashfang", 7)

	s.NotZero(m.ID)
	s.Equal(uint64(7), m.UserID)
	s.Equal("https://cdn.example.com/bestiary/Monsters/Ashfang.png", m.ImageURL)
	s.Equal(*creature("Ashfang"), m.CreatureRecord)
	s.False(m.CreatedAt.IsZero())

	again := s.create("Ashfang", 7)
	s.NotEqual(m.ID, again.ID, "identical briefs produce distinct rows")
}

func (s *MonsterRepositorySuite) TestListOrderings() {
	s.create("Zephyr", 1)
	s.create("Ashfang", 1)
	s.create("Murk", 2)
	s.create("Bramble", 1)

	own, err := s.repo.ListByOwner(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(own, 3)
	s.Equal([]string{"Ashfang", "Bramble", "Zephyr"}, []string{own[0].Name, own[1].Name, own[2].Name})

	all, err := s.repo.ListAll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 4)
	for i := 1; i < len(all); i++ {
		s.Greater(all[i-1].ID, all[i].ID)
	}

	empty, err := s.repo.ListByOwner(s.ctx, 99)
	s.Require().NoError(err)
	s.Empty(empty)
}

func (s *MonsterRepositorySuite) TestGetAndImage() {
	m := s.create("Ashfang", 1)

	got, err := s.repo.GetByID(s.ctx, m.ID)
	s.Require().NoError(err)
	s.Equal(m.Name, got.Name)

	url, err := s.repo.GetImageURL(s.ctx, m.ID)
	s.Require().NoError(err)
	s.Equal(m.ImageURL, url)

	_, err = s.repo.GetByID(s.ctx, m.ID+100)
	s.ErrorIs(err, models.ErrNotFound)
	_, err = s.repo.GetImageURL(s.ctx, m.ID+100)
	s.ErrorIs(err, models.ErrNotFound)
}

func (s *MonsterRepositorySuite) TestImageReferenced() {
	m := s.create("Ashfang", 1)

	referenced, err := s.repo.ImageReferenced(s.ctx, m.ImageURL)
	s.Require().NoError(err)
	s.True(referenced)

	referenced, err = s.repo.ImageReferenced(s.ctx, "https://cdn.example.com/bestiary/Monsters/unknown.png")
	s.Require().NoError(err)
	s.False(referenced)
}

func (s *MonsterRepositorySuite) TestDeleteOwnership() {
	owned := s.create("Ashfang", 1)
	other := s.create("Murk", 2)

	err := s.repo.Delete(s.ctx, other.ID, models.Principal{ID: 1})
	s.ErrorIs(err, models.ErrForbidden)

	s.Require().NoError(s.repo.Delete(s.ctx, owned.ID, models.Principal{ID: 1}))
	s.Require().NoError(s.repo.Delete(s.ctx, other.ID, models.Principal{ID: 3, Admin: true}))

	all, err := s.repo.ListAll(s.ctx)
	s.Require().NoError(err)
	s.Empty(all)

	s.ErrorIs(s.repo.Delete(s.ctx, owned.ID, models.Principal{ID: 1}), models.ErrForbidden)
}

func (s *MonsterRepositorySuite) TestRename() {
	m := s.create("Ashfang", 1)

	renamed, err := s.repo.Rename(s.ctx, m.ID, 1, "Cinderwing")
	s.Require().NoError(err)
	s.Equal("Cinderwing", renamed.Name)
	s.Equal(m.ImageURL, renamed.ImageURL)

	_, err = s.repo.Rename(s.ctx, m.ID, 2, "Stolen")
	s.ErrorIs(err, models.ErrNotFound)
}

func TestMonsterRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	cli, err := client.NewClientWithOpts(client.FromEnv)
	if err != nil {
		t.Skipf("Docker client init error: %v", err)
	}
	if _, err := cli.Ping(context.Background()); err != nil {
		cli.Close()
		t.Skipf("Docker daemon is not accessible: %v", err)
	}
	cli.Close()

	suite.Run(t, new(MonsterRepositorySuite))
}
