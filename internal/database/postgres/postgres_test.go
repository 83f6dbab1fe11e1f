package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jason-s-yu/streamify/internal/database"
	"github.com/jason-s-yu/streamify/pkg/models"
)

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@h:5432/db", migrateURL("postgres://u:p@h:5432/db"))
	assert.Equal(t, "pgx5://u:p@h/db", migrateURL("postgresql://u:p@h/db"))
	assert.Equal(t, "pgx5://already", migrateURL("pgx5://already"))
}

// startPostgres runs a throwaway postgres container. Requires docker, so it only
// runs when STREAMIFY_INTEGRATION is set.
func startPostgres(t *testing.T) string {
	t.Helper()
	if os.Getenv("STREAMIFY_INTEGRATION") == "" {
		t.Skip("set STREAMIFY_INTEGRATION=1 to run postgres integration tests")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "streamify",
			"POSTGRES_PASSWORD": "streamify",
			"POSTGRES_DB":       "streamify",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://streamify:streamify@%s:%s/streamify?sslmode=disable", host, port.Port())
}

func TestStoreFriendRequestLifecycle(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	require.NoError(t, Migrate(dsn))
	s, err := Connect(ctx, dsn)
	require.NoError(t, err)
	defer s.Close(ctx)

	newUser := func(email string) models.User {
		u := models.User{ID: database.NewID(), Email: email, Password: "hash", FullName: email}
		require.NoError(t, s.Users().CreateUser(ctx, &u))
		return u
	}
	a := newUser("a@example.com")
	b := newUser("b@example.com")

	dup := models.User{ID: database.NewID(), Email: "A@example.com", Password: "hash"}
	assert.ErrorIs(t, s.Users().CreateUser(ctx, &dup), database.ErrDuplicate)

	fr := models.FriendRequest{ID: database.NewID(), SenderID: a.ID, RecipientID: b.ID, Status: models.FriendRequestPending}
	require.NoError(t, s.FriendRequests().CreateFriendRequest(ctx, &fr))

	reverse := models.FriendRequest{ID: database.NewID(), SenderID: b.ID, RecipientID: a.ID, Status: models.FriendRequestPending}
	assert.ErrorIs(t, s.FriendRequests().CreateFriendRequest(ctx, &reverse), database.ErrDuplicate)

	found, err := s.FriendRequests().FindBetween(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, fr.ID, found.ID)

	accepted, err := s.FriendRequests().AcceptFriendRequest(ctx, fr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestAccepted, accepted.Status)

	_, err = s.FriendRequests().AcceptFriendRequest(ctx, fr.ID)
	assert.ErrorIs(t, err, database.ErrPrecondition)

	list, err := s.FriendRequests().ListFriendRequests(ctx, database.FriendRequestFilter{
		Participant: b.ID,
		Status:      models.FriendRequestAccepted,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, fr.ID, list[0].ID)

	onboarded, err := s.Users().CompleteOnboarding(ctx, b.ID, models.Profile{
		FullName: "Bob", Bio: "hi", NativeLanguage: "english", LearningLanguage: "german", Location: "Berlin",
	})
	require.NoError(t, err)
	assert.True(t, onboarded.IsOnboarded)

	recs, err := s.Users().ListOnboarded(ctx, nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, b.ID, recs[0].ID)
}
