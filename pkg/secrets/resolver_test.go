package secrets_test

import (
	"context"
	"crypto/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalyst-dev/catalyst-creds/pkg/audit"
	"github.com/catalyst-dev/catalyst-creds/pkg/errors"
	"github.com/catalyst-dev/catalyst-creds/pkg/logger"
	"github.com/catalyst-dev/catalyst-creds/pkg/secrets"
	"github.com/catalyst-dev/catalyst-creds/pkg/secrets/aes"
	"github.com/catalyst-dev/catalyst-creds/pkg/storage/sqlite"
)

type fixture struct {
	store    *sqlite.SecretStore
	cipher   *aes.Cipher
	service  *secrets.Service
	resolver *secrets.Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sqlite.Open(t.Context(), filepath.Join(t.TempDir(), "creds.db"))
	require.NoError(t, err)
	store := sqlite.NewSecretStore(db)
	t.Cleanup(func() { _ = store.Close() })

	key := make([]byte, aes.KeySize)
	_, err = rand.Read(key)
	require.NoError(t, err)
	cipher, err := aes.NewCipher(key)
	require.NoError(t, err)

	log := logger.Get()
	return &fixture{
		store:    store,
		cipher:   cipher,
		service:  secrets.NewService(store, cipher, audit.NewAuditor(log, "test")),
		resolver: secrets.NewResolver(store, cipher, log),
	}
}

func (f *fixture) create(t *testing.T, scope secrets.Scope, name, value string) {
	t.Helper()
	_, err := f.service.Create(context.Background(), scope, name, value, "", "tester")
	require.NoError(t, err)
}

func scopesForTenant(t *testing.T) (team, project, template, environment secrets.Scope) {
	t.Helper()

	team, err := secrets.NewTeamScope("team-1")
	require.NoError(t, err)
	project, err = secrets.NewProjectScope("team-1", "proj-1")
	require.NoError(t, err)
	template, err = secrets.NewTemplateScope("team-1", "proj-1", secrets.EnvironmentTypeDeployment)
	require.NoError(t, err)
	environment, err = secrets.NewEnvironmentScope("team-1", "proj-1", "env-1")
	require.NoError(t, err)
	return team, project, template, environment
}

func TestResolvePrecedence(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	team, project, template, environment := scopesForTenant(t)
	f.create(t, team, "KEY", "t")
	f.create(t, project, "KEY", "p")
	f.create(t, template, "KEY", "m")
	f.create(t, environment, "KEY", "e")

	query := secrets.ResolveQuery{
		TeamID:          "team-1",
		ProjectID:       "proj-1",
		EnvironmentType: secrets.EnvironmentTypeDeployment,
		EnvironmentID:   "env-1",
	}

	expect := func(value string, source secrets.ScopeLevel) {
		t.Helper()
		resolved, err := f.resolver.Resolve(ctx, query)
		require.NoError(t, err)
		require.Contains(t, resolved, "KEY")
		assert.Equal(t, value, resolved["KEY"].Value)
		assert.Equal(t, source, resolved["KEY"].Source)
	}

	// Peel the tiers off one by one, most specific first.
	expect("e", secrets.ScopeEnvironment)

	_, err := f.service.Delete(ctx, environment, "KEY", "tester")
	require.NoError(t, err)
	expect("m", secrets.ScopeTemplate)

	_, err = f.service.Delete(ctx, template, "KEY", "tester")
	require.NoError(t, err)
	expect("p", secrets.ScopeProject)

	_, err = f.service.Delete(ctx, project, "KEY", "tester")
	require.NoError(t, err)
	expect("t", secrets.ScopeTeam)
}

func TestResolveTemplateTypeIsolation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	deployment, err := secrets.NewTemplateScope("team-1", "proj-1", secrets.EnvironmentTypeDeployment)
	require.NoError(t, err)
	development, err := secrets.NewTemplateScope("team-1", "proj-1", secrets.EnvironmentTypeDevelopment)
	require.NoError(t, err)
	f.create(t, deployment, "ONLY_DEPLOY", "deploy-value")
	f.create(t, development, "ONLY_DEV", "dev-value")

	resolved, err := f.resolver.Resolve(ctx, secrets.ResolveQuery{
		TeamID:          "team-1",
		ProjectID:       "proj-1",
		EnvironmentType: secrets.EnvironmentTypeDevelopment,
	})
	require.NoError(t, err)
	assert.Contains(t, resolved, "ONLY_DEV")
	assert.NotContains(t, resolved, "ONLY_DEPLOY")

	resolved, err = f.resolver.Resolve(ctx, secrets.ResolveQuery{
		TeamID:          "team-1",
		ProjectID:       "proj-1",
		EnvironmentType: secrets.EnvironmentTypeDeployment,
	})
	require.NoError(t, err)
	assert.Contains(t, resolved, "ONLY_DEPLOY")
	assert.NotContains(t, resolved, "ONLY_DEV")
}

func TestResolveInvalidTierCombinations(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	tests := []struct {
		name  string
		query secrets.ResolveQuery
	}{
		{
			name:  "missing team id",
			query: secrets.ResolveQuery{ProjectID: "proj-1"},
		},
		{
			name:  "environment id without project id",
			query: secrets.ResolveQuery{TeamID: "team-1", EnvironmentID: "env-1"},
		},
		{
			name: "environment type without project id",
			query: secrets.ResolveQuery{
				TeamID:          "team-1",
				EnvironmentType: secrets.EnvironmentTypeDeployment,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := f.resolver.Resolve(context.Background(), tt.query)
			require.Error(t, err)
			assert.True(t, errors.IsInvalidArgument(err))
		})
	}
}

func TestResolveDropsUndecryptableSecret(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	team, err := secrets.NewTeamScope("team-1")
	require.NoError(t, err)
	f.create(t, team, "GOOD", "good-value")
	f.create(t, team, "CORRUPT", "doomed")

	// Corrupt the stored ciphertext underneath the service.
	stored, err := f.store.Get(ctx, team, "CORRUPT")
	require.NoError(t, err)
	stored.Encrypted.Ciphertext[0] ^= 0xff
	require.NoError(t, f.store.Update(ctx, stored))

	resolved, err := f.resolver.Resolve(ctx, secrets.ResolveQuery{TeamID: "team-1"})
	require.NoError(t, err)

	require.Contains(t, resolved, "GOOD")
	assert.Equal(t, "good-value", resolved["GOOD"].Value)
	// The corrupted record is omitted entirely, not returned as empty.
	assert.NotContains(t, resolved, "CORRUPT")
}

func TestServiceNeverStoresPlaintext(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	team, err := secrets.NewTeamScope("team-1")
	require.NoError(t, err)
	f.create(t, team, "TOKEN", "plaintext-value")

	stored, err := f.store.Get(ctx, team, "TOKEN")
	require.NoError(t, err)
	assert.NotContains(t, string(stored.Encrypted.Ciphertext), "plaintext-value")

	masked, err := f.service.List(ctx, team)
	require.NoError(t, err)
	require.Len(t, masked, 1)
	assert.Equal(t, "TOKEN", masked[0].Name)
}

func TestServiceUpdateAndConflict(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	team, err := secrets.NewTeamScope("team-1")
	require.NoError(t, err)
	f.create(t, team, "KEY", "v1")

	_, err = f.service.Create(ctx, team, "KEY", "again", "", "tester")
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))

	newValue := "v2"
	_, err = f.service.Update(ctx, team, "KEY", &newValue, nil, "tester")
	require.NoError(t, err)

	resolved, err := f.resolver.Resolve(ctx, secrets.ResolveQuery{TeamID: "team-1"})
	require.NoError(t, err)
	assert.Equal(t, "v2", resolved["KEY"].Value)

	_, err = f.service.Update(ctx, team, "MISSING", &newValue, nil, "tester")
	assert.True(t, errors.IsNotFound(err))

	_, err = f.service.Delete(ctx, team, "MISSING", "tester")
	assert.True(t, errors.IsNotFound(err))

	_, err = f.service.Create(ctx, team, "bad name!", "v", "", "tester")
	assert.True(t, errors.IsInvalidArgument(err))
}
