package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentpulse/internal/model"
)

func TestSaveCredentialsMergesKeys(t *testing.T) {
	st := newMemStore()
	r, _ := newTestReconciler(st)
	ctx := context.Background()

	changed, err := r.SaveCredentials(ctx, model.PlatformServiceNow, map[string]string{
		"instance": "https://acme.service-now.com", "username": "admin", "password": "one",
	})
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = r.SaveCredentials(ctx, model.PlatformServiceNow, map[string]string{"password": "two", "username": ""})
	require.NoError(t, err)
	assert.True(t, changed)

	creds, err := st.LoadCredentials(ctx, "me")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"instance": "https://acme.service-now.com", "username": "admin", "password": "two",
	}, creds[model.PlatformServiceNow])

	changed, err = r.SaveCredentials(ctx, model.PlatformServiceNow, map[string]string{"password": "two"})
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestSaveCredentialsRejects(t *testing.T) {
	st := newMemStore()
	r, _ := newTestReconciler(st)
	ctx := context.Background()

	_, err := r.SaveCredentials(ctx, model.Platform("myspace"), map[string]string{"k": "v"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = r.SaveCredentials(ctx, model.PlatformYouTube, map[string]string{"apiKey": ""})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	st.failSaveCredsFor = model.PlatformYouTube
	_, err = r.SaveCredentials(ctx, model.PlatformYouTube, map[string]string{"apiKey": "k"})
	assert.ErrorIs(t, err, errStoreDown)

	st.failLoadCreds = true
	_, err = r.SaveCredentials(ctx, model.PlatformLinkedIn, map[string]string{"accessToken": "t"})
	assert.ErrorIs(t, err, errStoreDown)
}
