package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestResolveAnonymous(t *testing.T) {
	stdout, _, err := executeCLI(t, "resolve", "--path", "/dashboard")
	require.NoError(t, err)
	assert.Contains(t, stdout, "state:    unauthenticated")
	assert.Contains(t, stdout, "redirect: /login")
}

func TestResolveOnboardingPaymentCarveOut(t *testing.T) {
	stdout, _, err := executeCLI(t, "resolve", "--signed-in", "--path", "/dashboard")
	require.NoError(t, err)
	assert.Contains(t, stdout, "redirect: /onboarding")

	stdout, _, err = executeCLI(t, "resolve", "--signed-in", "--path", "/dashboard", "--payment-success")
	require.NoError(t, err)
	assert.Contains(t, stdout, "render:   children")
	assert.NotContains(t, stdout, "redirect:")
}

func TestResolveLoadingJSON(t *testing.T) {
	stdout, _, err := executeCLI(t, "resolve", "--signed-in", "--loaded=false", "--path", "/profile/billing", "--json")
	require.NoError(t, err)

	var out resolveOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, "loading", string(out.State))
	assert.Equal(t, "skeleton", string(out.Outcome))
	assert.Equal(t, "profile", string(out.Skeleton))
}

func TestMigrateRejectsUnknownCommand(t *testing.T) {
	_, _, err := executeCLI(t, "migrate", "sideways")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid argument")
}
