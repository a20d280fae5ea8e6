package cli

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/threadline/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/threadline/internal/logger"
)

func TestServeCmd_RequiresJWTSecret(t *testing.T) {
	ts := setupTestServices(t)

	_, err := execute(t, "serve", "--server.addr", "127.0.0.1:0")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt-secret is required")
	assert.True(t, ts.host)
}

// serveUntilWatched runs serve and cancels it once the config watchers start.
// It returns the command output and the log output.
func serveUntilWatched(t *testing.T, ts *testServices, args ...string) (string, string) {
	t.Helper()
	watched := make(chan struct{})
	ts.watchers = []func(context.Context) error{
		func(ctx context.Context) error {
			close(watched)
			<-ctx.Done()
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-watched
		cancel()
	}()

	logs := new(bytes.Buffer)
	logger.SetOutput(logs)
	defer logger.SetOutput(os.Stderr)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(append([]string{"serve", "--server.addr", "127.0.0.1:0"}, args...))
	defer resetCommands(rootCmd)

	done := make(chan error, 1)
	go func() { done <- rootCmd.ExecuteContext(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancellation")
	}
	return buf.String(), logs.String()
}

func TestServeCmd_RunsUntilCancelled(t *testing.T) {
	ts := setupTestServices(t)

	out, logs := serveUntilWatched(t, ts, "--server.jwt-secret", "s3cret", "--server.webhook-secret", "hook")

	assert.Contains(t, out, "serving on 127.0.0.1:0")
	assert.NotContains(t, logs, "webhook signatures are not verified")
}

func TestServeCmd_WarnsWithoutWebhookSecret(t *testing.T) {
	ts := setupTestServices(t)

	_, logs := serveUntilWatched(t, ts, "--server.jwt-secret", "s3cret")

	assert.Contains(t, logs, "[WARN]")
	assert.Contains(t, logs, "webhook signatures are not verified")
}

func TestTokenCmd_SignsTenantClaims(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "token", "app-1", "--user", "ana", "--server.jwt-secret", "s3cret")
	require.NoError(t, err)

	claims := &httpapi.Claims{}
	_, err = jwt.ParseWithClaims(string(bytes.TrimSpace([]byte(out))), claims, func(*jwt.Token) (interface{}, error) {
		return []byte("s3cret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "app-1", claims.AppID)
	assert.Equal(t, "ana", claims.Subject)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestTokenCmd_RequiresSecret(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "token", "app-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT secret is required")
}

func TestMCPServeCmd_RequiresApp(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "mcp", "serve")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "app")
}
