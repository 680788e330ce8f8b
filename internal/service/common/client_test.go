//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestDial_ValidatesAddress verifies that Dial rejects empty addresses.
func TestDial_ValidatesAddress(t *testing.T) {
	t.Parallel()

	c, err := Dial(context.Background(), "")
	require.Error(t, err)
	require.Nil(t, c)
}

// TestClient_callContext checks timeout vs cancel-only behavior of callContext.
func TestClient_callContext(t *testing.T) {
	t.Parallel()

	c := &Client{
		callTimeout: 0,
	}

	ctx, cancel := c.callContext(context.Background())
	cancel()

	require.NotNil(t, ctx)

	c.callTimeout = 10 * time.Millisecond

	ctx, cancel = c.callContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, 30*time.Millisecond)
}

// TestClient_ValidatesArguments asserts that missing names are rejected before any call.
func TestClient_ValidatesArguments(t *testing.T) {
	t.Parallel()

	c := new(Client)

	_, err := c.Fire(context.Background(), "", "approve", nil)
	require.ErrorIs(t, err, errScenarioRequired)

	_, err = c.Fire(context.Background(), "geofence", "", nil)
	require.ErrorIs(t, err, errTriggerRequired)

	_, err = c.GetSnapshot(context.Background(), "")
	require.ErrorIs(t, err, errScenarioRequired)
}

// TestClient_CloseWithoutConnection checks Close on an unconnected client.
func TestClient_CloseWithoutConnection(t *testing.T) {
	t.Parallel()

	var c *Client
	require.NoError(t, c.Close())
	require.NoError(t, new(Client).Close())
}
