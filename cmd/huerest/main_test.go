package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hue-rest-client/internal/domain/model"
	"hue-rest-client/internal/domain/service"
)

func runSim(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("TMPDIR", t.TempDir())
	t.Setenv("LOG_LEVEL", "disabled")
	var out bytes.Buffer
	err := run(context.Background(), append([]string{"--sim"}, args...), &out)
	return out.String(), err
}

func TestRun_Pair(t *testing.T) {
	out, err := runSim(t, "pair")
	require.NoError(t, err)
	assert.Contains(t, out, "paired as ")
}

func TestRun_Areas(t *testing.T) {
	out, err := runSim(t, "areas")
	require.NoError(t, err)
	assert.Contains(t, out, "TV area")
	assert.Contains(t, out, "1,2")
	assert.NotContains(t, out, "Living room")
}

func TestRun_Stream(t *testing.T) {
	out, err := runSim(t, "stream", "tv area")
	require.NoError(t, err)
	assert.Contains(t, out, "streaming enabled for 200")

	_, err = runSim(t, "stream", "1")
	assert.ErrorIs(t, err, service.ErrAreaNotFound)

	out, err = runSim(t, "stop", "200")
	require.NoError(t, err)
	assert.Contains(t, out, "streaming disabled for 200")
}

func TestRun_Whitelist(t *testing.T) {
	out, err := runSim(t, "whitelist")
	require.NoError(t, err)
	assert.Contains(t, out, "USERNAME")
	assert.Contains(t, out, "huerest#")
}

func TestRun_RevokeUnknown(t *testing.T) {
	_, err := runSim(t, "revoke", "nobody")
	assert.True(t, model.IsCode(err, model.ErrResourceUnavailable))
	assert.Contains(t, describe(err), "[resource not available]")
}

func TestDescribe(t *testing.T) {
	known := fmt.Errorf("revoke: %w", &model.BridgeError{Code: model.ErrLinkButtonNotPushed, Description: "link button not pressed"})
	assert.Contains(t, describe(known), "[link button not pressed]")

	unknown := &model.BridgeError{Code: 999, Description: "?"}
	assert.Contains(t, describe(unknown), "[unknown bridge error 999]")

	assert.Equal(t, "plain", describe(errors.New("plain")))
}

func TestRun_Usage(t *testing.T) {
	out, err := runSim(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Usage")

	_, err = runSim(t, "dance")
	assert.ErrorContains(t, err, "unknown command")

	_, err = runSim(t, "stop", "x")
	assert.Error(t, err)

	_, err = runSim(t, "stream")
	assert.Error(t, err)
}
