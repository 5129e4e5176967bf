package docker

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gotest.tools/assert"
)

func TestIsECRRegistry(t *testing.T) {
	tests := []struct {
		domain string
		want   bool
	}{
		{"123456789012.dkr.ecr.us-east-1.amazonaws.com", true},
		{"123456789012.dkr.ecr.eu-central-1.amazonaws.com", true},
		{"docker.io", false},
		{"ghcr.io", false},
		{"123.dkr.ecr.us-east-1.amazonaws.com", false},
		{"123456789012.dkr.ecr.us-east-1.amazonaws.com.evil.io", false},
	}
	for _, tt := range tests {
		assert.Equal(t, IsECRRegistry(tt.domain), tt.want, tt.domain)
	}
}

func TestRegistryToString(t *testing.T) {
	t.Run("plain username and password", func(t *testing.T) {
		out, err := registryToString(types.AuthConfig{Username: "user", Password: "pass"})
		require.NoError(t, err)

		raw, err := base64.URLEncoding.DecodeString(out)
		require.NoError(t, err)
		var decoded types.AuthConfig
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.Equal(t, decoded.Username, "user")
		assert.Equal(t, decoded.Password, "pass")
	})

	t.Run("auth field is split into user and pass", func(t *testing.T) {
		auth := base64.StdEncoding.EncodeToString([]byte("AWS:token"))
		out, err := registryToString(types.AuthConfig{Auth: auth})
		require.NoError(t, err)

		raw, err := base64.URLEncoding.DecodeString(out)
		require.NoError(t, err)
		var decoded types.AuthConfig
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.Equal(t, decoded.Username, "AWS")
		assert.Equal(t, decoded.Password, "token")
		assert.Equal(t, decoded.Auth, "")
	})

	t.Run("malformed auth field", func(t *testing.T) {
		auth := base64.StdEncoding.EncodeToString([]byte("no-colon"))
		_, err := registryToString(types.AuthConfig{Auth: auth})
		require.Error(t, err)
	})
}

func TestParseRef(t *testing.T) {
	ref, err := parseRef("superai-model-s2i-python3711-cpu:1")
	require.NoError(t, err)
	assert.Equal(t, ref.String(), "docker.io/library/superai-model-s2i-python3711-cpu:1")

	_, err = parseRef("UPPERCASE_is_invalid:tag")
	require.Error(t, err)
}

func TestLogPullProgress(t *testing.T) {
	var buf bytes.Buffer
	for _, line := range []map[string]interface{}{
		{"id": "layer1", "status": "Downloading",
			"progressDetail": map[string]int64{"current": 50, "total": 100}},
		{"id": "layer1", "status": "Downloading",
			"progressDetail": map[string]int64{"current": 100, "total": 100}},
		{"id": "layer1", "status": "Pull complete"},
		{"status": "Status: Downloaded newer image"},
	} {
		require.NoError(t, json.NewEncoder(&buf).Encode(line))
	}

	d := &Client{log: logrus.WithField("component", "docker-client")}
	require.NoError(t, d.logPullProgress(context.Background(), &buf))
}

func TestLogPullProgressError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(map[string]interface{}{
		"errorDetail": map[string]string{"message": "manifest unknown"},
		"error":       "manifest unknown",
	}))

	d := &Client{log: logrus.WithField("component", "docker-client")}
	err := d.logPullProgress(context.Background(), &buf)
	require.Error(t, err)
	require.Contains(t, err.Error(), "manifest unknown")
}
