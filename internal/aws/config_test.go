package aws

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAWSConfig_DefaultRegion(t *testing.T) {
	t.Setenv("AWS_ENDPOINT_OVERRIDE", "")
	t.Setenv("AWS_REGION", "")

	cfg, err := LoadAWSConfig(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Nil(t, cfg.BaseEndpoint)
}

func TestLoadAWSConfig_WithEndpointOverride(t *testing.T) {
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("AWS_ENDPOINT_OVERRIDE", "http://localhost:4566")

	cfg, err := LoadAWSConfig(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "eu-west-1", cfg.Region)
	require.NotNil(t, cfg.BaseEndpoint)
	assert.Equal(t, "http://localhost:4566", *cfg.BaseEndpoint)
}
