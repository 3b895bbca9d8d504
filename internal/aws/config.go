package aws

import (
	"context"
	"fmt"
	"os"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// LoadAWSConfig resolves the shared AWS config. AWS_ENDPOINT_OVERRIDE points every
// client at a local emulator (localstack, dynamodb-local).
func LoadAWSConfig(ctx context.Context) (sdkaws.Config, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1" // default fallback
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
	)
	if err != nil {
		return cfg, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if endpoint := os.Getenv("AWS_ENDPOINT_OVERRIDE"); endpoint != "" {
		cfg.BaseEndpoint = sdkaws.String(endpoint)
	}

	return cfg, nil
}
