// Package bedrock is a small client for the Amazon Bedrock runtime HTTP
// surface: Converse for single-shot completions and InvokeModel for Titan
// text embeddings. Request signing supports both SigV4 and Bedrock bearer
// tokens.
package bedrock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

const defaultRegion = "us-east-1"

// CredentialOptions selects how Bedrock requests are authorized. A bearer
// token wins over SigV4 material; explicit keys win over the default chain;
// a role ARN layers an STS assume-role on top of whichever chain resolved.
type CredentialOptions struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	BearerToken     string
	RoleARN         string
}

// Credentials holds resolved signing material for Bedrock endpoints.
type Credentials struct {
	cfg    aws.Config
	region string
	bearer string
	signer *v4.Signer
}

// ResolveCredentials returns a signing handle based on what is configured.
// No network calls are made here; assume-role credentials are fetched lazily
// on first use.
func ResolveCredentials(ctx context.Context, opts CredentialOptions) (*Credentials, error) {
	region := opts.Region
	if region == "" {
		region = defaultRegion
	}

	if opts.BearerToken != "" {
		return &Credentials{region: region, bearer: opts.BearerToken}, nil
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	if opts.RoleARN != "" {
		stsClient := sts.NewFromConfig(cfg)
		cfg.Credentials = aws.NewCredentialsCache(stscreds.NewAssumeRoleProvider(stsClient, opts.RoleARN))
	}

	return &Credentials{cfg: cfg, region: region, signer: v4.NewSigner()}, nil
}

// Region returns the configured AWS region.
func (c *Credentials) Region() string { return c.region }

// SignRequest authorizes req for the bedrock service. body must be the exact
// payload the request will carry (nil for requests without one).
func (c *Credentials) SignRequest(ctx context.Context, req *http.Request, body []byte) error {
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
		return nil
	}

	creds, err := c.cfg.Credentials.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("retrieve aws credentials: %w", err)
	}
	sum := sha256.Sum256(body)
	return c.signer.SignHTTP(ctx, creds, req, hex.EncodeToString(sum[:]), "bedrock", c.region, time.Now().UTC())
}
