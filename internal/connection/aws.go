package connection

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/me/remotetask/pkg/model"
)

// AWSConfig builds an aws.Config that authenticates with the connection's
// static key pair in the connection's region. Shared config files and
// environment credentials are ignored.
func AWSConfig(ctx context.Context, conn model.Connection) (aws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(conn.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conn.Principal, conn.Secret, ""),
		),
		config.WithSharedConfigFiles([]string{}),
		config.WithSharedCredentialsFiles([]string{}),
	)
	if err != nil {
		return aws.Config{}, model.NewTaskError(model.KindConnectionResolution, "load aws config", err)
	}
	return cfg, nil
}

// STSAPI is the subset of the STS client used by Verify.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, in *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Verify checks that the connection's credentials are accepted by AWS and
// returns the caller ARN.
func Verify(ctx context.Context, client STSAPI) (string, error) {
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", model.NewTaskError(model.KindConnectionResolution, "get caller identity", err)
	}
	return aws.ToString(out.Arn), nil
}

// NewSTSClient returns an STS client for the connection.
func NewSTSClient(ctx context.Context, conn model.Connection) (*sts.Client, error) {
	cfg, err := AWSConfig(ctx, conn)
	if err != nil {
		return nil, err
	}
	return sts.NewFromConfig(cfg, func(o *sts.Options) {
		if conn.Endpoint != "" {
			o.BaseEndpoint = aws.String(conn.Endpoint)
		}
	}), nil
}

// Describe renders a connection for humans without its secret.
func Describe(conn model.Connection) string {
	if conn.Endpoint != "" {
		return fmt.Sprintf("%s (%s, %s, %s)", conn.Name, conn.Service, conn.Region, conn.Endpoint)
	}
	return fmt.Sprintf("%s (%s, %s)", conn.Name, conn.Service, conn.Region)
}
