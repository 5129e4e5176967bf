package docker

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ecr"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/docker/docker/api/types"
	"github.com/pkg/errors"
)

var ecrDomain = regexp.MustCompile(`^\d{12}\.dkr\.ecr\.[a-z0-9-]+\.amazonaws\.com$`)

// IsECRRegistry reports whether the registry domain belongs to AWS ECR.
func IsECRRegistry(domain string) bool {
	return ecrDomain.MatchString(domain)
}

// DefaultECRRegistry resolves the caller's private ECR registry domain from
// the ambient AWS credentials.
func DefaultECRRegistry(ctx context.Context) (string, error) {
	sess, err := session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return "", errors.Wrap(err, "creating AWS session")
	}
	region := aws.StringValue(sess.Config.Region)
	if region == "" {
		return "", errors.New("no AWS region configured")
	}

	identity, err := sts.New(sess).GetCallerIdentityWithContext(
		ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", errors.Wrap(err, "resolving AWS account")
	}
	return fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com",
		aws.StringValue(identity.Account), region), nil
}

// ecrAuth exchanges the ambient AWS credentials for a short-lived ECR
// authorization token. The token decodes to user:password, with the user
// always being "AWS".
func ecrAuth(ctx context.Context, domain string) (types.AuthConfig, error) {
	sess, err := session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return types.AuthConfig{}, errors.Wrap(err, "creating AWS session")
	}

	out, err := ecr.New(sess).GetAuthorizationTokenWithContext(
		ctx, &ecr.GetAuthorizationTokenInput{})
	if err != nil {
		return types.AuthConfig{}, errors.Wrap(err, "requesting ECR authorization token")
	}
	if len(out.AuthorizationData) == 0 || out.AuthorizationData[0].AuthorizationToken == nil {
		return types.AuthConfig{}, errors.New("ECR returned no authorization data")
	}

	raw, err := base64.StdEncoding.DecodeString(*out.AuthorizationData[0].AuthorizationToken)
	if err != nil {
		return types.AuthConfig{}, errors.Wrap(err, "decoding ECR authorization token")
	}
	userAndPass := strings.SplitN(string(raw), ":", 2)
	if len(userAndPass) != 2 {
		return types.AuthConfig{}, errors.New("malformed ECR authorization token")
	}

	return types.AuthConfig{
		Username:      userAndPass[0],
		Password:      userAndPass[1],
		ServerAddress: domain,
	}, nil
}
