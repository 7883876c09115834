package ecs

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/netbench/harness/api"
)

// imageRef is a parsed container image reference.
type imageRef struct {
	Registry string
	Repo     string
	Tag      string
	Digest   string
}

// parseImageRef splits an image reference into registry, repository and
// tag or digest. References without a registry host resolve to Docker Hub.
func parseImageRef(ref string) imageRef {
	var out imageRef
	if idx := strings.Index(ref, "@"); idx != -1 {
		out.Digest = ref[idx+1:]
		ref = ref[:idx]
	}

	if idx := strings.LastIndex(ref, ":"); idx != -1 {
		// A colon followed by a path belongs to a registry host:port.
		if after := ref[idx+1:]; !strings.Contains(after, "/") {
			out.Tag = after
			ref = ref[:idx]
		}
	}
	if out.Tag == "" && out.Digest == "" {
		out.Tag = "latest"
	}

	if strings.Contains(ref, ".") || strings.Contains(ref, ":") {
		if parts := strings.SplitN(ref, "/", 2); len(parts) == 2 {
			out.Registry = parts[0]
			out.Repo = parts[1]
			return out
		}
	}

	out.Registry = "registry-1.docker.io"
	if !strings.Contains(ref, "/") {
		out.Repo = "library/" + ref
	} else {
		out.Repo = ref
	}
	return out
}

// ecrAccount returns the account id of an ECR registry host
// (<account>.dkr.ecr.<region>.amazonaws.com), or false for other registries.
func (r imageRef) ecrAccount() (string, bool) {
	if !strings.HasSuffix(r.Registry, ".amazonaws.com") {
		return "", false
	}
	parts := strings.Split(r.Registry, ".")
	if len(parts) < 4 || parts[1] != "dkr" || parts[2] != "ecr" {
		return "", false
	}
	return parts[0], true
}

// preflight checks that the shared bucket and image exist before any role
// is built. Non-ECR images are not checked.
func (p *Provisioner) preflight(ctx context.Context, shared api.Shared) error {
	if p.config.VerifyBucket {
		_, err := p.aws.S3.HeadBucket(ctx, &s3.HeadBucketInput{
			Bucket: aws.String(shared.Bucket.Name),
		})
		if err != nil {
			return p.fail(api.RoleServer, "preflight", fmt.Errorf("bucket %s: %w", shared.Bucket.Name, err))
		}
		p.logger.Debug().Str("bucket", shared.Bucket.Name).Msg("bucket verified")
	}

	if !p.config.VerifyImage {
		return nil
	}
	ref := parseImageRef(shared.ImageRef)
	account, ok := ref.ecrAccount()
	if !ok {
		p.logger.Debug().Str("image", shared.ImageRef).Str("registry", ref.Registry).Msg("skipping image check for non-ECR registry")
		return nil
	}

	id := ecrtypes.ImageIdentifier{}
	if ref.Digest != "" {
		id.ImageDigest = aws.String(ref.Digest)
	} else {
		id.ImageTag = aws.String(ref.Tag)
	}
	out, err := p.aws.ECR.DescribeImages(ctx, &ecr.DescribeImagesInput{
		RegistryId:     aws.String(account),
		RepositoryName: aws.String(ref.Repo),
		ImageIds:       []ecrtypes.ImageIdentifier{id},
	})
	if err != nil {
		return p.fail(api.RoleServer, "preflight", fmt.Errorf("image %s: %w", shared.ImageRef, err))
	}
	if len(out.ImageDetails) == 0 {
		return p.fail(api.RoleServer, "preflight", fmt.Errorf("image %s not found", shared.ImageRef))
	}
	p.logger.Debug().Str("image", shared.ImageRef).Msg("image verified")
	return nil
}
