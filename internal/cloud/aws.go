// Where: internal/cloud/aws.go
// What: AWS provider implementation on aws-sdk-go-v2.
// Why: Account identity via STS, regions and instance types via EC2,
//      registry auth via ECR.
package cloud

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/opsmith-dev/opsmith/internal/meta"
)

// awsRegionNames maps common region codes to display names; codes not
// listed fall back to the bare code.
var awsRegionNames = map[string]string{
	"us-east-1":      "N. Virginia",
	"us-east-2":      "Ohio",
	"us-west-1":      "N. California",
	"us-west-2":      "Oregon",
	"af-south-1":     "Cape Town",
	"ap-east-1":      "Hong Kong",
	"ap-south-1":     "Mumbai",
	"ap-northeast-1": "Tokyo",
	"ap-northeast-2": "Seoul",
	"ap-northeast-3": "Osaka",
	"ap-southeast-1": "Singapore",
	"ap-southeast-2": "Sydney",
	"ca-central-1":   "Canada Central",
	"eu-central-1":   "Frankfurt",
	"eu-west-1":      "Ireland",
	"eu-west-2":      "London",
	"eu-west-3":      "Paris",
	"eu-north-1":     "Stockholm",
	"eu-south-1":     "Milan",
	"me-south-1":     "Bahrain",
	"sa-east-1":      "Sao Paulo",
}

// AWSProvider implements Provider for Amazon Web Services.
type AWSProvider struct {
	loadOnce sync.Once
	cfg      aws.Config
	loadErr  error
}

// NewAWSProvider creates an AWS provider. Credentials are resolved from
// the default chain on first use.
func NewAWSProvider() *AWSProvider {
	return &AWSProvider{}
}

func (p *AWSProvider) Name() string { return "AWS" }

func (p *AWSProvider) SSHUser() string { return "ubuntu" }

func (p *AWSProvider) config(ctx context.Context) (aws.Config, error) {
	p.loadOnce.Do(func() {
		p.cfg, p.loadErr = awsconfig.LoadDefaultConfig(ctx)
	})
	if p.loadErr != nil {
		return aws.Config{}, &CredentialsError{
			Provider: "AWS",
			Message:  p.loadErr.Error(),
			HelpURL:  meta.AWSCredentialsHelpURL,
		}
	}
	return p.cfg, nil
}

// AccountDetails resolves the caller identity through STS.
func (p *AWSProvider) AccountDetails(ctx context.Context) (AccountDetails, error) {
	cfg, err := p.config(ctx)
	if err != nil {
		return AccountDetails{}, err
	}

	identity, err := sts.NewFromConfig(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return AccountDetails{}, &CredentialsError{
			Provider: "AWS",
			Message:  err.Error(),
			HelpURL:  meta.AWSCredentialsHelpURL,
		}
	}
	accountID := aws.ToString(identity.Account)
	if accountID == "" {
		return AccountDetails{}, &CredentialsError{
			Provider: "AWS",
			Message:  "account ID could not be determined; check credentials and permissions",
			HelpURL:  meta.AWSCredentialsHelpURL,
		}
	}
	return AccountDetails{Provider: "AWS", Identifier: accountID}, nil
}

// Regions lists the regions enabled for the account.
func (p *AWSProvider) Regions(ctx context.Context) ([]Region, error) {
	cfg, err := p.config(ctx)
	if err != nil {
		return nil, err
	}
	cfg.Region = "us-east-1"

	out, err := ec2.NewFromConfig(cfg).DescribeRegions(ctx, &ec2.DescribeRegionsInput{})
	if err != nil {
		return nil, fmt.Errorf("describe regions: %w", err)
	}

	regions := make([]Region, 0, len(out.Regions))
	for _, r := range out.Regions {
		code := aws.ToString(r.RegionName)
		regions = append(regions, Region{Code: code, Description: awsRegionNames[code]})
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].Code < regions[j].Code })
	return regions, nil
}

// InstanceTypes lists current and previous generation instance types in
// the region. Previous-generation offerings are marked deprecated so
// the selection policy never picks them.
func (p *AWSProvider) InstanceTypes(ctx context.Context, region string) ([]InstanceType, error) {
	cfg, err := p.config(ctx)
	if err != nil {
		return nil, err
	}
	cfg.Region = region
	client := ec2.NewFromConfig(cfg)

	var types []InstanceType
	paginator := ec2.NewDescribeInstanceTypesPaginator(client, &ec2.DescribeInstanceTypesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe instance types: %w", err)
		}
		for _, info := range page.InstanceTypes {
			if info.VCpuInfo == nil || info.MemoryInfo == nil {
				continue
			}
			types = append(types, InstanceType{
				Name:         string(info.InstanceType),
				VCPU:         int(aws.ToInt32(info.VCpuInfo.DefaultVCpus)),
				RAMGB:        float64(aws.ToInt64(info.MemoryInfo.SizeInMiB)) / 1024,
				Architecture: awsArchitecture(info),
				Deprecated:   !aws.ToBool(info.CurrentGeneration),
			})
		}
	}
	return types, nil
}

// RegistryCredentials fetches a docker login for ECR in the region.
func (p *AWSProvider) RegistryCredentials(ctx context.Context, region string) (string, string, error) {
	cfg, err := p.config(ctx)
	if err != nil {
		return "", "", err
	}
	cfg.Region = region

	out, err := ecr.NewFromConfig(cfg).GetAuthorizationToken(ctx, &ecr.GetAuthorizationTokenInput{})
	if err != nil {
		return "", "", &CredentialsError{
			Provider: "AWS",
			Message:  fmt.Sprintf("ECR authorization failed: %v", err),
			HelpURL:  meta.AWSCredentialsHelpURL,
		}
	}
	if len(out.AuthorizationData) == 0 {
		return "", "", fmt.Errorf("ECR returned no authorization data")
	}
	decoded, err := base64.StdEncoding.DecodeString(aws.ToString(out.AuthorizationData[0].AuthorizationToken))
	if err != nil {
		return "", "", fmt.Errorf("decode ECR token: %w", err)
	}
	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return "", "", fmt.Errorf("unexpected ECR token format")
	}
	return username, password, nil
}

func awsArchitecture(info ec2types.InstanceTypeInfo) Architecture {
	if info.ProcessorInfo != nil {
		for _, arch := range info.ProcessorInfo.SupportedArchitectures {
			if arch == ec2types.ArchitectureTypeArm64 {
				return ArchARM64
			}
		}
	}
	return ArchX8664
}
