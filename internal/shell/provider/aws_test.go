package provider

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	smithy "github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Fake EC2 Client
// =============================================================================

type fakeEC2 struct {
	existingGroups []ec2types.SecurityGroup
	authorizeErr   error
	terminateErr   error

	createSGCalls int
	runInput      *ec2.RunInstancesInput
	terminated    []string
}

func (f *fakeEC2) DeleteKeyPair(ctx context.Context, in *ec2.DeleteKeyPairInput, optFns ...func(*ec2.Options)) (*ec2.DeleteKeyPairOutput, error) {
	return &ec2.DeleteKeyPairOutput{}, nil
}

func (f *fakeEC2) ImportKeyPair(ctx context.Context, in *ec2.ImportKeyPairInput, optFns ...func(*ec2.Options)) (*ec2.ImportKeyPairOutput, error) {
	return &ec2.ImportKeyPairOutput{KeyName: in.KeyName}, nil
}

func (f *fakeEC2) DescribeSecurityGroups(ctx context.Context, in *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	return &ec2.DescribeSecurityGroupsOutput{SecurityGroups: f.existingGroups}, nil
}

func (f *fakeEC2) CreateSecurityGroup(ctx context.Context, in *ec2.CreateSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error) {
	f.createSGCalls++
	return &ec2.CreateSecurityGroupOutput{GroupId: aws.String("sg-created")}, nil
}

func (f *fakeEC2) AuthorizeSecurityGroupIngress(ctx context.Context, in *ec2.AuthorizeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error) {
	if f.authorizeErr != nil {
		return nil, f.authorizeErr
	}
	return &ec2.AuthorizeSecurityGroupIngressOutput{}, nil
}

func (f *fakeEC2) DescribeImages(ctx context.Context, in *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
	return &ec2.DescribeImagesOutput{Images: []ec2types.Image{
		{ImageId: aws.String("ami-old"), CreationDate: aws.String("2025-01-01T00:00:00.000Z")},
		{ImageId: aws.String("ami-new"), CreationDate: aws.String("2026-06-01T00:00:00.000Z")},
	}}, nil
}

func (f *fakeEC2) RunInstances(ctx context.Context, in *ec2.RunInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error) {
	f.runInput = in
	return &ec2.RunInstancesOutput{Instances: []ec2types.Instance{
		{InstanceId: aws.String("i-0abc123")},
	}}, nil
}

func (f *fakeEC2) DescribeInstances(ctx context.Context, in *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	return &ec2.DescribeInstancesOutput{Reservations: []ec2types.Reservation{
		{Instances: []ec2types.Instance{{PublicIpAddress: aws.String("203.0.113.9")}}},
	}}, nil
}

func (f *fakeEC2) TerminateInstances(ctx context.Context, in *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	if f.terminateErr != nil {
		return nil, f.terminateErr
	}
	f.terminated = append(f.terminated, in.InstanceIds...)
	return &ec2.TerminateInstancesOutput{}, nil
}

func (f *fakeEC2) DeleteSecurityGroup(ctx context.Context, in *ec2.DeleteSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.DeleteSecurityGroupOutput, error) {
	return &ec2.DeleteSecurityGroupOutput{}, nil
}

func awsHarness(fake *fakeEC2) *AWSProvider {
	p := NewAWSProvider("AKIATEST", "secret", testLogger())
	p.pollInterval = time.Millisecond
	p.clientFor = func(string) ec2API { return fake }
	return p
}

func awsRequest() ProvisionRequest {
	return ProvisionRequest{
		InstanceName: "torrust-tracker-e2e",
		Region:       "us-east-1",
		Size:         "t3.small",
		SSHPublicKey: "ssh-ed25519 AAAATESTKEY",
	}
}

// =============================================================================
// CreateInstance Tests
// =============================================================================

func TestAWSProvider_CreateInstance(t *testing.T) {
	fake := &fakeEC2{}
	p := awsHarness(fake)

	res, err := p.CreateInstance(context.Background(), awsRequest())
	require.NoError(t, err)

	assert.Equal(t, "203.0.113.9", res.InstanceAddress)
	assert.Equal(t, "i-0abc123", res.ProviderInstanceID)
	assert.Equal(t, 1, fake.createSGCalls)
	require.NotNil(t, fake.runInput)
	assert.Equal(t, []string{"sg-created"}, fake.runInput.SecurityGroupIds)
	assert.Equal(t, "ami-new", aws.ToString(fake.runInput.ImageId), "newest AMI wins")
}

func TestAWSProvider_CreateInstance_ReusesLeftoverSecurityGroup(t *testing.T) {
	// A provision that failed after creating the security group leaves the
	// group behind. The retry must pick it up instead of tripping over the
	// duplicate name.
	fake := &fakeEC2{
		existingGroups: []ec2types.SecurityGroup{
			{GroupId: aws.String("sg-leftover"), GroupName: aws.String("torrust-tracker-e2e")},
		},
	}
	p := awsHarness(fake)

	res, err := p.CreateInstance(context.Background(), awsRequest())
	require.NoError(t, err)

	assert.Equal(t, 0, fake.createSGCalls, "existing group must be reused, not recreated")
	require.NotNil(t, fake.runInput)
	assert.Equal(t, []string{"sg-leftover"}, fake.runInput.SecurityGroupIds)
	assert.Equal(t, "i-0abc123", res.ProviderInstanceID)
}

func TestAWSProvider_CreateInstance_ToleratesDuplicateIngress(t *testing.T) {
	// Rules authorized by an earlier run come back as a duplicate-permission
	// error. The retry treats that as already-done.
	fake := &fakeEC2{
		authorizeErr: &smithy.GenericAPIError{Code: "InvalidPermission.Duplicate", Message: "rule exists"},
	}
	p := awsHarness(fake)

	_, err := p.CreateInstance(context.Background(), awsRequest())
	assert.NoError(t, err)
}

func TestAWSProvider_CreateInstance_IngressFailure(t *testing.T) {
	fake := &fakeEC2{
		authorizeErr: &smithy.GenericAPIError{Code: "UnauthorizedOperation", Message: "denied"},
	}
	p := awsHarness(fake)

	_, err := p.CreateInstance(context.Background(), awsRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configure security group")
}

// =============================================================================
// DestroyInstance Tests
// =============================================================================

func TestAWSProvider_DestroyInstance(t *testing.T) {
	fake := &fakeEC2{}
	p := awsHarness(fake)

	err := p.DestroyInstance(context.Background(), DestroyRequest{
		InstanceName:       "torrust-tracker-e2e",
		ProviderInstanceID: "i-0abc123",
		Region:             "us-east-1",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"i-0abc123"}, fake.terminated)
}

func TestAWSProvider_DestroyInstance_AlreadyTerminated(t *testing.T) {
	fake := &fakeEC2{
		terminateErr: &smithy.GenericAPIError{Code: "InvalidInstanceID.NotFound", Message: "gone"},
	}
	p := awsHarness(fake)

	err := p.DestroyInstance(context.Background(), DestroyRequest{
		InstanceName:       "torrust-tracker-e2e",
		ProviderInstanceID: "i-0abc123",
		Region:             "us-east-1",
	})
	assert.NoError(t, err)
}
