package api

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testShared() Shared {
	return Shared{
		Network:  NetworkRef{VPCID: "vpc-1", SubnetIDs: []string{"subnet-a"}},
		Bucket:   BucketRef{Name: "bench-bucket"},
		Scenario: "echo",
		ImageRef: "netbench:latest",
	}
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("server")
	require.NoError(t, err)
	assert.Equal(t, RoleServer, r)

	r, err = ParseRole("client")
	require.NoError(t, err)
	assert.Equal(t, RoleClient, r)

	_, err = ParseRole("both")
	var ipe *InvalidParameterError
	require.ErrorAs(t, err, &ipe)

	_, err = ParseRole("Server")
	require.Error(t, err)
}

func TestNewRoleSpec_Server(t *testing.T) {
	spec, err := NewRoleSpec(RoleServer, "m6g.large", testShared(), "")
	require.NoError(t, err)
	assert.Equal(t, RoleServer, spec.Role)
	assert.Equal(t, "m6g.large", spec.InstanceType)
	assert.Equal(t, "bench-bucket", spec.Bucket.Name)
	assert.Empty(t, spec.PeerAddress)
}

func TestNewRoleSpec_ServerRejectsPeer(t *testing.T) {
	_, err := NewRoleSpec(RoleServer, "m6g.large", testShared(), "peer")
	var ipe *InvalidParameterError
	require.ErrorAs(t, err, &ipe)
}

func TestNewRoleSpec_ClientRequiresPeer(t *testing.T) {
	_, err := NewRoleSpec(RoleClient, "m6g.large", testShared(), "")
	var ipe *InvalidParameterError
	require.ErrorAs(t, err, &ipe)
	assert.Contains(t, ipe.Message, "discovery address")

	spec, err := NewRoleSpec(RoleClient, "m6g.large", testShared(), "srv")
	require.NoError(t, err)
	assert.Equal(t, "srv", spec.PeerAddress)
}

func TestNewRoleSpec_UnknownRole(t *testing.T) {
	_, err := NewRoleSpec(Role("both"), "m6g.large", testShared(), "")
	var ipe *InvalidParameterError
	require.ErrorAs(t, err, &ipe)
}

func TestNewRoleSpec_MissingFields(t *testing.T) {
	_, err := NewRoleSpec(RoleServer, "", Shared{}, "")
	var ipe *InvalidParameterError
	require.ErrorAs(t, err, &ipe)
	for _, field := range []string{"instance type", "vpc id", "subnets", "bucket", "scenario", "image"} {
		assert.Contains(t, ipe.Message, field)
	}
}

func TestBucketARN(t *testing.T) {
	assert.Equal(t, "arn:aws:s3:::bench-bucket", BucketRef{Name: "bench-bucket"}.ARN())
}

func TestEnv(t *testing.T) {
	var env Env
	env, err := env.With("SCENARIO", "echo")
	require.NoError(t, err)
	env, err = env.With("PORT", "3000")
	require.NoError(t, err)

	_, err = env.With("PORT", "4000")
	require.Error(t, err)

	assert.Equal(t, []string{"SCENARIO", "PORT"}, env.Keys())
	v, ok := env.Get("PORT")
	assert.True(t, ok)
	assert.Equal(t, "3000", v)
	_, ok = env.Get("DNS_ADDRESS")
	assert.False(t, ok)
	assert.Equal(t, map[string]string{"SCENARIO": "echo", "PORT": "3000"}, env.Map())
}

func TestEnvWithDoesNotAlias(t *testing.T) {
	base, err := Env{}.With("A", "1")
	require.NoError(t, err)
	left, err := base.With("B", "2")
	require.NoError(t, err)
	right, err := base.With("C", "3")
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, left.Keys())
	assert.Equal(t, []string{"A", "C"}, right.Keys())
}

func TestProvisionError(t *testing.T) {
	inner := errors.New("boom")
	err := &ProvisionError{Role: RoleServer, Step: "cluster", Code: "ClientException", Err: inner}
	assert.Equal(t, "provision server cluster: ClientException: boom", err.Error())
	assert.ErrorIs(t, err, inner)

	err = &ProvisionError{Role: RoleClient, Step: "task-definition", Err: inner}
	assert.Equal(t, "provision client task-definition: boom", err.Error())
}

func TestRoleSpec_WithPeer(t *testing.T) {
	client, err := NewRoleSpec(RoleClient, "m6g.large", testShared(), "placeholder")
	require.NoError(t, err)

	addressed, err := client.WithPeer("srv")
	require.NoError(t, err)
	assert.Equal(t, "srv", addressed.PeerAddress)
	assert.Equal(t, "placeholder", client.PeerAddress)

	_, err = client.WithPeer("")
	var ipe *InvalidParameterError
	require.ErrorAs(t, err, &ipe)

	server, err := NewRoleSpec(RoleServer, "m6g.large", testShared(), "")
	require.NoError(t, err)
	_, err = server.WithPeer("srv")
	require.ErrorAs(t, err, &ipe)
}
