package main

import (
	"testing"

	"github.com/example/localdelivery/pkg/grpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCall(t *testing.T) {
	client := grpc.NewOrderAdminClient(nil)

	req, call, err := buildCall(client, []string{"update", "abc", "CONFIRMED"}, "")
	require.NoError(t, err)
	assert.NotNil(t, call)
	assert.Equal(t, "abc", req.GetFields()["id"].GetStringValue())
	assert.Equal(t, "CONFIRMED", req.GetFields()["status"].GetStringValue())

	req, _, err = buildCall(client, []string{"list"}, "DELIVERED")
	require.NoError(t, err)
	assert.Equal(t, "DELIVERED", req.GetFields()["status"].GetStringValue())

	for _, args := range [][]string{{"get"}, {"update", "abc"}, {"delete", "abc"}} {
		_, _, err := buildCall(client, args, "")
		assert.Error(t, err, args)
	}
}
