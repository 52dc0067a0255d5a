package versioning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"millionx-backend/domain/config"
	"millionx-backend/domain/core/aggregates"
)

func TestSnapshotRoundTrip(t *testing.T) {
	session, err := aggregates.NewExploration("user-1", "Calculus", config.DefaultDomainConfig())
	require.NoError(t, err)
	_, err = session.AttachChildren(session.Root().ID(), []aggregates.ChildTopic{
		{Title: "Limits", Description: "The value a function approaches"},
		{Title: "Derivatives"},
	})
	require.NoError(t, err)

	codec := NewSnapshotCodec()

	nodesData, err := codec.EncodeNodes(session.Nodes())
	require.NoError(t, err)
	connData, err := codec.EncodeConnections(session.Connections())
	require.NoError(t, err)

	nodes, err := codec.DecodeNodes(CurrentSchemaVersion, nodesData)
	require.NoError(t, err)
	connections, err := codec.DecodeConnections(CurrentSchemaVersion, connData)
	require.NoError(t, err)

	require.Len(t, nodes, 3)
	require.Len(t, connections, 2)

	assert.Equal(t, session.Root().ID(), nodes[0].ID())
	assert.Equal(t, "Calculus", nodes[0].Title())
	assert.True(t, nodes[0].HasExplored())
	assert.Equal(t, "Limits", nodes[1].Title())
	assert.Equal(t, "The value a function approaches", nodes[1].Description())
	assert.Equal(t, 1, nodes[1].Depth())
	assert.Equal(t, session.Nodes()[1].Position().X(), nodes[1].Position().X())
}

func TestDecodeNodesRejectsNewerSchema(t *testing.T) {
	codec := NewSnapshotCodec()
	_, err := codec.DecodeNodes(CurrentSchemaVersion+1, "[]")
	assert.Error(t, err)
}

func TestChecksumDetectsCorruption(t *testing.T) {
	sum := Checksum("[]", "[]")
	assert.Len(t, sum, 64)
	assert.Equal(t, sum, Checksum("[]", "[]"))
	assert.NotEqual(t, sum, Checksum("[{}]", "[]"))

	// The separator keeps boundary-shifted blobs from colliding
	assert.NotEqual(t, Checksum("ab", "c"), Checksum("a", "bc"))
}
