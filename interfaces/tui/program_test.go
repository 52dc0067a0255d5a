package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"millionx-backend/application/queries"
	"millionx-backend/domain/core/valueobjects"
)

func testModelWithNode(content string) *Model {
	return &Model{
		sessionID: "s1",
		session: &queries.SessionDTO{
			ID: "s1",
			Nodes: []queries.NodeDTO{
				{ID: "n1", Title: "Entropy", Depth: 0, Content: content},
			},
		},
	}
}

func TestEnsureContentCmdSkipsLoadedContent(t *testing.T) {
	m := testModelWithNode("## Entropy\n\nA measure of disorder.")
	assert.Nil(t, m.ensureContentCmd("n1"))
	assert.False(t, m.busy)
}

func TestEnsureContentCmdFetchesEmptyContent(t *testing.T) {
	m := testModelWithNode("")
	assert.NotNil(t, m.ensureContentCmd("n1"))
	assert.True(t, m.busy)
}

func TestEnsureContentCmdRetriesFailedContent(t *testing.T) {
	failed := valueobjects.FailedContent("").Text()
	m := testModelWithNode(failed)
	assert.NotNil(t, m.ensureContentCmd("n1"))
	assert.True(t, m.busy)
}

func TestEnsureContentCmdIgnoresUnknownNode(t *testing.T) {
	m := testModelWithNode("")
	assert.Nil(t, m.ensureContentCmd("missing"))
}

func TestContentNeedsFetch(t *testing.T) {
	assert.True(t, contentNeedsFetch(""))
	assert.True(t, contentNeedsFetch("   \n"))
	assert.True(t, contentNeedsFetch(valueobjects.ErrorMarker+"\n\nprovider down"))
	assert.False(t, contentNeedsFetch("a loaded explanation"))
}
