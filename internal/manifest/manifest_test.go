package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repokit/repokit/internal/errors"
)

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"open", "closed", "pending"} {
		status, err := ParseStatus(s)
		require.NoError(t, err)
		assert.Equal(t, Status(s), status)
	}

	_, err := ParseStatus("reopened")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindParse))
}

func TestManifest_Accessors(t *testing.T) {
	m := New("Widget.3", "alice", StatusOpen, "widget.3.cs", []string{"Display.1", "Parser.2"})

	assert.Equal(t, "Widget", m.Base())
	version, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, 3, version)
	assert.True(t, m.DependsOn("Display.1"))
	assert.False(t, m.DependsOn("Display.2"))
}

func TestManifest_CopyOnWrite(t *testing.T) {
	deps := []string{"Display.1"}
	m := New("Widget.1", "alice", StatusOpen, "widget.1.cs", deps)

	// mutating the caller's slice must not leak into the manifest
	deps[0] = "Other.9"
	assert.Equal(t, "Display.1", m.Dependencies[0])

	closed := m.WithStatus(StatusClosed)
	assert.Equal(t, StatusOpen, m.Status)
	assert.Equal(t, StatusClosed, closed.Status)

	rewired := m.WithDependencies([]string{"Parser.2"})
	assert.Equal(t, []string{"Display.1"}, m.Dependencies)
	assert.Equal(t, []string{"Parser.2"}, rewired.Dependencies)
}

func TestManifest_MarshalRoundTrip(t *testing.T) {
	m := New("Widget.2", "bob", StatusPending, "widget.2.cs", []string{"Display.1"})

	data, err := m.Marshal()
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestUnmarshal_BadDocument(t *testing.T) {
	_, err := Unmarshal([]byte("\t: not yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindParse))
}

func TestUnmarshal_BadStatus(t *testing.T) {
	_, err := Unmarshal([]byte("package: Widget.1\nstatus: reopened\n"))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindParse))
}
