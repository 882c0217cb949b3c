package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repokit/repokit/internal/errors"
)

func TestParseCommand(t *testing.T) {
	for _, s := range []string{
		"Connect", "LogIn", "Logout", "CheckIn", "Extraction",
		"FileRequest", "Statusmsg", "PackageList", "CancelCheckin", "FileTransfer",
	} {
		c, err := ParseCommand(s)
		require.NoError(t, err)
		assert.Equal(t, Command(s), c)
	}

	_, err := ParseCommand("SelfDestruct")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindParse))
}

func TestMessage_EncodeDecode(t *testing.T) {
	msg := Message{
		Endpoint: "ws://client:9090/callback",
		User:     "alice",
		Password: "secret",
		Command:  CommandCheckIn,
		Text:     "package: Widget",
	}

	data, err := msg.Encode()
	require.NoError(t, err)

	got, err := DecodeMessage(data)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestDecodeMessage_Malformed(t *testing.T) {
	_, err := DecodeMessage([]byte("{not json"))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindParse))
}

func TestDecodeMessage_UnknownCommand(t *testing.T) {
	_, err := DecodeMessage([]byte(`{"command":"Nonsense"}`))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindParse))
}

func TestStatusMessage(t *testing.T) {
	msg := StatusMessage("package checked in as open")
	assert.Equal(t, CommandStatusmsg, msg.Command)
	assert.Equal(t, "package checked in as open", msg.Text)
}

func TestCheckinPayload_RoundTrip(t *testing.T) {
	p := CheckinPayload{
		Package:      "Widget",
		RI:           "alice",
		Status:       "open",
		Filename:     "widget.cs",
		Filepath:     "/home/alice/src/widget.cs",
		Dependencies: []string{"Display.1", "Parser.2"},
	}

	text, err := p.Encode()
	require.NoError(t, err)

	got, err := ParseCheckinPayload(text)
	require.NoError(t, err)
	assert.Equal(t, p, got)
	assert.True(t, got.HasFile())
}

func TestCheckinPayload_NoFileSentinel(t *testing.T) {
	p := CheckinPayload{Package: "Widget", RI: "alice", Status: "open", Filename: NoFile, Filepath: NoFile}

	text, err := p.Encode()
	require.NoError(t, err)

	got, err := ParseCheckinPayload(text)
	require.NoError(t, err)
	assert.False(t, got.HasFile())
}

func TestParseCheckinPayload_Validation(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"missing package", "ri: alice\nstatus: open\nfilename: '-1'\nfilepath: '-1'\n"},
		{"missing user", "package: Widget\nstatus: open\nfilename: '-1'\nfilepath: '-1'\n"},
		{"pending not requestable", "package: Widget\nri: alice\nstatus: pending\nfilename: '-1'\nfilepath: '-1'\n"},
		{"filepath without filename", "package: Widget\nri: alice\nstatus: open\nfilename: '-1'\nfilepath: /tmp/w.cs\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCheckinPayload(tt.text)
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
		})
	}
}

func TestParseCheckinPayload_Malformed(t *testing.T) {
	_, err := ParseCheckinPayload("\t: nope")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindParse))
}

func TestPackageListDoc_RoundTrip(t *testing.T) {
	doc := PackageListDoc{
		Packages: []PackageEntry{
			{
				Name: "Widget",
				Versions: []VersionEntry{
					{Number: 1, Status: "closed"},
					{Number: 2, Status: "open", Dependencies: []string{"Display.1"}},
				},
			},
			{Name: "Display", Versions: []VersionEntry{{Number: 1, Status: "closed"}}},
		},
	}

	text, err := doc.Encode()
	require.NoError(t, err)

	got, err := ParsePackageList(text)
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}
