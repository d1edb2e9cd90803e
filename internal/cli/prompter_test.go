package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "yes", input: "y\n", want: true},
		{name: "yes full word", input: "yes\n", want: true},
		{name: "uppercase yes", input: "Y\n", want: true},
		{name: "no", input: "n\n", want: false},
		{name: "empty defaults to no", input: "\n", want: false},
		{name: "garbage defaults to no", input: "sure\n", want: false},
		{name: "eof defaults to no", input: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewPrompter(strings.NewReader(tt.input), &out)

			got, err := p.Confirm(context.Background(), "Proceed?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "Proceed?")
		})
	}
}

func TestConfirmHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPrompter(strings.NewReader("y\n"), &bytes.Buffer{})
	_, err := p.Confirm(ctx, "Proceed?")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfirmForcePushShowsVersions(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("y\n"), &out)

	ok, err := p.ConfirmForcePush(context.Background(), 1000, 1005)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, out.String(), "1000")
	assert.Contains(t, out.String(), "1005")
	assert.Contains(t, out.String(), "Overwrite server data?")
}

func TestConfirmResetDeclined(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("n\n"), &out)

	ok, err := p.ConfirmReset(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, out.String(), "discards all local rules")
}
