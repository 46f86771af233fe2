package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRenderer_RendersMarkdown(t *testing.T) {
	render := NewRenderer()

	out, err := render("# Hello")
	require.NoError(t, err)
	assert.Contains(t, out, "Hello")
}
