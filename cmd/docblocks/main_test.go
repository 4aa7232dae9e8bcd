package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dgallion1/docblocks/internal/blocks"
	"github.com/dgallion1/docblocks/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writePaper(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paper.md")
	text := "A Paper\n\n**Abstract**\nWe measure $x^2$.\n\n## Method\n1. mix\n* slowly\n"
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "docblocks dev\n", out)
}

func TestConvert_JSON(t *testing.T) {
	out, err := execute(t, "convert", writePaper(t), "--format", "json", "--start-marker", "")
	require.NoError(t, err)

	var bs []blocks.Block
	require.NoError(t, json.Unmarshal([]byte(out), &bs))
	require.Len(t, bs, 5)
	assert.Equal(t, blocks.Heading2, bs[0].Type)
	assert.Equal(t, blocks.EquationParagraph, bs[1].Type)
	assert.Equal(t, blocks.NumberedItem, bs[3].Type)
	assert.Equal(t, 1, bs[4].Indent)
}

func TestConvert_YAML(t *testing.T) {
	out, err := execute(t, "convert", writePaper(t), "--format", "yaml", "--start-marker", "")
	require.NoError(t, err)

	var bs []blocks.Block
	require.NoError(t, yaml.Unmarshal([]byte(out), &bs))
	assert.Len(t, bs, 5)
}

func TestConvert_Errors(t *testing.T) {
	path := writePaper(t)

	_, err := execute(t, "convert", path, "--format", "xml", "--start-marker", "")
	assert.ErrorContains(t, err, "--format")

	_, err = execute(t, "convert", path, "--format", "json", "--start-marker", "Conclusion")
	assert.ErrorIs(t, err, blocks.ErrNoContentMarker)

	_, err = execute(t, "convert", filepath.Join(t.TempDir(), "missing.pdf"), "--format", "json", "--start-marker", "")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, config.Config{LogFormat: "text", LogLevel: "warn"})
	log.Info("hidden")
	log.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.True(t, strings.Contains(buf.String(), "msg=shown"))

	buf.Reset()
	newLogger(&buf, config.Config{LogFormat: "json", LogLevel: "bogus"}).Info("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}
