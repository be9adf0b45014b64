package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, out []byte)
	}{
		{
			name: "text",
			args: []string{"version"},
			check: func(t *testing.T, out []byte) {
				t.Helper()
				assert.Contains(t, string(out), "Version: "+Release)
			},
		},
		{
			name: "json",
			args: []string{"version", "--output", "json"},
			check: func(t *testing.T, out []byte) {
				t.Helper()

				var info versionInfo
				require.NoError(t, json.Unmarshal(out, &info))
				assert.Equal(t, Release, info.Release)
				assert.Equal(t, GitCommit, info.GitCommit)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			versionOutput = outputText

			var buf bytes.Buffer
			rootCmd.SetOut(&buf)
			rootCmd.SetArgs(tt.args)

			require.NoError(t, rootCmd.Execute())
			tt.check(t, buf.Bytes())
		})
	}
}

func TestFullVersion(t *testing.T) {
	assert.Contains(t, fullVersion(), Release)
	assert.Contains(t, fullVersion(), GOOS+"/"+GOARCH)
}
