package install

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubJavaVersionOutput(t *testing.T, output string, err error) {
	t.Helper()
	original := runJavaVersion
	runJavaVersion = func(ctx context.Context) (string, error) { return output, err }
	t.Cleanup(func() { runJavaVersion = original })
}

func TestJavaMajorVersion(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    int
		wantErr bool
	}{
		{
			name:   "temurin 17",
			output: "openjdk version \"17.0.9\" 2023-10-17\nOpenJDK Runtime Environment Temurin-17.0.9+9",
			want:   17,
		},
		{
			name:   "oracle 21 dotted",
			output: "java version \"21.0.2\" 2024-01-16 LTS",
			want:   21,
		},
		{
			name:   "bare major",
			output: "openjdk version \"21\" 2023-09-19",
			want:   21,
		},
		{
			name:   "legacy 1.8 scheme",
			output: "java version \"1.8.0_392\"",
			want:   1,
		},
		{
			name:    "garbage",
			output:  "bash: java: command not found",
			wantErr: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := javaMajorVersion(test.output)
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}
}

func TestCheckJava_AcceptsRecentRuntime(t *testing.T) {
	stubJavaVersionOutput(t, "openjdk version \"17.0.9\" 2023-10-17", nil)

	assert.NoError(t, CheckJava(context.Background()))
}

func TestCheckJava_RejectsOldRuntime(t *testing.T) {
	stubJavaVersionOutput(t, "java version \"11.0.21\" 2023-10-17", nil)

	err := CheckJava(context.Background())
	require.Error(t, err)
	assert.True(t, IsPrerequisite(err))
	assert.Contains(t, err.Error(), "at least java 17")
}

func TestCheckJava_MissingRuntime(t *testing.T) {
	stubJavaVersionOutput(t, "", errors.New("exec: \"java\": executable file not found in $PATH"))

	err := CheckJava(context.Background())
	require.Error(t, err)
	assert.True(t, IsPrerequisite(err))
}

func TestCheckJava_UnparseableOutput(t *testing.T) {
	stubJavaVersionOutput(t, "something unexpected", nil)

	err := CheckJava(context.Background())
	require.Error(t, err)
	assert.True(t, IsPrerequisite(err))
}
