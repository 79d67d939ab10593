package install

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"time"

	"kcdev/pkg/logging"
)

// minJavaMajor is the oldest Java major version recent Keycloak releases run
// on.
const minJavaMajor = 17

// javaCheckTimeout bounds the java -version invocation. A hung JVM probe
// must not stall installation indefinitely.
const javaCheckTimeout = 10 * time.Second

var (
	// java -version prints e.g. `openjdk version "17.0.9" 2023-10-17`.
	// Newer runtimes may print a bare major like `version "21"`.
	javaVersionDotted = regexp.MustCompile(`version "(\d+)\.`)
	javaVersionBare   = regexp.MustCompile(`version "(\d+)"`)
)

// runJavaVersion is swapped in tests.
var runJavaVersion = func(ctx context.Context) (string, error) {
	// java -version writes to stderr
	out, err := exec.CommandContext(ctx, "java", "-version").CombinedOutput()
	return string(out), err
}

// CheckJava verifies that a Java runtime of at least major version 17 is on
// the PATH. Any failure is reported as a PrerequisiteError.
func CheckJava(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, javaCheckTimeout)
	defer cancel()

	output, err := runJavaVersion(ctx)
	if err != nil {
		return NewPrerequisiteError("java", "no working java runtime on PATH", err)
	}

	major, err := javaMajorVersion(output)
	if err != nil {
		return NewPrerequisiteError("java", fmt.Sprintf("could not parse java version from %q", firstLine(output)), err)
	}

	if major < minJavaMajor {
		return NewPrerequisiteError("java",
			fmt.Sprintf("java %d found, but Keycloak requires at least java %d", major, minJavaMajor), nil)
	}

	logging.Debug("Installer", "Found java %d", major)
	return nil
}

// javaMajorVersion extracts the major version from java -version output.
func javaMajorVersion(output string) (int, error) {
	match := javaVersionDotted.FindStringSubmatch(output)
	if match == nil {
		match = javaVersionBare.FindStringSubmatch(output)
	}
	if match == nil {
		return 0, fmt.Errorf("no version string found")
	}
	return strconv.Atoi(match[1])
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' || r == '\r' {
			return s[:i]
		}
	}
	return s
}
