package install

import (
	"errors"
	"fmt"
)

// PrerequisiteError indicates that the host is missing something Keycloak
// needs before an installation is even attempted, such as a suitable Java
// runtime.
type PrerequisiteError struct {
	// Requirement names the missing prerequisite (e.g. "java").
	Requirement string

	// Detail describes what was found instead of the requirement.
	Detail string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface for PrerequisiteError.
func (e *PrerequisiteError) Error() string {
	msg := fmt.Sprintf("prerequisite %s not satisfied", e.Requirement)
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *PrerequisiteError) Unwrap() error {
	return e.Err
}

// IsPrerequisite checks if an error is a PrerequisiteError using error
// unwrapping, so wrapped errors are recognized too.
func IsPrerequisite(err error) bool {
	var prereqErr *PrerequisiteError
	return errors.As(err, &prereqErr)
}

// NewPrerequisiteError creates a new PrerequisiteError.
func NewPrerequisiteError(requirement, detail string, err error) *PrerequisiteError {
	return &PrerequisiteError{
		Requirement: requirement,
		Detail:      detail,
		Err:         err,
	}
}

// InstallError indicates that downloading or unpacking a Keycloak
// distribution failed. The installation directory is left without the
// partially installed version.
type InstallError struct {
	// Version is the Keycloak version whose installation failed.
	Version string

	// Op is the step that failed (e.g. "download", "extract").
	Op string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface for InstallError.
func (e *InstallError) Error() string {
	return fmt.Sprintf("failed to %s Keycloak %s: %v", e.Op, e.Version, e.Err)
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *InstallError) Unwrap() error {
	return e.Err
}

// IsInstall checks if an error is an InstallError using error unwrapping.
func IsInstall(err error) bool {
	var installErr *InstallError
	return errors.As(err, &installErr)
}

// NewInstallError creates a new InstallError for the given step.
func NewInstallError(version, op string, err error) *InstallError {
	return &InstallError{
		Version: version,
		Op:      op,
		Err:     err,
	}
}
