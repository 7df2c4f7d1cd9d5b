package docker

import (
	"fmt"
	"strings"
)

// DockerError represents a user-friendly Docker error with remediation steps
type DockerError struct {
	Op        string
	Err       error
	Message   string
	NextSteps []string
}

func (e *DockerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DockerError) Unwrap() error {
	return e.Err
}

// FormatUserError formats the error for display to users
func (e *DockerError) FormatUserError() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", e.Message)
	if e.Err != nil {
		fmt.Fprintf(&sb, "  Details: %s\n", e.Err.Error())
	}
	if len(e.NextSteps) > 0 {
		sb.WriteString("\nNext Steps:\n")
		for i, step := range e.NextSteps {
			fmt.Fprintf(&sb, "  %d. %s\n", i+1, step)
		}
	}
	return sb.String()
}

// ErrDockerNotRunning returns an error for when the Docker daemon is not accessible
func ErrDockerNotRunning(err error) *DockerError {
	return &DockerError{
		Op:      "connect",
		Err:     err,
		Message: "Cannot connect to Docker daemon",
		NextSteps: []string{
			"Ensure Docker is installed",
			"Start Docker Desktop (macOS/Windows) or run 'sudo systemctl start docker' (Linux)",
			"Check that DOCKER_HOST points at a reachable daemon",
		},
	}
}

// ErrImagePull returns an error for when an image cannot be pulled
func ErrImagePull(image string, err error) *DockerError {
	return &DockerError{
		Op:      "pull",
		Err:     err,
		Message: fmt.Sprintf("Failed to pull image '%s'", image),
		NextSteps: []string{
			"Check the image name and tag are correct",
			"Verify you have network access to the registry",
			"Try pulling manually: docker pull " + image,
		},
	}
}
