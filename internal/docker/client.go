// Package docker wraps the Docker engine API for database containers.
// Every container it creates carries the managed labels, and lookups of
// unknown containers map to ErrContainerNotFound.
package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/schmitthub/setup-servers/internal/logger"
)

// APIClient is the subset of the engine API used here.
// *client.Client satisfies it; tests use dockertest.FakeAPI.
type APIClient interface {
	Ping(ctx context.Context) (types.Ping, error)
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	Close() error
}

// ErrContainerNotFound is returned when a container does not exist.
var ErrContainerNotFound = errors.New("container not found")

// Client performs labelled container operations.
type Client struct {
	api    APIClient
	labels LabelConfig
}

// NewClient connects to the engine configured by the DOCKER_* environment
// and verifies it responds.
func NewClient(ctx context.Context, labels LabelConfig) (*Client, error) {
	cli, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, ErrDockerNotRunning(err)
	}

	c := NewClientWithAPI(cli, labels)
	if err := c.HealthCheck(ctx); err != nil {
		_ = cli.Close()
		return nil, err
	}

	logger.Debug().Msg("docker engine connected")
	return c, nil
}

// NewClientWithAPI wraps an existing API client.
func NewClientWithAPI(api APIClient, labels LabelConfig) *Client {
	return &Client{api: api, labels: labels}
}

// Labels returns the label configuration.
func (c *Client) Labels() LabelConfig { return c.labels }

// HealthCheck verifies daemon connectivity.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.api.Ping(ctx); err != nil {
		return ErrDockerNotRunning(err)
	}
	return nil
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.api.Close()
}

// PullImage pulls ref and waits for the pull to finish.
func (c *Client) PullImage(ctx context.Context, ref string) error {
	logger.Debug().Str("image", ref).Msg("pulling image")

	reader, err := c.api.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return ErrImagePull(ref, err)
	}
	defer reader.Close()

	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return ErrImagePull(ref, err)
	}
	return nil
}

// ContainerSpec describes a container to create.
type ContainerSpec struct {
	Name  string
	Image string
	Env   []string
	// Ports maps container ports ("5432/tcp") to host ports on 127.0.0.1.
	Ports map[string]int
	// Owner is merged into the managed labels.
	Owner Owner
}

// CreateContainer creates a managed container and returns its id.
func (c *Client) CreateContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for containerPort, hostPort := range spec.Ports {
		p, err := nat.NewPort(nat.SplitProtoPort(containerPort))
		if err != nil {
			return "", fmt.Errorf("invalid container port %q: %w", containerPort, err)
		}
		exposed[p] = struct{}{}
		bindings[p] = []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: fmt.Sprint(hostPort)}}
	}

	cfg := &container.Config{
		Image:        spec.Image,
		Env:          spec.Env,
		ExposedPorts: exposed,
		Labels:       c.labels.ContainerLabels(spec.Owner, spec.Image),
	}
	hostCfg := &container.HostConfig{
		PortBindings: bindings,
	}

	logger.Debug().Str("name", spec.Name).Str("image", spec.Image).Msg("creating container")
	resp, err := c.api.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	if err != nil {
		return "", &DockerError{Op: "create", Err: err, Message: fmt.Sprintf("Failed to create container %s", spec.Name)}
	}
	for _, w := range resp.Warnings {
		logger.Warn().Str("name", spec.Name).Msg(w)
	}
	return resp.ID, nil
}

// StartContainer starts a container.
func (c *Client) StartContainer(ctx context.Context, id string) error {
	if err := c.api.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return c.wrap("start", id, err)
	}
	return nil
}

// StopContainer stops a container, waiting up to timeout seconds before killing it.
func (c *Client) StopContainer(ctx context.Context, id string, timeout int) error {
	if err := c.api.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		return c.wrap("stop", id, err)
	}
	return nil
}

// RemoveContainer force-removes a container and its anonymous volumes.
func (c *Client) RemoveContainer(ctx context.Context, id string) error {
	err := c.api.ContainerRemove(ctx, id, container.RemoveOptions{Force: true, RemoveVolumes: true})
	if err != nil {
		return c.wrap("remove", id, err)
	}
	return nil
}

// ContainerInfo is the inspected state of a container.
type ContainerInfo struct {
	ID      string
	Name    string
	Running bool
	Status  string
	Labels  map[string]string
	// HostPorts maps bound container ports ("5432/tcp") to host ports.
	HostPorts map[string]int
}

// InspectContainer returns the state of a container.
func (c *Client) InspectContainer(ctx context.Context, id string) (ContainerInfo, error) {
	resp, err := c.api.ContainerInspect(ctx, id)
	if err != nil {
		return ContainerInfo{}, c.wrap("inspect", id, err)
	}

	info := ContainerInfo{}
	if resp.ContainerJSONBase != nil {
		info.ID = resp.ID
		info.Name = resp.Name
		if resp.State != nil {
			info.Running = resp.State.Running
			info.Status = string(resp.State.Status)
		}
		if resp.HostConfig != nil {
			info.HostPorts = hostPorts(resp.HostConfig.PortBindings)
		}
	}
	if resp.Config != nil {
		info.Labels = resp.Config.Labels
	}
	return info, nil
}

func hostPorts(bindings nat.PortMap) map[string]int {
	ports := map[string]int{}
	for p, bs := range bindings {
		for _, b := range bs {
			if n, err := strconv.Atoi(b.HostPort); err == nil {
				ports[string(p)] = n
				break
			}
		}
	}
	return ports
}

// WaitRunning polls until the container reports running or timeout expires.
func (c *Client) WaitRunning(ctx context.Context, id string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		info, err := c.InspectContainer(ctx, id)
		if err != nil {
			return err
		}
		if info.Running {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("container %s not running after %s (status %q): %w", id, timeout, info.Status, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) wrap(op, id string, err error) error {
	if cerrdefs.IsNotFound(err) {
		return fmt.Errorf("%s %s: %w", op, id, ErrContainerNotFound)
	}
	return &DockerError{Op: op, Err: err, Message: fmt.Sprintf("Failed to %s container %s", op, id)}
}
