// Package dockertest provides test doubles for internal/docker.Client.
//
// FakeAPI is an in-memory engine: containers created through it can be
// started, stopped, inspected and removed, so docker-layer code runs for real
// against it. Fn fields override individual operations.
//
// Usage:
//
//	fake := dockertest.NewFakeClient()
//	id, err := fake.Client.CreateContainer(ctx, spec)
//	fake.AssertCalled(t, "ContainerCreate")
package dockertest

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/schmitthub/setup-servers/internal/docker"
)

// TestLabelPrefix is the label prefix used by NewFakeClient.
const TestLabelPrefix = "dev.setup-servers.test"

// FakeContainer is a container held by FakeAPI.
type FakeContainer struct {
	ID         string
	Name       string
	Config     container.Config
	HostConfig container.HostConfig
	Running    bool
}

// FakeAPI implements docker.APIClient in memory.
type FakeAPI struct {
	mu         sync.Mutex
	containers map[string]*FakeContainer
	pulled     []string
	calls      []string
	nextID     int

	PingFn            func(ctx context.Context) (types.Ping, error)
	ImagePullFn       func(ctx context.Context, ref string) error
	ContainerCreateFn func(ctx context.Context, cfg *container.Config, name string) (container.CreateResponse, error)
	ContainerStartFn  func(ctx context.Context, id string) error
}

var _ docker.APIClient = (*FakeAPI)(nil)

// NewFakeAPI returns an empty engine.
func NewFakeAPI() *FakeAPI {
	return &FakeAPI{containers: map[string]*FakeContainer{}}
}

func (f *FakeAPI) record(op string) {
	f.calls = append(f.calls, op)
}

func notFound(id string) error {
	return fmt.Errorf("no such container: %s: %w", id, cerrdefs.ErrNotFound)
}

// lookup finds a container by id or name. Caller holds mu.
func (f *FakeAPI) lookup(ref string) (*FakeContainer, bool) {
	if c, ok := f.containers[ref]; ok {
		return c, true
	}
	for _, c := range f.containers {
		if c.Name == ref || c.Name == strings.TrimPrefix(ref, "/") {
			return c, true
		}
	}
	return nil, false
}

func (f *FakeAPI) Ping(ctx context.Context) (types.Ping, error) {
	f.mu.Lock()
	f.record("Ping")
	fn := f.PingFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return types.Ping{APIVersion: "1.47"}, nil
}

func (f *FakeAPI) ImagePull(ctx context.Context, ref string, _ image.PullOptions) (io.ReadCloser, error) {
	f.mu.Lock()
	f.record("ImagePull")
	fn := f.ImagePullFn
	f.mu.Unlock()
	if fn != nil {
		if err := fn(ctx, ref); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	f.pulled = append(f.pulled, ref)
	f.mu.Unlock()
	return io.NopCloser(strings.NewReader(`{"status":"Downloaded newer image for ` + ref + `"}` + "\n")), nil
}

func (f *FakeAPI) ContainerCreate(ctx context.Context, cfg *container.Config, hostCfg *container.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, name string) (container.CreateResponse, error) {
	f.mu.Lock()
	f.record("ContainerCreate")
	fn := f.ContainerCreateFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, cfg, name)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.lookup(name); exists && name != "" {
		return container.CreateResponse{}, fmt.Errorf("conflict: container name %q already in use: %w", name, cerrdefs.ErrConflict)
	}
	f.nextID++
	id := fmt.Sprintf("fake%060d", f.nextID)
	c := &FakeContainer{ID: id, Name: name}
	if cfg != nil {
		c.Config = *cfg
	}
	if hostCfg != nil {
		c.HostConfig = *hostCfg
	}
	f.containers[id] = c
	return container.CreateResponse{ID: id}, nil
}

func (f *FakeAPI) ContainerStart(ctx context.Context, id string, _ container.StartOptions) error {
	f.mu.Lock()
	f.record("ContainerStart")
	fn := f.ContainerStartFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, id)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.lookup(id)
	if !ok {
		return notFound(id)
	}
	c.Running = true
	return nil
}

func (f *FakeAPI) ContainerStop(_ context.Context, id string, _ container.StopOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ContainerStop")
	c, ok := f.lookup(id)
	if !ok {
		return notFound(id)
	}
	c.Running = false
	return nil
}

func (f *FakeAPI) ContainerRemove(_ context.Context, id string, opts container.RemoveOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ContainerRemove")
	c, ok := f.lookup(id)
	if !ok {
		return notFound(id)
	}
	if c.Running && !opts.Force {
		return fmt.Errorf("container %s is running: %w", id, cerrdefs.ErrConflict)
	}
	delete(f.containers, c.ID)
	return nil
}

func (f *FakeAPI) ContainerInspect(_ context.Context, id string) (container.InspectResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ContainerInspect")
	c, ok := f.lookup(id)
	if !ok {
		return container.InspectResponse{}, notFound(id)
	}
	state := &container.State{Running: c.Running, Status: "exited"}
	if c.Running {
		state.Status = "running"
	}
	cfg := c.Config
	hostCfg := c.HostConfig
	return container.InspectResponse{
		ContainerJSONBase: &container.ContainerJSONBase{
			ID:         c.ID,
			Name:       "/" + c.Name,
			State:      state,
			HostConfig: &hostCfg,
		},
		Config: &cfg,
	}, nil
}

func (f *FakeAPI) Close() error { return nil }

// Container returns a copy of the container with the given id or name.
func (f *FakeAPI) Container(ref string) (FakeContainer, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.lookup(ref)
	if !ok {
		return FakeContainer{}, false
	}
	return *c, true
}

// Len returns the number of containers.
func (f *FakeAPI) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.containers)
}

// Pulled returns the image references pulled so far.
func (f *FakeAPI) Pulled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.pulled...)
}

// Calls returns the recorded operation names in call order.
func (f *FakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// FakeClient pairs a real *docker.Client with the FakeAPI behind it.
type FakeClient struct {
	Client  *docker.Client
	FakeAPI *FakeAPI
}

// NewFakeClient constructs a FakeClient using TestLabelPrefix.
func NewFakeClient() *FakeClient {
	api := NewFakeAPI()
	return &FakeClient{
		Client:  docker.NewClientWithAPI(api, docker.LabelConfig{Prefix: TestLabelPrefix}),
		FakeAPI: api,
	}
}

// AssertCalled fails the test if op was never called.
func (f *FakeClient) AssertCalled(t *testing.T, op string) {
	t.Helper()
	for _, c := range f.FakeAPI.Calls() {
		if c == op {
			return
		}
	}
	t.Errorf("expected %s to be called; calls: %v", op, f.FakeAPI.Calls())
}

// AssertNotCalled fails the test if op was called.
func (f *FakeClient) AssertNotCalled(t *testing.T, op string) {
	t.Helper()
	for _, c := range f.FakeAPI.Calls() {
		if c == op {
			t.Errorf("expected %s not to be called; calls: %v", op, f.FakeAPI.Calls())
			return
		}
	}
}
