package container

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/matgreaves/run"
	"github.com/matgreaves/run/onexit"
	"github.com/nemaniarjun/storyengine/internal/storymodel"
)

// Manager implements dispatch.ContainerManager: it starts at most one
// container per (app, service) pair, lazily, the first time a line
// dispatches to that service (spec.md §4.7). Containers share a Docker
// network keyed by app ID so they can reach each other by container name —
// the hostname returned by GetHostname is simply that name, resolved by
// Docker's embedded DNS.
type Manager struct {
	mu      sync.Mutex
	running map[string]storymodel.StreamingServiceHandle
	cancels map[string]context.CancelFunc
}

// NewManager returns a Manager with no containers started.
func NewManager() *Manager {
	return &Manager{
		running: make(map[string]storymodel.StreamingServiceHandle),
		cancels: make(map[string]context.CancelFunc),
	}
}

func containerKey(appID, service string) string { return appID + "/" + service }

// ContainerName returns the Docker container name for a (app, service) pair.
func ContainerName(appID, service string) string {
	return fmt.Sprintf("storyengine-%s-%s", appID, service)
}

func networkName(appID string) string { return "storyengine-" + appID }

// Start ensures the container for line.Service is running, creating and
// starting it on first use, and returns its handle. Concurrent calls for
// the same (app, service) pair converge on a single container.
func (m *Manager) Start(ctx context.Context, story storymodel.Story, line storymodel.Line) (storymodel.StreamingServiceHandle, error) {
	key := containerKey(story.App().AppID, line.Service)

	m.mu.Lock()
	if h, ok := m.running[key]; ok {
		m.mu.Unlock()
		return h, nil
	}
	m.mu.Unlock()

	rec, ok := story.App().Services[line.Service]
	if !ok {
		return storymodel.StreamingServiceHandle{}, fmt.Errorf("unknown service %q", line.Service)
	}
	if rec.Image == "" {
		return storymodel.StreamingServiceHandle{}, fmt.Errorf("service %q has no container image configured", line.Service)
	}

	cli, err := dockerClient()
	if err != nil {
		return storymodel.StreamingServiceHandle{}, fmt.Errorf("docker client: %w", err)
	}

	netID, err := ensureNetwork(ctx, cli, networkName(story.App().AppID))
	if err != nil {
		return storymodel.StreamingServiceHandle{}, fmt.Errorf("ensure network: %w", err)
	}

	name := ContainerName(story.App().AppID, line.Service)

	m.mu.Lock()
	if h, ok := m.running[key]; ok {
		m.mu.Unlock()
		return h, nil
	}
	bgCtx, cancel := context.WithCancel(context.Background())
	m.cancels[key] = cancel
	handle := storymodel.StreamingServiceHandle{
		Name:          line.Service,
		Command:       line.Command,
		ContainerName: name,
		Hostname:      name,
	}
	m.running[key] = handle
	m.mu.Unlock()

	runner := containerRunner(cli, name, rec.Image, netID, story.Logger())
	go func() {
		if err := runner.Run(bgCtx); err != nil && bgCtx.Err() == nil {
			story.Logger().Info("container %s exited: %v", name, err)
		}
	}()

	if err := waitForContainer(ctx, cli, name); err != nil {
		return storymodel.StreamingServiceHandle{}, fmt.Errorf("waiting for container %s: %w", name, err)
	}
	return handle, nil
}

// GetHostname resolves the hostname a caller should use to reach service
// within the app's Docker network, starting it first if needed.
func (m *Manager) GetHostname(ctx context.Context, story storymodel.Story, line storymodel.Line, service string) (string, error) {
	lookupLine := line
	lookupLine.Service = service
	handle, err := m.Start(ctx, story, lookupLine)
	if err != nil {
		return "", err
	}
	return handle.Hostname, nil
}

// Exec runs `command` inside service's container via docker exec,
// starting the container first if needed (spec.md §4.5's container-exec
// transport).
func (m *Manager) Exec(ctx context.Context, logger storymodel.Logger, story storymodel.Story, line storymodel.Line, service, command string) (any, error) {
	handle, err := m.Start(ctx, story, line)
	if err != nil {
		return nil, err
	}

	cli, err := dockerClient()
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}

	exec, err := cli.ContainerExecCreate(ctx, handle.ContainerName, dockercontainer.ExecOptions{
		Cmd:          []string{command},
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("exec create: %w", err)
	}

	resp, err := cli.ContainerExecAttach(ctx, exec.ID, dockercontainer.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("exec attach: %w", err)
	}
	defer resp.Close()

	stdoutR, stdoutW := io.Pipe()
	go func() {
		defer stdoutW.Close()
		stdcopy.StdCopy(stdoutW, io.Discard, resp.Reader)
	}()
	out, err := io.ReadAll(stdoutR)
	if err != nil {
		return nil, fmt.Errorf("exec read output: %w", err)
	}

	inspect, err := cli.ContainerExecInspect(ctx, exec.ID)
	if err != nil {
		return nil, fmt.Errorf("exec inspect: %w", err)
	}
	if inspect.ExitCode != 0 {
		return nil, fmt.Errorf("exec %s/%s: exit code %d", service, command, inspect.ExitCode)
	}
	logger.Debug("exec %s/%s completed", service, command)
	return string(out), nil
}

// Shutdown stops every container this Manager started.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(m.cancels))
	for _, c := range m.cancels {
		cancels = append(cancels, c)
	}
	m.mu.Unlock()
	for _, c := range cancels {
		c()
	}
}

// containerRunner returns a run.Runner that creates, starts, streams logs
// for, and waits on a single container, cleaning it up when ctx is
// cancelled — the same lifecycle shape as a long-running service type's
// Runner.
func containerRunner(cli *client.Client, name, image, netID string, logger storymodel.Logger) run.Runner {
	return run.Func(func(ctx context.Context) error {
		_, err := cli.ContainerInspect(ctx, name)
		if err == nil {
			return waitOrRemove(ctx, cli, name)
		}
		if !errdefs.IsNotFound(err) {
			return fmt.Errorf("inspect container %s: %w", name, err)
		}

		resp, err := cli.ContainerCreate(ctx, &dockercontainer.Config{
			Image: image,
		}, &dockercontainer.HostConfig{}, &network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{
				netID: {},
			},
		}, nil, name)
		if err != nil {
			return fmt.Errorf("create container %s: %w", name, err)
		}

		cancelOnexit, _ := onexit.OnExitF("docker rm -f %s", resp.ID)
		defer func() {
			cleanCtx := context.Background()
			timeout := 10
			cli.ContainerStop(cleanCtx, resp.ID, dockercontainer.StopOptions{Timeout: &timeout})
			cli.ContainerRemove(cleanCtx, resp.ID, dockercontainer.RemoveOptions{Force: true})
			if cancelOnexit != nil {
				cancelOnexit()
			}
		}()

		if err := cli.ContainerStart(ctx, resp.ID, dockercontainer.StartOptions{}); err != nil {
			return fmt.Errorf("start container %s: %w", name, err)
		}

		logReader, err := cli.ContainerLogs(ctx, resp.ID, dockercontainer.LogsOptions{
			ShowStdout: true,
			ShowStderr: true,
			Follow:     true,
		})
		if err == nil {
			logDone := make(chan struct{})
			go func() {
				defer close(logDone)
				stdcopy.StdCopy(os.Stdout, os.Stderr, logReader)
				logReader.Close()
			}()
			defer func() { <-logDone }()
		}

		waitCh, errCh := cli.ContainerWait(ctx, resp.ID, dockercontainer.WaitConditionNotRunning)
		select {
		case result := <-waitCh:
			if result.StatusCode != 0 {
				return fmt.Errorf("container %s exited with code %d", name, result.StatusCode)
			}
			return nil
		case err := <-errCh:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("container %s wait: %w", name, err)
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func waitOrRemove(ctx context.Context, cli *client.Client, name string) error {
	<-ctx.Done()
	return ctx.Err()
}

func ensureNetwork(ctx context.Context, cli *client.Client, name string) (string, error) {
	nets, err := cli.NetworkList(ctx, network.ListOptions{})
	if err != nil {
		return "", err
	}
	for _, n := range nets {
		if n.Name == name {
			return n.ID, nil
		}
	}
	created, err := cli.NetworkCreate(ctx, name, network.CreateOptions{Driver: "bridge"})
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

func waitForContainer(ctx context.Context, cli *client.Client, name string) error {
	for {
		inspect, err := cli.ContainerInspect(ctx, name)
		if err == nil && inspect.State.Running {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}
