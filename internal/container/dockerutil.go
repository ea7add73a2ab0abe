// Package container implements the Container Manager collaborator the
// dispatch core's Executor depends on: starting a service's container,
// resolving its hostname, and running exec-transport commands inside it.
package container

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/docker/docker/client"
)

var (
	sharedClient *client.Client
	clientOnce   sync.Once
	clientErr    error
)

// dockerClient returns a process-wide shared Docker client. Callers must
// not call Close on the returned client.
func dockerClient() (*client.Client, error) {
	clientOnce.Do(func() {
		sharedClient, clientErr = newClient()
	})
	return sharedClient, clientErr
}

func newClient() (*client.Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}

	if os.Getenv("DOCKER_HOST") == "" {
		if sock := findSocket(); sock != "" {
			opts = append(opts, client.WithHost("unix://"+sock))
		}
	}

	return client.NewClientWithOpts(opts...)
}

func findSocket() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}

	candidates := []string{"/var/run/docker.sock"}
	if home != "" {
		candidates = append(candidates,
			filepath.Join(home, ".docker", "run", "docker.sock"),
			filepath.Join(home, ".colima", "default", "docker.sock"),
		)
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
