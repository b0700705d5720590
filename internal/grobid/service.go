package grobid

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

const (
	// DefaultPort is the standard GROBID service port.
	DefaultPort = 8070

	// DefaultImage is the GROBID container image used for provisioning.
	DefaultImage = "lfoppiano/grobid:0.8.0"

	// probeTimeout bounds a single TCP or HTTP readiness probe.
	probeTimeout = 3 * time.Second

	// ReadyPollTimeout bounds the readiness poll when the service is
	// expected to already be starting elsewhere.
	ReadyPollTimeout = 10 * time.Second

	// StartupTimeout bounds the readiness poll after starting a
	// container; GROBID loads its models on first boot.
	StartupTimeout = 2 * time.Minute
)

// ServiceOptions configures EnsureService.
type ServiceOptions struct {
	Port           int
	Image          string
	StartContainer bool // may provision via Docker when the port is silent
	Logger         *slog.Logger
}

// EnsureService guarantees a reachable GROBID endpoint on the configured
// port before returning. If the port already answers TCP connections the
// service is assumed to be running and no second instance is started.
// Otherwise, when provisioning is allowed, a detached auto-removing
// container is started and polled until ready.
func EnsureService(ctx context.Context, opts ServiceOptions) error {
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.Image == "" {
		opts.Image = DefaultImage
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	baseURL := fmt.Sprintf("http://localhost:%d", opts.Port)

	if portInUse(opts.Port) {
		logger.Info("grobid already running", "url", baseURL)
		return nil
	}

	if !opts.StartContainer {
		if waitHTTPReady(ctx, baseURL, ReadyPollTimeout) {
			logger.Info("grobid ready", "url", baseURL)
			return nil
		}
		return fmt.Errorf("%w: %s not reachable and container start is disabled", ErrServiceUnavailable, baseURL)
	}

	if err := startContainer(ctx, opts, logger); err != nil {
		return err
	}

	if !waitHTTPReady(ctx, baseURL, StartupTimeout) {
		return ErrServiceStartTimeout
	}
	logger.Info("grobid ready", "url", baseURL)
	return nil
}

// portInUse reports whether the local port accepts TCP connections.
func portInUse(port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), probeTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// waitHTTPReady polls the endpoint until it answers at the HTTP level or
// the timeout elapses. Any response status counts as ready (404/405
// included); only connection-level failures mean the service is down.
func waitHTTPReady(ctx context.Context, url string, timeout time.Duration) bool {
	httpClient := &http.Client{Timeout: probeTimeout}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return false
		}
		resp, err := httpClient.Do(req)
		if err == nil {
			resp.Body.Close()
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Second):
		}
	}
	return false
}

// startContainer pulls the image if absent and starts a detached,
// auto-removing GROBID container publishing the service port.
func startContainer(ctx context.Context, opts ServiceOptions, logger *slog.Logger) error {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer cli.Close()

	if _, err := cli.Ping(ctx); err != nil {
		return fmt.Errorf("%w: is Docker running? (%v)", ErrBackendUnavailable, err)
	}

	if _, err := cli.ImageInspect(ctx, opts.Image); err != nil {
		logger.Info("pulling grobid image", "image", opts.Image)
		rc, err := cli.ImagePull(ctx, opts.Image, image.PullOptions{})
		if err != nil {
			return fmt.Errorf("pulling image %s: %w", opts.Image, err)
		}
		// The pull completes when the progress stream is drained.
		if _, err := io.Copy(io.Discard, rc); err != nil {
			rc.Close()
			return fmt.Errorf("pulling image %s: %w", opts.Image, err)
		}
		rc.Close()
	}

	// GROBID always listens on 8070 inside the container; only the host
	// side of the binding follows the configured port.
	containerPort := nat.Port("8070/tcp")
	resp, err := cli.ContainerCreate(ctx,
		&container.Config{
			Image:        opts.Image,
			Tty:          true,
			ExposedPorts: nat.PortSet{containerPort: struct{}{}},
		},
		&container.HostConfig{
			AutoRemove: true,
			PortBindings: nat.PortMap{
				containerPort: []nat.PortBinding{{HostPort: fmt.Sprintf("%d", opts.Port)}},
			},
		},
		nil, nil,
		fmt.Sprintf("grobid-%d", opts.Port),
	)
	if err != nil {
		return fmt.Errorf("creating grobid container: %w", err)
	}

	if err := cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("starting grobid container: %w", err)
	}

	logger.Info("started grobid container", "id", resp.ID[:12], "image", opts.Image)
	return nil
}
