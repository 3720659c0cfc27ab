package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/rs/zerolog"
)

const (
	workDir   = "/home/sandbox"
	stdinFile = "input.txt"
)

type DockerSandbox struct {
	cli    *client.Client
	logger *zerolog.Logger
}

func NewDockerSandbox(logger *zerolog.Logger) (*DockerSandbox, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	return &DockerSandbox{cli: cli, logger: logger}, nil
}

func (s *DockerSandbox) Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	// Security: limit PID count to prevent fork bombs
	pidsLimit := int64(64)

	memBytes := int64(cfg.MemoryLimitKb) * 1024

	resp, err := s.cli.ContainerCreate(ctx, &container.Config{
		Image:           cfg.Image,
		Cmd:             []string{"sleep", "infinity"}, // kept alive while we stage files
		Tty:             false,
		OpenStdin:       true,
		StdinOnce:       true,
		NetworkDisabled: true,
		WorkingDir:      workDir,
		User:            "nobody",
	}, &container.HostConfig{
		Resources: container.Resources{
			Memory:     memBytes,
			MemorySwap: memBytes, // no swap allowed
			CPUQuota:   cfg.CPUQuotaMicros,
			CPUPeriod:  100000,
			PidsLimit:  &pidsLimit,
		},
		NetworkMode: "none",
		SecurityOpt: []string{"no-new-privileges"},
		CapDrop:     []string{"ALL"},
		Tmpfs: map[string]string{
			workDir: "rw,exec,nosuid,size=64m,mode=1777",
			"/tmp":  "rw,noexec,nosuid,size=16m,mode=1777",
		},
	}, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	// The filesystem is tmpfs-backed and scoped to this invocation; removing
	// the container destroys it even when the context is already cancelled.
	defer s.cli.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})

	if err := s.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	// Source and stdin are streamed over the exec attach connection, never
	// interpolated into a shell command line. Only the fixed target filename
	// appears in the command.
	if err := s.writeFile(ctx, resp.ID, cfg.SourceFile, cfg.SourceCode); err != nil {
		return nil, err
	}
	if err := s.writeFile(ctx, resp.ID, stdinFile, cfg.Stdin); err != nil {
		return nil, err
	}

	s.logger.Debug().Str("container", resp.ID).Str("file", cfg.SourceFile).Msg("source staged")

	start := time.Now()

	if len(cfg.CompileCmd) > 0 {
		res, err := s.execCapture(ctx, resp.ID, cfg.CompileCmd, false)
		if err != nil {
			// On deadline expiry res still carries partial compiler output.
			if res != nil {
				res.TimeMs = time.Since(start).Milliseconds()
			}
			return res, err
		}
		if res.ExitCode != 0 {
			// Fail fast with the compiler's stderr.
			res.Compiled = false
			res.TimeMs = time.Since(start).Milliseconds()
			return res, nil
		}
	}

	res, err := s.execCapture(ctx, resp.ID, cfg.RunCmd, true)
	if res != nil {
		res.Compiled = true
		res.TimeMs = time.Since(start).Milliseconds()
	}
	return res, err
}

// writeFile stages content into the container working directory by piping
// it to `cat` through an exec attach. The content bytes travel out of band.
func (s *DockerSandbox) writeFile(ctx context.Context, containerID, name, content string) error {
	execResp, err := s.cli.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		Cmd:         []string{"sh", "-c", "cat > " + workDir + "/" + name},
		AttachStdin: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create write exec: %w", err)
	}

	attachResp, err := s.cli.ContainerExecAttach(ctx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return fmt.Errorf("failed to attach write exec: %w", err)
	}

	if _, err := attachResp.Conn.Write([]byte(content)); err != nil {
		attachResp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	attachResp.CloseWrite()
	attachResp.Close()

	for {
		inspect, err := s.cli.ContainerExecInspect(ctx, execResp.ID)
		if err != nil {
			return fmt.Errorf("failed to inspect write exec: %w", err)
		}
		if !inspect.Running {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// execCapture runs cmd inside the container and captures stdout/stderr.
// When redirectStdin is set, the command reads from the staged input file;
// the redirection is built from fixed registry values only.
func (s *DockerSandbox) execCapture(ctx context.Context, containerID string, cmd []string, redirectStdin bool) (*Result, error) {
	runCmd := cmd
	if redirectStdin {
		runCmd = []string{"sh", "-c", strings.Join(cmd, " ") + " < " + stdinFile}
	}

	execResp, err := s.cli.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		Cmd:          runCmd,
		WorkingDir:   workDir,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create exec: %w", err)
	}

	startResp, err := s.cli.ContainerExecAttach(ctx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to attach exec: %w", err)
	}
	defer startResp.Close()

	stdout, stderr, copyErr := demuxCapture(ctx, startResp.Reader, startResp.Close)
	if ctx.Err() != nil {
		// Hard deadline hit: the deferred force-remove in Run tears down the
		// whole process tree. Surface whatever partial output was captured.
		return &Result{
			Stdout:   stdout,
			Stderr:   stderr,
			ExitCode: -1,
		}, ctx.Err()
	}
	if copyErr != nil {
		return nil, fmt.Errorf("failed to read exec output: %w", copyErr)
	}

	inspect, err := s.cli.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect exec: %w", err)
	}

	return &Result{
		Stdout:   stdout,
		Stderr:   stderr,
		ExitCode: inspect.ExitCode,
	}, nil
}

// demuxCapture copies the multiplexed exec stream into stdout/stderr
// buffers. On context expiry it closes the stream to unblock the copier
// and waits for it to stop before reading the buffers, so partial output
// is never read while the copier is still writing.
func demuxCapture(ctx context.Context, r io.Reader, closeStream func()) (string, string, error) {
	var stdout, stderr bytes.Buffer
	done := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(&stdout, &stderr, r)
		done <- err
	}()

	select {
	case err := <-done:
		return stdout.String(), stderr.String(), err
	case <-ctx.Done():
		closeStream()
		<-done
		return stdout.String(), stderr.String(), ctx.Err()
	}
}

func (s *DockerSandbox) EnsureImage(ctx context.Context, img string) error {
	_, _, err := s.cli.ImageInspectWithRaw(ctx, img)
	if err == nil {
		return nil // image already present
	}

	s.logger.Info().Str("image", img).Msg("pulling docker image")
	reader, err := s.cli.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", img, err)
	}
	defer reader.Close()

	// The pull only completes once the reader is consumed.
	_, _ = io.Copy(io.Discard, reader)

	s.logger.Info().Str("image", img).Msg("successfully pulled docker image")
	return nil
}
