//go:build unix

package supervise

import (
	"bufio"
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervisor_SpawnFailure(t *testing.T) {
	s := New([]string{"/nonexistent/definitely-not-a-binary"}, nil)
	err := s.Start(context.Background())
	require.Error(t, err)
}

func TestSupervisor_EmptyCommand(t *testing.T) {
	s := New(nil, nil)
	require.Error(t, s.Start(context.Background()))
}

func TestSupervisor_PropagatesChildExitCode(t *testing.T) {
	s := New([]string{"sh", "-c", "exit 3"}, nil)
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 3, s.Wait())
}

func TestSupervisor_CleanExit(t *testing.T) {
	s := New([]string{"true"}, nil)
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 0, s.Wait())
}

func TestSupervisor_PipesCarryStdio(t *testing.T) {
	s := New([]string{"cat"}, nil)
	require.NoError(t, s.Start(context.Background()))

	_, err := s.Stdin().Write([]byte("hello\n"))
	require.NoError(t, err)
	require.NoError(t, s.Stdin().Close())

	line, err := bufio.NewReader(s.Stdout()).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "hello\n", line)
	assert.Equal(t, 0, s.Wait())
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 1, exitCode(errors.New("wait: boom")))

	cmd := exec.Command("sh", "-c", "exit 7")
	err := cmd.Run()
	require.Error(t, err)
	assert.Equal(t, 7, exitCode(err))
}
