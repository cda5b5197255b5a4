package environment

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/oshokin/s2l-bootstrap/internal/logger"
	"github.com/oshokin/s2l-bootstrap/internal/shell"
)

// ErrCreate is returned when conda could not create the environment.
var ErrCreate = errors.New("environment creation failed")

// errList is returned when the environment listing cannot be read.
var errList = errors.New("environment listing failed")

// Manager talks to conda about environments.
type Manager struct {
	runner        shell.Runner
	conda         string
	pythonVersion string
}

// NewManager returns a manager using the conda launcher at condaPath.
func NewManager(runner shell.Runner, condaPath, pythonVersion string) *Manager {
	return &Manager{
		runner:        runner,
		conda:         condaPath,
		pythonVersion: pythonVersion,
	}
}

// List returns the environment names reported by "conda env list".
func (m *Manager) List(ctx context.Context) ([]string, error) {
	res, err := m.runner.Run(ctx, shell.Command{Name: m.conda, Args: []string{"env", "list"}})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		return nil, fmt.Errorf("%w: %w", errList, err)
	}

	return ParseList(res.Stdout), nil
}

// Exists reports whether name shows up in the listing. Names match exactly:
// an environment called S2L-old does not satisfy S2L.
func (m *Manager) Exists(ctx context.Context, name string) (bool, error) {
	names, err := m.List(ctx)
	if err != nil {
		return false, err
	}

	for _, n := range names {
		if n == name {
			return true, nil
		}
	}

	return false, nil
}

// Ensure creates the environment unless it is already listed. A failed
// creation is not rolled back.
func (m *Manager) Ensure(ctx context.Context, name string) (bool, error) {
	ctx = logger.WithName(ctx, "environment")

	exists, err := m.Exists(ctx, name)
	if err != nil {
		return false, err
	}

	if exists {
		logger.Infof(ctx, "The environment '%s' already exists. Skipping environment creation.", name)
		return false, nil
	}

	logger.InfoKV(ctx, "Creating environment", "name", name, "python", m.pythonVersion)

	create := shell.Command{
		Name:        m.conda,
		Args:        []string{"create", "-n", name, "python=" + m.pythonVersion, "-y"},
		Interactive: true,
	}

	if _, err = m.runner.Run(ctx, create); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}

		return false, fmt.Errorf("%s: %w: %w", name, ErrCreate, err)
	}

	return true, nil
}

// ParseList extracts names from "conda env list" output:
//
//	# conda environments:
//	#
//	base                  *  /home/oleg/miniconda3
//	S2L                      /home/oleg/miniconda3/envs/S2L
//	                         /opt/unnamed/env
//
// Unnamed environments contribute the base name of their path.
func ParseList(output string) []string {
	var names []string

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)

		first := fields[0]
		if strings.ContainsAny(first, `/\`) {
			first = path.Base(strings.ReplaceAll(first, `\`, "/"))
		}

		names = append(names, first)
	}

	return names
}
