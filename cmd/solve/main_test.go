package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waypoint-optimizer/internal/routing"
)

func TestParseAnchorCoordinates(t *testing.T) {
	c, err := parseAnchor(context.Background(), " -6.2, 106.8 ", nil)
	require.NoError(t, err)
	assert.Equal(t, -6.2, c.Lat)
	assert.Equal(t, 106.8, c.Lng)
}

func TestParseAnchorErrors(t *testing.T) {
	_, err := parseAnchor(context.Background(), "", nil)
	assert.Error(t, err)

	_, err = parseAnchor(context.Background(), "95,10", nil)
	assert.ErrorContains(t, err, "out of range")

	_, err = parseAnchor(context.Background(), "Monas, Jakarta", nil)
	assert.ErrorContains(t, err, "not a coordinate pair")
}

func TestParseAlgorithms(t *testing.T) {
	all, err := parseAlgorithms("ALL")
	require.NoError(t, err)
	assert.Equal(t, routing.Algorithms, all)

	one, err := parseAlgorithms("genetic")
	require.NoError(t, err)
	assert.Equal(t, []routing.Algorithm{routing.AlgorithmGenetic}, one)

	_, err = parseAlgorithms("simplex")
	assert.Error(t, err)
}

func TestApplyOverrides(t *testing.T) {
	p := applyOverrides(routing.DefaultParams(), 30, 4)

	assert.Equal(t, 30, p.ACO.Iterations)
	assert.Equal(t, 30, p.GA.Generations)
	assert.Equal(t, 30, p.PSO.Iterations)
	assert.Equal(t, 30, p.BPSO.Iterations)

	assert.Equal(t, 4, p.ACO.Ants)
	assert.Equal(t, 4, p.ACO.Best)
	assert.Equal(t, 4, p.GA.PopSize)
	assert.Equal(t, 3, p.GA.EliteSize)
	assert.Equal(t, 4, p.PSO.Particles)
	assert.Equal(t, 4, p.BPSO.Particles)
}

func TestApplyOverridesKeepsDefaults(t *testing.T) {
	assert.Equal(t, routing.DefaultParams(), applyOverrides(routing.DefaultParams(), 0, 0))
}
