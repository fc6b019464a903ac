package calib

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func volumeZ(t *testing.T, d *SimulationDescription, name string) float64 {
	t.Helper()
	v, ok := d.Volume(name)
	require.True(t, ok, name)
	return v.Translation[2]
}

func TestBuildSimulationCNAO(t *testing.T) {
	c := DefaultSimulationConfig()
	c.Campaign = "cnao_2023"
	c.Run = 12
	d, err := BuildSimulation(c, 200)
	require.NoError(t, err)

	assert.Equal(t, 740.0, volumeZ(t, d, "plastic1"))
	assert.Equal(t, 773.0, volumeZ(t, d, "plastic2"))
	assert.Equal(t, 840.0, volumeZ(t, d, "alu"))
	assert.Equal(t, 841.0, volumeZ(t, d, "teflon"))
	assert.Equal(t, 867.0, volumeZ(t, d, "cebr3"))

	assert.Equal(t, "ion", d.Source.Particle)
	assert.Equal(t, 2400.0, d.Source.Energy)
	require.Len(t, d.Actors, 3)
	assert.Equal(t, "HitsCeBr3_cnao_2023_Run12.root", d.Actors[2].OutputFilename)
}

func TestBuildSimulationCYRCE(t *testing.T) {
	c := DefaultSimulationConfig()
	c.Setup = SetupCYRCE
	c.Campaign = "cyrce_2024"
	c.Run = 3
	c.Width = Widths{Wheel: 0, Collimator: 10, Plastic1: 2, Plastic2: 4}
	d, err := BuildSimulation(c, 25)
	require.NoError(t, err)

	_, ok := d.Volume("wheel")
	assert.False(t, ok)
	assert.Equal(t, 25.0, volumeZ(t, d, "collimator"))
	assert.Equal(t, 121.0, volumeZ(t, d, "plastic1"))
	assert.Equal(t, 196.0, volumeZ(t, d, "plastic2"))
	assert.Equal(t, "gauss", d.Source.EnergyType)
	assert.Equal(t, protonEnergySpread, d.Source.SigmaGauss)
	require.Len(t, d.Actors, 4)
	assert.Equal(t, "cyrce_2024_Run3_MC.root", d.Actors[0].OutputFilename)

	c.Width.Wheel = 1
	d, err = BuildSimulation(c, 25)
	require.NoError(t, err)
	assert.Equal(t, 0.5, volumeZ(t, d, "wheel"))
	assert.Equal(t, 25.5, volumeZ(t, d, "collimator"))
	assert.Equal(t, 121.5, volumeZ(t, d, "plastic1"))
	assert.Equal(t, 196.5, volumeZ(t, d, "plastic2"))
}

func TestSimulationValidate(t *testing.T) {
	c := DefaultSimulationConfig()
	require.NoError(t, c.Validate())

	c.Setup = "ganil"
	assert.Error(t, c.Validate())

	c = DefaultSimulationConfig()
	c.Source.N = 0
	assert.Error(t, c.Validate())

	c = DefaultSimulationConfig()
	c.Setup = SetupCYRCE
	c.Width.Wheel = -1
	assert.Error(t, c.Validate())
}

func TestRunSimulation(t *testing.T) {
	c := DefaultSimulationConfig()
	c.Campaign = "cnao_2023"
	c.Run = 7
	c.Source.Energy = 150
	c.Output.Dir = filepath.Join(t.TempDir(), "output")
	c.Command = CommandConfig{Run: true}

	runner := &fakeRunner{}
	require.NoError(t, RunSimulation(context.Background(), c, nil, runner))

	filename := DescriptionFile(c)
	require.Len(t, runner.cmds, 1)
	assert.Equal(t, "python3", runner.cmds[0].Name)
	assert.Equal(t, []string{"run_simulation.py", filename}, runner.cmds[0].Args)

	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	var d SimulationDescription
	require.NoError(t, yaml.Unmarshal(data, &d))
	assert.Equal(t, 7, d.Run)
	assert.Equal(t, 1800.0, d.Source.Energy)
	assert.Len(t, d.Volumes, 5)
}

func TestRunSimulationEnergyFromDatabase(t *testing.T) {
	ctx := context.Background()
	c := DefaultSimulationConfig()
	c.Setup = SetupCNAOCarbon
	c.Campaign = "cnao_2023"
	c.Run = 4
	c.Output.Dir = t.TempDir()

	var cfgErr *ErrConfig
	assert.ErrorAs(t, RunSimulation(ctx, c, nil, &fakeRunner{}), &cfgErr)

	store := openTestStore(t)
	require.NoError(t, store.AddRunConditions(ctx, RunConditions{Campaign: "cnao_2023", MinRun: 1, MaxRun: 9, Particle: "C", Energy: 100}))
	c.Database.Use = true
	require.NoError(t, RunSimulation(ctx, c, store, &fakeRunner{}))

	data, err := os.ReadFile(DescriptionFile(c))
	require.NoError(t, err)
	var d SimulationDescription
	require.NoError(t, yaml.Unmarshal(data, &d))
	assert.Equal(t, 1200.0, d.Source.Energy)
	assert.Len(t, d.Volumes, 2)

	require.NoError(t, store.AddRunConditions(ctx, RunConditions{Campaign: "cnao_2023", MinRun: 10, MaxRun: 19, Particle: "He", Energy: 145}))
	c.Run = 12
	assert.ErrorAs(t, RunSimulation(ctx, c, store, &fakeRunner{}), &cfgErr)

	require.NoError(t, store.AddRunConditions(ctx, RunConditions{Campaign: "cyrce_2024", MinRun: 1, MaxRun: 5, Particle: "proton", Energy: 25}))
	c.Setup = SetupCYRCE
	c.Campaign = "cyrce_2024"
	c.Run = 2
	require.NoError(t, RunSimulation(ctx, c, store, &fakeRunner{}))
}
