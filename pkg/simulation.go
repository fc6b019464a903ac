package calib

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	SetupCNAO       = "cnao"
	SetupCNAOCarbon = "cnao_carbon"
	SetupCYRCE      = "cyrce"

	physicsList        = "QGSP_INCLXX_HP"
	randomEngine       = "MersenneTwister"
	scintillator       = "G4_PLASTIC_SC_VINYLTOLUENE"
	protonEnergySpread = 0.14 // MeV
	plasticSide        = 60.0 // mm
	cnaoPlastic1Z      = 740.0
	cnaoPlastic1Width  = 2.0
	cnaoPlastic2Width  = 4.0
	detectorTubsRadius = 51.0
	collimatorInnerR   = 5.0
	collimatorOuterR   = 15.0
)

var possibleSetups = []string{SetupCNAO, SetupCNAOCarbon, SetupCYRCE}

// setupParticles are the names a run condition may give to the beam of
// each setup.
var setupParticles = map[string][]string{
	SetupCNAO:       {"C", "12C", "C12", "carbon"},
	SetupCNAOCarbon: {"C", "12C", "C12", "carbon"},
	SetupCYRCE:      {"p", "H", "proton"},
}

var (
	hitsAttributes  = []string{"TotalEnergyDeposit", "KineticEnergy", "RunID", "ThreadID", "TrackID", "EventID"}
	adderAttributes = append(slices.Clone(hitsAttributes), "PostPosition", "PreStepUniqueVolumeID", "GlobalTime")
)

// Lengths are in mm, energies in MeV.

type Vector3 [3]float64

type Volume struct {
	Name        string   `yaml:"name"`
	Shape       string   `yaml:"shape"`
	Material    string   `yaml:"material"`
	Size        *Vector3 `yaml:"size,omitempty"`
	RMin        float64  `yaml:"rmin,omitempty"`
	RMax        float64  `yaml:"rmax,omitempty"`
	DZ          float64  `yaml:"dz,omitempty"`
	Translation Vector3  `yaml:"translation"`
}

type Ion struct {
	Z int `yaml:"Z"`
	A int `yaml:"A"`
	Q int `yaml:"Q"`
}

type SourceDescription struct {
	Name       string  `yaml:"name"`
	Particle   string  `yaml:"particle"`
	Ion        *Ion    `yaml:"ion,omitempty"`
	EnergyType string  `yaml:"energy_type"`
	Energy     float64 `yaml:"energy"`
	SigmaGauss float64 `yaml:"sigma_gauss,omitempty"`
	Position   Vector3 `yaml:"position"`
	Direction  Vector3 `yaml:"direction"`
	N          int     `yaml:"n"`
}

type Actor struct {
	Name            string   `yaml:"name"`
	Type            string   `yaml:"type"`
	AttachedTo      string   `yaml:"attached_to,omitempty"`
	InputCollection string   `yaml:"input_digi_collection,omitempty"`
	GroupVolume     string   `yaml:"group_volume,omitempty"`
	Policy          string   `yaml:"policy,omitempty"`
	OutputFilename  string   `yaml:"output_filename"`
	Attributes      []string `yaml:"attributes,omitempty"`
}

// SimulationDescription is the geometry, source and scoring handed to the
// Monte-Carlo engine.
type SimulationDescription struct {
	Setup        string            `yaml:"setup"`
	Campaign     string            `yaml:"campaign"`
	Run          int               `yaml:"run"`
	OutputDir    string            `yaml:"output_dir"`
	MaterialsDB  string            `yaml:"materials_db"`
	PhysicsList  string            `yaml:"physics_list"`
	RandomEngine string            `yaml:"random_engine"`
	RandomSeed   string            `yaml:"random_seed"`
	Volumes      []Volume          `yaml:"volumes"`
	Source       SourceDescription `yaml:"source"`
	Actors       []Actor           `yaml:"actors"`
}

func (d *SimulationDescription) Volume(name string) (Volume, bool) {
	for _, v := range d.Volumes {
		if v.Name == name {
			return v, true
		}
	}
	return Volume{}, false
}

type SimSource struct {
	Energy float64 `yaml:"energy"`
	N      int     `yaml:"n"`
}

type Widths struct {
	Wheel      float64 `yaml:"wheel"`
	Collimator float64 `yaml:"collimator"`
	Plastic1   float64 `yaml:"plastic1"`
	Plastic2   float64 `yaml:"plastic2"`
}

type SimOutput struct {
	Dir string `yaml:"dir"`
}

type EngineConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

type SimulationConfig struct {
	Setup       string         `yaml:"setup"`
	Campaign    string         `yaml:"campaign"`
	Run         int            `yaml:"run"`
	Source      SimSource      `yaml:"source"`
	Width       Widths         `yaml:"width"`
	Output      SimOutput      `yaml:"output"`
	MaterialsDB string         `yaml:"materials_db"`
	Engine      EngineConfig   `yaml:"engine"`
	Command     CommandConfig  `yaml:"command"`
	Database    DatabaseConfig `yaml:"database"`
	Verbosity   int            `yaml:"verbosity"`
}

func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		Setup:       SetupCNAO,
		Source:      SimSource{N: 1000},
		Width:       Widths{Collimator: 10, Plastic1: cnaoPlastic1Width, Plastic2: cnaoPlastic2Width},
		Output:      SimOutput{Dir: "output"},
		MaterialsDB: "./MaterialsCLINM.db",
		Engine:      EngineConfig{Command: "python3", Args: []string{"run_simulation.py"}},
		Command:     CommandConfig{Print: true},
		Database:    defaultDatabaseConfig(),
	}
}

func (c SimulationConfig) Validate() error {
	if !slices.Contains(possibleSetups, c.Setup) {
		return &ErrConfig{Option: "setup", Reason: fmt.Sprintf("%q is not among %v", c.Setup, possibleSetups)}
	}
	if c.Source.N <= 0 {
		return &ErrConfig{Option: "source.n", Reason: "must be positive"}
	}
	if c.Source.Energy < 0 {
		return &ErrConfig{Option: "source.energy", Reason: "must not be negative"}
	}
	if c.Setup == SetupCYRCE {
		if c.Width.Wheel < 0 || c.Width.Collimator <= 0 || c.Width.Plastic1 <= 0 || c.Width.Plastic2 <= 0 {
			return &ErrConfig{Option: "width", Reason: "collimator and plastic widths must be positive, wheel width not negative"}
		}
	}
	return nil
}

func box(name, material string, width, z float64) Volume {
	return Volume{
		Name: name, Shape: "Box", Material: material,
		Size:        &Vector3{plasticSide, plasticSide, width},
		Translation: Vector3{0, 0, z},
	}
}

func tubs(name, material string, rmin, rmax, dz, z float64) Volume {
	return Volume{
		Name: name, Shape: "Tubs", Material: material,
		RMin: rmin, RMax: rmax, DZ: dz,
		Translation: Vector3{0, 0, z},
	}
}

func hitsActor(name, volume, output string, attributes []string) Actor {
	return Actor{
		Name: name, Type: "DigitizerHitsCollectionActor",
		AttachedTo: volume, OutputFilename: output, Attributes: attributes,
	}
}

func adderActor(name, collection, volume, output string) Actor {
	return Actor{
		Name: name, Type: "DigitizerAdderActor",
		InputCollection: collection, GroupVolume: volume,
		OutputFilename: output, Policy: "EnergyWeightedCentroidPosition",
	}
}

func carbonSource(energyPerNucleon float64, n int) SourceDescription {
	ion := &Ion{Z: 6, A: 12, Q: 6}
	return SourceDescription{
		Name: "CNAO", Particle: "ion", Ion: ion,
		EnergyType: "mono",
		Energy:     energyPerNucleon * float64(ion.A),
		Direction:  Vector3{0, 0, 1},
		N:          n,
	}
}

// plasticsActors scores both plastics into a single file with the
// energy-weighted centroid of each event.
func plasticsActors(campaign string, run int) []Actor {
	output := fmt.Sprintf("%s_Run%d_MC.root", campaign, run)
	return []Actor{
		hitsActor("HitsPlastic1", "plastic1", output, adderAttributes),
		hitsActor("HitsPlastic2", "plastic2", output, adderAttributes),
		adderActor("HitsAdderPlastic1", "HitsPlastic1", "plastic1", output),
		adderActor("HitsAdderPlastic2", "HitsPlastic2", "plastic2", output),
	}
}

// BuildSimulation describes the setup of c with the given beam energy
// (MeV/u for carbon ions, MeV for protons).
func BuildSimulation(c SimulationConfig, energy float64) (*SimulationDescription, error) {
	d := &SimulationDescription{
		Setup:        c.Setup,
		Campaign:     c.Campaign,
		Run:          c.Run,
		OutputDir:    c.Output.Dir,
		MaterialsDB:  c.MaterialsDB,
		PhysicsList:  physicsList,
		RandomEngine: randomEngine,
		RandomSeed:   "auto",
	}

	switch c.Setup {
	case SetupCNAO:
		zPlastic1 := cnaoPlastic1Z
		zPlastic2 := zPlastic1 + 33
		zAlu := zPlastic2 + 67
		zTeflon := zAlu + 1
		zCeBr3 := zTeflon + 26
		d.Volumes = []Volume{
			box("plastic1", scintillator, cnaoPlastic1Width, zPlastic1),
			box("plastic2", scintillator, cnaoPlastic2Width, zPlastic2),
			tubs("alu", "Aluminium", 0, detectorTubsRadius, 0.5, zAlu),
			tubs("teflon", "Teflon", 0, detectorTubsRadius, 0.5, zTeflon),
			tubs("cebr3", "CeBr3", 0, detectorTubsRadius, 25.5, zCeBr3),
		}
		d.Source = carbonSource(energy, c.Source.N)
		for _, det := range []struct{ actor, volume string }{
			{"Plastic1", "plastic1"}, {"Plastic2", "plastic2"}, {"CeBr3", "cebr3"},
		} {
			output := fmt.Sprintf("Hits%s_%s_Run%d.root", det.actor, c.Campaign, c.Run)
			d.Actors = append(d.Actors, hitsActor("Hits"+det.actor, det.volume, output, hitsAttributes))
		}

	case SetupCNAOCarbon:
		zPlastic1 := cnaoPlastic1Z
		d.Volumes = []Volume{
			box("plastic1", scintillator, cnaoPlastic1Width, zPlastic1),
			box("plastic2", scintillator, cnaoPlastic2Width, zPlastic1+33),
		}
		d.Source = carbonSource(energy, c.Source.N)
		d.Actors = plasticsActors(c.Campaign, c.Run)

	case SetupCYRCE:
		w := c.Width
		zWheel := 0.5 * w.Wheel
		zCollimator := zWheel + 20 + 0.5*w.Collimator
		zPlastic1 := zCollimator + 95 + 0.5*w.Plastic1
		zPlastic2 := zPlastic1 + 73 + 0.5*w.Plastic2
		if w.Wheel > 0 {
			d.Volumes = append(d.Volumes, box("wheel", "Aluminium", w.Wheel, zWheel))
		}
		d.Volumes = append(d.Volumes,
			tubs("collimator", "Aluminium", collimatorInnerR, collimatorOuterR, w.Collimator, zCollimator),
			box("plastic1", scintillator, w.Plastic1, zPlastic1),
			box("plastic2", scintillator, w.Plastic2, zPlastic2),
		)
		d.Source = SourceDescription{
			Name: "CYRCE", Particle: "proton",
			EnergyType: "gauss",
			Energy:     energy,
			SigmaGauss: protonEnergySpread,
			Direction:  Vector3{0, 0, 1},
			N:          c.Source.N,
		}
		d.Actors = plasticsActors(c.Campaign, c.Run)

	default:
		return nil, &ErrConfig{Option: "setup", Reason: fmt.Sprintf("unknown setup %q", c.Setup)}
	}
	return d, nil
}

// DescriptionFile is where the description of c is written.
func DescriptionFile(c SimulationConfig) string {
	return filepath.Join(c.Output.Dir, fmt.Sprintf("%s_Run%d_simulation.yaml", c.Campaign, c.Run))
}

func WriteDescription(filename string, d *SimulationDescription) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("error encoding simulation description: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("error writing %q: %w", filename, err)
	}
	return nil
}

// beamEnergy returns the configured energy, or the one recorded for the
// run when it is 0.
func beamEnergy(ctx context.Context, c SimulationConfig, store *ResultStore) (float64, error) {
	if c.Source.Energy > 0 {
		return c.Source.Energy, nil
	}
	if store == nil || !c.Database.Use {
		return 0, &ErrConfig{Option: "source.energy", Reason: "energy is 0 and no database is configured"}
	}
	rc, err := store.RunConditionsFor(ctx, c.Campaign, c.Run)
	if err != nil {
		return 0, err
	}
	if !slices.ContainsFunc(setupParticles[c.Setup], func(p string) bool { return strings.EqualFold(p, rc.Particle) }) {
		return 0, &ErrConfig{Option: "setup", Reason: fmt.Sprintf("run %d of %s was taken with %s, setup %q simulates %s", c.Run, c.Campaign, rc.Particle, c.Setup, setupParticles[c.Setup][len(setupParticles[c.Setup])-1])}
	}
	infof(c.Verbosity, "simulation", "Run %d of %s: %s at %g MeV", c.Run, c.Campaign, rc.Particle, rc.Energy)
	return rc.Energy, nil
}

// RunSimulation writes the description file and hands it to the engine.
// store may be nil.
func RunSimulation(ctx context.Context, c SimulationConfig, store *ResultStore, runner Runner) error {
	if err := c.Validate(); err != nil {
		return err
	}
	energy, err := beamEnergy(ctx, c, store)
	if err != nil {
		return err
	}
	d, err := BuildSimulation(c, energy)
	if err != nil {
		return err
	}
	if err := EnsureDir(c.Output.Dir); err != nil {
		return err
	}
	filename := DescriptionFile(c)
	if err := WriteDescription(filename, d); err != nil {
		return err
	}
	infof(c.Verbosity, "simulation", "Simulation description written to %s", filename)

	args := append(slices.Clone(c.Engine.Args), filename)
	cmd := Command{Name: c.Engine.Command, Args: args}
	return Execute(ctx, c.Command, "Running simulation", []Command{cmd}, runner)
}
