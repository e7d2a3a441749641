package task

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/r2s/internal/config"
	"github.com/roach88/r2s/internal/fetch"
	"github.com/roach88/r2s/internal/fispact"
	"github.com/roach88/r2s/internal/profile"
	"github.com/roach88/r2s/internal/spatial"
	"github.com/roach88/r2s/internal/store"
	"github.com/roach88/r2s/internal/testutil"
)

const modelYAML = `materials:
  steel:
    density: 8.0
    natural: {Fe: 1}
  water:
    density: 1.0
    natural: {O: 1}
universes:
  0:
    - {name: 1, material: steel, box: {min: [0, 0, 0], max: [15, 10, 10]}}
    - {name: 2, material: water, box: {min: [15, 0, 0], max: [20, 10, 10]}}
`

// Two voxels along x and two groups. Flux is ordered (group, i, j, k).
const meshYAML = `ebins: [0, 1, 2]
xbins: [0, 10, 20]
ybins: [0, 10]
zbins: [0, 10]
flux: [3, 1, 1, 2]
`

// elementRate is the activation per kg and unit flux of each element.
var elementRate = map[string]float64{"Fe": 1, "O": 3}

// linearSolver mimics FISPACT with results linear in mass and in the group
// fluxes: the atoms produced in a step are mass * FLUX * sum_g (g+1) w_g *
// rate(material) * (step+1), where w is the normalized spectrum.
type linearSolver struct {
	// fail, when set, fails the inventory step of matching case dirs.
	fail func(dir string) bool
}

func (s linearSolver) Run(_ context.Context, dir, input, files string) (string, error) {
	switch input {
	case fispact.CondenseInput:
		return "", os.WriteFile(filepath.Join(dir, fispact.ArrayxName), []byte("arrayx"), 0o644)
	case fispact.ConvertInput:
		return "", convertFlux(dir)
	case fispact.CollapseInput:
		return "", os.WriteFile(filepath.Join(dir, fispact.CollapxName), []byte("collapx"), 0o644)
	case fispact.InventoryInput:
		if s.fail != nil && s.fail(dir) {
			return "run terminated", &fispact.SolverError{Line: "run terminated", Dir: dir, Input: input}
		}
		return "", inventory(dir)
	}
	return "", fmt.Errorf("unexpected input %s", input)
}

func convertFlux(dir string) error {
	data, err := os.ReadFile(filepath.Join(dir, fispact.ArbFluxName))
	if err != nil {
		return err
	}
	var values []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "1" {
			break
		}
		values = append(values, strings.Fields(line)...)
	}
	groups := (len(values) - 1) / 2
	fluxes := values[groups+1:]
	var out []string
	for i := len(fluxes) - 1; i >= 0; i-- {
		out = append(out, fluxes[i])
	}
	return os.WriteFile(filepath.Join(dir, fispact.FluxesName), []byte(strings.Join(out, "\n")), 0o644)
}

func inventory(dir string) error {
	data, err := os.ReadFile(filepath.Join(dir, fispact.FluxesName))
	if err != nil {
		return err
	}
	var spectrum, total float64
	for g, f := range strings.Fields(string(data)) {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return err
		}
		spectrum += float64(g+1) * v
		total += v
	}
	spectrum /= total

	input, err := os.ReadFile(filepath.Join(dir, fispact.InventoryInput+".i"))
	if err != nil {
		return err
	}
	lines := strings.Split(string(input), "\n")
	var mass, rate, amplitude float64
	var durations []float64
	for n := 0; n < len(lines); n++ {
		fields := strings.Fields(lines[n])
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "MASS":
			mass, _ = strconv.ParseFloat(fields[1], 64)
			count, _ := strconv.Atoi(fields[2])
			for _, el := range lines[n+1 : n+1+count] {
				f := strings.Fields(el)
				pct, _ := strconv.ParseFloat(f[1], 64)
				rate += pct / 100 * elementRate[f[0]]
			}
		case "FLUX":
			if amplitude == 0 {
				amplitude, _ = strconv.ParseFloat(fields[1], 64)
			}
		case "TIME":
			v, _ := strconv.ParseFloat(fields[1], 64)
			u, err := profile.ParseTimeUnit(fields[2])
			if err != nil {
				return err
			}
			durations = append(durations, v*u.Seconds())
		}
	}

	type nuclide struct {
		Element  string  `json:"element"`
		Isotope  int     `json:"isotope"`
		State    string  `json:"state"`
		Atoms    float64 `json:"atoms"`
		Activity float64 `json:"activity"`
	}
	type spectrumJSON struct {
		Boundaries []float64 `json:"boundaries"`
		Values     []float64 `json:"values"`
	}
	type step struct {
		Duration      float64      `json:"duration"`
		GammaSpectrum spectrumJSON `json:"gamma_spectrum"`
		Nuclides      []nuclide    `json:"nuclides"`
	}
	var report struct {
		InventoryData []step `json:"inventory_data"`
	}
	for n, d := range durations {
		a := mass * amplitude * spectrum * rate * float64(n+1)
		report.InventoryData = append(report.InventoryData, step{
			Duration:      d,
			GammaSpectrum: spectrumJSON{Boundaries: []float64{0, 1, 2}, Values: []float64{a, 2 * a}},
			Nuclides:      []nuclide{{Element: "Fe", Isotope: 55, Atoms: a, Activity: a * 1e-3}},
		})
	}
	out, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, fispact.ReportName), out, 0o644)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testConfig(t *testing.T, approach string) *config.Task {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "model.yaml", modelYAML)
	writeFile(t, dir, "mesh.yaml", meshYAML)
	return &config.Task{
		Approach:  approach,
		Model:     "model.yaml",
		Mesh:      "mesh.yaml",
		MinVolume: 1e-3,
		Threads:   2,
		Failure:   "best-effort",
		Fispact: config.Fispact{
			Executable: "fispact",
			Settings: fispact.Settings{
				Libraries: map[string]string{"ind_nuc": "/data/ind_nuc", "xs_endf": "/data/xs"},
				Mind:      1e5,
				Half:      true,
			},
		},
		Scenario: config.Scenario{
			Steps: []config.Step{
				{Flux: 1e10, Duration: "1h", Record: "ATOMS", Nominal: true},
				{Duration: "1d", Record: "ATOMS"},
			},
		},
		Source: config.Source{StartDistribution: 1, Particle: "p", Output: "sdef.i"},
		Dir:    dir,
	}
}

func openTask(t *testing.T, solver fispact.Solver) *Task {
	t.Helper()
	tk, err := Open(filepath.Join(t.TempDir(), "task"), true)
	require.NoError(t, err)
	t.Cleanup(func() { tk.Close() })
	tk.Solver = solver
	tk.IDs = testutil.NewRunIDs()
	return tk
}

func runTask(t *testing.T, approach string) *Task {
	t.Helper()
	ctx := context.Background()
	tk := openTask(t, linearSolver{})
	require.NoError(t, tk.Prepare(ctx, testConfig(t, approach)))
	_, err := tk.Run(ctx, RunOptions{})
	require.NoError(t, err)
	_, err = tk.Fetch(ctx, false)
	require.NoError(t, err)
	return tk
}

func frameValues(t *testing.T, path string) map[string]float64 {
	t.Helper()
	f, err := fetch.ReadFrameFile(path)
	require.NoError(t, err)
	out := make(map[string]float64)
	for _, e := range f.Nonzero() {
		row := strconv.Itoa(e.Bin)
		if len(f.Nuclides) > 0 {
			row = f.Nuclides[e.Bin]
		}
		out[row+" "+e.Key.String()] = e.Value
	}
	return out
}

func TestPrepare_WritesCases(t *testing.T) {
	ctx := context.Background()
	tk := openTask(t, linearSolver{})
	require.NoError(t, tk.Prepare(ctx, testConfig(t, fetch.ApproachFull)))

	cases, err := tk.Store.Cases(ctx, store.CasePending)
	require.NoError(t, err)
	names := make([]string, len(cases))
	for i, c := range cases {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"c1_0_0_0", "c1_1_0_0", "c2_1_0_0"}, names)

	dir := filepath.Join(tk.Dir, CasesDir, "c1_1_0_0")
	for _, name := range []string{"files", "files.convert", "convert.i", "arb_flux", "collapse.i", "inventory.i"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	assert.FileExists(t, filepath.Join(tk.Dir, CondenseDir, "condense.i"))

	files, err := os.ReadFile(filepath.Join(dir, fispact.FilesName))
	require.NoError(t, err)
	assert.Contains(t, string(files), "arrayx  ../../condense/ARRAYX\n")

	inv, err := os.ReadFile(filepath.Join(dir, "inventory.i"))
	require.NoError(t, err)
	assert.Contains(t, string(inv), "MASS 4.0 1\n")
	assert.Contains(t, string(inv), "FLUX 3.0\nTIME 1.0 HOURS ATOMS\nFLUX 0\nZERO\nTIME 1.0 DAYS ATOMS\n")

	layout, err := tk.Layout(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"steel", "water"}, layout.Materials)
	assert.Equal(t, map[int]string{1: "steel", 2: "water"}, layout.CellMaterial)
	assert.Equal(t, []Volume{
		{Key: spatial.Key{Cell: 1, I: 0}, Volume: 1000, Mass: 8},
		{Key: spatial.Key{Cell: 1, I: 1}, Volume: 500, Mass: 4},
		{Key: spatial.Key{Cell: 2, I: 1}, Volume: 500, Mass: 0.5},
	}, layout.Volumes)
}

func TestPrepare_SimpleCases(t *testing.T) {
	ctx := context.Background()
	tk := openTask(t, linearSolver{})
	require.NoError(t, tk.Prepare(ctx, testConfig(t, fetch.ApproachSimple)))

	cases, err := tk.Store.Cases(ctx, "")
	require.NoError(t, err)
	require.Len(t, cases, 4)
	assert.Equal(t, "steel_g0", cases[0].Name)
	assert.Equal(t, []any{float64(0), "steel"}, cases[0].Labels)

	// Unit cases hold the reference mass under the reference flux.
	inv, err := os.ReadFile(filepath.Join(cases[3].Dir, "inventory.i"))
	require.NoError(t, err)
	assert.Contains(t, string(inv), "MASS 8.0 1\n")
	assert.Contains(t, string(inv), "FLUX 3.0\n")
}

func TestFullMatchesSimple(t *testing.T) {
	ctx := context.Background()
	full := runTask(t, fetch.ApproachFull)
	simple := runTask(t, fetch.ApproachSimple)

	fullResults, err := full.Store.Results(ctx)
	require.NoError(t, err)
	simpleResults, err := simple.Store.Results(ctx)
	require.NoError(t, err)
	require.Len(t, fullResults, 6)
	require.Len(t, simpleResults, len(fullResults))

	for i, r := range fullResults {
		require.Equal(t, r.Kind, simpleResults[i].Kind)
		require.Equal(t, r.Time, simpleResults[i].Time)
		assert.Contains(t, []int{3600, 90000}, r.Time)

		want := frameValues(t, r.Path)
		got := frameValues(t, simpleResults[i].Path)
		require.NotEmpty(t, want)
		for k, v := range want {
			assert.InEpsilon(t, v, got[k], 1e-9, "%s/%d %s", r.Kind, r.Time, k)
		}
		for k, v := range got {
			if _, ok := want[k]; !ok {
				assert.InDelta(t, 0, v, 1e-9, "%s/%d %s", r.Kind, r.Time, k)
			}
		}
	}

	// Steel in the first voxel: 8 kg * (1*3 + 2*1) at the first step.
	path, err := full.Store.ResultPath(ctx, spatial.KindAtoms, 3600)
	require.NoError(t, err)
	assert.InEpsilon(t, 40.0, frameValues(t, path)["Fe55 (1, 0, 0, 0)"], 1e-9)
}

func TestRun_FailedCases(t *testing.T) {
	ctx := context.Background()
	tk := openTask(t, linearSolver{fail: func(dir string) bool { return filepath.Base(dir) == "c2_1_0_0" }})
	require.NoError(t, tk.Prepare(ctx, testConfig(t, fetch.ApproachFull)))

	res, err := tk.Run(ctx, RunOptions{})
	require.ErrorIs(t, err, ErrCasesFailed)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "c2_1_0_0", res.Failed[0].Name)

	var se *fispact.SolverError
	assert.ErrorAs(t, err, &se)

	counts, err := tk.Store.CaseCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{store.CaseDone: 2, store.CaseFailed: 1}, counts)

	_, err = tk.Fetch(ctx, false)
	assert.ErrorIs(t, err, fetch.ErrPartial)
	out, err := tk.Fetch(ctx, true)
	require.NoError(t, err)
	assert.Len(t, out.Failed, 1)

	tk.Solver = linearSolver{}
	res, err = tk.Run(ctx, RunOptions{FailedOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Completed)

	st, err := tk.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{store.CaseDone: 3}, st.Counts)
	assert.InDelta(t, 12.0, st.Masses["steel"], 1e-9)
	assert.InDelta(t, 0.5, st.Masses["water"], 1e-9)
	assert.Empty(t, st.Failed)
	require.Len(t, st.Runs, 4)
	assert.Equal(t, store.RunFailed, st.Runs[0].Status)
	assert.Equal(t, PhaseFetch, st.Runs[1].Phase)
	assert.Equal(t, store.RunFinished, st.Runs[3].Status)
}

// cancelingSolver cancels the run once the first inventory step finished.
type cancelingSolver struct {
	linearSolver
	cancel context.CancelFunc
}

func (s cancelingSolver) Run(ctx context.Context, dir, input, files string) (string, error) {
	out, err := s.linearSolver.Run(ctx, dir, input, files)
	if input == fispact.InventoryInput {
		s.cancel()
	}
	return out, err
}

func TestRun_InterruptedKeepsOutcomes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tk := openTask(t, cancelingSolver{cancel: cancel})
	cfg := testConfig(t, fetch.ApproachFull)
	cfg.Threads = 1
	require.NoError(t, tk.Prepare(ctx, cfg))

	res, err := tk.Run(ctx, RunOptions{})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Completed)
	assert.Equal(t, []string{"c1_1_0_0", "c2_1_0_0"}, res.Skipped)

	bg := context.Background()
	done, err := tk.Store.Cases(bg, store.CaseDone)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, "c1_0_0_0", done[0].Name)

	runs, err := tk.Store.Runs(bg)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.RunFailed, runs[0].Status)
	assert.Equal(t, 1, runs[0].Completed)
	assert.Equal(t, 2, runs[0].Skipped)

	tk.Solver = linearSolver{}
	res, err = tk.Run(bg, RunOptions{FailedOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Completed)
}

func TestSource(t *testing.T) {
	ctx := context.Background()
	tk := runTask(t, fetch.ApproachFull)

	src, path, err := tk.Source(ctx, SourceOptions{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tk.Dir, "sdef.i"), path)
	assert.Equal(t, 6, src.Entries)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "SDEF PAR=2 CEL=D1 ERG=FCEL D2")

	_, _, err = tk.Source(ctx, SourceOptions{Time: "1h", Output: filepath.Join(t.TempDir(), "early.i")})
	require.NoError(t, err)

	_, _, err = tk.Source(ctx, SourceOptions{Time: "5s"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestScenario(t *testing.T) {
	p, err := Scenario(&config.Scenario{
		Steps:   []config.Step{{Flux: 2, Duration: "2h", Nominal: true}, {Duration: "1h"}},
		Records: []string{"1h"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"FLUX 4.0",
		"TIME 1.0 HOURS ATOMS",
		"TIME 1.0 HOURS ",
		"FLUX 0",
		"ZERO",
		"TIME 1.0 HOURS ",
	}, p.Lines(4))

	p, err = Scenario(&config.Scenario{
		Steps:   []config.Step{{Flux: 2, Duration: "1h", Nominal: true}, {Duration: "1h"}},
		Records: []string{"1h"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"FLUX 4.0",
		"TIME 1.0 HOURS ATOMS",
		"FLUX 0",
		"ZERO",
		"TIME 1.0 HOURS ",
	}, p.Lines(4))

	_, err = Scenario(&config.Scenario{
		Steps:   []config.Step{{Flux: 2, Duration: "1h", Nominal: true}},
		Records: []string{"0s"},
	})
	assert.ErrorIs(t, err, profile.ErrNonPositiveDuration)

	dir := t.TempDir()
	tmpl := writeFile(t, dir, "scenario.txt", "FLUX 1.0e10\nTIME 1 YEARS ATOMS\n")
	st, err := Scenario(&config.Scenario{Template: tmpl, NormFlux: 1e10})
	require.NoError(t, err)
	assert.Equal(t, []string{"FLUX 5.0000e+09", "TIME 1 YEARS ATOMS"}, st.Lines(5e9))

	_, err = Scenario(&config.Scenario{Template: tmpl, Records: []string{"1h"}})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	named, err := Scenario(&config.Scenario{Profile: "sa2"})
	require.NoError(t, err)
	assert.NotEmpty(t, named.Lines(1e12))
}

func TestEnsureDir(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing")
	assert.Error(t, EnsureDir(missing, false))
	require.NoError(t, EnsureDir(missing, true))
	assert.DirExists(t, missing)

	file := writeFile(t, dir, "file", "x")
	assert.Error(t, EnsureDir(file, true))

	_, err := Open(filepath.Join(dir, "absent"), false)
	assert.Error(t, err)
}
