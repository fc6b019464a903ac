package calib

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	cmds   []Command
	failAt int
	run    func(Command) error
}

func (r *fakeRunner) Run(ctx context.Context, cmd Command) error {
	r.cmds = append(r.cmds, cmd)
	if r.failAt > 0 && len(r.cmds) == r.failAt {
		return errors.New("command failed")
	}
	if r.run != nil {
		return r.run(cmd)
	}
	return nil
}

func TestCommandString(t *testing.T) {
	cmd := Command{Dir: "/reco", Name: "DecodeWC", Args: []string{"-in", "a.bin"}}
	assert.Equal(t, "cd /reco && DecodeWC -in a.bin", cmd.String())
	assert.Equal(t, "ls -l", Command{Name: "ls", Args: []string{"-l"}}.String())
	assert.Equal(t, "a && b", JoinCommands([]Command{{Name: "a"}, {Name: "b"}}))
}

func TestExecuteStopsAtFirstFailure(t *testing.T) {
	runner := &fakeRunner{failAt: 2}
	cmds := []Command{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	err := Execute(context.Background(), CommandConfig{Run: true}, "test", cmds, runner)
	assert.Error(t, err)
	assert.Len(t, runner.cmds, 2)
}

func TestExecutePrintOnly(t *testing.T) {
	runner := &fakeRunner{}
	err := Execute(context.Background(), CommandConfig{Print: true}, "test", []Command{{Name: "a"}}, runner)
	require.NoError(t, err)
	assert.Empty(t, runner.cmds)
}

func TestAddressServer(t *testing.T) {
	assert.Equal(t, "jdoe@sbgui1", AddressServer("jdoe", "sbgui1", "in2p3.fr", true))
	assert.Equal(t, "jdoe@sbgui1.in2p3.fr", AddressServer("jdoe", "sbgui1", "in2p3.fr", false))
}

func TestControlMasterBlock(t *testing.T) {
	block := ControlMasterBlock(SSHControlMasterConfig{
		SSHConfigFile: "/home/jdoe/.ssh/config",
		Host:          "sbgui1",
		User:          "jdoe",
		Hostname:      "sbgui1.in2p3.fr",
		Proxy:         "sbgli.in2p3.fr",
	})
	assert.Contains(t, block, "Host sbgui1\n")
	assert.Contains(t, block, "ControlPath /home/jdoe/.ssh/%r@%h:%p.control\n")
	assert.Contains(t, block, "ProxyCommand ssh -Y jdoe@sbgli.in2p3.fr -W %h:%p\n")
	assert.Contains(t, block, "ControlPersist 600\n")
}

func importConfig(dir string) ImportConfig {
	c := DefaultImportConfig()
	c.Remote.Username = "jdoe"
	c.Remote.Server = "sbgui1"
	c.Remote.Content = Many("/data/run1.root", "/data/run2.root")
	c.Local.Dir = LocalDirConfig{Name: dir, Mkdir: true}
	c.Local.ContentRenaming = Many("first.root", "second.root")
	return c
}

func TestImportConfigValidate(t *testing.T) {
	c := importConfig("local")
	require.NoError(t, c.Validate())

	bad := c
	bad.Remote.TypeOfContent = "link"
	assert.Error(t, bad.Validate())

	bad = c
	bad.Local.ContentRenaming = One("first.root")
	assert.ErrorContains(t, bad.Validate(), "same type")

	bad = c
	bad.Local.ContentRenaming = Many("first.root")
	var sizeErr *ErrSizeMismatch
	assert.ErrorAs(t, bad.Validate(), &sizeErr)
}

func TestBuildImportPlan(t *testing.T) {
	c := importConfig("local")
	c.Remote.TypeOfContent = "directory"
	plan := BuildImportPlan(c)

	assert.Equal(t, "scp -r jdoe@sbgui1.in2p3.fr:/data/run1.root jdoe@sbgui1.in2p3.fr:/data/run2.root local/", plan.Copy.String())
	assert.Equal(t, []Rename{
		{From: "local/run1.root", To: "local/first.root"},
		{From: "local/run2.root", To: "local/second.root"},
	}, plan.Renames)
}

func TestImportData(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "import")
	c := importConfig(dir)
	c.Command.Run = true

	runner := &fakeRunner{run: func(cmd Command) error {
		for _, name := range []string{"run1.root", "run2.root"} {
			if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
				return err
			}
		}
		return nil
	}}
	require.NoError(t, ImportData(context.Background(), c, runner))
	require.Len(t, runner.cmds, 1)
	assert.Equal(t, "scp", runner.cmds[0].Name)
	assert.FileExists(t, filepath.Join(dir, "first.root"))
	assert.FileExists(t, filepath.Join(dir, "second.root"))
	assert.NoFileExists(t, filepath.Join(dir, "run1.root"))
}

func TestImportDataAppendsControlMaster(t *testing.T) {
	sshConfig := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(sshConfig, []byte("Host other\n"), 0o600))

	c := importConfig(filepath.Join(t.TempDir(), "import"))
	c.SSHControlMaster = SSHControlMasterConfig{Create: true, SSHConfigFile: sshConfig, Host: "sbgui1", User: "jdoe", Hostname: "sbgui1.in2p3.fr", Proxy: "sbgli.in2p3.fr"}
	require.NoError(t, ImportData(context.Background(), c, &fakeRunner{}))

	data, err := os.ReadFile(sshConfig)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Host other\n")
	assert.Contains(t, string(data), "ControlMaster auto")
}

func decodeConfig() DecodeWCConfig {
	c := DefaultDecodeWCConfig()
	c.STIVI.ReconstructionDir = "/opt/stivi/reco"
	c.DecodeWC.Input = Many("a.bin", "b.bin")
	c.DecodeWC.Exp = One("CNAO")
	c.DecodeWC.Run = Many("12", "13")
	c.DecodeWC.Flat = Many(true, false)
	return c
}

func TestDecodeWCCommands(t *testing.T) {
	c := decodeConfig()
	require.NoError(t, c.Validate())

	cmds := DecodeWCCommands(c)
	require.Len(t, cmds, 2)
	assert.Equal(t, "cd /opt/stivi/reco && DecodeWC -in a.bin -out auto -exp CNAO -run 12 -flat", cmds[0].String())
	assert.Equal(t, "cd /opt/stivi/reco && DecodeWC -in b.bin -out auto -exp CNAO -run 13", cmds[1].String())
}

func TestDecodeWCValidate(t *testing.T) {
	c := decodeConfig()
	c.DecodeWC.Output = One("out.root")
	assert.ErrorContains(t, c.Validate(), "same type")

	c = decodeConfig()
	c.DecodeWC.Output = Many("out.root")
	var sizeErr *ErrSizeMismatch
	assert.ErrorAs(t, c.Validate(), &sizeErr)

	c = decodeConfig()
	c.DecodeWC.Run = Many("12")
	assert.ErrorAs(t, c.Validate(), &sizeErr)
}

func TestDecodeWCValidateReportsFirstMismatch(t *testing.T) {
	c := decodeConfig()
	c.DecodeWC.Exp = Many("CNAO")
	c.DecodeWC.Run = Many("12")
	c.DecodeWC.Flat = Many(true)
	for range 20 {
		var sizeErr *ErrSizeMismatch
		require.ErrorAs(t, c.Validate(), &sizeErr)
		assert.Equal(t, []string{"DecodeWC.input", "DecodeWC.exp"}, sizeErr.Options)
	}
}

func TestDecodeWCRuns(t *testing.T) {
	c := decodeConfig()
	c.Command.Run = true
	runner := &fakeRunner{}
	require.NoError(t, DecodeWC(context.Background(), c, runner))
	require.Len(t, runner.cmds, 2)
	assert.Equal(t, "/opt/stivi/reco", runner.cmds[1].Dir)
}
