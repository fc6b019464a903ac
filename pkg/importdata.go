package calib

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var possibleTypesOfContent = []string{"directory", "file"}

type SSHControlMasterConfig struct {
	Create        bool   `yaml:"create"`
	SSHConfigFile string `yaml:"ssh_config_file"`
	Host          string `yaml:"host"`
	User          string `yaml:"user"`
	Hostname      string `yaml:"hostname"`
	Proxy         string `yaml:"proxy"`
}

type RemoteConfig struct {
	Username            string            `yaml:"username"`
	Server              string            `yaml:"server"`
	Domain              string            `yaml:"domain"`
	TypeOfContent       string            `yaml:"type_of_content"`
	Content             OneOrMany[string] `yaml:"content"`
	UseSSHControlMaster bool              `yaml:"use_ssh_control_master"`
}

type LocalDirConfig struct {
	Name  string `yaml:"name"`
	Mkdir bool   `yaml:"mkdir"`
}

type LocalConfig struct {
	Dir             LocalDirConfig    `yaml:"dir"`
	ContentRenaming OneOrMany[string] `yaml:"content_renaming"`
}

type ImportConfig struct {
	SSHControlMaster SSHControlMasterConfig `yaml:"ssh_control_master"`
	Remote           RemoteConfig           `yaml:"remote"`
	Local            LocalConfig            `yaml:"local"`
	Command          CommandConfig          `yaml:"command"`
	Verbosity        int                    `yaml:"verbosity"`
}

func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		SSHControlMaster: SSHControlMasterConfig{Proxy: "sbgli.in2p3.fr"},
		Remote:           RemoteConfig{Domain: "in2p3.fr", TypeOfContent: "file"},
		Command:          CommandConfig{Print: true},
	}
}

// Validate checks the content type and the renaming list.
func (c ImportConfig) Validate() error {
	if !slices.Contains(possibleTypesOfContent, c.Remote.TypeOfContent) {
		return &ErrConfig{
			Option: "remote.type_of_content",
			Reason: fmt.Sprintf("%q is not among the possible values: 'directory' or 'file'", c.Remote.TypeOfContent),
		}
	}
	if !c.Remote.Content.IsSet() {
		return &ErrConfig{Option: "remote.content", Reason: "nothing to import"}
	}
	renaming := c.Local.ContentRenaming
	if renaming.IsSet() {
		if renaming.IsList != c.Remote.Content.IsList {
			return &ErrConfig{Option: "local.content_renaming", Reason: "must be of same type as remote content"}
		}
		err := checkSameSize([]string{"remote.content", "local.content_renaming"}, c.Remote.Content.Len(), renaming.Len())
		if err != nil {
			return err
		}
	}
	return nil
}

// AddressServer returns the scp address of the server. Through a control
// master the short host name is enough.
func AddressServer(user, server, domain string, useControlMaster bool) string {
	if useControlMaster {
		return user + "@" + server
	}
	return user + "@" + server + "." + domain
}

// ControlMasterBlock is the ssh_config stanza sharing one connection through
// the proxy for every transfer.
func ControlMasterBlock(cfg SSHControlMasterConfig) string {
	sshDir := filepath.Dir(cfg.SSHConfigFile)
	var b strings.Builder
	fmt.Fprintf(&b, "\n# Access to %s server (via proxy connection to %s)\n", cfg.Hostname, cfg.Proxy)
	fmt.Fprintf(&b, "Host %s\n", cfg.Host)
	fmt.Fprintf(&b, "User %s\n", cfg.User)
	fmt.Fprintf(&b, "Hostname %s\n", cfg.Hostname)
	b.WriteString("# one ssh channel for all connections, password only on first connection\n")
	b.WriteString("ControlMaster auto\n")
	fmt.Fprintf(&b, "ControlPath %s/%%r@%%h:%%p.control\n", sshDir)
	b.WriteString("ControlPersist 600\n")
	b.WriteString("ForwardAgent yes\n")
	b.WriteString("PubkeyAuthentication yes\n")
	b.WriteString("ForwardX11 yes\n")
	b.WriteString("ForwardX11Trusted yes\n")
	b.WriteString("Compression yes\n")
	b.WriteString("ServerAliveInterval 60\n")
	fmt.Fprintf(&b, "ProxyCommand ssh -Y %s@%s -W %%h:%%p\n", cfg.User, cfg.Proxy)
	return b.String()
}

// AppendControlMaster adds the control master stanza to the ssh config file.
func AppendControlMaster(cfg SSHControlMasterConfig) error {
	f, err := os.OpenFile(cfg.SSHConfigFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return &ErrOpenFile{Filename: cfg.SSHConfigFile, Err: err}
	}
	if _, err := f.WriteString(" \n" + ControlMasterBlock(cfg)); err != nil {
		f.Close()
		return fmt.Errorf("error writing %q: %w", cfg.SSHConfigFile, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info(fmt.Sprintf("The SSH ControlManager for host %s was added to the file %s", cfg.Host, cfg.SSHConfigFile), "import")
	return nil
}

// Rename is a local move done once the copy is over.
type Rename struct {
	From string
	To   string
}

// ImportPlan is the copy command followed by the renames.
type ImportPlan struct {
	Copy    Command
	Renames []Rename
}

func BuildImportPlan(c ImportConfig) ImportPlan {
	address := AddressServer(c.Remote.Username, c.Remote.Server, c.Remote.Domain, c.Remote.UseSSHControlMaster)
	localDir := EnforceTrailingSlash(c.Local.Dir.Name)
	content := c.Remote.Content.Values

	var args []string
	if c.Remote.TypeOfContent == "directory" {
		args = append(args, "-r")
	}
	for _, entry := range content {
		args = append(args, address+":"+entry)
	}
	args = append(args, localDir)

	plan := ImportPlan{Copy: Command{Name: "scp", Args: args}}
	for i, newName := range c.Local.ContentRenaming.Values {
		plan.Renames = append(plan.Renames, Rename{
			From: localDir + BaseName(content[i]),
			To:   localDir + newName,
		})
	}
	return plan
}

func (p ImportPlan) renameCommands() []Command {
	cmds := make([]Command, len(p.Renames))
	for i, r := range p.Renames {
		cmds[i] = Command{Name: "mv", Args: []string{r.From, r.To}}
	}
	return cmds
}

// ImportData creates the control master entry and the local directory if
// asked, then copies and renames the remote content.
func ImportData(ctx context.Context, c ImportConfig, runner Runner) error {
	logger.Warn("This program requires to be connected to IPHC server!", "import")
	if err := c.Validate(); err != nil {
		return err
	}
	if c.SSHControlMaster.Create {
		if err := AppendControlMaster(c.SSHControlMaster); err != nil {
			return err
		}
	}
	if c.Local.Dir.Mkdir {
		if err := EnsureDir(c.Local.Dir.Name); err != nil {
			return err
		}
	}

	plan := BuildImportPlan(c)
	if c.Command.Print {
		logger.Info(fmt.Sprintf("Command line to copy data from remote:\n %s", plan.Copy), "import")
		if len(plan.Renames) > 0 {
			logger.Info(fmt.Sprintf("Command line to rename local data:\n %s", JoinCommands(plan.renameCommands())), "import")
		}
	}
	if !c.Command.Run {
		return nil
	}
	if err := runner.Run(ctx, plan.Copy); err != nil {
		return err
	}
	for _, r := range plan.Renames {
		infof(c.Verbosity, "import", "Renaming %s to %s", r.From, r.To)
		if err := os.Rename(r.From, r.To); err != nil {
			return fmt.Errorf("error renaming %q: %w", r.From, err)
		}
	}
	return nil
}
