package rules

import "os/exec"

// Executor abstracts command execution for the dnsmasq reload.
type Executor interface {
	Run(name string, args ...string) error
}

type osExec struct{}

func (osExec) Run(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}
