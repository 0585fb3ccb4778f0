package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/tokenbrowser/ethgateway/cli/server"
	"github.com/tokenbrowser/ethgateway/pkg/config"
	"github.com/urfave/cli"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "eth-gateway\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates an eth-gateway instance of [cli.App] with all commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "eth-gateway"
	ctl.Version = config.Version
	ctl.Usage = "Ethereum wallet gateway"
	ctl.ErrWriter = os.Stdout

	ctl.Commands = append(ctl.Commands, server.NewCommands()...)
	return ctl
}
