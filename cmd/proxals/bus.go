package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/proxals/cmd/proxals/console"
	"github.com/mklimuk/proxals/i2c"
)

var busCmd = cli.Command{
	Name: "bus",
	Subcommands: cli.Commands{
		&busLsCmd,
	},
}

var busLsCmd = cli.Command{
	Name:  "ls",
	Usage: "list I2C controllers found on the host",
	Action: func(c *cli.Context) error {
		controllers, err := i2c.NewManager().Controllers()
		if err != nil {
			return console.Exit(1, "could not list controllers: %s", console.Red(err))
		}
		if len(controllers) == 0 {
			console.Warnf("No I2C controllers were found on the system")
			return nil
		}
		w := tabwriter.NewWriter(console.Writer(), 16, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "NUMBER\tNAME\tALIASES\n")
		for _, ctrl := range controllers {
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n", ctrl.Number, ctrl.Name, strings.Join(ctrl.Aliases, ","))
		}
		_ = w.Flush()
		return nil
	},
}
