// ABOUTME: Common CLI parser shared by every script binary.
// ABOUTME: Accepts the userinterface name positionally or via --userinterface (legacy --userinterface_name).
package script

import (
	"flag"
	"fmt"
	"strings"
)

// Args holds the parsed common script arguments.
type Args struct {
	UserinterfaceName string
	Host              string
	Device            string
	MaxIteration      int
	Node              string
	Action            string
	AudioAnalysis     bool
}

// ParseArgs parses the common script flags from argv (without the program
// name). A leading non-flag argument is the userinterface name.
func ParseArgs(scriptName string, argv []string) (Args, error) {
	var positional string
	if len(argv) > 0 && !strings.HasPrefix(argv[0], "-") {
		positional = argv[0]
		argv = argv[1:]
	}

	fs := flag.NewFlagSet(scriptName, flag.ContinueOnError)
	var a Args
	var uiFlag, uiLegacy string
	fs.StringVar(&uiFlag, "userinterface", "", "userinterface name")
	fs.StringVar(&uiLegacy, "userinterface_name", "", "userinterface name (legacy)")
	fs.StringVar(&a.Host, "host", "", "host name")
	fs.StringVar(&a.Device, "device", "", "device id")
	fs.IntVar(&a.MaxIteration, "max-iteration", 1, "iteration count")
	fs.StringVar(&a.Node, "node", "", "target node label or id")
	fs.StringVar(&a.Action, "action", "", "zap action command")
	fs.BoolVar(&a.AudioAnalysis, "audio-analysis", false, "enable audio analysis")

	if err := fs.Parse(argv); err != nil {
		return Args{}, err
	}
	if fs.NArg() > 0 {
		return Args{}, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}

	switch {
	case positional != "":
		a.UserinterfaceName = positional
	case uiFlag != "":
		a.UserinterfaceName = uiFlag
	default:
		a.UserinterfaceName = uiLegacy
	}
	return a, nil
}
